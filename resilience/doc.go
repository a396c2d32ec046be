// Package resilience provides the concurrency and retry primitives used to
// run pipeline tasks.
//
//   - Bulkhead: bounds how many calls run at once, optionally queueing the rest
//   - Retry: re-runs failed operations with exponential backoff
//   - RateLimiter: token bucket used to pace job submissions
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4, MaxWait: resilience.WaitForever})
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 2, Burst: 1})
//
//	err := bh.Execute(ctx, func() error {
//	    if err := rl.Wait(ctx); err != nil {
//	        return err
//	    }
//	    return submit(ctx)
//	})
package resilience
