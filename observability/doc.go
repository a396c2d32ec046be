// Package observability wires OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Export is enabled only when an OTLP endpoint is configured:
//
//	shutdown, err := observability.Init(ctx, observability.Config{
//	    ServiceName: "varflow",
//	    RunID:       runID,
//	    Endpoint:    "localhost:4318",
//	    Insecure:    true,
//	})
//	defer shutdown(ctx)
//
// Every task execution gets a span and updates the task instruments:
//
//	ctx, span := observability.StartTaskSpan(ctx, "BwaMem", "BwaMem (S1_1)", "S1_1")
//	defer observability.EndTaskSpan(span, "completed", err)
package observability
