// Package logger provides structured logging for varflow using zerolog.
//
// It supports console and JSON output, level configuration, and scoped
// loggers carrying the run, component and task identifiers that every
// scheduler and executor message is tagged with.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.WithComponent("scheduler")
//	log.Info("task completed", logger.Fields(logger.FieldTask, id))
package logger
