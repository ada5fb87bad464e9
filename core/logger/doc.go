// Package logger provides structured logging attribute helpers built on Go's
// standard slog package. Helpers cover the attributes the datastore emits
// while retrying, reconnecting and running maintenance tasks, with nil-safe
// zero values so call sites never need explicit guards.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/searchstore/core/logger"
//
//	log.Warn("engine busy, retrying",
//		logger.Error(err),
//		logger.StatusCode(429),
//		logger.Index("hot_entries"),
//		logger.RetryCount(attempt),
//	)
//
// Helpers returning an empty slog.Attr for zero values (Error on nil, Index on
// "", Task on "") are safe to pass unconditionally; slog drops empty
// attributes from output.
package logger
