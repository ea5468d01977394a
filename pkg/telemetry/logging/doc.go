// Package logging provides structured logging for ratecontrol.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - A minimum level that a configuration reload can change in place
//   - Context-aware logging with run IDs, command and limiter names
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logger.Info("limiter created",
//	    "limiter", "uploads",
//	    "rate", 100,
//	)
//
//	// Packages that take a *slog.Logger get the same handler.
//	engine, err := ratelimit.New(ratelimit.WithLogger(logger.Slog()))
//
//	// Context fields are added to every record logged with that context.
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "engine started")
//
// # Level Changes
//
// Loggers created through With share the level of their parent, so a
// single SetLevel call after a configuration reload affects all of them.
package logging
