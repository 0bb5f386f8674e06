/*
Package log provides structured logging for rangedb using zerolog.

The log package wraps zerolog to give every layer (client orchestrator,
shuffle, transport, range server dispatch, and datastore backends) a
consistent JSON-structured logger with component-scoped child loggers and
a configurable level/output.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component and context loggers:

	dispatchLog := log.WithComponent("rangeserver")
	dispatchLog.Info().Msg("dispatch loop started")

	rankLog := log.WithRank(3)
	rankLog.Debug().Msg("flush received")

	dsLog := log.WithDatastore(2)
	dsLog.Warn().Msg("histogram generator failed, staying in filling state")

# Design

A single package-level Logger instance is initialized once via Init and
read concurrently by every goroutine: range server dispatch workers,
the client's async-put worker, and transport handlers all log through it
without needing it threaded through call signatures.
*/
package log
