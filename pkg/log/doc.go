// Package log provides the logging abstraction used by ecgsync components.
//
// Components depend on the Logger interface only. A zerolog adapter is
// provided for real output and a no-op logger for library defaults and tests.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Info("connected", log.String("session", id))
//
// Scoped loggers carry fields into every message:
//
//	tlog := log.With(logger, log.String("component", "transport"))
package log
