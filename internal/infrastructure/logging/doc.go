// Package logging provides structured logging for the C-Gate bridge.
//
// It wraps the standard library's log/slog with:
//   - Level filtering from configuration (debug, info, warn, error)
//   - JSON output for production, text for development
//   - Default fields (service, version) on every record
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("pool started", "slots", 3)
//
//	poolLog := log.With("component", "pool")
//	poolLog.Warn("slot demoted", "slot", 1)
package logging
