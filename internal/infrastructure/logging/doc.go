// Package logging provides structured logging for the horn node.
//
// This package wraps Go's standard log/slog package so that every component
// logs with the same format and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for bench work (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("link").Info("link up", "address", addr)
//
// Never log link passphrases or broker passwords.
package logging
