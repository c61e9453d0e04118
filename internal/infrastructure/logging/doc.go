// Package logging provides structured logging for the bridge.
//
// It wraps log/slog so every record carries the service name and
// version, and is emitted as JSON (default) or text.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error (verbose, quiet)
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening", "port", 14443)
//	logger.Error("send failed", "error", err)
//
// Never log secrets; log config.Redacted() instead of a raw Config.
package logging
