// Package logging provides structured logging for twrpdtgen.
//
// This package wraps zap logger with convenience functions for common
// logging patterns used throughout the tool. Logging is silent by
// default so generated output stays clean; verbosity is opted into via
// the TWRPDTGEN_LOG_LEVEL environment variable or the --log-level flag.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, section layout, token parsing)
//   - Info: Normal operations (image parsed, device identified, tree written)
//   - Warn: Non-fatal issues (truncated ramdisk, unusable device tree)
//   - Error: Fatal issues (format errors, unresolvable fingerprints)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("device identified",
//	    zap.String("codename", "hero2lte"),
//	    zap.String("manufacturer", "samsung"),
//	)
//
// # Configuration
//
// Initialize logging at command startup; an empty level falls back to
// the environment variable:
//
//	if err := logging.Initialize(level); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// All log output goes to stderr so stdout stays usable for piped
// command output (inspect's manifest dump, for example).
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
