// Package logging provides structured logging for the lineus library and CLI.
//
// This package wraps a zap logger with convenience functions. It is silent by
// default: library users see no output unless they opt in, either by calling
// Initialize with a level or by setting LINEUS_LOG_LEVEL.
//
// # Log Levels
//
//   - Debug: frame hex dumps, individual probe failures, discovery events
//   - Info: connections, scans started and finished, devices found
//   - Warn: skipped interfaces, malformed greetings
//   - Error: discovery browser failures
//
// # Structured Logging
//
//	logging.Info("Device found",
//	    zap.String("name", handle.Name),
//	    zap.String("ip", handle.IP),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection("192.168.1.20:1337", "greeting_received")
//	logging.LogFrame("sent", frame)
//	logging.LogProbe("192.168.1.21", err)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use; scanner workers log from
// many goroutines at once.
package logging
