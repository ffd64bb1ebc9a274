// Package logger wraps zap for the updater and its host:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and an atomic shared level,
//   - an optional append-only log file teed next to the console output.
//
// Engine components never hold a logger themselves; they pull it from the
// context they were called with.
package logger
