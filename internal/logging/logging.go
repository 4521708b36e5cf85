// Package logging defines the structured logger the pipelines accept. The
// default is a no-op; the CLI plugs in a zap-backed implementation.
package logging

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, kv ...any) {}
func (nopLogger) Info(msg string, kv ...any)  {}
func (nopLogger) Warn(msg string, kv ...any)  {}
func (nopLogger) Error(msg string, kv ...any) {}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }
