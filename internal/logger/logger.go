package logger

import "chorddht/internal/domain"

// Field represents a single structured key/value pair.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured-logging interface used throughout
// the ring, routing table, storage and overlay packages.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	WithNode(n domain.Node) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a concise constructor for a single Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode serializes a domain.Node into a structured field.
func FNode(key string, n domain.Node) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id": n.ID.ToHexString(true),
		},
	}
}

// FResource serializes a domain.Resource into a structured field,
// without leaking the raw value payload into the log line.
func FResource(key string, r domain.Resource) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"key":        r.Key.ToHexString(true),
			"name":       r.Name,
			"value_size": len(r.Value),
		},
	}
}

// NopLogger is a Logger implementation that discards everything.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) WithNode(n domain.Node) Logger     { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
