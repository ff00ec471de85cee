// Package logger provides context-aware structured logging on top of logrus.
// It mirrors the Ctx/Set idiom the rest of the codebase relies on: handlers
// attach request-scoped fields once and every layer below picks them up.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// DefaultLogger is the process-wide logger. It is configured once in
// cmd/root.go and used whenever no context-scoped logger is present.
var DefaultLogger = logrus.New()

// SetLevel sets the level of the default logger from its string name,
// falling back to INFO when the name is not recognized.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	DefaultLogger.SetLevel(lvl)
}

// Set returns a copy of ctx carrying the given logger entry.
func Set(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, entry)
}

// Ctx returns the logger entry stored in ctx, or an entry on the default
// logger when none was set.
func Ctx(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(DefaultLogger)
}
