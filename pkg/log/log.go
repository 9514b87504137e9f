// Package log provides the logging interface used throughout the
// emulator, backed by logrus.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// New returns a Logger writing text formatted entries to stderr at
// the given level ("debug", "info", "warn", "error").
func New(level string) Logger {
	return NewWithOutput(os.Stderr, level)
}

// NewWithOutput is like New, but writes to w.
func NewWithOutput(w io.Writer, level string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// WithField returns a Logger that annotates every entry with key.
// Loggers not created by this package are returned unchanged.
func WithField(l Logger, key string, value interface{}) Logger {
	switch v := l.(type) {
	case *logrus.Logger:
		return v.WithField(key, value)
	case *logrus.Entry:
		return v.WithField(key, value)
	}
	return l
}
