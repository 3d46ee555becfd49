package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Logger is the logging interface handed to every pipeline stage. The structured variants take
// alternating key/value pairs, e.g. logger.Infow("residual", "target", j, "mean", m).
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" sharing this logger's outputs.
	Sublogger(subname string) Logger
	// Desugar exposes the underlying zap logger.
	Desugar() *zap.Logger
	Sync() error
}

type impl struct {
	name string
	*zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		name: newName,
		// zap joins names with a period on its own.
		SugaredLogger: imp.SugaredLogger.Named(subname),
	}
}

// utcClock stamps entries in UTC.
type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}

func (utcClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}
