package utils

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// DBLogAdapter maps pgx tracelog records to the app logger
type DBLogAdapter struct{}

// NewDBLogTracer creates a pgx tracer logging via the app logger
func NewDBLogTracer() *tracelog.TraceLog {
	return &tracelog.TraceLog{Logger: &DBLogAdapter{}, LogLevel: tracelog.LogLevelWarn}
}

// Log implements tracelog.Logger
func (l *DBLogAdapter) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	var le *zerolog.Event
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		le = goapp.Log.Debug()
	case tracelog.LogLevelInfo:
		le = goapp.Log.Info()
	case tracelog.LogLevelWarn:
		le = goapp.Log.Warn()
	default:
		le = goapp.Log.Error()
	}
	for k, v := range data {
		le = le.Interface(k, v)
	}
	le.Msg(msg)
}
