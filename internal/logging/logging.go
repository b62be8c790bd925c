// Package logging builds the logrus logger shared by the CLI, the API server
// and the statement pipeline.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Field names attached by pipeline components.
const (
	FieldRequestID = "request_id"
	FieldTicker    = "ticker"
	FieldPeriod    = "period"
	FieldComponent = "component"
)

// NewWithOutput returns a logger writing to out at the given level ("debug",
// "info", ...) in "text" or "json" format. An unknown level falls back to info
// and is reported so callers can warn about it.
func NewWithOutput(level, format string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		return log, fmt.Errorf("unknown log level %q, using info", level)
	}
	log.SetLevel(lvl)
	return log, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
