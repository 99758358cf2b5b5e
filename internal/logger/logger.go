package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries a caller-supplied request ID.
const RequestIDHeader = "X-Request-ID"

type Logger struct {
	*logrus.Entry
}

// Options selects formatter, level and sink. Zero values fall back to the
// ENVIRONMENT / LOG_LEVEL environment variables and stdout.
type Options struct {
	Environment string
	Level       string
	Output      io.Writer
}

func New() *Logger {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Logger {
	base := logrus.New()

	env := opts.Environment
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	// Local env = pretty console; others = JSON
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     opts.Output == nil,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	base.SetLevel(ParseLevel(level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps debug|warn|error to logrus levels; anything else is info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// With returns a Logger carrying an extra field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// Component tags all entries with the emitting component.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"req_id":     RequestID(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithAnalysis tags entries with an analysis ID.
func (l *Logger) WithAnalysis(id string) *logrus.Entry {
	return l.Entry.WithField("analysis_id", id)
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}

// RequestID returns the caller's X-Request-ID, generating one if absent.
// The generated ID is stored back on the request header so later log lines
// for the same request agree.
func RequestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
		r.Header.Set(RequestIDHeader, id)
	}
	return id
}
