package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestJSONFormatterOutsideLocal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "prod", Level: "info", Output: &buf})
	log.Component("encoder").WithError(errors.New("boom")).Warn("encode failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "encoder" {
		t.Fatalf("unexpected component: %v", entry["component"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("unexpected error field: %v", entry["error"])
	}
	if entry["level"] != "warning" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "prod", Level: "error", Output: &buf})
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDReusesHeader(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/api/state", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	if got := RequestID(r); got != "abc-123" {
		t.Fatalf("unexpected request id: %q", got)
	}

	r2 := httptest.NewRequest("GET", "/api/state", nil)
	first := RequestID(r2)
	if first == "" {
		t.Fatalf("expected generated request id")
	}
	if second := RequestID(r2); second != first {
		t.Fatalf("expected stable request id, got %q then %q", first, second)
	}
}
