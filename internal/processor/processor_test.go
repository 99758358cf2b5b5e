package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sales-coach-go/internal/encoder"
	"sales-coach-go/internal/engine"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/metrics"
	"sales-coach-go/internal/types"
)

const goodReply = `{"summary":"Good call.","transcript":[{"speaker":"Salesperson","text":"Hi","timestamp":"00:00"}],"sentimentGraph":[{"time":"Start","engagement":70}],"coaching":{"strengths":["Good opener"],"missedOpportunities":["No clear CTA"]}}`

type fakeEngine struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []engine.Request
}

func (f *fakeEngine) Submit(_ context.Context, req engine.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func quietLogger() *logger.Logger {
	return logger.NewWithOptions(logger.Options{Environment: "test", Level: "error", Output: io.Discard})
}

func payload(size int, mimeType string) types.AudioPayload {
	return types.NewAudioPayload(bytes.NewReader(bytes.Repeat([]byte{0xAB}, size)), int64(size), mimeType, "call.mp3")
}

func TestProcessSuccess(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{reply: goodReply}
	p := New(eng, quietLogger(), nil)

	res, err := p.Process(context.Background(), "a1", payload(2*1024*1024, "audio/mpeg"))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Summary != "Good call." {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if len(eng.reqs) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(eng.reqs))
	}
	req := eng.reqs[0]
	if req.Audio.MIMEType != "audio/mpeg" || req.Temperature != engine.DefaultTemperature {
		t.Fatalf("unexpected request %+v", req)
	}
	raw, err := encoder.Decode(req.Audio)
	if err != nil || len(raw) != 2*1024*1024 {
		t.Fatalf("payload did not survive encoding: len=%d err=%v", len(raw), err)
	}
}

func TestProcessFailureKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"empty reply", "", nil, failure.ErrEmptyResponse},
		{"not json", "I could not hear the call", nil, failure.ErrMalformedResponse},
		{"missing field", `{"summary":"s"}`, nil, failure.ErrSchemaViolation},
		{"auth", "", failure.New(failure.AuthenticationFailed, "test", nil), failure.ErrAuthenticationFailed},
		{"unclassified engine error", "", errors.New("socket closed"), failure.ErrServiceUnavailable},
	}
	for _, tc := range cases {
		p := New(&fakeEngine{reply: tc.reply, err: tc.err}, quietLogger(), nil)
		res, err := p.Process(context.Background(), "a1", payload(10, "audio/wav"))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if res.Summary != "" || res.Transcript != nil {
			t.Fatalf("%s: expected no partial result", tc.name)
		}
	}
}

func TestProcessEncodingFailureSkipsEngine(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{reply: goodReply}
	p := New(eng, quietLogger(), nil)

	_, err := p.Process(context.Background(), "a1", types.NewAudioPayload(bytes.NewReader(nil), 0, "audio/wav", "empty.wav"))
	if !errors.Is(err, failure.ErrEncodingFailed) {
		t.Fatalf("expected EncodingFailed, got %v", err)
	}
	if len(eng.reqs) != 0 {
		t.Fatalf("engine should not be called")
	}
}

func TestProcessKeepsAnomaliesAndCountsThem(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	reply := strings.Replace(goodReply, `"engagement":70`, `"engagement":-5`, 1)
	p := New(&fakeEngine{reply: reply}, quietLogger(), m)

	res, err := p.Process(context.Background(), "a1", payload(10, "audio/wav"))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.SentimentGraph[0].Engagement != -5 {
		t.Fatalf("value should be kept as returned, got %d", res.SentimentGraph[0].Engagement)
	}
	if got := testutil.ToFloat64(m.Anomalies); got != 1 {
		t.Fatalf("expected 1 anomaly counted, got %v", got)
	}
	if got := testutil.CollectAndCount(m.StageDuration); got != 3 {
		t.Fatalf("expected 3 stage series, got %d", got)
	}
}
