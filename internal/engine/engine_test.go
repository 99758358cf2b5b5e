package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"sales-coach-go/internal/contract"
	"sales-coach-go/internal/extractor"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

const goodReply = `{"summary":"Good call.","transcript":[{"speaker":"Salesperson","text":"Hi","timestamp":"00:00"}],"sentimentGraph":[{"time":"Start","engagement":70}],"coaching":{"strengths":["Good opener"],"missedOpportunities":["No clear CTA"]}}`

func quietLogger() *logger.Logger {
	return logger.NewWithOptions(logger.Options{Environment: "test", Level: "error", Output: io.Discard})
}

func candidateBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":"STOP"}]}`, text)
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, quietLogger())
	if err != nil {
		t.Fatalf("new gemini: %v", err)
	}
	return g
}

func testRequest() Request {
	return NewRequest(types.EncodedAudio{Payload: "aGVsbG8=", MIMEType: "audio/mpeg"})
}

func TestNewRequestDefaults(t *testing.T) {
	t.Parallel()

	req := testRequest()
	if req.Temperature != DefaultTemperature {
		t.Fatalf("unexpected temperature %v", req.Temperature)
	}
	if req.Temperature != 0.2 {
		t.Fatalf("unexpected temperature %v", req.Temperature)
	}
	if req.Contract != contract.Analysis {
		t.Fatalf("expected the analysis contract")
	}
	for _, want := range []string{"Salesperson", "Prospect", "10-15", "JSON"} {
		if !strings.Contains(req.Instruction, want) {
			t.Fatalf("instruction missing %q", want)
		}
	}
}

func TestGeminiSubmitReturnsReplyText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody []byte
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, candidateBody(goodReply))
	})

	text, err := g.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if text != goodReply {
		t.Fatalf("unexpected reply: %q", text)
	}
	if !strings.HasSuffix(gotPath, "models/"+DefaultModel+":generateContent") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	for _, want := range []string{"audio/mpeg", "aGVsbG8=", "application/json", "sentimentGraph"} {
		if !bytes.Contains(gotBody, []byte(want)) {
			t.Fatalf("request body missing %q: %s", want, gotBody)
		}
	}

	res, err := extractor.Decode(text)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Summary != "Good call." {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
}

func TestGeminiClassifiesProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		code   int
		status string
		msg    string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, "UNAUTHENTICATED", "request had invalid credentials", failure.ErrAuthenticationFailed},
		{"forbidden", http.StatusForbidden, "PERMISSION_DENIED", "permission denied", failure.ErrAuthenticationFailed},
		{"bad key", http.StatusBadRequest, "INVALID_ARGUMENT", "API key not valid. Please pass a valid API key.", failure.ErrAuthenticationFailed},
		{"bad request", http.StatusBadRequest, "INVALID_ARGUMENT", "unsupported audio", failure.ErrServiceUnavailable},
		{"quota", http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "quota exceeded", failure.ErrServiceUnavailable},
		{"server", http.StatusInternalServerError, "INTERNAL", "boom", failure.ErrServiceUnavailable},
	}
	for _, tc := range cases {
		g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.code)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"status":%q}}`, tc.code, tc.msg, tc.status)
		})
		_, err := g.Submit(context.Background(), testRequest())
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestGeminiTimeoutIsServiceUnavailable(t *testing.T) {
	t.Parallel()

	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Submit(ctx, testRequest())
	if !errors.Is(err, failure.ErrServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestGeminiWithoutKeyFailsEverySubmission(t *testing.T) {
	t.Parallel()

	g, err := NewGemini(context.Background(), GeminiConfig{}, quietLogger())
	if err != nil {
		t.Fatalf("new gemini: %v", err)
	}
	if g.Model() != DefaultModel {
		t.Fatalf("unexpected model %q", g.Model())
	}
	for i := 0; i < 2; i++ {
		if _, err := g.Submit(context.Background(), testRequest()); !errors.Is(err, failure.ErrAuthenticationFailed) {
			t.Fatalf("expected AuthenticationFailed, got %v", err)
		}
	}
}

func TestClassifyNonAPIErrors(t *testing.T) {
	t.Parallel()

	if got := classify(errors.New("dial tcp: connection refused")); got.Kind != failure.ServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %s", got.Kind)
	}
	wrapped := fmt.Errorf("call: %w", genai.APIError{Code: 401, Status: "UNAUTHENTICATED"})
	if got := classify(wrapped); got.Kind != failure.AuthenticationFailed {
		t.Fatalf("expected AuthenticationFailed, got %s", got.Kind)
	}
	if got := classify(&genai.APIError{Code: 403}); got.Kind != failure.AuthenticationFailed {
		t.Fatalf("expected AuthenticationFailed for pointer form, got %s", got.Kind)
	}
}

func TestContractConversion(t *testing.T) {
	t.Parallel()

	s := toGenaiSchema(contract.Analysis)
	if s.Type != genai.TypeObject {
		t.Fatalf("unexpected root type %q", s.Type)
	}
	wantOrder := []string{"summary", "transcript", "sentimentGraph", "coaching"}
	if strings.Join(s.PropertyOrdering, ",") != strings.Join(wantOrder, ",") {
		t.Fatalf("unexpected ordering %v", s.PropertyOrdering)
	}
	engagement := s.Properties["sentimentGraph"].Items.Properties["engagement"]
	if engagement.Type != genai.TypeInteger {
		t.Fatalf("unexpected engagement type %q", engagement.Type)
	}
	if s.Properties["transcript"].Items.Properties["speaker"].Description == "" {
		t.Fatalf("expected descriptions to carry over")
	}
	if len(s.Properties["coaching"].Required) != 2 {
		t.Fatalf("unexpected coaching required list %v", s.Properties["coaching"].Required)
	}
}

func TestMockEngine(t *testing.T) {
	t.Parallel()

	m := NewMock()
	text, err := m.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("mock submit failed: %v", err)
	}
	res, err := extractor.Decode(text)
	if err != nil {
		t.Fatalf("mock reply does not decode: %v", err)
	}
	if len(res.Coaching.Strengths) != 3 || len(res.Coaching.MissedOpportunities) != 3 {
		t.Fatalf("unexpected coaching %+v", res.Coaching)
	}
	if n := len(res.SentimentGraph); n < 10 || n > 15 {
		t.Fatalf("unexpected sentiment point count %d", n)
	}
	if got := extractor.Anomalies(res); len(got) != 0 {
		t.Fatalf("mock reply has anomalies: %v", got)
	}

	m.Err = failure.New(failure.EmptyResponse, "test", nil)
	if _, err := m.Submit(context.Background(), testRequest()); !errors.Is(err, failure.ErrEmptyResponse) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if m.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", m.Calls())
	}
}
