package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"sales-coach-go/internal/contract"
	"sales-coach-go/internal/encoder"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const geminiOp = "engine.gemini"

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint (tests, proxies).
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini talks to the Gemini API through google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGemini builds the engine. A missing API key is not an error here: the
// engine is still returned and every Submit fails with AuthenticationFailed.
func NewGemini(ctx context.Context, cfg GeminiConfig, log *logger.Logger) (*Gemini, error) {
	if log == nil {
		log = logger.New()
	}
	g := &Gemini{model: cfg.Model, log: log.Component("engine").With("provider", "gemini")}
	if g.model == "" {
		g.model = DefaultModel
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		g.log.Warn("no API key configured; analysis requests will fail")
		return g, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Submit(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", failure.Newf(failure.AuthenticationFailed, geminiOp, "no API key configured")
	}

	data, err := encoder.Decode(req.Audio)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: data, MIMEType: req.Audio.MIMEType}},
			{Text: req.Instruction},
		},
	}}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.Contract != nil {
		config.ResponseSchema = toGenaiSchema(req.Contract)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	entry := g.log.WithFields(logrus.Fields{
		"model":       g.model,
		"mime_type":   req.Audio.MIMEType,
		"audio_bytes": len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		ferr := classify(err)
		entry.WithField("failure_kind", ferr.Kind).WithField("error", err.Error()).Warn("generate content failed")
		return "", ferr
	}
	entry.Debug("generate content finished")
	return resp.Text(), nil
}

// classify maps provider errors onto the failure taxonomy. Only credential
// problems are AuthenticationFailed; everything else is ServiceUnavailable.
func classify(err error) *failure.Error {
	if apiErr, ok := asAPIError(err); ok {
		status := strings.ToUpper(apiErr.Status)
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden,
			status == "UNAUTHENTICATED", status == "PERMISSION_DENIED":
			return failure.New(failure.AuthenticationFailed, geminiOp, err)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return failure.New(failure.AuthenticationFailed, geminiOp, err)
		}
	}
	return failure.New(failure.ServiceUnavailable, geminiOp, err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

var genaiTypes = map[contract.Type]genai.Type{
	contract.Object:  genai.TypeObject,
	contract.Array:   genai.TypeArray,
	contract.String:  genai.TypeString,
	contract.Integer: genai.TypeInteger,
}

// toGenaiSchema converts the response contract into the provider's schema
// type. Property order is kept stable so the model sees the same schema on
// every request.
func toGenaiSchema(s *contract.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
		out.PropertyOrdering = propertyOrder(s)
	}
	return out
}

// propertyOrder lists required properties first, in their declared order,
// followed by any optional ones sorted by name.
func propertyOrder(s *contract.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	order := make([]string, 0, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
