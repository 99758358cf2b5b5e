package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"sales-coach-go/internal/contract"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/types"
)

const op = "extractor.decode"

// Decode turns the engine's reply into an AnalysisResult. Each step has its
// own failure kind and nothing partial is ever returned.
func Decode(text string) (types.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return types.AnalysisResult{}, failure.New(failure.EmptyResponse, op, errors.New("engine returned no text"))
	}

	doc, err := parseSingle(text)
	if err != nil {
		return types.AnalysisResult{}, failure.New(failure.MalformedResponse, op, err)
	}

	if err := contract.Analysis.Validate(doc); err != nil {
		return types.AnalysisResult{}, failure.New(failure.SchemaViolation, op, err)
	}

	// decode from the checked tree: Unmarshal matches keys case-insensitively
	checked, err := json.Marshal(contract.Analysis.Project(doc))
	if err != nil {
		return types.AnalysisResult{}, failure.New(failure.SchemaViolation, op, err)
	}
	var res types.AnalysisResult
	if err := json.Unmarshal(checked, &res); err != nil {
		return types.AnalysisResult{}, failure.New(failure.SchemaViolation, op, err)
	}
	return res, nil
}

// parseSingle decodes exactly one JSON value with nothing after it.
func parseSingle(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, errors.New("parse response: trailing data after JSON document")
		}
		return nil, fmt.Errorf("parse response: trailing data: %w", err)
	}
	return doc, nil
}

var timestampPattern = regexp.MustCompile(`^\d{1,3}:[0-5]\d$`)

// Anomalies lists values the contract lets through but the result model
// does not expect: engagement outside 0-100 and timestamps not in MM:SS.
// The result itself is never modified.
func Anomalies(res types.AnalysisResult) []string {
	var out []string
	for i, p := range res.SentimentGraph {
		if p.Engagement < 0 || p.Engagement > 100 {
			out = append(out, fmt.Sprintf("sentimentGraph[%d].engagement=%d outside 0-100", i, p.Engagement))
		}
	}
	for i, seg := range res.Transcript {
		if !timestampPattern.MatchString(seg.Timestamp) {
			out = append(out, fmt.Sprintf("transcript[%d].timestamp=%q is not MM:SS", i, seg.Timestamp))
		}
	}
	return out
}
