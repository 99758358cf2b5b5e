// Package contract describes the JSON document the analysis engine must
// return. The same description is sent to the engine as its response schema
// and used to validate what comes back.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Version identifies the response contract.
const Version = "sales-call-analysis/v1"

type Type string

const (
	Object  Type = "object"
	Array   Type = "array"
	String  Type = "string"
	Integer Type = "integer"
)

type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// Analysis is the contract for types.AnalysisResult.
var Analysis = &Schema{
	Type: Object,
	Properties: map[string]*Schema{
		"summary": {Type: String, Description: "A concise 2-3 sentence summary of the call."},
		"transcript": {
			Type: Array,
			Items: &Schema{
				Type: Object,
				Properties: map[string]*Schema{
					"speaker":   {Type: String, Description: "Identify as 'Salesperson' or 'Prospect'"},
					"text":      {Type: String},
					"timestamp": {Type: String, Description: "Time format MM:SS"},
				},
				Required: []string{"speaker", "text", "timestamp"},
			},
		},
		"sentimentGraph": {
			Type:        Array,
			Description: "10-15 data points representing engagement throughout the call",
			Items: &Schema{
				Type: Object,
				Properties: map[string]*Schema{
					"time":       {Type: String, Description: "Label for the x-axis, e.g., 'Start', 'Discovery', 'Closing' or MM:SS"},
					"engagement": {Type: Integer, Description: "0-100 score of engagement/sentiment"},
				},
				Required: []string{"time", "engagement"},
			},
		},
		"coaching": {
			Type: Object,
			Properties: map[string]*Schema{
				"strengths": {
					Type:        Array,
					Items:       &Schema{Type: String},
					Description: "3 specific things the salesperson did well",
				},
				"missedOpportunities": {
					Type:        Array,
					Items:       &Schema{Type: String},
					Description: "3 specific areas for improvement",
				},
			},
			Required: []string{"strengths", "missedOpportunities"},
		},
	},
	Required: []string{"summary", "transcript", "sentimentGraph", "coaching"},
}

// Violation reports where a document departs from the contract.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Validate checks a document decoded with json.Decoder.UseNumber (or plain
// float64 numbers). Fields not named by the contract are allowed.
func (s *Schema) Validate(doc any) error {
	return s.validate("$", doc)
}

func (s *Schema) validate(path string, v any) error {
	if v == nil {
		return &Violation{Path: path, Reason: "must not be null"}
	}
	switch s.Type {
	case Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return &Violation{Path: path, Reason: "expected object, got " + kindOf(v)}
		}
		for _, name := range s.Required {
			if _, ok := obj[name]; !ok {
				return &Violation{Path: path + "." + name, Reason: "required field is missing"}
			}
		}
		for _, name := range s.propertyNames() {
			fv, ok := obj[name]
			if !ok {
				continue
			}
			if err := s.Properties[name].validate(path+"."+name, fv); err != nil {
				return err
			}
		}
	case Array:
		arr, ok := v.([]any)
		if !ok {
			return &Violation{Path: path, Reason: "expected array, got " + kindOf(v)}
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range arr {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case String:
		if _, ok := v.(string); !ok {
			return &Violation{Path: path, Reason: "expected string, got " + kindOf(v)}
		}
	case Integer:
		if !isInteger(v) {
			return &Violation{Path: path, Reason: "expected integer, got " + kindOf(v)}
		}
	default:
		return &Violation{Path: path, Reason: fmt.Sprintf("unknown schema type %q", s.Type)}
	}
	return nil
}

// Project returns a copy of a validated document holding only the fields the
// contract names, matched by exact key. Anything else is dropped.
func (s *Schema) Project(v any) any {
	switch s.Type {
	case Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			if fv, ok := obj[name]; ok {
				out[name] = prop.Project(fv)
			}
		}
		return out
	case Array:
		arr, ok := v.([]any)
		if !ok || s.Items == nil {
			return v
		}
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = s.Items.Project(item)
		}
		return out
	default:
		return v
	}
}

// propertyNames returns property names in a stable order so the first
// violation reported is deterministic.
func (s *Schema) propertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Int64()
		return err == nil
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
