// internal/types/models.go
package types

import "io"

// DefaultMIMEType is used when a capture does not declare its own type.
const DefaultMIMEType = "audio/webm"

// --------------------------------------------
// Audio handed from a source to the encoder
// --------------------------------------------
type AudioPayload struct {
	Body        io.Reader `json:"-"`
	Size        int64     `json:"size"`
	MIMEType    string    `json:"mime_type"`
	DisplayName string    `json:"display_name"`
}

// NewAudioPayload builds a payload, falling back to DefaultMIMEType.
func NewAudioPayload(body io.Reader, size int64, mimeType, displayName string) AudioPayload {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return AudioPayload{Body: body, Size: size, MIMEType: mimeType, DisplayName: displayName}
}

// EncodedAudio carries the base64 payload without any data-URI header.
type EncodedAudio struct {
	Payload  string `json:"payload"`
	MIMEType string `json:"mime_type"`
}

// --------------------------------------------
// Analysis result returned by the engine
// --------------------------------------------
type TranscriptSegment struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type SentimentPoint struct {
	Time       string `json:"time"`
	Engagement int    `json:"engagement"`
	Label      string `json:"label,omitempty"`
}

type CoachingInsights struct {
	Strengths           []string `json:"strengths"`
	MissedOpportunities []string `json:"missedOpportunities"`
}

type AnalysisResult struct {
	Summary        string              `json:"summary"`
	Transcript     []TranscriptSegment `json:"transcript"`
	SentimentGraph []SentimentPoint    `json:"sentimentGraph"`
	Coaching       CoachingInsights    `json:"coaching"`
}
