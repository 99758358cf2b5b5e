package types

import "time"

// AppState is the user-visible lifecycle of one submission.
type AppState string

const (
	StateIdle      AppState = "IDLE"
	StateAnalyzing AppState = "ANALYZING"
	StateComplete  AppState = "COMPLETE"
	StateError     AppState = "ERROR"
)

// Snapshot is a read-only copy of the application state for presentation.
type Snapshot struct {
	State       AppState        `json:"state"`
	AnalysisID  string          `json:"analysis_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	MIMEType    string          `json:"mime_type,omitempty"`
	SizeBytes   int64           `json:"size_bytes,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	FailureKind string          `json:"failure_kind,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	FinishedAt  time.Time       `json:"finished_at,omitzero"`
	DurationMs  int64           `json:"duration_ms,omitempty"`
}
