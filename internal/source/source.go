// Package source produces audio payloads from uploaded files and from the
// microphone. Both producers converge on types.AudioPayload.
package source

import "sales-coach-go/internal/types"

// Source is anything that can hand the pipeline one audio payload.
type Source interface {
	Payload() (types.AudioPayload, error)
}

var (
	_ Source = FileSource{}
	_ Source = (*Recorder)(nil)
)
