// Package engine submits encoded call audio to a multimodal model and returns
// the raw text of its reply.
package engine

import (
	"context"

	"sales-coach-go/internal/contract"
	"sales-coach-go/internal/types"
)

// DefaultTemperature keeps replies close to deterministic.
const DefaultTemperature float32 = 0.2

// Instruction is sent alongside every recording.
const Instruction = `You are an expert sales coach. Analyze the attached sales call recording.
1. Transcribe the conversation and diarize it, labeling every turn as "Salesperson" or "Prospect" with an MM:SS timestamp.
2. Build a sentiment timeline of 10-15 points scoring prospect engagement from 0 to 100 across the call.
3. List 3 specific strengths the salesperson showed and 3 specific missed opportunities.
4. Write a brief 2-3 sentence summary of the call.
Return only JSON matching the provided schema. Do not wrap it in markdown.`

// Engine is the only capability the analysis core needs from a model
// provider: one request in, the reply text out. Implementations classify
// their errors with the failure package.
type Engine interface {
	Submit(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Audio       types.EncodedAudio
	Instruction string
	Contract    *contract.Schema
	Temperature float32
}

// NewRequest builds the fixed analysis request for one recording.
func NewRequest(audio types.EncodedAudio) Request {
	return Request{
		Audio:       audio,
		Instruction: Instruction,
		Contract:    contract.Analysis,
		Temperature: DefaultTemperature,
	}
}
