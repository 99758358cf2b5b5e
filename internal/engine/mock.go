package engine

import (
	"context"
	"sync/atomic"
	"time"

	"sales-coach-go/internal/failure"
)

// MockReply is a complete, contract-valid analysis used for offline demos.
const MockReply = `{
  "summary": "The salesperson opened warmly and uncovered the prospect's reporting pain early. Pricing was discussed but the call ended without an agreed next step.",
  "transcript": [
    {"speaker": "Salesperson", "text": "Thanks for making the time today. How is the quarter going?", "timestamp": "00:00"},
    {"speaker": "Prospect", "text": "Busy. Our reporting takes the team two days every month.", "timestamp": "00:07"},
    {"speaker": "Salesperson", "text": "That is exactly what we automate. Can I show you a quick example?", "timestamp": "00:15"},
    {"speaker": "Prospect", "text": "Sure, but I need to understand pricing first.", "timestamp": "00:24"},
    {"speaker": "Salesperson", "text": "Plans start at forty dollars per seat, billed annually.", "timestamp": "00:31"},
    {"speaker": "Prospect", "text": "Okay. Send me something and I will take a look.", "timestamp": "00:42"}
  ],
  "sentimentGraph": [
    {"time": "Start", "engagement": 55},
    {"time": "00:07", "engagement": 62},
    {"time": "Discovery", "engagement": 74},
    {"time": "00:15", "engagement": 78},
    {"time": "00:20", "engagement": 71},
    {"time": "Pricing", "engagement": 58},
    {"time": "00:31", "engagement": 52},
    {"time": "00:36", "engagement": 49},
    {"time": "00:42", "engagement": 45},
    {"time": "Closing", "engagement": 40}
  ],
  "coaching": {
    "strengths": [
      "Built rapport quickly with an open question",
      "Tied the product directly to the stated reporting pain",
      "Answered the pricing question clearly"
    ],
    "missedOpportunities": [
      "Did not quantify the cost of two lost days per month",
      "Gave pricing before confirming value",
      "Ended without a scheduled next step"
    ]
  }
}`

// Mock returns a fixed reply without any network access. Set Err to make
// every submission fail instead.
type Mock struct {
	Reply string
	Err   error
	Delay time.Duration

	calls atomic.Int64
}

func NewMock() *Mock {
	return &Mock{Reply: MockReply}
}

func (m *Mock) Submit(ctx context.Context, req Request) (string, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", failure.New(failure.ServiceUnavailable, "engine.mock", ctx.Err())
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// Calls reports how many submissions the mock has received.
func (m *Mock) Calls() int64 {
	return m.calls.Load()
}
