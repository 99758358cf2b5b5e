package session

import (
	"sales-coach-go/internal/metrics"
	"sales-coach-go/internal/types"
)

// MetricsObserver feeds state transitions into Prometheus.
func MetricsObserver(m *metrics.Metrics) Observer {
	return func(from, to types.AppState, snap types.Snapshot) {
		m.SetState(to)
		switch to {
		case types.StateAnalyzing:
			m.RecordAnalysisStarted(snap.SizeBytes)
		case types.StateComplete, types.StateError:
			if from == types.StateAnalyzing {
				m.RecordAnalysisFinished(snap.FailureKind, snap.FinishedAt.Sub(snap.StartedAt))
			}
		}
	}
}
