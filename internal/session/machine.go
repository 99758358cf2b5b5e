// Package session holds the application state machine: one submission at a
// time moving Idle -> Analyzing -> Complete | Error, and back to Idle only
// through Reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

var (
	ErrAnalysisInFlight = errors.New("an analysis is already in progress")
	ErrResetRequired    = errors.New("reset the previous analysis before starting another")
)

// Analyzer turns one payload into a result. *processor.Processor satisfies it.
type Analyzer interface {
	Process(ctx context.Context, analysisID string, payload types.AudioPayload) (types.AnalysisResult, error)
}

// Observer is called on every transition, in order, while the machine's lock
// is held. Observers must not call back into the Machine.
type Observer func(from, to types.AppState, snap types.Snapshot)

type Options struct {
	// Timeout bounds one engine round trip. Zero means no bound.
	Timeout   time.Duration
	Observers []Observer
	Log       *logger.Logger
}

type Machine struct {
	analyzer  Analyzer
	timeout   time.Duration
	observers []Observer
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	current types.Snapshot
}

func New(analyzer Analyzer, opts Options) *Machine {
	log := opts.Log
	if log == nil {
		log = logger.New()
	}
	return &Machine{
		analyzer:  analyzer,
		timeout:   opts.Timeout,
		observers: slices.Clone(opts.Observers),
		log:       log.Component("session"),
		now:       time.Now,
		current:   types.Snapshot{State: types.StateIdle},
	}
}

// Start moves Idle -> Analyzing and runs the analysis in the background. The
// returned channel delivers the final snapshot once and is then closed. The
// caller's ctx only contributes values: cancelling it does not abort the
// analysis.
func (m *Machine) Start(ctx context.Context, payload types.AudioPayload) (<-chan types.Snapshot, error) {
	m.mu.Lock()
	switch m.current.State {
	case types.StateAnalyzing:
		m.mu.Unlock()
		return nil, ErrAnalysisInFlight
	case types.StateComplete, types.StateError:
		m.mu.Unlock()
		return nil, ErrResetRequired
	}

	id := uuid.NewString()
	m.transition(types.Snapshot{
		State:       types.StateAnalyzing,
		AnalysisID:  id,
		DisplayName: payload.DisplayName,
		MIMEType:    payload.MIMEType,
		SizeBytes:   payload.Size,
		StartedAt:   m.now(),
	})
	m.mu.Unlock()

	done := make(chan types.Snapshot, 1)
	go m.run(ctx, id, payload, done)
	return done, nil
}

func (m *Machine) run(parent context.Context, id string, payload types.AudioPayload, done chan<- types.Snapshot) {
	defer close(done)

	ctx := context.WithoutCancel(parent)
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	res, err := m.process(ctx, id, payload)

	m.mu.Lock()
	next := m.current
	next.FinishedAt = m.now()
	next.DurationMs = next.FinishedAt.Sub(next.StartedAt).Milliseconds()
	if err != nil {
		next.State = types.StateError
		next.Error = failure.GenericAnalysisMessage
		kind := failure.KindOf(err)
		if kind == "" {
			kind = failure.ServiceUnavailable
		}
		next.FailureKind = string(kind)
		next.Detail = err.Error()
	} else {
		next.State = types.StateComplete
		next.Result = &res
	}
	m.transition(next)
	final := m.snapshotLocked()
	m.mu.Unlock()

	done <- final
}

// process turns a panic in any stage into a ServiceUnavailable failure so the
// machine still reaches Error.
func (m *Machine) process(ctx context.Context, id string, payload types.AudioPayload) (res types.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithAnalysis(id).WithField("panic", fmt.Sprint(r)).Error("analysis panicked")
			res = types.AnalysisResult{}
			err = failure.New(failure.ServiceUnavailable, "session.run", fmt.Errorf("panic: %v", r))
		}
	}()
	return m.analyzer.Process(ctx, id, payload)
}

// Submit starts an analysis and waits for it to finish. If ctx ends first the
// current snapshot is returned with ctx's error; the analysis keeps running.
func (m *Machine) Submit(ctx context.Context, payload types.AudioPayload) (types.Snapshot, error) {
	done, err := m.Start(ctx, payload)
	if err != nil {
		return m.Snapshot(), err
	}
	select {
	case snap := <-done:
		return snap, nil
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

// Reset returns Complete or Error to Idle, discarding the result, the error
// and the payload description. Reset from Idle does nothing.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current.State {
	case types.StateIdle:
		return nil
	case types.StateAnalyzing:
		return ErrAnalysisInFlight
	}
	m.transition(types.Snapshot{State: types.StateIdle})
	return nil
}

// Snapshot returns a copy that shares nothing mutable with the machine.
func (m *Machine) Snapshot() types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() types.Snapshot {
	snap := m.current
	if snap.Result != nil {
		res := *snap.Result
		res.Transcript = slices.Clone(res.Transcript)
		res.SentimentGraph = slices.Clone(res.SentimentGraph)
		res.Coaching.Strengths = slices.Clone(res.Coaching.Strengths)
		res.Coaching.MissedOpportunities = slices.Clone(res.Coaching.MissedOpportunities)
		snap.Result = &res
	}
	return snap
}

// transition must be called with mu held.
func (m *Machine) transition(next types.Snapshot) {
	from := m.current.State
	m.current = next

	entry := m.log.WithFields(logrus.Fields{
		"from": from,
		"to":   next.State,
		"file": next.DisplayName,
	})
	if next.AnalysisID != "" {
		entry = entry.WithField("analysis_id", next.AnalysisID)
	}
	switch next.State {
	case types.StateError:
		entry.WithFields(logrus.Fields{
			"failure_kind": next.FailureKind,
			"error":        next.Detail,
			"duration_ms":  next.DurationMs,
		}).Error("analysis failed")
	case types.StateComplete:
		entry.WithField("duration_ms", next.DurationMs).Info("analysis complete")
	default:
		entry.Info("state changed")
	}

	snap := m.snapshotLocked()
	for _, obs := range m.observers {
		obs(from, next.State, snap)
	}
}
