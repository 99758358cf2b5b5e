package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrCapturePending   = errors.New("a captured recording is pending; submit or reset it first")
	ErrNoCapture        = errors.New("no captured recording")
	ErrEmptyRecording   = errors.New("recording captured no audio")
)

// RecorderState is the recorder's own lifecycle, independent of analysis.
type RecorderState string

const (
	RecorderReady     RecorderState = "ready"
	RecorderRecording RecorderState = "recording"
	RecorderCaptured  RecorderState = "captured"
)

// RecorderStatus is what a presentation layer shows next to the controls.
type RecorderStatus struct {
	State          RecorderState `json:"state"`
	ElapsedSeconds int           `json:"elapsed_seconds"`
	Elapsed        string        `json:"elapsed"`
	Label          string        `json:"label"`
	CapturedBytes  int           `json:"captured_bytes"`
	MIMEType       string        `json:"mime_type"`
}

// Recorder captures one microphone recording at a time. The device is held
// only between Start and Stop; Reset and Close release it as well.
type Recorder struct {
	capturer Capturer
	cfg      CaptureConfig
	log      *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     RecorderState
	session   CaptureSession
	buf       *bytes.Buffer
	drainDone chan error
	startedAt time.Time
	elapsed   time.Duration
	blob      []byte
}

func NewRecorder(capturer Capturer, cfg CaptureConfig, log *logger.Logger) *Recorder {
	if cfg.Container.Name == "" {
		cfg.Container = containers["webm"]
	}
	if log == nil {
		log = logger.New()
	}
	return &Recorder{
		capturer: capturer,
		cfg:      cfg,
		log:      log.Component("recorder"),
		now:      time.Now,
		state:    RecorderReady,
	}
}

// Start acquires the microphone and begins buffering audio.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case RecorderRecording:
		return ErrAlreadyRecording
	case RecorderCaptured:
		return ErrCapturePending
	}

	session, err := r.capturer.Start(ctx, r.cfg)
	if err != nil {
		r.log.WithError(err).Warn("microphone unavailable")
		return failure.New(failure.MicrophoneUnavailable, "source.recorder", err)
	}

	buf := &bytes.Buffer{}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(buf, session)
		done <- err
	}()

	r.session = session
	r.buf = buf
	r.drainDone = done
	r.startedAt = r.now()
	r.elapsed = 0
	r.state = RecorderRecording
	r.log.Info("recording started")
	return nil
}

// Stop releases the microphone and keeps the captured audio as one blob.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderRecording {
		return ErrNotRecording
	}

	stopErr := r.release()
	r.elapsed = r.now().Sub(r.startedAt)
	blob := r.buf.Bytes()
	r.buf = nil

	if len(blob) == 0 {
		r.state = RecorderReady
		r.elapsed = 0
		if stopErr != nil {
			return fmt.Errorf("%w: %v", ErrEmptyRecording, stopErr)
		}
		return ErrEmptyRecording
	}
	if stopErr != nil {
		r.log.WithError(stopErr).Warn("capture did not stop cleanly")
	}

	r.blob = blob
	r.state = RecorderCaptured
	r.log.WithField("bytes", len(blob)).WithField("duration_ms", r.elapsed.Milliseconds()).Info("recording stopped")
	return nil
}

// release stops the capture session and waits for buffering to finish.
// Callers hold r.mu.
func (r *Recorder) release() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Stop()
	if drainErr := <-r.drainDone; drainErr != nil && err == nil {
		err = drainErr
	}
	r.session = nil
	r.drainDone = nil
	return err
}

// Payload packages the captured blob for analysis.
func (r *Recorder) Payload() (types.AudioPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderCaptured {
		return types.AudioPayload{}, ErrNoCapture
	}
	name := "recording." + r.cfg.Container.Extension
	return types.NewAudioPayload(bytes.NewReader(r.blob), int64(len(r.blob)), r.cfg.Container.MIMEType, name), nil
}

// Submit is Payload under the name the controls use.
func (r *Recorder) Submit() (types.AudioPayload, error) {
	return r.Payload()
}

// Preview returns a seekable reader over the captured audio for playback.
func (r *Recorder) Preview() (io.ReadSeeker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderCaptured {
		return nil, ErrNoCapture
	}
	return bytes.NewReader(r.blob), nil
}

// Reset discards any capture and returns to the ready state.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked()
}

func (r *Recorder) resetLocked() error {
	err := r.release()
	r.buf = nil
	r.blob = nil
	r.elapsed = 0
	r.startedAt = time.Time{}
	r.state = RecorderReady
	return err
}

// Close is the teardown path: it releases the microphone if a recording is
// still running and drops the captured audio.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecorderRecording {
		r.log.Warn("releasing microphone on teardown")
	}
	return r.resetLocked()
}

// Elapsed is the whole seconds recorded so far, frozen once stopped.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked()
}

func (r *Recorder) elapsedLocked() int {
	switch r.state {
	case RecorderRecording:
		return int(r.now().Sub(r.startedAt) / time.Second)
	case RecorderCaptured:
		return int(r.elapsed / time.Second)
	default:
		return 0
	}
}

func (r *Recorder) Status() RecorderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	secs := r.elapsedLocked()
	st := RecorderStatus{
		State:          r.state,
		ElapsedSeconds: secs,
		Elapsed:        FormatElapsed(secs),
		CapturedBytes:  len(r.blob),
		MIMEType:       r.cfg.Container.MIMEType,
	}
	switch r.state {
	case RecorderRecording:
		st.Label = "Recording in progress..."
	case RecorderCaptured:
		st.Label = "Recording complete"
	default:
		st.Label = "Ready to record"
	}
	return st
}

// FormatElapsed renders seconds as M:SS.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
