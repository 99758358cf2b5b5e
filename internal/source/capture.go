package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Container describes the encoded stream the capture process writes.
type Container struct {
	Name      string
	MIMEType  string
	Extension string
	codecArgs []string
}

var containers = map[string]Container{
	"webm": {Name: "webm", MIMEType: "audio/webm", Extension: "webm", codecArgs: []string{"-c:a", "libopus", "-f", "webm"}},
	"ogg":  {Name: "ogg", MIMEType: "audio/ogg", Extension: "ogg", codecArgs: []string{"-c:a", "libopus", "-f", "ogg"}},
	"wav":  {Name: "wav", MIMEType: "audio/wav", Extension: "wav", codecArgs: []string{"-c:a", "pcm_s16le", "-f", "wav"}},
}

// LookupContainer resolves a container by name (webm, ogg, wav).
func LookupContainer(name string) (Container, bool) {
	c, ok := containers[name]
	return c, ok
}

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	Container   Container
}

// CaptureSession is a live capture holding the microphone until Stop.
type CaptureSession interface {
	io.Reader
	Stop() error
}

// Capturer acquires the microphone.
type Capturer interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// FFMPEGCapture records the microphone through an ffmpeg child process.
type FFMPEGCapture struct {
	command      string
	startupProbe time.Duration
	stopGrace    time.Duration
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{
		command:      command,
		startupProbe: 250 * time.Millisecond,
		stopGrace:    1500 * time.Millisecond,
	}
}

func (c *FFMPEGCapture) args(cfg CaptureConfig) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
	}
	args = append(args, cfg.Container.codecArgs...)
	return append(args, "-")
}

// Start launches ffmpeg. A process that exits during the startup probe
// could not open the device.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.Container.Name == "" {
		cfg.Container = containers["webm"]
	}

	// The process must outlive the request that started it; Stop ends it.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), c.command, c.args(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Wait returns only after everything ffmpeg wrote has been read through
	// the pipe, so the container trailer written on interrupt is not lost.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = pr.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = pr.Close()
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(c.startupProbe):
	}

	return &ffmpegSession{
		stdout:    pr,
		stderr:    &stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		stopGrace: c.stopGrace,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process   *os.Process
	waitErr   <-chan error
	stopGrace time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop asks ffmpeg to finish the container, then kills it after the grace
// period. Safe to call more than once.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})
	return s.stopErr
}

// normalizeStopErr ignores the non-zero exit ffmpeg reports after SIGINT.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
