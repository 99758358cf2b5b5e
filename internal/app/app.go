// Package app assembles the analysis pipeline from a loaded configuration.
// Both the HTTP service and the command-line analyzer are built from it.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"sales-coach-go/internal/config"
	"sales-coach-go/internal/engine"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/metrics"
	"sales-coach-go/internal/processor"
	"sales-coach-go/internal/session"
	"sales-coach-go/internal/source"
)

// App holds the wired components. Close releases the microphone if one was
// opened.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Engine   engine.Engine
	Machine  *session.Machine
	Recorder *source.Recorder
}

// Options tweak what Build wires in.
type Options struct {
	// Registerer receives the metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Capturer overrides the ffmpeg microphone backend.
	Capturer source.Capturer
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.NewWithOptions(logger.Options{
		Environment: cfg.Logging.Environment,
		Level:       cfg.Logging.Level,
	})
}

func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = NewLogger(cfg)
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	eng, err := newEngine(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	machine := session.New(processor.New(eng, log, m), session.Options{
		Timeout:   cfg.EngineTimeout(),
		Observers: []session.Observer{session.MetricsObserver(m)},
		Log:       log,
	})

	capturer := opts.Capturer
	if capturer == nil {
		capturer = source.NewFFMPEGCapture(cfg.Audio.FFMPEGCommand)
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Engine:   eng,
		Machine:  machine,
		Recorder: source.NewRecorder(capturer, cfg.Capture(), log),
	}, nil
}

func newEngine(ctx context.Context, cfg *config.Config, log *logger.Logger) (engine.Engine, error) {
	switch cfg.Engine.Provider {
	case config.ProviderMock:
		log.Info("using mock analysis engine")
		return engine.NewMock(), nil
	case config.ProviderGemini:
		g, err := engine.NewGemini(ctx, engine.GeminiConfig{
			APIKey:  cfg.Engine.APIKey,
			Model:   cfg.Engine.Model,
			BaseURL: cfg.Engine.BaseURL,
		}, log)
		if err != nil {
			return nil, err
		}
		log.WithField("model", g.Model()).Info("using gemini analysis engine")
		return g, nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", cfg.Engine.Provider)
	}
}

func (a *App) Close() error {
	if a.Recorder == nil {
		return nil
	}
	return a.Recorder.Close()
}
