package processor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sales-coach-go/internal/encoder"
	"sales-coach-go/internal/engine"
	"sales-coach-go/internal/extractor"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/metrics"
	"sales-coach-go/internal/types"
)

// Processor runs one payload through encode -> submit -> decode.
type Processor struct {
	engine  engine.Engine
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(eng engine.Engine, log *logger.Logger, m *metrics.Metrics) *Processor {
	if log == nil {
		log = logger.New()
	}
	return &Processor{engine: eng, log: log.Component("processor"), metrics: m}
}

// Process analyzes one recording. Any error is a *failure.Error; there is
// never a partial result.
func (p *Processor) Process(ctx context.Context, analysisID string, payload types.AudioPayload) (types.AnalysisResult, error) {
	log := p.log.WithAnalysis(analysisID).WithFields(logrus.Fields{
		"display_name": payload.DisplayName,
		"mime_type":    payload.MIMEType,
		"size_bytes":   payload.Size,
	})
	start := time.Now()

	// 1) Encode
	stageStart := time.Now()
	audio, err := encoder.Encode(payload)
	p.stageDone(log, "encode", stageStart, err)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	// 2) Submit (single attempt)
	stageStart = time.Now()
	text, err := p.engine.Submit(ctx, engine.NewRequest(audio))
	if err != nil && failure.KindOf(err) == "" {
		err = failure.New(failure.ServiceUnavailable, "processor.submit", err)
	}
	p.stageDone(log, "submit", stageStart, err)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	// 3) Decode and validate
	stageStart = time.Now()
	res, err := extractor.Decode(text)
	p.stageDone(log, "decode", stageStart, err)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	if anomalies := extractor.Anomalies(res); len(anomalies) > 0 {
		p.metrics.RecordAnomalies(len(anomalies))
		log.WithField("anomalies", anomalies).Warn("result contains out-of-range values; kept as returned")
	}

	log.WithFields(logrus.Fields{
		"duration_ms":      time.Since(start).Milliseconds(),
		"segments":         len(res.Transcript),
		"sentiment_points": len(res.SentimentGraph),
	}).Info("analysis finished")
	return res, nil
}

func (p *Processor) stageDone(log *logrus.Entry, stage string, start time.Time, err error) {
	d := time.Since(start)
	p.metrics.RecordStage(stage, d)
	entry := log.WithField("stage", stage).WithField("duration_ms", d.Milliseconds())
	if err != nil {
		entry.WithField("failure_kind", failure.KindOf(err)).WithField("error", err.Error()).Warn("stage failed")
		return
	}
	entry.Debug("stage finished")
}
