package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sales-coach-go/internal/aggregator"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/metrics"
	"sales-coach-go/internal/report"
	"sales-coach-go/internal/session"
	"sales-coach-go/internal/source"
	"sales-coach-go/internal/types"
)

// multipartOverhead is allowed on top of the file ceiling for form framing.
const multipartOverhead = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Deps are the collaborators the HTTP API exposes.
type Deps struct {
	Machine  *session.Machine
	Recorder *source.Recorder
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server provides the HTTP API for uploads, recording and results.
type Server struct {
	machine  *session.Machine
	recorder *source.Recorder
	log      *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logger.New()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		machine:  d.Machine,
		recorder: d.Recorder,
		log:      d.Log.Component("http"),
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) setupRoutes() {
	s.handle("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.handle("GET /api/state", s.handleState)
	s.handle("POST /api/analyze", s.handleAnalyze)
	s.handle("POST /api/reset", s.handleReset)
	s.handle("GET /api/report.xlsx", s.handleReport)

	s.handle("GET /api/recording", s.handleRecordingStatus)
	s.handle("POST /api/recording/start", s.handleRecordingStart)
	s.handle("POST /api/recording/stop", s.handleRecordingStop)
	s.handle("GET /api/recording/preview", s.handleRecordingPreview)
	s.handle("POST /api/recording/submit", s.handleRecordingSubmit)
	s.handle("POST /api/recording/reset", s.handleRecordingReset)
}

// handle wraps a handler with request logging and metrics.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	endpoint := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		endpoint = pattern[i+1:]
	}
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := logger.RequestID(r)
		w.Header().Set(logger.RequestIDHeader, reqID)

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h(ww, r)

		d := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, endpoint, ww.statusCode, d)
		entry := s.log.WithRequest(r).WithField("status", ww.statusCode).WithField("duration_ms", d.Milliseconds())
		if ww.statusCode >= 500 {
			entry.Warn("request failed")
		} else {
			entry.Debug("request served")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stateBody struct {
	types.Snapshot
	Stats *aggregator.Stats `json:"stats,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Error("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, r, status, errorBody{Code: code, Message: message})
}

// writeFailure maps a classified failure onto a status code and user text.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := failure.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case failure.InvalidFileType:
		status = http.StatusBadRequest
	case failure.FileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case failure.MicrophoneUnavailable:
		status = http.StatusServiceUnavailable
	case failure.EncodingFailed:
		status = http.StatusUnprocessableEntity
	case "":
		s.writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if failure.IsSourceKind(kind) {
		s.metrics.RecordSourceRejection(string(kind))
	}
	s.log.WithRequest(r).WithField("failure_kind", kind).WithField("error", err.Error()).Warn("request rejected")
	s.writeError(w, r, status, string(kind), failure.UserMessage(kind))
}

// writeStartError answers a refused state transition.
func (s *Server) writeStartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrAnalysisInFlight):
		s.writeError(w, r, http.StatusConflict, "analysis_in_flight", err.Error())
	case errors.Is(err, session.ErrResetRequired):
		s.writeError(w, r, http.StatusConflict, "reset_required", err.Error())
	default:
		s.writeFailure(w, r, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.machine.Snapshot()
	body := stateBody{Snapshot: snap}
	if snap.State == types.StateComplete && snap.Result != nil {
		st := aggregator.Summarize(*snap.Result)
		body.Stats = &st
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "analyze")

	limit := source.MaxFileBytes + multipartOverhead
	if r.ContentLength > limit {
		s.writeFailure(w, r, failure.Newf(failure.FileTooLarge, "server.analyze", "request body of %d bytes", r.ContentLength))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeFailure(w, r, failure.New(failure.FileTooLarge, "server.analyze", err))
			return
		}
		reqLog.WithField("error", err.Error()).Warn("bad multipart form")
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, fh, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "missing_file", "form field \"file\" is required")
		return
	}

	payload, err := source.Validate(source.UploadedFile{Header: fh})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	// the upload's temp file goes away with the request
	payload, err = source.Detach(payload)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if _, err := s.machine.Start(r.Context(), payload); err != nil {
		s.writeStartError(w, r, err)
		return
	}
	reqLog.WithField("file", payload.DisplayName).WithField("size_bytes", payload.Size).Info("analysis accepted")
	s.writeJSON(w, r, http.StatusAccepted, s.machine.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.machine.Reset(); err != nil {
		s.writeStartError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.machine.Snapshot())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	in, err := report.FromSnapshot(s.machine.Snapshot())
	if err != nil {
		s.writeError(w, r, http.StatusConflict, "not_complete", err.Error())
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, in); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Error("report export failed")
		s.writeError(w, r, http.StatusInternalServerError, "report_failed", "could not build the report")
		return
	}
	s.metrics.RecordReportWritten()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportName(in.DisplayName)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("report write interrupted")
	}
}

func reportName(displayName string) string {
	base := strings.TrimSuffix(filepath.Base(displayName), filepath.Ext(displayName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "call"
	}
	return base + "-analysis.xlsx"
}
