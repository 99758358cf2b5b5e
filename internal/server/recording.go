package server

import (
	"errors"
	"net/http"
	"time"

	"sales-coach-go/internal/source"
)

func (s *Server) recorderAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.recorder == nil {
		s.writeError(w, r, http.StatusNotFound, "recorder_disabled", "microphone recording is not configured")
		return false
	}
	return true
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.recorder.Status())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	err := s.recorder.Start(r.Context())
	switch {
	case errors.Is(err, source.ErrAlreadyRecording), errors.Is(err, source.ErrCapturePending):
		s.writeError(w, r, http.StatusConflict, "recorder_busy", err.Error())
		return
	case err != nil:
		s.metrics.RecordRecorderEvent("denied")
		s.writeFailure(w, r, err)
		return
	}
	s.metrics.RecordRecorderEvent("started")
	s.writeJSON(w, r, http.StatusOK, s.recorder.Status())
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	err := s.recorder.Stop()
	switch {
	case errors.Is(err, source.ErrNotRecording):
		s.writeError(w, r, http.StatusConflict, "not_recording", err.Error())
		return
	case errors.Is(err, source.ErrEmptyRecording):
		s.metrics.RecordRecorderEvent("empty")
		s.writeError(w, r, http.StatusUnprocessableEntity, "empty_recording", err.Error())
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.metrics.RecordRecorderEvent("stopped")
	s.writeJSON(w, r, http.StatusOK, s.recorder.Status())
}

func (s *Server) handleRecordingPreview(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	rs, err := s.recorder.Preview()
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, "no_capture", err.Error())
		return
	}
	st := s.recorder.Status()
	w.Header().Set("Content-Type", st.MIMEType)
	http.ServeContent(w, r, "recording", time.Time{}, rs)
}

func (s *Server) handleRecordingSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	payload, err := s.recorder.Submit()
	if err != nil {
		s.writeError(w, r, http.StatusConflict, "no_capture", err.Error())
		return
	}
	if _, err := s.machine.Start(r.Context(), payload); err != nil {
		s.writeStartError(w, r, err)
		return
	}
	// the payload holds its own reader; the capture is no longer needed
	if err := s.recorder.Reset(); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("recorder reset after submit failed")
	}
	s.metrics.RecordRecorderEvent("submitted")
	s.writeJSON(w, r, http.StatusAccepted, s.machine.Snapshot())
}

func (s *Server) handleRecordingReset(w http.ResponseWriter, r *http.Request) {
	if !s.recorderAvailable(w, r) {
		return
	}
	if err := s.recorder.Reset(); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("recorder reset reported an error")
	}
	s.metrics.RecordRecorderEvent("reset")
	s.writeJSON(w, r, http.StatusOK, s.recorder.Status())
}
