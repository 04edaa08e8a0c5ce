package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/portfolio-pipeline/internal/db"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// ProcessResponse is the body of a successful upload
type ProcessResponse struct {
	Success          bool                    `json:"success"`
	SubmissionID     string                  `json:"submission_id"`
	CandidateProfile *types.CandidateProfile `json:"candidate_profile"`
	Components       []types.ComponentConfig `json:"components"`
	Theme            types.ThemePalette      `json:"theme"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	Warnings         []string                `json:"warnings"`
	Fallbacks        []pipeline.Stage        `json:"fallbacks,omitempty"`
}

// SubmissionResponse is a persisted submission with its components
type SubmissionResponse struct {
	*db.Submission
	Components []db.Component `json:"components"`
}

func newProcessResponse(r *pipeline.Result) ProcessResponse {
	return ProcessResponse{
		Success:          true,
		SubmissionID:     r.SubmissionID,
		CandidateProfile: r.Profile,
		Components:       r.Components,
		Theme:            r.Theme,
		ProcessingTimeMs: r.ProcessingTimeMs(),
		Warnings:         r.Warnings,
		Fallbacks:        r.Fallbacks,
	}
}

func newErrorResponse(r *pipeline.Result) ErrorResponse {
	resp := ErrorResponse{Success: false, ErrorCode: r.ErrorCode, Error: r.Error}
	if r.RetryAfter > 0 {
		resp.RetryAfter = int(math.Ceil(r.RetryAfter.Seconds()))
	}
	return resp
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		s.errorResponse(w, HTTPStatus(reqErr.code), reqErr.code, reqErr.message)
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, pipeline.CodeProcessingError, "Failed to read request")
}

// handleProcess runs the pipeline on an uploaded resume and returns the generated layout
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}

	result := s.processor.Process(r.Context(), pipeline.Request{
		Content:     up.content,
		Filename:    up.filename,
		ContentType: up.contentType,
		Options:     up.options,
		ClientID:    s.clientID(r),
	})

	if !result.Success {
		resp := newErrorResponse(result)
		if resp.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		}
		s.jsonResponse(w, HTTPStatus(result.ErrorCode), resp)
		return
	}

	s.jsonResponse(w, http.StatusOK, newProcessResponse(result))
}

// handleProcessStream runs the pipeline and streams progress via SSE, ending with a complete or
// error event
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, CodeStreamUnsupported, err.Error())
		return
	}

	result := s.processor.Process(r.Context(), pipeline.Request{
		Content:     up.content,
		Filename:    up.filename,
		ContentType: up.contentType,
		Options:     up.options,
		ClientID:    s.clientID(r),
		Progress: pipeline.ProgressFunc(func(p pipeline.Progress) {
			if err := sse.WriteEvent("progress", p); err != nil {
				s.logger.Debug("failed to write SSE event", "error", err)
			}
		}),
	})

	if !result.Success {
		err = sse.WriteError(newErrorResponse(result))
	} else {
		err = sse.WriteComplete(newProcessResponse(result))
	}
	if err != nil {
		s.logger.Debug("client went away before the final event", "submission_id", result.SubmissionID, "error", err)
	}
}

// handleGetSubmission returns a persisted submission and its components
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	if s.submissions == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, CodeNotConfigured, "Submission storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid submission ID")
		return
	}

	sub, err := s.submissions.GetSubmission(r.Context(), id)
	if err != nil {
		s.logger.Warn("failed to load submission", "submission_id", id, "error", err)
		s.backendError(w, r, "get_submission", err)
		return
	}
	if sub == nil {
		s.errorResponse(w, http.StatusNotFound, CodeNotFound, "Submission not found")
		return
	}

	components, err := s.submissions.ListComponents(r.Context(), id)
	if err != nil {
		s.logger.Warn("failed to load submission components", "submission_id", id, "error", err)
		s.backendError(w, r, "list_components", err)
		return
	}
	if components == nil {
		components = []db.Component{}
	}

	s.jsonResponse(w, http.StatusOK, SubmissionResponse{Submission: sub, Components: components})
}
