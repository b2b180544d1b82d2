package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/orchestrator"
	"github.com/spigell/job-curator/internal/resume"
	"github.com/spigell/job-curator/internal/scoring"
)

const maxRankedLimit = 100

type ErrorReply struct {
	Error  string               `json:"error"`
	Result *orchestrator.Result `json:"result,omitempty"`
}

type CuratedResumeReply struct {
	JobURL        string `json:"job_url"`
	Title         string `json:"title"`
	Company       string `json:"company"`
	Score         *int   `json:"score,omitempty"`
	CuratedResume string `json:"curated_resume"`
}

type JobsReply struct {
	Jobs []jobs.Job `json:"jobs"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) automate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AutomateRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			s.fail(w, r, http.StatusBadRequest, err, nil)
			return
		}
	}

	select {
	case s.runSlot <- struct{}{}:
		defer func() { <-s.runSlot }()
	case <-r.Context().Done():
		s.fail(w, r, http.StatusServiceUnavailable, r.Context().Err(), nil)
		return
	}

	result, err := s.automator.Automate(r.Context(), req)
	if err != nil {
		var invalid validator.ValidationErrors
		switch {
		case errors.As(err, &invalid):
			s.fail(w, r, http.StatusBadRequest, err, nil)
		case errors.Is(err, orchestrator.ErrToolRetriesExhausted):
			s.fail(w, r, http.StatusBadGateway, err, result)
		default:
			s.fail(w, r, http.StatusInternalServerError, err, result)
		}
		return
	}

	render.JSON(w, r, result)
}

func (s *Server) rankedJobs(w http.ResponseWriter, r *http.Request) {
	limit := orchestrator.DefaultRankedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRankedLimit {
			s.fail(w, r, http.StatusBadRequest, errors.New("limit must be an integer between 1 and 100"), nil)
			return
		}
		limit = n
	}

	ranked, err := s.store.FetchRanked(r.Context(), limit)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err, nil)
		return
	}
	if ranked == nil {
		ranked = []jobs.Job{}
	}
	render.JSON(w, r, JobsReply{Jobs: ranked})
}

func (s *Server) curatedResume(w http.ResponseWriter, r *http.Request) {
	jobURL := strings.TrimSpace(r.URL.Query().Get("job_url"))
	if jobURL == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("job_url is required"), nil)
		return
	}

	job, err := s.store.GetCuratedResume(r.Context(), jobURL)
	if errors.Is(err, jobs.ErrNotFound) {
		s.fail(w, r, http.StatusNotFound, err, nil)
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err, nil)
		return
	}
	if !job.Curated || job.CuratedResume == nil {
		s.fail(w, r, http.StatusNotFound, errors.New("resume is not curated for this job yet"), nil)
		return
	}

	render.JSON(w, r, CuratedResumeReply{
		JobURL:        job.JobURL,
		Title:         job.Title,
		Company:       job.Company,
		Score:         job.Score,
		CuratedResume: *job.CuratedResume,
	})
}

func (s *Server) scoreDescription(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.reviewer.ScoreDescription)
}

func (s *Server) reviseResume(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.reviewer.ReviseResume)
}

type reviewFunc func(ctx context.Context, req orchestrator.ReviewRequest) (*orchestrator.Review, error)

func (s *Server) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	var req orchestrator.ReviewRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err, nil)
		return
	}

	review, err := fn(r.Context(), req)
	if err != nil {
		var invalid validator.ValidationErrors
		switch {
		case errors.As(err, &invalid):
			s.fail(w, r, http.StatusBadRequest, err, nil)
		case errors.Is(err, resume.ErrEmpty):
			s.fail(w, r, http.StatusConflict, err, nil)
		case errors.Is(err, scoring.ErrNotScored):
			s.fail(w, r, http.StatusBadGateway, err, nil)
		default:
			s.fail(w, r, http.StatusInternalServerError, err, nil)
		}
		return
	}

	render.JSON(w, r, review)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error, result *orchestrator.Result) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorReply{Error: err.Error(), Result: result})
}
