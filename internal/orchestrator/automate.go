package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/curation"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/scoring"
	"github.com/spigell/job-curator/internal/scraper"
)

const DefaultMinJobScore = 60

// Run outcomes reported to the Recorder.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeNoToolCall = "no_tool_call"
	OutcomeExhausted  = "tool_retries_exhausted"
	OutcomeError      = "error"
)

// AutomateRequest starts one run. Zero-valued search fields take their defaults.
type AutomateRequest struct {
	scraper.SearchParams
	MinJobScore *int `json:"min_job_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Result is what a finished run hands back to the caller.
type Result struct {
	RunID        string                `json:"run_id"`
	State        string                `json:"state"`
	ToolAttempts int                   `json:"tool_attempts"`
	ParseErrors  int                   `json:"parse_errors"`
	Scores       []scoring.RankedScore `json:"scores"`
	Curation     *curation.Summary     `json:"curation,omitempty"`
	Jobs         []jobs.Job            `json:"jobs"`
}

func (r AutomateRequest) normalize() (scraper.SearchParams, int, error) {
	r.SearchParams = r.SearchParams.WithDefaults()
	if err := validate.Struct(r); err != nil {
		return r.SearchParams, 0, fmt.Errorf("invalid automate request: %w", err)
	}

	minScore := DefaultMinJobScore
	if r.MinJobScore != nil {
		minScore = *r.MinJobScore
	}
	return r.SearchParams, minScore, nil
}

// Automate runs the whole pipeline once: it seeds the conversation with the
// gateway's system prompt and the search instruction, drives the graph to a
// final state and returns the ranked job table.
func (g *Graph) Automate(ctx context.Context, req AutomateRequest) (*Result, error) {
	started := time.Now()

	params, minScore, err := req.normalize()
	if err != nil {
		return nil, err
	}

	ps := &PipelineState{
		RunID:           uuid.NewString(),
		Search:          params,
		MinJobScore:     minScore,
		MaxToolAttempts: g.cfg.MaxToolAttempts,
		Messages:        []ai.Message{ai.UserMessage(params.Instruction())},
	}
	log := logger.WithRun(g.logger, ps.RunID)
	log.Info("automation started",
		zap.String("search_term", params.SearchTerm),
		zap.String("location", params.Location),
		zap.Int("min_job_score", minScore),
	)

	// A missing resume fails the run before any tool call.
	if _, err := g.resumeText(ctx, ps); err != nil {
		g.recorder.ObserveRun(OutcomeError, time.Since(started))
		return nil, err
	}

	system, err := g.gateway.SystemPrompt(ctx)
	if err != nil {
		g.recorder.ObserveRun(OutcomeError, time.Since(started))
		return nil, fmt.Errorf("load system prompt: %w", err)
	}

	state, runErr := g.Run(ctx, system, ps, log)
	result := &Result{
		RunID:        ps.RunID,
		State:        state.String(),
		ToolAttempts: ps.ToolAttempts,
		ParseErrors:  len(ps.ParsedJobs) - countJobs(ps.ParsedJobs),
		Scores:       ps.JobScores,
		Curation:     ps.CuratedResumes,
	}

	if runErr != nil {
		outcome := OutcomeError
		if errors.Is(runErr, ErrToolRetriesExhausted) {
			outcome = OutcomeExhausted
		}
		g.recorder.ObserveRun(outcome, time.Since(started))
		log.Error("automation aborted", zap.Stringer("state", state), zap.Error(runErr))
		return result, runErr
	}

	ranked, err := g.store.FetchRanked(ctx, g.cfg.RankedLimit)
	if err != nil {
		g.recorder.ObserveRun(OutcomeError, time.Since(started))
		return result, fmt.Errorf("fetch ranked jobs: %w", err)
	}
	result.Jobs = ranked

	outcome := OutcomeSucceeded
	if ps.ToolAttempts == 0 {
		outcome = OutcomeNoToolCall
		log.Warn("model finished without calling a tool")
	}
	g.recorder.ObserveRun(outcome, time.Since(started))

	log.Info("automation finished",
		zap.Int("tool_attempts", ps.ToolAttempts),
		zap.Int("scored", len(ps.JobScores)),
		zap.Int("ranked", len(ranked)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
