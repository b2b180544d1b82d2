// Package orchestrator drives one automation run through an explicit state
// machine: chat with the model, run the scraper tool, parse its output, score
// and curate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/curation"
	"github.com/spigell/job-curator/internal/filtering"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/resume"
	"github.com/spigell/job-curator/internal/scoring"
)

// ErrToolRetriesExhausted ends a run whose tool calls kept returning no jobs.
var ErrToolRetriesExhausted = errors.New("tool returned no jobs after the maximum number of attempts")

const (
	DefaultMaxToolAttempts = 3
	DefaultRankedLimit     = 10
)

// Gateway is the tool side of the run.
type Gateway interface {
	SystemPrompt(ctx context.Context) (string, error)
	Tools() []ai.ToolSpec
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

type Scorer interface {
	ScoreAll(ctx context.Context, list []jobs.Job, resumeContext string) ([]scoring.RankedScore, error)
	Score(ctx context.Context, description, resumeContext string) (*scoring.RankedScore, error)
}

type Curator interface {
	CurateAll(ctx context.Context, resumeText string, minScore int) (*curation.Summary, error)
	Curate(ctx context.Context, resumeText, jobDescription, recommendations string) (string, error)
}

// Recorder observes transitions and finished runs.
type Recorder interface {
	ObserveTransition(from, to string)
	ObserveRun(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, string) {}
func (nopRecorder) ObserveRun(string, time.Duration) {}

// Deps are the collaborators of a Graph. Everything except Recorder and Logger is required.
type Deps struct {
	Chat     ai.ChatModel
	Gateway  Gateway
	Scorer   Scorer
	Curator  Curator
	Store    jobs.Store
	Resume   resume.Provider
	Filters  *filtering.Config
	Recorder Recorder
	Logger   *zap.Logger
}

type Config struct {
	MaxToolAttempts int
	RankedLimit     int
}

type Graph struct {
	chat     ai.ChatModel
	gateway  Gateway
	scorer   Scorer
	curator  Curator
	store    jobs.Store
	resume   resume.Provider
	filters  *filtering.Config
	recorder Recorder
	logger   *zap.Logger
	cfg      Config
}

func New(deps Deps, cfg Config) (*Graph, error) {
	switch {
	case deps.Chat == nil:
		return nil, errors.New("chat model is required")
	case deps.Gateway == nil:
		return nil, errors.New("tool gateway is required")
	case deps.Scorer == nil:
		return nil, errors.New("scorer is required")
	case deps.Curator == nil:
		return nil, errors.New("curator is required")
	case deps.Store == nil:
		return nil, errors.New("job store is required")
	case deps.Resume == nil:
		return nil, errors.New("resume provider is required")
	}

	if cfg.MaxToolAttempts <= 0 {
		cfg.MaxToolAttempts = DefaultMaxToolAttempts
	}
	if cfg.RankedLimit <= 0 {
		cfg.RankedLimit = DefaultRankedLimit
	}

	filters := deps.Filters
	if filters == nil {
		filters = &filtering.Config{}
	}
	var recorder Recorder = nopRecorder{}
	if deps.Recorder != nil {
		recorder = deps.Recorder
	}

	return &Graph{
		chat:     deps.Chat,
		gateway:  deps.Gateway,
		scorer:   deps.Scorer,
		curator:  deps.Curator,
		store:    deps.Store,
		resume:   deps.Resume,
		filters:  filters,
		recorder: recorder,
		logger:   logger.Component(deps.Logger, "orchestrator"),
		cfg:      cfg,
	}, nil
}

// Run executes the graph from StateChat until it reaches StateTerminal or
// StateFailed. The returned state is where the run stopped.
func (g *Graph) Run(ctx context.Context, system string, ps *PipelineState, log *zap.Logger) (State, error) {
	if ps.MaxToolAttempts <= 0 {
		ps.MaxToolAttempts = g.cfg.MaxToolAttempts
	}

	state := StateChat
	for !state.Done() {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		if err := g.execute(ctx, state, system, ps, log); err != nil {
			return state, fmt.Errorf("%s: %w", state, err)
		}

		to := next(state, ps)
		log.Debug("transition", zap.Stringer("from", state), zap.Stringer("to", to))
		g.recorder.ObserveTransition(state.String(), to.String())
		state = to
	}

	if state == StateFailed {
		return state, fmt.Errorf("after %d tool attempts: %w", ps.ToolAttempts, ErrToolRetriesExhausted)
	}
	return state, nil
}

func (g *Graph) execute(ctx context.Context, state State, system string, ps *PipelineState, log *zap.Logger) error {
	switch state {
	case StateChat:
		return g.chatStage(ctx, system, ps, log)
	case StateToolCall:
		return g.toolStage(ctx, ps, log)
	case StateParseJobs:
		g.parseStage(ps, log)
		return nil
	case StateScoreJobs:
		return g.scoreStage(ctx, ps, log)
	case StateCurateResume:
		return g.curateStage(ctx, ps, log)
	default:
		return fmt.Errorf("no stage for state %s", state)
	}
}

func (g *Graph) chatStage(ctx context.Context, system string, ps *PipelineState, log *zap.Logger) error {
	msg, err := g.chat.Chat(ctx, system, ps.Messages, g.gateway.Tools())
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if msg.Role == "" {
		msg.Role = ai.RoleAssistant
	}
	ps.Messages = append(ps.Messages, msg)

	log.Info("model replied", zap.Int("tool_calls", len(msg.ToolCalls)))
	return nil
}

func (g *Graph) toolStage(ctx context.Context, ps *PipelineState, log *zap.Logger) error {
	request, ok := ps.lastAssistant()
	if !ok || !request.HasToolCalls() {
		return errors.New("no tool call to execute")
	}

	known := g.gateway.Tools()
	ps.ToolAttempts++
	ps.batchStart = len(ps.Messages)

	for _, call := range request.ToolCalls {
		if !slices.ContainsFunc(known, func(t ai.ToolSpec) bool { return t.Name == call.Name }) {
			return fmt.Errorf("model requested unknown tool %q", call.Name)
		}

		output, err := g.gateway.Call(ctx, call.Name, call.Args)
		if err != nil {
			return fmt.Errorf("tool %s: %w", call.Name, err)
		}
		ps.Messages = append(ps.Messages, ai.ToolResult(call, output))

		log.Info("tool executed",
			zap.String("tool", call.Name),
			zap.Int("attempt", ps.ToolAttempts),
			zap.Int("output_length", len(output)),
		)
	}
	return nil
}

func (g *Graph) parseStage(ps *PipelineState, log *zap.Logger) {
	var batch []ParsedRecord
	for _, msg := range ps.Messages[ps.batchStart:] {
		if msg.Role != ai.RoleTool {
			continue
		}
		batch = append(batch, ParseToolOutput(msg.Content)...)
	}

	ps.ParsedJobs = append(ps.ParsedJobs, batch...)
	ps.batchRecords = len(batch)
	ps.batchElements = countElements(batch)
	decoded := countJobs(batch)

	log.Info("tool output parsed",
		zap.Int("elements", ps.batchElements),
		zap.Int("jobs", decoded),
		zap.Int("errors", len(batch)-decoded),
		zap.Int("attempt", ps.ToolAttempts),
	)
}

func (g *Graph) scoreStage(ctx context.Context, ps *PipelineState, log *zap.Logger) error {
	scraped, err := g.persistScraped(ctx, ps, log)
	if err != nil {
		return err
	}

	candidates, err := filtering.Run(ctx, g.filters, filtering.Deps{Store: g.store, Logger: log}, filtering.DefaultSteps(g.filters), scraped)
	if err != nil {
		return fmt.Errorf("filter jobs: %w", err)
	}

	text, err := g.resumeText(ctx, ps)
	if err != nil {
		return err
	}

	scores, err := g.scorer.ScoreAll(ctx, candidates, text)
	if err != nil {
		return fmt.Errorf("score jobs: %w", err)
	}
	ps.JobScores = scores
	return nil
}

// persistScraped upserts every valid job of the latest batch. Invalid records are logged and skipped.
func (g *Graph) persistScraped(ctx context.Context, ps *PipelineState, log *zap.Logger) ([]jobs.Job, error) {
	batch := ps.ParsedJobs[len(ps.ParsedJobs)-ps.batchRecords:]

	seen := make(map[string]struct{}, len(batch))
	result := make([]jobs.Job, 0, len(batch))
	for _, record := range batch {
		if record.IsError() {
			continue
		}
		job, err := DecodeJob(record)
		if err != nil {
			log.Warn("skipping invalid job record", zap.Error(err))
			continue
		}
		if _, dup := seen[job.JobURL]; dup {
			continue
		}
		seen[job.JobURL] = struct{}{}

		stored, err := g.store.UpsertJob(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("store scraped job: %w", err)
		}
		result = append(result, *stored)
	}

	log.Info("scraped jobs stored", zap.Int("jobs", len(result)))
	return result, nil
}

func (g *Graph) curateStage(ctx context.Context, ps *PipelineState, log *zap.Logger) error {
	text, err := g.resumeText(ctx, ps)
	if err != nil {
		return err
	}

	summary, err := g.curator.CurateAll(ctx, text, ps.MinJobScore)
	if summary != nil {
		ps.CuratedResumes = summary
	}
	if err != nil {
		return fmt.Errorf("curate resumes: %w", err)
	}

	log.Info("curation finished",
		zap.Int("curated", len(summary.Curated)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("failed", len(summary.Failed)),
	)
	return nil
}

func (g *Graph) resumeText(ctx context.Context, ps *PipelineState) (string, error) {
	if ps.resumeText != "" {
		return ps.resumeText, nil
	}
	text, err := g.resume.ResumeText(ctx)
	if err != nil {
		return "", fmt.Errorf("load resume: %w", err)
	}
	ps.resumeText = text
	return text, nil
}
