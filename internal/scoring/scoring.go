// Package scoring asks the model to rate the resume against every job, ranks
// the results and persists them in one batch.
package scoring

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/utils"
)

// ExhaustedPolicy decides what happens to a job whose every attempt failed to parse.
type ExhaustedPolicy string

const (
	// PolicyDrop leaves the job out of the results.
	PolicyDrop ExhaustedPolicy = "drop"
	// PolicyZero records a score of 0 with an explanatory content.
	PolicyZero ExhaustedPolicy = "zero"
)

const (
	DefaultMaxAttempts  = 5
	defaultMaxLogLength = 200

	exhaustedContent = "score could not be determined: the model did not return a valid score"
)

// Outcomes reported to the Recorder.
const (
	OutcomeScored    = "scored"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

//go:embed prompt.md
var promptTemplate string

// Attempt is one model call for one job.
type Attempt struct {
	Number  int
	Raw     string
	Score   int
	Content string
	Err     error
}

// RankedScore is a scored job as it appears in the ranked list.
type RankedScore struct {
	Title   string `json:"title"`
	JobURL  string `json:"job_url"`
	Score   int    `json:"score"`
	Content string `json:"content"`
}

// Recorder receives one outcome per job.
type Recorder interface {
	ObserveScore(outcome string, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScore(string, int) {}

type Options struct {
	MaxAttempts  int
	OnExhausted  ExhaustedPolicy
	MaxLogLength int
	Recorder     Recorder
}

type Scorer struct {
	model     ai.TextModel
	store     jobs.Store
	logger    *zap.Logger
	attempts  int
	policy    ExhaustedPolicy
	maxLogLen int
	recorder  Recorder
}

func New(model ai.TextModel, store jobs.Store, log *zap.Logger, opts Options) (*Scorer, error) {
	if model == nil {
		return nil, errors.New("text model is required")
	}
	if store == nil {
		return nil, errors.New("job store is required")
	}

	policy := opts.OnExhausted
	switch policy {
	case "":
		policy = PolicyDrop
	case PolicyDrop, PolicyZero:
	default:
		return nil, fmt.Errorf("unknown exhausted policy %q", policy)
	}

	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}
	var recorder Recorder = nopRecorder{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	return &Scorer{
		model:     model,
		store:     store,
		logger:    logger.Component(log, "scoring"),
		attempts:  attempts,
		policy:    policy,
		maxLogLen: maxLogLen,
		recorder:  recorder,
	}, nil
}

// ScoreAll scores every job that has a description, sorts the results by
// descending score and writes them in one transaction. A store failure rolls
// the batch back and is returned; model failures only skip their job.
func (s *Scorer) ScoreAll(ctx context.Context, list []jobs.Job, resumeContext string) ([]RankedScore, error) {
	resume := utils.CollapseWhitespace(resumeContext)
	if resume == "" {
		return nil, errors.New("resume context is empty")
	}

	ranked := make([]RankedScore, 0, len(list))
	for _, job := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := s.logger.With(zap.String(logger.FieldJobURL, job.JobURL))
		if strings.TrimSpace(job.Description) == "" {
			log.Info("skipping job without description")
			s.recorder.ObserveScore(OutcomeSkipped, 0)
			continue
		}

		result, attempts, err := s.score(ctx, log, job, resume)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("scoring failed, skipping job", zap.Int("attempts", len(attempts)), zap.Error(err))
			s.recorder.ObserveScore(OutcomeFailed, len(attempts))
			continue
		}
		if result == nil {
			s.recorder.ObserveScore(OutcomeExhausted, len(attempts))
			continue
		}

		if last := attempts[len(attempts)-1]; last.Err != nil {
			s.recorder.ObserveScore(OutcomeExhausted, len(attempts))
		} else {
			s.recorder.ObserveScore(OutcomeScored, len(attempts))
		}
		ranked = append(ranked, *result)
	}

	Rank(ranked)

	if err := s.persist(ctx, ranked); err != nil {
		return nil, err
	}

	s.logger.Info("scoring finished", zap.Int("jobs", len(list)), zap.Int("scored", len(ranked)))
	return ranked, nil
}

// ErrNotScored is returned by Score when every attempt failed to parse and
// the exhausted policy drops the job.
var ErrNotScored = errors.New("model did not return a valid score")

// Score rates a single job description against the resume without touching
// the store. It follows the same attempt budget and exhausted policy as ScoreAll.
func (s *Scorer) Score(ctx context.Context, description, resumeContext string) (*RankedScore, error) {
	resume := utils.CollapseWhitespace(resumeContext)
	if resume == "" {
		return nil, errors.New("resume context is empty")
	}
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("job description is empty")
	}

	result, attempts, err := s.score(ctx, s.logger, jobs.Job{Description: description}, resume)
	switch {
	case err != nil:
		s.recorder.ObserveScore(OutcomeFailed, len(attempts))
		return nil, fmt.Errorf("score description: %w", err)
	case result == nil:
		s.recorder.ObserveScore(OutcomeExhausted, len(attempts))
		return nil, ErrNotScored
	case attempts[len(attempts)-1].Err != nil:
		s.recorder.ObserveScore(OutcomeExhausted, len(attempts))
	default:
		s.recorder.ObserveScore(OutcomeScored, len(attempts))
	}
	return result, nil
}

// Rank sorts scores in descending order. Ties keep their input order.
func Rank(scores []RankedScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}

// score runs up to the configured number of attempts for one job. A nil
// result without error means the job was dropped by the exhausted policy.
func (s *Scorer) score(ctx context.Context, log *zap.Logger, job jobs.Job, resume string) (*RankedScore, []Attempt, error) {
	prompt := buildPrompt(resume, job)
	attempts := make([]Attempt, 0, s.attempts)

	for n := 1; n <= s.attempts; n++ {
		raw, err := s.model.GenerateContent(ctx, prompt)
		if err != nil {
			attempts = append(attempts, Attempt{Number: n, Err: err})
			return nil, attempts, err
		}

		score, content, parseErr := ParseScore(raw)
		attempts = append(attempts, Attempt{Number: n, Raw: raw, Score: score, Content: content, Err: parseErr})
		if parseErr == nil {
			log.Debug("job scored", zap.Int("score", score), zap.Int("attempt", n))
			return &RankedScore{Title: job.Title, JobURL: job.JobURL, Score: score, Content: content}, attempts, nil
		}

		log.Debug("score response could not be parsed",
			zap.Int("attempt", n),
			zap.Error(parseErr),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
	}

	log.Warn("score attempts exhausted", zap.Int("attempts", s.attempts), zap.String("policy", string(s.policy)))
	if s.policy == PolicyZero {
		return &RankedScore{Title: job.Title, JobURL: job.JobURL, Score: 0, Content: exhaustedContent}, attempts, nil
	}
	return nil, attempts, nil
}

func (s *Scorer) persist(ctx context.Context, ranked []RankedScore) error {
	if len(ranked) == 0 {
		return nil
	}

	updates := make([]jobs.ScoreUpdate, 0, len(ranked))
	for _, r := range ranked {
		updates = append(updates, jobs.ScoreUpdate{JobURL: r.JobURL, Score: r.Score, Recommendations: r.Content})
	}

	if err := s.store.UpdateScores(ctx, updates); err != nil {
		return fmt.Errorf("persist scores: %w", err)
	}
	return nil
}

func buildPrompt(resume string, job jobs.Job) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{RESUME}}\n\nJob:\n{{JOB_DESCRIPTION}}\n\nJSON Response:"
	}
	r := strings.NewReplacer(
		"{{RESUME}}", resume,
		"{{TITLE}}", job.Title,
		"{{COMPANY}}", job.Company,
		"{{JOB_DESCRIPTION}}", utils.CollapseWhitespace(job.Description),
	)
	return r.Replace(template)
}
