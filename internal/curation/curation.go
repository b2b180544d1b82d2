// Package curation rewrites the resume for a single job in four model passes
// and guards the sections the model must not touch.
package curation

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/resume"
	"github.com/spigell/job-curator/internal/utils"
)

//go:embed prompts/*.md
var prompts embed.FS

const defaultMaxLogLength = 200

// Outcomes reported to the Recorder.
const (
	OutcomeCurated = "curated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Stage is one model pass of the curation chain.
type Stage struct {
	Name     string
	template string
}

// Stages returns the passes in the order they run.
func Stages() []Stage {
	return []Stage{
		mustStage("compare"),
		mustStage("proofread"),
		mustStage("crosscheck"),
		mustStage("format"),
	}
}

func mustStage(name string) Stage {
	data, err := prompts.ReadFile("prompts/" + name + ".md")
	if err != nil {
		panic(fmt.Sprintf("curation prompt %s: %v", name, err))
	}
	return Stage{Name: name, template: string(data)}
}

func (s Stage) render(original, current, jobDescription, recommendations string) string {
	return strings.NewReplacer(
		"{{RESUME}}", original,
		"{{CURATED_RESUME}}", current,
		"{{JOB_DESCRIPTION}}", jobDescription,
		"{{RECOMMENDATIONS}}", recommendations,
	).Replace(s.template)
}

// Recorder receives one outcome per job considered by CurateAll.
type Recorder interface {
	ObserveCuration(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCuration(string) {}

type Options struct {
	MaxLogLength int
	Recorder     Recorder
}

type Curator struct {
	model     ai.TextModel
	store     jobs.Store
	logger    *zap.Logger
	stages    []Stage
	maxLogLen int
	recorder  Recorder
}

func New(model ai.TextModel, store jobs.Store, log *zap.Logger, opts Options) (*Curator, error) {
	if model == nil {
		return nil, errors.New("text model is required")
	}
	if store == nil {
		return nil, errors.New("job store is required")
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}
	var recorder Recorder = nopRecorder{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	return &Curator{
		model:     model,
		store:     store,
		logger:    logger.Component(log, "curation"),
		stages:    Stages(),
		maxLogLen: maxLogLen,
		recorder:  recorder,
	}, nil
}

// Curate runs every stage once, feeding each output into the next, and then
// restores the contact header and Education section from resumeText.
func (c *Curator) Curate(ctx context.Context, resumeText, jobDescription, recommendations string) (string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return "", resume.ErrEmpty
	}

	current := resumeText
	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		prompt := stage.render(resumeText, current, jobDescription, recommendations)
		out, err := c.model.GenerateContent(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("curation stage %s: %w", stage.Name, err)
		}

		c.logger.Debug("curation stage finished",
			zap.String("stage", stage.Name),
			zap.Int("response_length", utf8.RuneCountInString(out)),
			zap.String("response_preview", utils.TruncateForLog(out, c.maxLogLen)),
		)
		current = stripFence(out)
	}

	return resume.RestoreProtected(resumeText, current), nil
}

// Summary counts what CurateAll did.
type Summary struct {
	Curated []string `json:"curated"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// CurateAll curates every uncurated job scored above minScore. A model failure
// only aborts its own job; a store failure stops the pass and is returned.
func (c *Curator) CurateAll(ctx context.Context, resumeText string, minScore int) (*Summary, error) {
	candidates, err := c.store.FetchJobs(ctx, jobs.Filter{Curated: jobs.Bool(false), MinScore: jobs.Int(minScore)})
	if err != nil {
		return nil, fmt.Errorf("select jobs to curate: %w", err)
	}

	summary := &Summary{}
	for _, job := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log := c.logger.With(zap.String(logger.FieldJobURL, job.JobURL))
		if strings.TrimSpace(job.Recommendations) == "" {
			log.Info("skipping job without recommendations")
			summary.Skipped = append(summary.Skipped, job.JobURL)
			c.recorder.ObserveCuration(OutcomeSkipped)
			continue
		}

		curated, err := c.Curate(ctx, resumeText, job.Description, job.Recommendations)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			log.Warn("curation failed, skipping job", zap.Error(err))
			summary.Failed = append(summary.Failed, job.JobURL)
			c.recorder.ObserveCuration(OutcomeFailed)
			continue
		}

		if err := c.store.UpdateCuratedResume(ctx, job.JobURL, curated); err != nil {
			return summary, fmt.Errorf("store curated resume: %w", err)
		}

		log.Info("resume curated", zap.Int("length", utf8.RuneCountInString(curated)))
		summary.Curated = append(summary.Curated, job.JobURL)
		c.recorder.ObserveCuration(OutcomeCurated)
	}

	return summary, nil
}

// stripFence removes a surrounding ```markdown fence some models add.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	firstNL := strings.Index(trimmed, "\n")
	if firstNL == -1 {
		return text
	}
	body := trimmed[firstNL+1:]
	if idx := strings.LastIndex(body, "```"); idx != -1 {
		body = body[:idx]
	}
	return strings.TrimSpace(body) + "\n"
}
