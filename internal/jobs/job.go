// Package jobs holds the scraped job model and the stores that persist it.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no job matches the requested job_url.
var ErrNotFound = errors.New("job not found")

// Job is one scraped posting together with its scoring and curation state.
type Job struct {
	Title       string `json:"title" mapstructure:"title"`
	Company     string `json:"company" mapstructure:"company"`
	JobURL      string `json:"job_url" mapstructure:"job_url" validate:"required,url"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Location    string `json:"location,omitempty" mapstructure:"location"`
	IsRemote    bool   `json:"is_remote" mapstructure:"is_remote"`

	Score           *int    `json:"score,omitempty" mapstructure:"-"`
	Recommendations string  `json:"recommendations,omitempty" mapstructure:"-"`
	Curated         bool    `json:"curated" mapstructure:"-"`
	CuratedResume   *string `json:"curated_resume,omitempty" mapstructure:"-"`

	CreatedAt time.Time `json:"created_at" mapstructure:"-"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"-"`
}

// IsScored reports whether a scoring pass has set the score.
func (j *Job) IsScored() bool {
	return j != nil && j.Score != nil
}

// Filter narrows FetchJobs. Zero values mean "no constraint".
type Filter struct {
	Curated *bool
	// MinScore selects jobs whose score is strictly greater than the value.
	MinScore *int
	Unscored bool
	JobURLs  []string
}

// ScoreUpdate is a single score write keyed by job_url.
type ScoreUpdate struct {
	JobURL          string
	Score           int
	Recommendations string
}

// Store is the persistence contract consumed by the pipeline. Every write
// method runs in its own transaction.
type Store interface {
	UpsertJob(ctx context.Context, job Job) (*Job, error)
	FetchJobs(ctx context.Context, filter Filter) ([]Job, error)
	UpdateScore(ctx context.Context, jobURL string, score int, recommendations string) error
	// UpdateScores writes the whole batch atomically: any failure rolls back every update.
	UpdateScores(ctx context.Context, updates []ScoreUpdate) error
	// UpdateCuratedResume sets curated_resume and flips curated to true in one write.
	UpdateCuratedResume(ctx context.Context, jobURL, curatedResume string) error
	FetchRanked(ctx context.Context, limit int) ([]Job, error)
	GetCuratedResume(ctx context.Context, jobURL string) (*Job, error)
}

// Bool returns a pointer to b, handy for Filter literals.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, handy for Filter literals.
func Int(i int) *int { return &i }
