package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/jobs"
)

const (
	noDescriptionName     = "no_description"
	excludedCompaniesName = "excluded_companies"
	alreadyScoredName     = "already_scored"
)

type noDescriptionFilter struct{}

// NewNoDescription creates a filter that removes jobs without a description to score against.
func NewNoDescription() Filter {
	return &noDescriptionFilter{}
}

func (f *noDescriptionFilter) Name() string { return noDescriptionName }

func (f *noDescriptionFilter) Disable(string) {}

func (f *noDescriptionFilter) IsEnabled() bool { return true }

func (f *noDescriptionFilter) Validate(*Config) error { return nil }

func (f *noDescriptionFilter) Apply(_ context.Context, deps Deps, list []jobs.Job) ([]jobs.Job, Step, error) {
	initial := len(list)
	kept, dropped := keep(list, func(j jobs.Job) bool {
		return strings.TrimSpace(j.Description) != ""
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding jobs without description",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

type excludedCompaniesFilter struct {
	companies map[string]struct{}
}

// NewExcludedCompanies creates a filter that removes jobs by companies configured in the config.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return excludedCompaniesName }

func (f *excludedCompaniesFilter) Disable(string) {}

func (f *excludedCompaniesFilter) IsEnabled() bool { return true }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies = make(map[string]struct{})
	if cfg == nil {
		return nil
	}
	for _, company := range cfg.ExcludeCompanies {
		if key := normalizeCompany(company); key != "" {
			f.companies[key] = struct{}{}
		}
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, list []jobs.Job) ([]jobs.Job, Step, error) {
	initial := len(list)
	if len(f.companies) == 0 {
		return list, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(list, func(j jobs.Job) bool {
		_, excluded := f.companies[normalizeCompany(j.Company)]
		return !excluded
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding jobs by companies",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"companies": strconv.Itoa(len(f.companies))},
	}
}

func normalizeCompany(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

type alreadyScoredFilter struct {
	disabled bool
	reason   string
}

// NewAlreadyScored creates a filter that removes jobs the store already scored or curated.
func NewAlreadyScored() Filter {
	return &alreadyScoredFilter{}
}

func (f *alreadyScoredFilter) Name() string { return alreadyScoredName }

func (f *alreadyScoredFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *alreadyScoredFilter) IsEnabled() bool { return !f.disabled }

func (f *alreadyScoredFilter) Validate(*Config) error { return nil }

func (f *alreadyScoredFilter) Apply(ctx context.Context, deps Deps, list []jobs.Job) ([]jobs.Job, Step, error) {
	initial := len(list)
	if initial == 0 {
		return list, Step{}, nil
	}
	if deps.Store == nil {
		return nil, Step{}, fmt.Errorf("job store is required")
	}

	urls := make([]string, 0, initial)
	for _, job := range list {
		urls = append(urls, job.JobURL)
	}

	stored, err := deps.Store.FetchJobs(ctx, jobs.Filter{JobURLs: urls})
	if err != nil {
		return nil, Step{}, fmt.Errorf("fetch stored jobs: %w", err)
	}

	done := make(map[string]struct{}, len(stored))
	for _, job := range stored {
		if job.IsScored() || job.Curated {
			done[job.JobURL] = struct{}{}
		}
	}

	kept, dropped := keep(list, func(j jobs.Job) bool {
		_, seen := done[j.JobURL]
		return !seen
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding already scored jobs",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *alreadyScoredFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason}
}
