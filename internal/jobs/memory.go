package jobs

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/job-curator/internal/utils"
)

// MemoryStore is an in-process Store used by tests and by dry runs without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	byURL map[string]*Job
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byURL: make(map[string]*Job),
		now:   time.Now,
	}
}

func (s *MemoryStore) UpsertJob(_ context.Context, job Job) (*Job, error) {
	url := strings.TrimSpace(job.JobURL)
	if url == "" {
		return nil, fmt.Errorf("upsert job: job_url is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.byURL[url]
	if !ok {
		stored := Job{
			Title:       job.Title,
			Company:     job.Company,
			JobURL:      url,
			Description: job.Description,
			Location:    job.Location,
			IsRemote:    job.IsRemote,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.byURL[url] = &stored
		s.order = append(s.order, url)
		return clone(&stored), nil
	}

	existing.Title = job.Title
	existing.Company = job.Company
	existing.Description = job.Description
	existing.Location = job.Location
	existing.IsRemote = job.IsRemote
	existing.UpdatedAt = now

	return clone(existing), nil
}

func (s *MemoryStore) FetchJobs(_ context.Context, filter Filter) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.order))
	for _, url := range s.order {
		job := s.byURL[url]
		if !matches(job, filter) {
			continue
		}
		result = append(result, *clone(job))
	}
	return result, nil
}

func (s *MemoryStore) UpdateScore(ctx context.Context, jobURL string, score int, recommendations string) error {
	return s.UpdateScores(ctx, []ScoreUpdate{{JobURL: jobURL, Score: score, Recommendations: recommendations}})
}

func (s *MemoryStore) UpdateScores(_ context.Context, updates []ScoreUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate the whole batch first so a failure leaves nothing applied
	for _, u := range updates {
		if _, ok := s.byURL[u.JobURL]; !ok {
			return fmt.Errorf("update score for %q: %w", u.JobURL, ErrNotFound)
		}
		if err := validateScore(u.Score); err != nil {
			return fmt.Errorf("update score for %q: %w", u.JobURL, err)
		}
	}

	now := s.now().UTC()
	for _, u := range updates {
		job := s.byURL[u.JobURL]
		score := u.Score
		job.Score = &score
		job.Recommendations = utils.CollapseWhitespace(u.Recommendations)
		job.UpdatedAt = now
	}
	return nil
}

func (s *MemoryStore) UpdateCuratedResume(_ context.Context, jobURL, curatedResume string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byURL[jobURL]
	if !ok {
		return fmt.Errorf("update curated resume for %q: %w", jobURL, ErrNotFound)
	}

	text := curatedResume
	job.CuratedResume = &text
	job.Curated = true
	job.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) FetchRanked(_ context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := make([]Job, 0, len(s.order))
	for _, url := range s.order {
		ranked = append(ranked, *clone(s.byURL[url]))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *MemoryStore) GetCuratedResume(_ context.Context, jobURL string) (*Job, error) {
	if strings.TrimSpace(jobURL) == "" {
		return nil, fmt.Errorf("job_url must not be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byURL[jobURL]
	if !ok {
		return nil, fmt.Errorf("get curated resume for %q: %w", jobURL, ErrNotFound)
	}
	return clone(job), nil
}

func matches(job *Job, f Filter) bool {
	if f.Curated != nil && job.Curated != *f.Curated {
		return false
	}
	if f.MinScore != nil && (job.Score == nil || *job.Score <= *f.MinScore) {
		return false
	}
	if f.Unscored && job.Score != nil {
		return false
	}
	if len(f.JobURLs) > 0 && !slices.Contains(f.JobURLs, job.JobURL) {
		return false
	}
	return true
}

func clone(job *Job) *Job {
	c := *job
	if job.Score != nil {
		score := *job.Score
		c.Score = &score
	}
	if job.CuratedResume != nil {
		text := *job.CuratedResume
		c.CuratedResume = &text
	}
	return &c
}

func validateScore(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("score %d is outside 0..100", score)
	}
	return nil
}
