package filtering

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/jobs"
)

func sampleJobs() []jobs.Job {
	return []jobs.Job{
		{Title: "Go Engineer", Company: "Acme", JobURL: "https://jobs.example/1", Description: "Go"},
		{Title: "Java Engineer", Company: "Evil  Corp", JobURL: "https://jobs.example/2", Description: "Java"},
		{Title: "Empty", Company: "Acme", JobURL: "https://jobs.example/3"},
		{Title: "Scored", Company: "Globex", JobURL: "https://jobs.example/4", Description: "Rust"},
	}
}

func urls(list []jobs.Job) []string {
	out := make([]string, 0, len(list))
	for _, j := range list {
		out = append(out, j.JobURL)
	}
	return out
}

func TestRunDefaultSteps(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	for _, j := range sampleJobs() {
		if _, err := store.UpsertJob(ctx, j); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := store.UpdateScore(ctx, "https://jobs.example/4", 70, "ok"); err != nil {
		t.Fatalf("score: %v", err)
	}

	cfg := &Config{ExcludeCompanies: []string{"evil corp"}}
	got, err := Run(ctx, cfg, Deps{Store: store, Logger: zap.NewNop()}, DefaultSteps(cfg), sampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"https://jobs.example/1"}; !slices.Equal(urls(got), want) {
		t.Fatalf("unexpected jobs: %v, want %v", urls(got), want)
	}
}

func TestRescoreDisablesAlreadyScored(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	for _, j := range sampleJobs() {
		if _, err := store.UpsertJob(ctx, j); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := store.UpdateScore(ctx, "https://jobs.example/4", 70, "ok"); err != nil {
		t.Fatalf("score: %v", err)
	}

	cfg := &Config{Rescore: true}
	steps := DefaultSteps(cfg)
	got, err := Run(ctx, cfg, Deps{Store: store}, steps, sampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 jobs, got %v", urls(got))
	}

	for _, status := range Describe(steps) {
		if status.Name == alreadyScoredName && (status.Enabled || status.Reason == "") {
			t.Fatalf("expected already_scored to be disabled with a reason, got %+v", status)
		}
	}
}

type failingStore struct{ jobs.Store }

func (failingStore) FetchJobs(context.Context, jobs.Filter) ([]jobs.Job, error) {
	return nil, errors.New("db down")
}

func TestRunWrapsStepErrors(t *testing.T) {
	_, err := Run(context.Background(), &Config{}, Deps{Store: failingStore{}}, []Filter{NewAlreadyScored()}, sampleJobs())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, &Config{}, Deps{}, []Filter{NewNoDescription()}, sampleJobs())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
