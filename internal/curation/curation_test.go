package curation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai/aitest"
	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/resume"
)

const original = `Jane Doe | 10115 | +49 30 1234 | linkedin.com/in/jane

Summary:
Backend developer.

Experience:
- Wrote Go services.
- Ran PostgreSQL.

Education
- TU Berlin: B.Sc. Computer Science 2015
`

const rewritten = "```markdown\n" + `# JANE D.
Contact: hidden

# Summary
Senior Go backend developer.

# Experience
- Wrote Go services.
- Ran PostgreSQL.

# Education
- Some University (hallucinated)

# Skills
- Code: Go | SQL
` + "```"

func seedScored(t *testing.T, store *jobs.MemoryStore, url string, score int, recommendations string) {
	t.Helper()
	ctx := context.Background()
	_, err := store.UpsertJob(ctx, jobs.Job{Title: "Go Engineer", JobURL: url, Description: "Go and PostgreSQL"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateScore(ctx, url, score, recommendations))
}

type recorder struct{ outcomes []string }

func (r *recorder) ObserveCuration(outcome string) { r.outcomes = append(r.outcomes, outcome) }

func TestCurateRunsFourStagesInOrder(t *testing.T) {
	model := (&aitest.Text{}).Reply("stage1", "stage2", "stage3", rewritten)
	c, err := New(model, jobs.NewMemoryStore(), zap.NewNop(), Options{})
	require.NoError(t, err)

	_, err = c.Curate(context.Background(), original, "Go job", "add Go")
	require.NoError(t, err)

	require.Equal(t, 4, model.Calls())
	assert.Contains(t, model.Prompts[0], "add Go")
	assert.Contains(t, model.Prompts[0], "Go job")
	assert.Contains(t, model.Prompts[1], "stage1")
	assert.Contains(t, model.Prompts[2], "stage2")
	assert.Contains(t, model.Prompts[2], "Wrote Go services.", "cross-check sees the original resume")
	assert.Contains(t, model.Prompts[3], "stage3")
}

func TestCuratePreservesProtectedSections(t *testing.T) {
	model := (&aitest.Text{}).Reply("s1", "s2", "s3", rewritten)
	c, err := New(model, jobs.NewMemoryStore(), zap.NewNop(), Options{})
	require.NoError(t, err)

	got, err := c.Curate(context.Background(), original, "Go job", "add Go")
	require.NoError(t, err)

	src := resume.Parse(original)
	out := resume.Parse(got)
	assert.Equal(t, src.Header, out.Header)

	i, ok := src.Section("education")
	require.True(t, ok)
	j, ok := out.Section("education")
	require.True(t, ok)
	assert.Equal(t, src.Sections[i].Text(), out.Sections[j].Text())

	assert.Contains(t, got, "Senior Go backend developer.")
	assert.NotContains(t, got, "hallucinated")
	assert.NotContains(t, got, "```")
}

func TestCurateStageFailure(t *testing.T) {
	model := (&aitest.Text{}).Reply("s1").Fail(errors.New("boom"))
	c, err := New(model, jobs.NewMemoryStore(), zap.NewNop(), Options{})
	require.NoError(t, err)

	_, err = c.Curate(context.Background(), original, "job", "rec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proofread")
	assert.Equal(t, 2, model.Calls(), "stages are not retried")
}

func TestCurateAllSelectionAndScoping(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	seedScored(t, store, "https://jobs.example/low", 40, "too low")
	seedScored(t, store, "https://jobs.example/empty", 90, "   ")
	seedScored(t, store, "https://jobs.example/fails", 85, "rec")
	seedScored(t, store, "https://jobs.example/ok", 80, "rec")
	seedScored(t, store, "https://jobs.example/done", 95, "rec")
	require.NoError(t, store.UpdateCuratedResume(ctx, "https://jobs.example/done", "old"))

	// the first job's chain fails at stage one, the second succeeds
	model := (&aitest.Text{}).Fail(errors.New("quota")).Reply("s1", "s2", "s3", rewritten)
	rec := &recorder{}
	c, err := New(model, store, zap.NewNop(), Options{Recorder: rec})
	require.NoError(t, err)

	summary, err := c.CurateAll(ctx, original, 60)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://jobs.example/ok"}, summary.Curated)
	assert.Equal(t, []string{"https://jobs.example/empty"}, summary.Skipped)
	assert.Equal(t, []string{"https://jobs.example/fails"}, summary.Failed)
	assert.Equal(t, []string{OutcomeSkipped, OutcomeFailed, OutcomeCurated}, rec.outcomes)

	for url, want := range map[string]bool{
		"https://jobs.example/low":   false,
		"https://jobs.example/empty": false,
		"https://jobs.example/fails": false,
		"https://jobs.example/ok":    true,
	} {
		job, err := store.GetCuratedResume(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, want, job.Curated, url)
		if !want {
			assert.Nil(t, job.CuratedResume, url)
		}
	}

	done, err := store.GetCuratedResume(ctx, "https://jobs.example/done")
	require.NoError(t, err)
	assert.Equal(t, "old", *done.CuratedResume, "curated jobs are never selected again")

	ok, err := store.GetCuratedResume(ctx, "https://jobs.example/ok")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(*ok.CuratedResume, "Jane Doe | 10115"))
}

type failingStore struct{ *jobs.MemoryStore }

func (failingStore) UpdateCuratedResume(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestCurateAllReturnsStoreError(t *testing.T) {
	mem := jobs.NewMemoryStore()
	seedScored(t, mem, "https://jobs.example/ok", 80, "rec")
	model := (&aitest.Text{}).Reply("s1", "s2", "s3", rewritten)

	c, err := New(model, failingStore{mem}, zap.NewNop(), Options{})
	require.NoError(t, err)

	_, err = c.CurateAll(context.Background(), original, 60)
	assert.Error(t, err)
}

func TestStagesAreEmbedded(t *testing.T) {
	names := make([]string, 0, 4)
	for _, s := range Stages() {
		names = append(names, s.Name)
		assert.NotEmpty(t, strings.TrimSpace(s.template))
	}
	assert.Equal(t, []string{"compare", "proofread", "crosscheck", "format"}, names)
}
