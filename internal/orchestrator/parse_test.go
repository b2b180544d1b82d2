package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          string
		wantRecords  int
		wantElements int
		wantJobs     int
	}{
		{name: "empty array", raw: `[]`},
		{name: "null", raw: `null`},
		{name: "objects", raw: `[{"job_url": "https://a"}, {"job_url": "https://b"}]`, wantRecords: 2, wantElements: 2, wantJobs: 2},
		{name: "double encoded", raw: `["{\"job_url\": \"https://a\", \"title\": \"Go\"}"]`, wantRecords: 1, wantElements: 1, wantJobs: 1},
		{name: "mixed with bad element", raw: `["{\"job_url\": \"https://a\"}", "{broken", 42]`, wantRecords: 3, wantElements: 3, wantJobs: 1},
		{name: "every element broken", raw: `["{bad json", "also bad"]`, wantRecords: 2, wantElements: 2, wantJobs: 0},
		{name: "not an array", raw: `{"job_url": "https://a"}`, wantRecords: 1},
		{name: "plain text", raw: `no jobs found`, wantRecords: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records := ParseToolOutput(tt.raw)
			assert.Len(t, records, tt.wantRecords)
			assert.Equal(t, tt.wantElements, countElements(records))
			assert.Equal(t, tt.wantJobs, countJobs(records))
		})
	}
}

func TestParseToolOutputErrorRecords(t *testing.T) {
	records := ParseToolOutput(`["{\"job_url\": \"https://a\"}", "{broken"]`)
	require.Len(t, records, 2)

	assert.False(t, records[0].IsError())
	assert.Equal(t, "https://a", records[0].Job["job_url"])

	assert.True(t, records[1].IsError())
	assert.Contains(t, records[1].Error, "element 1")
	assert.Equal(t, "{broken", records[1].Raw)
}

func TestDecodeJob(t *testing.T) {
	records := ParseToolOutput(`[
		"{\"title\": \"Go Engineer\", \"company\": \"Acme\", \"job_url\": \" https://jobs.example/1 \", \"is_remote\": \"true\", \"site\": \"indeed\", \"description\": null}",
		{"title": "No URL"},
		{"title": "Bad URL", "job_url": "not a url"}
	]`)
	require.Len(t, records, 3)

	job, err := DecodeJob(records[0])
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", job.Title)
	assert.Equal(t, "https://jobs.example/1", job.JobURL)
	assert.True(t, job.IsRemote)
	assert.Empty(t, job.Description)
	assert.Nil(t, job.Score)

	_, err = DecodeJob(records[1])
	assert.Error(t, err)
	_, err = DecodeJob(records[2])
	assert.Error(t, err)

	_, err = DecodeJob(ParsedRecord{Error: "bad"})
	assert.Error(t, err)
}
