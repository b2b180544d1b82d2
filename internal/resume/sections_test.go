package resume

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `# Jane Doe
jane@example.com | +1 555 0100 | Berlin

## Summary
Backend engineer.

## Experience
- Built things in Go.

## Education
B.Sc. Computer Science, TU Berlin, 2015

## Skills
Go, PostgreSQL
`

func TestParseRoundTrips(t *testing.T) {
	doc := Parse(sampleResume)

	assert.Equal(t, sampleResume, doc.String())
	assert.Equal(t, "# Jane Doe\njane@example.com | +1 555 0100 | Berlin\n\n", doc.Header)

	names := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"summary", "experience", "education", "skills"}, names)
}

func TestParseRecognizesPlainHeadings(t *testing.T) {
	doc := Parse("John Smith\nEXPERIENCE:\nDid work\nEducation\nMIT\n")

	assert.Equal(t, "John Smith\n", doc.Header)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "experience", doc.Sections[0].Name)
	assert.Equal(t, "education", doc.Sections[1].Name)
}

func TestRestoreProtectedKeepsHeaderAndEducation(t *testing.T) {
	curated := `# J. Doe
contact me maybe

## Summary
Senior backend engineer focused on Go.

## Experience
- Built distributed systems in Go.

## Education
BSc CS (rewritten by model)

## Skills
Go, PostgreSQL, Kubernetes
`

	got := RestoreProtected(sampleResume, curated)
	doc := Parse(got)
	src := Parse(sampleResume)

	assert.Equal(t, src.Header, doc.Header)
	i, ok := doc.Section("education")
	require.True(t, ok)
	j, _ := src.Section("education")
	assert.Equal(t, src.Sections[j].Text(), doc.Sections[i].Text())

	assert.Contains(t, got, "Senior backend engineer focused on Go.")
	assert.Contains(t, got, "Kubernetes")
	assert.NotContains(t, got, "rewritten by model")
	assert.True(t, strings.HasPrefix(got, "# Jane Doe\njane@example.com"))
}

func TestRestoreProtectedAppendsMissingEducation(t *testing.T) {
	curated := "# Jane Doe\n\n## Summary\nShort."

	got := RestoreProtected(sampleResume, curated)

	assert.Contains(t, got, "Short.\n## Education\nB.Sc. Computer Science, TU Berlin, 2015\n")
}

func TestRestoreProtectedWithoutEducationInSource(t *testing.T) {
	original := "Jane\n## Skills\nGo\n"
	curated := "Someone else\n## Skills\nGo, Rust\n"

	assert.Equal(t, "Jane\n## Skills\nGo, Rust\n", RestoreProtected(original, curated))
}

const nestedResume = `# Jane Doe
jane@example.com

## Experience
### Acme GmbH
- Built billing in Go.

## Education
### MIT
- BSc CS 2015
### TU Berlin
- MSc CS 2017

## Skills
Go
`

func TestParseKeepsSubheadingsInSection(t *testing.T) {
	doc := Parse(nestedResume)

	assert.Equal(t, nestedResume, doc.String())
	require.Len(t, doc.Sections, 3)

	i, ok := doc.Section("education")
	require.True(t, ok)
	assert.Equal(t, 2, doc.Sections[i].Level)
	assert.Equal(t, "### MIT\n- BSc CS 2015\n### TU Berlin\n- MSc CS 2017\n\n", doc.Sections[i].Body)
	assert.Contains(t, doc.Sections[0].Body, "### Acme GmbH")
}

func TestRestoreProtectedKeepsNestedEducation(t *testing.T) {
	curated := "# Jane Doe\n\n# Experience\n- Acme GmbH: billing in Go\n\n# Education\n- MIT, BSc CS\n\n# Skills\n- Languages: Go\n"

	got := RestoreProtected(nestedResume, curated)

	assert.Contains(t, got, "## Education\n### MIT\n- BSc CS 2015\n### TU Berlin\n- MSc CS 2017\n")
	assert.NotContains(t, got, "- MIT, BSc CS")
	assert.Contains(t, got, "# Skills\n- Languages: Go\n")
}

func TestSectionMatchesExactNames(t *testing.T) {
	doc := Parse("Jane\n## Continuing Education\nCourses\n## Education & Training\nMIT\n")

	i, ok := doc.Section("education")
	require.True(t, ok)
	assert.Equal(t, "education & training", doc.Sections[i].Name)

	doc = Parse("Jane\n## Certifications & Education\nAWS\n")
	_, ok = doc.Section("education")
	assert.False(t, ok)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleResume), 0o600))

	text, err := FileProvider{Path: path}.ResumeText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleResume, text)

	empty := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, err = FileProvider{Path: empty}.ResumeText(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = FileProvider{}.ResumeText(context.Background())
	assert.Error(t, err)
}
