package resume

import (
	"strings"
)

var knownSections = map[string]struct{}{
	"summary":                 {},
	"professional summary":    {},
	"profile":                 {},
	"objective":               {},
	"experience":              {},
	"work experience":         {},
	"professional experience": {},
	"employment history":      {},
	"education":               {},
	"education & training":    {},
	"education and training":  {},
	"skills":                  {},
	"technical skills":        {},
	"projects":                {},
	"certifications":          {},
	"publications":            {},
	"awards":                  {},
	"languages":               {},
	"volunteer experience":    {},
}

// aliases lists the exact heading names accepted for a section lookup.
var aliases = map[string][]string{
	"education": {"education", "education & training", "education and training"},
}

// Section is a heading line and the lines that follow it up to the next
// heading of the same or a higher level. Level is the number of leading '#'
// characters and 0 for a plain-text heading. Heading and Body keep their
// original line endings.
type Section struct {
	Name    string
	Level   int
	Heading string
	Body    string
}

func (s Section) Text() string {
	return s.Heading + s.Body
}

// Document is a resume split at its section headings. Header holds everything
// before the first heading (name and contact details).
type Document struct {
	Header   string
	Sections []Section
}

// Parse splits text into a Document. Concatenating Header and every section's
// Text reproduces the input exactly.
func Parse(text string) Document {
	var (
		doc     Document
		current *Section
		header  strings.Builder
	)

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if name, level, ok := headingName(line); ok && startsSection(current, line, name, level) {
			if current != nil {
				doc.Sections = append(doc.Sections, *current)
			}
			current = &Section{Name: name, Level: level, Heading: line}
			continue
		}
		if current == nil {
			header.WriteString(line)
			continue
		}
		current.Body += line
	}
	if current != nil {
		doc.Sections = append(doc.Sections, *current)
	}

	doc.Header = header.String()
	return doc
}

func (d Document) String() string {
	var b strings.Builder
	b.WriteString(d.Header)
	for _, s := range d.Sections {
		b.WriteString(s.Text())
	}
	return b.String()
}

// Section returns the first section named name or one of its aliases.
func (d Document) Section(name string) (int, bool) {
	name = normalize(name)
	names, ok := aliases[name]
	if !ok {
		names = []string{name}
	}
	for i, s := range d.Sections {
		for _, n := range names {
			if s.Name == n {
				return i, true
			}
		}
	}
	return -1, false
}

// RestoreProtected returns curated with the contact header and the Education
// section replaced byte for byte by their counterparts in original. An
// Education section missing from curated is appended.
func RestoreProtected(original, curated string) string {
	src := Parse(original)
	out := Parse(curated)

	out.Header = src.Header
	if len(out.Sections) > 0 {
		out.Header = terminated(out.Header)
	}

	if i, ok := src.Section("education"); ok {
		edu := src.Sections[i]
		if j, found := out.Section("education"); found {
			if j < len(out.Sections)-1 {
				edu.Body = terminated(edu.Body)
			}
			out.Sections[j] = edu
		} else {
			if n := len(out.Sections); n > 0 {
				out.Sections[n-1].Body = terminated(out.Sections[n-1].Body)
			} else {
				out.Header = terminated(out.Header)
			}
			out.Sections = append(out.Sections, edu)
		}
	}

	return out.String()
}

func terminated(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// startsSection reports whether a heading line opens a new section. Inside a
// Markdown section, deeper headings and plain-text names are body lines.
func startsSection(current *Section, line, name string, level int) bool {
	if current == nil {
		return !isTitle(line, name)
	}
	if current.Level == 0 {
		return true
	}
	return level > 0 && level <= current.Level
}

func headingName(line string) (string, int, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", 0, false
	}

	if strings.HasPrefix(trimmed, "#") {
		rest := strings.TrimLeft(trimmed, "#")
		level := len(trimmed) - len(rest)
		return normalize(rest), level, true
	}

	name := normalize(trimmed)
	if _, ok := knownSections[name]; ok {
		return name, 0, true
	}
	return "", 0, false
}

// isTitle reports whether a level-one heading is the candidate's name rather
// than a section, which keeps it in the header.
func isTitle(line, name string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "# ") {
		return false
	}
	_, known := knownSections[name]
	return !known
}

func normalize(name string) string {
	name = strings.Trim(name, "*_ ")
	name = strings.TrimSuffix(name, ":")
	name = strings.Trim(name, "*_ ")
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
