// Package notefile converts notes to and from markdown files with YAML
// frontmatter:
//
//	---
//	id: 12
//	title: Groceries
//	color: '#FFB2EBF2'
//	timestamp: "2026-10-14T12:00:00.000Z"
//	image: 12-groceries.png
//	---
//	milk, eggs
//
// Every frontmatter key is optional. Without a title the first "# " heading
// is used and removed from the body. The body is the description.
package notefile

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/jotter/internal/models"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Parsed is a note read from a markdown file.
type Parsed struct {
	Note models.Note
	// HasColor and HasTimestamp report whether the file set those fields.
	HasColor     bool
	HasTimestamp bool
	// ImageRef is the image path from frontmatter, relative to the file.
	ImageRef string
}

// Parse reads a markdown note. Malformed frontmatter values are errors;
// unparseable YAML is treated as plain body text.
func Parse(data []byte) (*Parsed, error) {
	fm, body := splitFrontmatter(data)
	p := &Parsed{}

	if v, ok := fm["id"]; ok {
		id, ok := v.(int)
		if !ok || id <= 0 {
			return nil, fmt.Errorf("notefile: invalid id %v", v)
		}
		p.Note.ID = models.Int64(int64(id))
	}

	if s, ok := fm["title"].(string); ok {
		p.Note.Title = s
	}
	if p.Note.Title == "" {
		p.Note.Title, body = headingTitle(body)
	}
	p.Note.Description = body

	if v, ok := fm["color"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("notefile: color must be a hex string, got %v", v)
		}
		c, err := models.ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("notefile: color: %w", err)
		}
		p.Note.Color, p.HasColor = c, true
	}

	if v, ok := fm["timestamp"]; ok {
		ts, err := parseTimestamp(v)
		if err != nil {
			return nil, err
		}
		p.Note.Timestamp, p.HasTimestamp = ts, true
	}

	if s, ok := fm["image"].(string); ok {
		p.ImageRef = strings.TrimSpace(s)
	}
	return p, nil
}

// parseTimestamp accepts epoch milliseconds, a YAML timestamp or an RFC 3339
// string.
func parseTimestamp(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case time.Time:
		return t.UnixMilli(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, fmt.Errorf("notefile: timestamp: %w", err)
		}
		return parsed.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("notefile: invalid timestamp %v", v)
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- lines)
// from the body. Without valid frontmatter the whole input is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, trimBody(string(data))
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, trimBody(string(data))
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, trimBody(string(data))
	}
	return fm, trimBody(string(afterDelim))
}

func trimBody(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// headingTitle returns the first "# " heading and the body without it.
func headingTitle(body string) (string, string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			rest := append(lines[:i:i], lines[i+1:]...)
			return strings.TrimSpace(trimmed[2:]), trimBody(strings.Join(rest, "\n"))
		}
	}
	return "", body
}

type frontmatter struct {
	ID        *int64 `yaml:"id,omitempty"`
	Title     string `yaml:"title"`
	Color     string `yaml:"color"`
	Timestamp string `yaml:"timestamp"`
	Image     string `yaml:"image,omitempty"`
}

// Render writes n as a markdown note. imageRef, if non-empty, is recorded as
// the image path.
func Render(n models.Note, imageRef string) ([]byte, error) {
	fm := frontmatter{
		ID:        n.ID,
		Title:     n.Title,
		Color:     models.FormatColor(n.Color),
		Timestamp: time.UnixMilli(n.Timestamp).UTC().Format(timeLayout),
		Image:     imageRef,
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("notefile: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(n.Description)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// BaseName returns the file name stem used on export: "<id>-<slug>".
func BaseName(n models.Note) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(n.Title), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug == "" {
		slug = "note"
	}
	return fmt.Sprintf("%d-%s", n.IDValue(), slug)
}
