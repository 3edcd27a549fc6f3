// Package parser splits Markdown and plain-text notes into person texts for
// batch import.
package parser

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from first h1 or frontmatter
	Title string

	// Main content (after frontmatter)
	Content string

	// Structured content by heading
	Sections []Section
}

// Section represents a heading and its content.
type Section struct {
	Level   int    // 1-6 for h1-h6
	Heading string // The heading text
	Content string // Content under this heading, up to the next heading
}

// ParseMarkdown parses a Markdown document into structured form.
// Invalid front matter is reported as an error.
func ParseMarkdown(content string) (*MarkdownDoc, error) {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				return nil, fmt.Errorf("parse front matter: %w", err)
			}
		}
	}

	doc.Content = strings.TrimSpace(remaining)
	doc.Title = extractTitle(doc.Frontmatter, remaining)
	doc.Sections = parseSections(remaining)
	return doc, nil
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if name, ok := fm["name"].(string); ok && name != "" {
		return name
	}
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// parseSections extracts sections from Markdown content.
func parseSections(content string) []Section {
	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(body.String())
			sections = append(sections, *current)
			body.Reset()
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if match := headingRegex.FindStringSubmatch(line); len(match) > 0 {
			flush()
			current = &Section{Level: len(match[1]), Heading: strings.TrimSpace(match[2])}
		} else if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return sections
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *MarkdownDoc) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}

// PersonText is one person description found in a note.
type PersonText struct {
	// Ref identifies the text in reports, e.g. "friends.md#张三".
	Ref  string
	Text string
}

// PersonTexts splits a note into person descriptions.
//
// A Markdown note with two or more level-2 sections describes one person
// per section, headed by the section heading. Any other note describes a
// single person: the front matter name, if set, is put in front of the body
// so extraction sees it. Sections and notes without text are dropped.
func PersonTexts(path, content string) ([]PersonText, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".markdown" {
		text := strings.TrimSpace(content)
		if text == "" {
			return nil, nil
		}
		return []PersonText{{Ref: path, Text: text}}, nil
	}

	doc, err := ParseMarkdown(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var persons []Section
	for _, s := range doc.Sections {
		if s.Level == 2 {
			persons = append(persons, s)
		}
	}

	if len(persons) >= 2 {
		out := make([]PersonText, 0, len(persons))
		for _, s := range persons {
			if s.Content == "" {
				continue
			}
			out = append(out, PersonText{
				Ref:  path + "#" + s.Heading,
				Text: s.Heading + "\n" + s.Content,
			})
		}
		return out, nil
	}

	if doc.Content == "" {
		return nil, nil
	}
	text := doc.Content
	if name := doc.GetFrontmatterString("name"); name != "" && !strings.Contains(text, name) {
		text = name + "\n" + text
	}
	return []PersonText{{Ref: path, Text: text}}, nil
}
