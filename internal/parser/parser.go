// Package parser extracts frontmatter, wikilinks, and tags from note files.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jotter/internal/tags"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

	fencedCodeRe = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
	htmlPreRe    = regexp.MustCompile(`(?is)<pre\b[^>]*>.*?</pre>`)
	htmlCodeRe   = regexp.MustCompile(`(?is)<code\b[^>]*>.*?</code>`)

	dataTagRe = regexp.MustCompile(`data-tag="([^"]*)"`)
	hashtagRe = regexp.MustCompile(`(?:^|[\s(])#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)
)

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	UUID        string
	Title       string
	// AuthoredTags are the frontmatter tags exactly as written.
	AuthoredTags []string
	// Tags is the normalized union of frontmatter and content tags.
	Tags  []string
	Links []string
}

// Parse extracts frontmatter, body, wikilinks, and tags from raw note bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	authored := frontmatterTags(fm)
	all := ExtractTags(body)
	for _, t := range authored {
		if n := tags.Normalize(t); n != "" && validTag(n) {
			all = append(all, n)
		}
	}
	slices.Sort(all)

	return &Result{
		Frontmatter:  fm,
		Body:         body,
		UUID:         stringField(fm, "uuid"),
		Title:        deriveTitle(fm, body),
		AuthoredTags: authored,
		Tags:         slices.Compact(all),
		Links:        ExtractLinks(body),
	}, nil
}

// noteHeader is the frontmatter written for every note.
type noteHeader struct {
	UUID  string   `yaml:"uuid"`
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags,omitempty"`
}

// Format renders a note file: YAML frontmatter followed by the opaque body.
func Format(uuid, title string, authoredTags []string, body string) ([]byte, error) {
	head, err := yaml.Marshal(noteHeader{UUID: uuid, Title: title, Tags: authoredTags})
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")
	b.WriteString(body)
	return b.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimPrefix(strings.TrimPrefix(string(afterDelim), "\r"), "\n")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// ExtractTags returns the normalized, deduplicated, sorted tags referenced in
// content. Tags inside code spans and code blocks are ignored.
func ExtractTags(content string) []string {
	clean := stripCode(content)
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		t := tags.Normalize(raw)
		if t == "" || !validTag(t) {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, m := range dataTagRe.FindAllStringSubmatch(clean, -1) {
		add(m[1])
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(clean, -1) {
		add(m[1])
	}
	slices.Sort(out)
	return out
}

func validTag(t string) bool {
	return !strings.Contains(t, "//") && !strings.HasSuffix(t, "/") && !strings.HasPrefix(t, "/")
}

func stripCode(s string) string {
	s = fencedCodeRe.ReplaceAllString(s, " ")
	s = htmlPreRe.ReplaceAllString(s, " ")
	s = htmlCodeRe.ReplaceAllString(s, " ")
	return inlineCodeRe.ReplaceAllString(s, " ")
}

// ExtractLinks returns the wikilink targets in content, ignoring code.
func ExtractLinks(content string) []string {
	return extractLinks(stripCode(content))
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] links to Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func frontmatterTags(fm map[string]interface{}) []string {
	var out []string
	switch v := fm["tags"].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringField(fm map[string]interface{}, key string) string {
	switch v := fm[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
