package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nuuid: 1234\ntitle: Hello\ntags:\n  - Go\n  - jotter\n---\n# Hello\nBody text #extra.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.UUID != "1234" {
		t.Errorf("uuid = %q", r.UUID)
	}
	if diff := cmp.Diff([]string{"Go", "jotter"}, r.AuthoredTags); diff != "" {
		t.Errorf("authored tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"extra", "go", "jotter"}, r.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if r.Body != "# Hello\nBody text #extra.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	body := "\nfirst line kept after a blank\n<p>opaque</p>"
	data, err := Format("u-1", "Plan", []string{"Work/Q1"}, body)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	r, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.UUID != "u-1" || r.Title != "Plan" {
		t.Errorf("header = %q %q", r.UUID, r.Title)
	}
	if r.Body != body {
		t.Errorf("body = %q, want %q", r.Body, body)
	}
	if diff := cmp.Diff([]string{"Work/Q1"}, r.AuthoredTags); diff != "" {
		t.Errorf("authored tags (-want +got):\n%s", diff)
	}
}

func TestExtractTags(t *testing.T) {
	content := `#Top and (#paren/child) plus <span data-tag="Rendered/Tag">#Rendered/Tag</span>
mid#word is not a tag, ## heading neither.
Bad: #a//b #trail/ ok #x_y-z
` + "`#inline` code\n```\n#fenced\n```\n<pre>#pre</pre> <code class=\"x\">#code</code>"

	want := []string{"paren/child", "rendered/tag", "top", "x_y-z"}
	if diff := cmp.Diff(want, ExtractTags(content)); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestExtractTags_Dedup(t *testing.T) {
	got := ExtractTags("#Go #go #GO")
	if diff := cmp.Diff([]string{"go"}, got); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestExtractTags_Empty(t *testing.T) {
	if got := ExtractTags("no tags here # nor here"); len(got) != 0 {
		t.Errorf("expected no tags, got %v", got)
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	links := extractLinks("See [[Note A]] and [[checklist:Work/list|alias]].\nAlso [[Note A]] again.")
	if diff := cmp.Diff([]string{"Note A", "checklist:Work/list"}, links); diff != "" {
		t.Errorf("links (-want +got):\n%s", diff)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	if links := extractLinks("see [[ ]] and [[|alias]]"); len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	title := deriveTitle(map[string]any{"title": "FM Title"}, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(nil, "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
