package tags

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/jotter/internal/models"
)

func TestMatchesFilter(t *testing.T) {
	cases := []struct {
		note, filter string
		want         bool
	}{
		{"work/urgent/now", "work", true},
		{"work", "work", true},
		{"Work/Urgent", "#work/urgent", true},
		{"workshop", "work", false},
		{"work", "work/urgent", false},
		{"", "work", false},
	}
	for _, c := range cases {
		if got := MatchesFilter(c.note, c.filter); got != c.want {
			t.Errorf("MatchesFilter(%q, %q) = %v, want %v", c.note, c.filter, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  #Work/Urgent "); got != "work/urgent" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestBuild_AncestorPropagation(t *testing.T) {
	idx := Build([]models.Note{{UUID: "n1", Tags: []string{"a/b/c"}}})

	if diff := cmp.Diff([]string{"a", "a/b", "a/b/c"}, idx.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	a := idx["a"]
	if a.TotalCount != 1 {
		t.Errorf("a.TotalCount = %d, want 1", a.TotalCount)
	}
	if len(a.NoteUUIDs) != 0 {
		t.Errorf("ancestor should not hold notes directly: %v", a.NoteUUIDs)
	}
	leaf := idx["a/b/c"]
	want := &models.TagInfo{Name: "a/b/c", DisplayName: "c", Parent: "a/b", NoteUUIDs: []string{"n1"}, TotalCount: 1}
	if diff := cmp.Diff(want, leaf); diff != "" {
		t.Errorf("leaf (-want +got):\n%s", diff)
	}
	if idx["a"].Parent != "" {
		t.Errorf("root parent = %q", idx["a"].Parent)
	}
}

func TestBuild_TotalsCountDistinctNotes(t *testing.T) {
	notes := []models.Note{
		{UUID: "n1", Tags: []string{"work", "work/urgent"}},
		{UUID: "n2", Tags: []string{"work/urgent/now"}},
		{UUID: "n3", Tags: []string{"workshop"}},
		{ID: "plain", Category: "Home", Tags: []string{"#Work"}},
	}
	idx := Build(notes)

	if got := idx["work"].TotalCount; got != 3 {
		t.Errorf("work total = %d, want 3", got)
	}
	if got := idx["work"].NoteUUIDs; !cmp.Equal(got, []string{"Home/plain", "n1"}) {
		t.Errorf("work notes = %v", got)
	}
	if got := idx["work/urgent"].TotalCount; got != 2 {
		t.Errorf("work/urgent total = %d, want 2", got)
	}
	if got := idx["workshop"].TotalCount; got != 1 {
		t.Errorf("workshop total = %d, want 1", got)
	}
}

func TestFilterNotes(t *testing.T) {
	notes := []models.Note{
		{UUID: "1", Tags: []string{"work/urgent"}},
		{UUID: "2", Tags: []string{"workshop"}},
		{UUID: "3", Tags: []string{"home"}},
	}
	got := FilterNotes(notes, "work")
	if len(got) != 1 || got[0].UUID != "1" {
		t.Errorf("filtered = %+v", got)
	}
}

func TestTree(t *testing.T) {
	idx := Build([]models.Note{
		{UUID: "1", Tags: []string{"b/x", "a"}},
		{UUID: "2", Tags: []string{"b/y"}},
	})
	roots := idx.Tree()
	if len(roots) != 2 || roots[0].Name != "a" || roots[1].Name != "b" {
		t.Fatalf("roots = %+v", roots)
	}
	if len(roots[1].Children) != 2 || roots[1].Children[0].DisplayName != "x" {
		t.Errorf("b children = %+v", roots[1].Children)
	}
	if roots[1].TotalCount != 2 {
		t.Errorf("b total = %d", roots[1].TotalCount)
	}
}
