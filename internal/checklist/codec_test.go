package checklist

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starford/jotter/internal/models"
)

var itemCmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(models.ChecklistItem{}, "ID", "Order"),
	cmpopts.EquateEmpty(),
}

func intPtr(n int) *int { return &n }

func sampleTaskChecklist() *models.Checklist {
	return &models.Checklist{
		ID:       "sprint",
		Title:    "Sprint 12",
		Type:     models.ChecklistTask,
		Category: "Work",
		Items: []models.ChecklistItem{
			{
				Text:   "ship a|b release",
				Order:  0,
				Status: models.StatusInProgress,
				TimeEntries: []models.TimeEntry{
					{Start: "2025-01-01T10:00:00Z", End: "2025-01-01T10:30:00Z", Duration: 30},
					{Start: "2025-01-02T09:00:00Z"},
				},
				EstimatedTime: intPtr(90),
				TargetDate:    "2025-02-01",
				PluginData: models.PluginData{
					"color": models.StringValue("red"),
					"votes": models.NumberValue(3),
					"meta": models.ObjectValue(map[string]models.PluginValue{
						"pinned": models.BoolValue(true),
						"labels": models.ListValue(models.StringValue("x|y"), models.NullValue()),
					}),
				},
				Children: []models.ChecklistItem{
					{Text: "write notes", Order: 0, Completed: true, Status: models.StatusCompleted},
					{Text: "tag build", Order: 1, Status: models.StatusPaused, Children: []models.ChecklistItem{
						{Text: "deep", Order: 0, Status: models.StatusTodo},
					}},
				},
			},
			{Text: "retro", Order: 1, Completed: true, Status: models.StatusTodo},
		},
	}
}

func TestRoundTrip_Task(t *testing.T) {
	want := sampleTaskChecklist()
	got := Decode(Source{ID: want.ID, Category: want.Category}, Encode(want))

	if got.Title != want.Title {
		t.Errorf("title = %q, want %q", got.Title, want.Title)
	}
	if got.Type != models.ChecklistTask {
		t.Errorf("type = %q, want task", got.Type)
	}
	if diff := cmp.Diff(want.Items, got.Items, itemCmpOpts...); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_Simple(t *testing.T) {
	want := &models.Checklist{
		ID:    "groceries",
		Title: "Groceries",
		Type:  models.ChecklistSimple,
		Items: []models.ChecklistItem{
			{Text: "milk | oat", Order: 0},
			{Text: "bread", Order: 1, Completed: true, PluginData: models.PluginData{"qty": models.NumberValue(2)}},
			{Text: "", Order: 2},
		},
	}
	got := Decode(Source{ID: want.ID}, Encode(want))

	if got.Type != models.ChecklistSimple {
		t.Fatalf("type = %q, want simple", got.Type)
	}
	if diff := cmp.Diff(want.Items, got.Items, itemCmpOpts...); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_ExactFormat(t *testing.T) {
	c := &models.Checklist{
		Title: "Sprint",
		Type:  models.ChecklistTask,
		Items: []models.ChecklistItem{
			{
				Text:          "a|b",
				Status:        models.StatusInProgress,
				TimeEntries:   []models.TimeEntry{{Start: "s", End: "e", Duration: 30}},
				EstimatedTime: intPtr(45),
				TargetDate:    "2025-02-01",
			},
			{Text: "c", Order: 1, Completed: true, Status: models.StatusTodo},
		},
	}
	want := "# Sprint\n" +
		"<!-- type:task -->\n" +
		"\n" +
		"- [ ] a\uE000b | status:in_progress | time:[{\"start\":\"s\",\"end\":\"e\",\"duration\":30}] | estimated:45 | target:2025-02-01\n" +
		"- [x] c | time:0\n"
	if got := string(Encode(c)); got != want {
		t.Errorf("encode mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestEncode_TimeSentinel(t *testing.T) {
	c := &models.Checklist{Title: "T", Type: models.ChecklistTask, Items: []models.ChecklistItem{{Text: "x"}}}
	out := string(Encode(c))
	if !strings.Contains(out, "| time:0") {
		t.Fatalf("expected time:0 sentinel in %q", out)
	}
	if strings.Contains(out, "status:") {
		t.Errorf("default status should be omitted: %q", out)
	}

	got := Decode(Source{ID: "t"}, []byte(out))
	entries := got.Items[0].TimeEntries
	if entries == nil || len(entries) != 0 {
		t.Errorf("timeEntries = %#v, want empty non-nil list", entries)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	c := sampleTaskChecklist()
	first := Encode(c)
	for i := 0; i < 20; i++ {
		if string(Encode(c)) != string(first) {
			t.Fatal("encode is not deterministic")
		}
	}
}

func TestEncode_SortsByOrder(t *testing.T) {
	c := &models.Checklist{Title: "T", Type: models.ChecklistSimple, Items: []models.ChecklistItem{
		{Text: "second", Order: 2},
		{Text: "first", Order: 1},
	}}
	out := string(Encode(c))
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("items not sorted by order: %q", out)
	}
	if c.Items[0].Text != "second" {
		t.Error("encode must not reorder the caller's slice")
	}
}

func TestDecode_TitleAndTimestamps(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	c := Decode(Source{ID: "x", Owner: "ann", CreatedAt: created, UpdatedAt: updated}, []byte("\n\n#  Weekend  \n- [ ] hike\n"))
	if c.Title != "Weekend" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Category != models.DefaultCategory {
		t.Errorf("category = %q, want default", c.Category)
	}
	if !c.CreatedAt.Equal(created) || !c.UpdatedAt.Equal(updated) {
		t.Errorf("timestamps not taken from source: %v %v", c.CreatedAt, c.UpdatedAt)
	}
	if c.Owner != "ann" {
		t.Errorf("owner = %q", c.Owner)
	}
}

func TestDecode_TitleFallsBackToID(t *testing.T) {
	c := Decode(Source{ID: "inbox"}, []byte("- [ ] one\n- [x] two\n"))
	if c.Title != "inbox" {
		t.Errorf("title = %q, want inbox", c.Title)
	}
	if len(c.Items) != 2 || !c.Items[1].Completed {
		t.Errorf("items = %+v", c.Items)
	}
}

func TestDecode_TaskDetectedFromMetadata(t *testing.T) {
	c := Decode(Source{ID: "x"}, []byte("# T\n- [ ] a | estimated:5\n"))
	if c.Type != models.ChecklistTask {
		t.Fatalf("type = %q, want task", c.Type)
	}
	if c.Items[0].EstimatedTime == nil || *c.Items[0].EstimatedTime != 5 {
		t.Errorf("estimated = %v", c.Items[0].EstimatedTime)
	}
	if c.Items[0].Status != models.StatusTodo {
		t.Errorf("status = %q, want todo", c.Items[0].Status)
	}
}

func TestDecode_DegradesBadMetadata(t *testing.T) {
	input := "# T\n<!-- type:task -->\n- [ ] a | status:exploded | time:[not json | estimated:soon | color:blue\n"
	c := Decode(Source{ID: "x"}, []byte(input))
	if len(c.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(c.Items))
	}
	item := c.Items[0]
	if item.Text != "a" {
		t.Errorf("text = %q", item.Text)
	}
	if item.Status != models.StatusTodo {
		t.Errorf("status = %q, want todo", item.Status)
	}
	if item.TimeEntries == nil || len(item.TimeEntries) != 0 {
		t.Errorf("timeEntries = %#v, want empty", item.TimeEntries)
	}
	if item.EstimatedTime != nil {
		t.Errorf("estimated = %v, want nil", *item.EstimatedTime)
	}
}

func TestDecode_MalformedPluginsDropped(t *testing.T) {
	c := Decode(Source{ID: "x"}, []byte("# T\n- [ ] keep me | plugins:{broken\n"))
	if c.Items[0].Text != "keep me" {
		t.Errorf("text = %q", c.Items[0].Text)
	}
	if c.Items[0].PluginData != nil {
		t.Errorf("pluginData = %v, want nil", c.Items[0].PluginData)
	}
}

func TestDecode_MalformedLineIsPlainItem(t *testing.T) {
	c := Decode(Source{ID: "x"}, []byte("# T\n- [?] odd | status:done\nprose is ignored\n"))
	if len(c.Items) != 1 {
		t.Fatalf("items = %+v", c.Items)
	}
	if c.Items[0].Completed {
		t.Error("plain item must not be completed")
	}
	if c.Items[0].Text != "[?] odd | status:done" {
		t.Errorf("text = %q", c.Items[0].Text)
	}
}

func TestDecode_PlainLineInTaskList(t *testing.T) {
	src := "# T\n" + TypeMarker + "\n\n- a " + PipeEscape + " b | status:paused\n"
	c := Decode(Source{ID: "x"}, []byte(src))
	if c.Type != models.ChecklistTask || len(c.Items) != 1 {
		t.Fatalf("checklist = %+v", c)
	}
	it := c.Items[0]
	if it.Text != "a | b | status:paused" {
		t.Errorf("text = %q", it.Text)
	}
	if it.Status != models.StatusTodo || it.TimeEntries == nil {
		t.Errorf("task defaults = status:%q time:%v", it.Status, it.TimeEntries)
	}

	again := Decode(Source{ID: "x"}, Encode(c))
	if diff := cmp.Diff(c.Items, again.Items, itemCmpOpts...); diff != "" {
		t.Errorf("re-encoded plain line (-first +second):\n%s", diff)
	}
}

func TestDecode_NestingAndIDs(t *testing.T) {
	input := "# T\n- [ ] a\n  - [ ] a1\n      - [ ] a1x\n  - [x] a2\n- [ ] b\n"
	c := Decode(Source{ID: "list"}, []byte(input))
	if len(c.Items) != 2 {
		t.Fatalf("top-level = %d, want 2", len(c.Items))
	}
	a := c.Items[0]
	if len(a.Children) != 2 || a.Children[1].Text != "a2" || !a.Children[1].Completed {
		t.Fatalf("children = %+v", a.Children)
	}
	if len(a.Children[0].Children) != 1 {
		t.Fatalf("a1 children = %+v", a.Children[0].Children)
	}
	if got := a.Children[0].Children[0].ID; got != "list-0.0.0" {
		t.Errorf("id = %q, want list-0.0.0", got)
	}
	if c.Items[1].Order != 1 || c.Items[1].ID != "list-1" {
		t.Errorf("b = %+v", c.Items[1])
	}
}

func TestDecode_CRLF(t *testing.T) {
	c := Decode(Source{ID: "x"}, []byte("# T\r\n- [x] done\r\n"))
	if c.Title != "T" || len(c.Items) != 1 || c.Items[0].Text != "done" {
		t.Errorf("decoded = %+v", c)
	}
}

func TestNew(t *testing.T) {
	c := New("id", "Title", "", "", "ann")
	if c.Type != models.ChecklistSimple || c.Category != models.DefaultCategory {
		t.Errorf("new = %+v", c)
	}
	if got := string(Encode(c)); got != "# Title\n\n" {
		t.Errorf("empty encode = %q", got)
	}
}
