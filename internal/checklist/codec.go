// Package checklist converts checklists to and from their Markdown file form
// and edits item trees addressed by index paths.
package checklist

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/jotter/internal/models"
)

// Reserved tokens of the on-disk format. Stored files depend on these exact
// strings.
const (
	TypeMarker      = "<!-- type:task -->"
	MetaSeparator   = " | "
	PipeEscape      = "\uE000"
	UncheckedPrefix = "- [ ] "
	CheckedPrefix   = "- [x] "

	indentUnit = "  "
)

// Metadata keys.
const (
	keyStatus    = "status"
	keyTime      = "time"
	keyEstimated = "estimated"
	keyTarget    = "target"
	keyPlugins   = "plugins"

	emptyTimeSentinel = "0"
)

// taskKeys is the emission order for task metadata. status is omitted at its
// default but time is always written, as "time:0" when empty. Existing files
// rely on that asymmetry; new keys must not inherit either rule by accident.
var taskKeys = []string{keyStatus, keyTime, keyEstimated, keyTarget}

// Source carries the values that do not live in the file text.
type Source struct {
	ID        string
	Category  string
	Owner     string
	IsShared  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an empty checklist ready to be encoded for the first time.
func New(id, title string, typ models.ChecklistType, category, owner string) *models.Checklist {
	if typ != models.ChecklistTask {
		typ = models.ChecklistSimple
	}
	if category == "" {
		category = models.DefaultCategory
	}
	now := time.Now().UTC()
	return &models.Checklist{
		ID:        id,
		Title:     title,
		Type:      typ,
		Category:  category,
		Items:     []models.ChecklistItem{},
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// lineEntry is one decoded item line before the tree is assembled.
type lineEntry struct {
	indent int
	depth  int
	item   models.ChecklistItem
}

// Decode parses a checklist file. It never fails: malformed lines degrade to
// plain items and bad metadata to defaults.
func Decode(src Source, data []byte) *models.Checklist {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	c := &models.Checklist{
		ID:        src.ID,
		Type:      models.ChecklistSimple,
		Category:  src.Category,
		Owner:     src.Owner,
		IsShared:  src.IsShared,
		CreatedAt: src.CreatedAt,
		UpdatedAt: src.UpdatedAt,
	}
	if c.Category == "" {
		c.Category = models.DefaultCategory
	}
	if detectTask(lines) {
		c.Type = models.ChecklistTask
	}

	var entries []lineEntry
	titleDone := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == TypeMarker {
			continue
		}
		indent, body, completed, kind := splitItemLine(line)
		if !titleDone {
			titleDone = true
			if kind == lineNone {
				c.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
				continue
			}
		}
		if kind == lineNone {
			continue
		}

		// Plain "- foo" lines carry no task metadata, only text.
		typ := c.Type
		if kind == linePlain {
			typ = models.ChecklistSimple
		}
		item := decodeItem(body, typ)
		item.Completed = completed
		if c.Type == models.ChecklistTask {
			if item.TimeEntries == nil {
				item.TimeEntries = []models.TimeEntry{}
			}
			if item.Status == "" {
				item.Status = models.StatusTodo
			}
		}
		entries = append(entries, lineEntry{indent: indent, item: item})
	}
	if c.Title == "" {
		c.Title = src.ID
	}

	assignDepths(entries)
	pos := 0
	c.Items = buildTree(entries, 0, &pos)
	if c.Items == nil {
		c.Items = []models.ChecklistItem{}
	}
	Resequence(c.ID, c.Items)
	return c
}

// Encode renders c in the on-disk format. Output depends only on c.
func Encode(c *models.Checklist) []byte {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(singleLine(c.Title))
	b.WriteString("\n")
	if c.Type == models.ChecklistTask {
		b.WriteString(TypeMarker)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	writeItems(&b, c.Items, 0, c.Type == models.ChecklistTask)
	return []byte(b.String())
}

func writeItems(b *strings.Builder, items []models.ChecklistItem, depth int, task bool) {
	for _, item := range sortedByOrder(items) {
		b.WriteString(strings.Repeat(indentUnit, depth))
		if item.Completed {
			b.WriteString(CheckedPrefix)
		} else {
			b.WriteString(UncheckedPrefix)
		}
		b.WriteString(escapePipes(singleLine(item.Text)))
		for _, seg := range metadataSegments(item, task) {
			b.WriteString(MetaSeparator)
			b.WriteString(seg)
		}
		b.WriteString("\n")
		if len(item.Children) > 0 {
			writeItems(b, item.Children, depth+1, task)
		}
	}
}

func metadataSegments(item models.ChecklistItem, task bool) []string {
	var segs []string
	if task {
		for _, key := range taskKeys {
			switch key {
			case keyStatus:
				if item.Status != "" && item.Status != models.StatusTodo {
					segs = append(segs, keyStatus+":"+string(item.Status))
				}
			case keyTime:
				segs = append(segs, keyTime+":"+encodeTimeEntries(item.TimeEntries))
			case keyEstimated:
				if item.EstimatedTime != nil {
					segs = append(segs, keyEstimated+":"+strconv.Itoa(*item.EstimatedTime))
				}
			case keyTarget:
				if item.TargetDate != "" {
					segs = append(segs, keyTarget+":"+escapePipes(singleLine(item.TargetDate)))
				}
			}
		}
	}
	if len(item.PluginData) > 0 {
		payload, err := json.Marshal(item.PluginData)
		if err != nil {
			slog.Warn("checklist: plugin data not encodable", slog.String("item", item.ID), slog.String("error", err.Error()))
		} else {
			segs = append(segs, keyPlugins+":"+escapePipes(string(payload)))
		}
	}
	return segs
}

func encodeTimeEntries(entries []models.TimeEntry) string {
	if len(entries) == 0 {
		return emptyTimeSentinel
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return emptyTimeSentinel
	}
	return escapePipes(string(payload))
}

func decodeItem(body string, typ models.ChecklistType) models.ChecklistItem {
	segs := strings.Split(body, MetaSeparator)
	item := models.ChecklistItem{}

	var textParts []string
	textParts = append(textParts, segs[0])
	for _, seg := range segs[1:] {
		key, val, ok := strings.Cut(seg, ":")
		if ok && key == keyPlugins {
			item.PluginData = decodePlugins(unescapePipes(val))
			continue
		}
		if typ != models.ChecklistTask {
			// A simple checklist has no task metadata; keep the text intact.
			textParts = append(textParts, seg)
			continue
		}
		if !ok {
			continue
		}
		switch key {
		case keyStatus:
			status := models.TaskStatus(strings.TrimSpace(val))
			if !status.Valid() {
				status = models.StatusTodo
			}
			item.Status = status
		case keyTime:
			item.TimeEntries = decodeTimeEntries(unescapePipes(val))
		case keyEstimated:
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				item.EstimatedTime = &n
			}
		case keyTarget:
			item.TargetDate = unescapePipes(val)
		}
	}
	item.Text = unescapePipes(strings.Join(textParts, MetaSeparator))
	if typ == models.ChecklistTask && item.Status == "" {
		item.Status = models.StatusTodo
	}
	return item
}

func decodeTimeEntries(val string) []models.TimeEntry {
	val = strings.TrimSpace(val)
	if val == "" || val == emptyTimeSentinel {
		return []models.TimeEntry{}
	}
	var entries []models.TimeEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil || entries == nil {
		return []models.TimeEntry{}
	}
	return entries
}

func decodePlugins(val string) models.PluginData {
	var data models.PluginData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		slog.Warn("checklist: dropping malformed plugin data", slog.String("error", err.Error()))
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

// detectTask reports whether the file declares or implies a task checklist.
func detectTask(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) == TypeMarker {
			return true
		}
		if _, body, _, kind := splitItemLine(line); kind == lineCheckbox {
			for _, key := range taskKeys {
				if strings.Contains(body, MetaSeparator+key+":") {
					return true
				}
			}
		}
	}
	return false
}

type lineKind int

const (
	lineNone lineKind = iota
	lineCheckbox
	linePlain
)

// splitItemLine classifies a line and returns its indentation width, the text
// after the list marker and the checkbox state.
func splitItemLine(line string) (indent int, body string, completed bool, kind lineKind) {
	rest := strings.TrimLeft(line, " \t")
	lead := line[:len(line)-len(rest)]
	indent = strings.Count(lead, " ") + strings.Count(lead, "\t")*len(indentUnit)

	switch bare := strings.TrimRight(rest, " "); {
	case strings.HasPrefix(rest, UncheckedPrefix):
		return indent, rest[len(UncheckedPrefix):], false, lineCheckbox
	case strings.HasPrefix(rest, CheckedPrefix), strings.HasPrefix(rest, "- [X] "):
		return indent, rest[len(CheckedPrefix):], true, lineCheckbox
	case bare == "- [ ]":
		return indent, "", false, lineCheckbox
	case bare == "- [x]", bare == "- [X]":
		return indent, "", true, lineCheckbox
	case strings.HasPrefix(rest, "- "), strings.HasPrefix(rest, "* "):
		return indent, strings.TrimSpace(rest[2:]), false, linePlain
	}
	return 0, "", false, lineNone
}

// assignDepths turns raw indentation into tree depth. A line is a child of the
// closest preceding line with strictly smaller indentation.
func assignDepths(entries []lineEntry) {
	var open []int
	for i := range entries {
		for len(open) > 0 && open[len(open)-1] >= entries[i].indent {
			open = open[:len(open)-1]
		}
		entries[i].depth = len(open)
		open = append(open, entries[i].indent)
	}
}

func buildTree(entries []lineEntry, depth int, pos *int) []models.ChecklistItem {
	var out []models.ChecklistItem
	for *pos < len(entries) {
		e := entries[*pos]
		if e.depth < depth {
			break
		}
		if e.depth > depth {
			last := &out[len(out)-1]
			last.Children = buildTree(entries, depth+1, pos)
			continue
		}
		out = append(out, e.item)
		*pos++
	}
	return out
}

func sortedByOrder(items []models.ChecklistItem) []models.ChecklistItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b models.ChecklistItem) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return out
}

func escapePipes(s string) string   { return strings.ReplaceAll(s, "|", PipeEscape) }
func unescapePipes(s string) string { return strings.ReplaceAll(s, PipeEscape, "|") }

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
