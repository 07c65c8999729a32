package mcpserver

// ChecklistFormatContract describes how checklists are stored on disk so
// LLM consumers can read raw files and phrase item edits correctly.
const ChecklistFormatContract = `# Jotter Checklist Format

Every checklist is one Markdown file at
` + "`" + `checklists/<owner>/<category...>/<id>.md` + "`" + `.
Archived checklists live under ` + "`" + `checklists/<owner>/.archive/` + "`" + `.

## Structure

` + "```" + `markdown
# Release plan
<!-- type:task -->

- [ ] Write changelog | status:in_progress | time:0 | estimated:30
  - [x] Collect merged PRs | status:completed | time:0
- [ ] Tag release | time:0 | target:2025-07-01
` + "```" + `

## Rules

1. The first non-blank line is the title unless it is an item (a leading ` + "`" + `# ` + "`" + ` is stripped).
2. ` + "`" + `- [ ] ` + "`" + ` is an open item and ` + "`" + `- [x] ` + "`" + ` a completed one.
3. Children are indented by two spaces per level.
4. Task checklists carry the marker ` + "`" + `<!-- type:task -->` + "`" + ` after the title. Their items carry
   ` + "`" + ` | key:value` + "`" + ` metadata: ` + "`" + `status` + "`" + `, ` + "`" + `time` + "`" + `, ` + "`" + `estimated` + "`" + `, ` + "`" + `target` + "`" + `.
5. Status is one of ` + "`" + `todo` + "`" + `, ` + "`" + `in_progress` + "`" + `, ` + "`" + `completed` + "`" + `, ` + "`" + `paused` + "`" + `. A missing status means ` + "`" + `todo` + "`" + `.
6. A literal ` + "`" + `|` + "`" + ` in item text is stored escaped; tools accept plain text.

## Item paths

Tools address items by dotted index paths: ` + "`" + `0` + "`" + ` is the first top-level item,
` + "`" + `0.1` + "`" + ` is its second child. Paths shift when items are added, moved or removed,
so re-read the checklist before issuing another edit.

## Links and tags

Notes reference checklists with ` + "`" + `[[checklist:<category>/<id>]]` + "`" + ` and other notes
with ` + "`" + `[[<category>/<id>]]` + "`" + `. Note tags are written inline as ` + "`" + `#tag/subtag` + "`" + ` or
in the frontmatter ` + "`" + `tags` + "`" + ` list. Checklists carry no tags.
`
