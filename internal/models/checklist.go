// Package models defines the domain types for Jotter.
package models

import "time"

// ChecklistType distinguishes free-form checklists from task boards.
type ChecklistType string

const (
	ChecklistSimple ChecklistType = "simple"
	ChecklistTask   ChecklistType = "task"
)

// TaskStatus is the workflow state of a task item.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusPaused     TaskStatus = "paused"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

// TimeEntry is one tracked work interval. End is empty while the timer runs.
type TimeEntry struct {
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	Duration int    `json:"duration"` // minutes
}

// ChecklistItem is a single entry of a checklist. Items form a tree through
// Children and are addressed by index paths (see checklist.Path).
type ChecklistItem struct {
	ID            string          `json:"id"`
	Text          string          `json:"text"`
	Completed     bool            `json:"completed"`
	Order         int             `json:"order"`
	Status        TaskStatus      `json:"status,omitempty"`
	TimeEntries   []TimeEntry     `json:"timeEntries"`
	EstimatedTime *int            `json:"estimatedTime,omitempty"`
	TargetDate    string          `json:"targetDate,omitempty"`
	PluginData    PluginData      `json:"pluginData,omitempty"`
	Children      []ChecklistItem `json:"children,omitempty"`
}

// Checklist is a titled, ordered collection of items stored as one file.
type Checklist struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      ChecklistType   `json:"type"`
	Category  string          `json:"category"`
	Items     []ChecklistItem `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Owner     string          `json:"owner"`
	IsShared  bool            `json:"isShared"`
}
