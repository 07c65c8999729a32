package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
)

// Response types aliased from the domain layer.
type (
	ChecklistDetail  = docservice.ChecklistDetail
	ChecklistSummary = docservice.ChecklistSummary
	NoteDetail       = docservice.NoteDetail
	NoteSummary      = docservice.NoteSummary
	SearchHit        = docservice.SearchHit
)

var notBlank = validation.By(func(v any) error {
	if s, _ := v.(string); strings.TrimSpace(s) == "" {
		return validation.ErrRequired
	}
	return nil
})

// CreateChecklistRequest is the request body for creating a checklist.
type CreateChecklistRequest struct {
	ID       string               `json:"id,omitempty" example:"groceries"`
	Title    string               `json:"title" example:"Groceries" validate:"required"`
	Type     models.ChecklistType `json:"type,omitempty" example:"simple"`
	Category string               `json:"category,omitempty" example:"Home"`
}

// Validate validates the request.
func (r CreateChecklistRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, notBlank),
		validation.Field(&r.Type, validation.In(models.ChecklistSimple, models.ChecklistTask)),
	)
}

// AddItemRequest is the request body for appending a checklist item.
type AddItemRequest struct {
	// Parent is the dotted path of the parent item; empty for the top level.
	Parent string `json:"parent,omitempty" example:"0.1"`
	docservice.ItemInput
}

// Validate validates the request.
func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, notBlank),
		validation.Field(&r.Status, validation.When(r.Status != "", validation.By(validStatus))),
	)
}

func validStatus(v any) error {
	var s models.TaskStatus
	switch t := v.(type) {
	case models.TaskStatus:
		s = t
	case *models.TaskStatus:
		if t == nil {
			return nil
		}
		s = *t
	}
	if !s.Valid() {
		return validation.NewError("validation_status", "must be todo, in_progress, completed or paused")
	}
	return nil
}

// UpdateItemRequest is the request body for patching a checklist item.
type UpdateItemRequest struct {
	docservice.ItemPatch
}

// Validate validates the request.
func (r UpdateItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.By(validStatus)),
	)
}

// MoveItemRequest is the request body for reordering a checklist item.
type MoveItemRequest struct {
	To int `json:"to" example:"0"`
}

// Validate validates the request.
func (r MoveItemRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.To, validation.Min(0)))
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	docservice.CreateNoteInput
}

// Validate validates the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Title, notBlank))
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	docservice.NotePatch
}

// ShareRequest is the request body for sharing an item.
type ShareRequest struct {
	docservice.ShareInput
}

// Validate validates the request.
func (r ShareRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Bucket, notBlank))
}

// ChecklistListResponse wraps checklist listings.
type ChecklistListResponse struct {
	Checklists []ChecklistSummary `json:"checklists" validate:"required"`
	Total      int                `json:"total" example:"42" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteSummary `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results" validate:"required"`
}
