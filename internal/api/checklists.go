package api

import (
	"net/http"

	"github.com/starford/jotter/internal/checksum"
	"github.com/starford/jotter/internal/docservice"
)

// ListChecklists handles GET /api/checklists.
//
//	@Summary		List own and shared checklists
//	@Tags			checklists
//	@Produce		json
//	@Param			category	query		string	false	"Category filter"
//	@Param			archived	query		bool	false	"List archived checklists instead"
//	@Param			shared		query		bool	false	"Include checklists shared with the caller (default true)"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ChecklistListResponse
//	@Security		BearerAuth
//	@Router			/checklists [get]
func (h *Handler) ListChecklists(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListChecklists(r.Context(), currentUser(r), listOptions(r))
	if err != nil {
		writeError(w, "list checklists", err)
		return
	}
	writeJSON(w, http.StatusOK, ChecklistListResponse{Checklists: items, Total: len(items)})
}

// GetChecklist handles GET /api/checklists/{owner}/{id}.
//
//	@Summary		Get a single checklist
//	@Tags			checklists
//	@Produce		json
//	@Param			owner		path		string	true	"Owner"
//	@Param			id			path		string	true	"Checklist id"
//	@Param			category	query		string	false	"Category (default Uncategorized)"
//	@Success		200			{object}	ChecklistDetail
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{owner}/{id} [get]
func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetChecklist(r.Context(), currentUser(r), docRef(r))
	if err != nil {
		writeError(w, "get checklist", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(c.Checksum))
	writeJSON(w, http.StatusOK, c)
}

// CreateChecklist handles POST /api/checklists.
//
//	@Summary		Create a new checklist owned by the caller
//	@Tags			checklists
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateChecklistRequest	true	"Checklist to create"
//	@Success		201		{object}	ChecklistDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists [post]
func (h *Handler) CreateChecklist(w http.ResponseWriter, r *http.Request) {
	var req CreateChecklistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.CreateChecklist(r.Context(), currentUser(r), docservice.CreateChecklistInput(req))
	if err != nil {
		writeError(w, "create checklist", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteChecklist handles DELETE /api/checklists/{owner}/{id}.
func (h *Handler) DeleteChecklist(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteChecklist(r.Context(), currentUser(r), docRef(r)); err != nil {
		writeError(w, "delete checklist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveChecklist handles POST /api/checklists/{owner}/{id}/archive.
func (h *Handler) ArchiveChecklist(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.ArchiveChecklist(r.Context(), currentUser(r), docRef(r))
	if err != nil {
		writeError(w, "archive checklist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// AddItem handles POST /api/checklists/{owner}/{id}/items.
//
//	@Summary		Append an item, optionally under a parent item
//	@Tags			checklists
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddItemRequest	true	"Item to add"
//	@Success		201		{object}	ChecklistDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checklists/{owner}/{id}/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.AddItem(r.Context(), currentUser(r), docRef(r), req.Parent, req.ItemInput)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateItem handles PATCH /api/checklists/{owner}/{id}/items/{item}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateItem(r.Context(), currentUser(r), docRef(r), itemPath(r), req.ItemPatch)
	if err != nil {
		writeError(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ToggleItem handles POST /api/checklists/{owner}/{id}/items/{item}/toggle.
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.ToggleItem(r.Context(), currentUser(r), docRef(r), itemPath(r))
	if err != nil {
		writeError(w, "toggle item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// MoveItem handles POST /api/checklists/{owner}/{id}/items/{item}/move.
func (h *Handler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req MoveItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.MoveItem(r.Context(), currentUser(r), docRef(r), itemPath(r), req.To)
	if err != nil {
		writeError(w, "move item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /api/checklists/{owner}/{id}/items/{item}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.RemoveItem(r.Context(), currentUser(r), docRef(r), itemPath(r))
	if err != nil {
		writeError(w, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
