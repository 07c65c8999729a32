package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docRef extracts the addressed document from the URL. The category travels
// in the query string because it may contain slashes.
func docRef(r *http.Request) docservice.Ref {
	return docservice.Ref{
		Owner:    chi.URLParam(r, "owner"),
		Category: r.URL.Query().Get("category"),
		ID:       chi.URLParam(r, "id"),
	}
}

// itemPath extracts the dotted item path. Supports encoded dots from
// OpenAPI clients.
func itemPath(r *http.Request) string {
	raw := chi.URLParam(r, "item")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func listOptions(r *http.Request) docservice.ListOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	archived, _ := strconv.ParseBool(q.Get("archived"))
	shared := true
	if v := q.Get("shared"); v != "" {
		shared, _ = strconv.ParseBool(v)
	}
	return docservice.ListOptions{
		Category:      q.Get("category"),
		Archived:      archived,
		IncludeShared: shared,
		Limit:         limit,
		Offset:        offset,
	}
}

func noteListOptions(r *http.Request) docservice.NoteListOptions {
	return docservice.NoteListOptions{
		ListOptions: listOptions(r),
		Tag:         r.URL.Query().Get("tag"),
	}
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across readable checklists and notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), currentUser(r), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Links handles GET /api/links.
//
//	@Summary		Get the caller's mention graph without archived items
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	models.LinkIndex
//	@Security		BearerAuth
//	@Router			/links [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	ix, err := h.svc.Links(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, "links", err)
		return
	}
	writeJSON(w, http.StatusOK, ix)
}

// ItemLinks handles GET /api/{kind}/{owner}/{id}/links.
func (h *Handler) ItemLinks(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.svc.ItemLinks(r.Context(), currentUser(r), kind, docRef(r))
		if err != nil {
			writeError(w, "item links", err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// Tags handles GET /api/tags.
//
//	@Summary		Get the caller's tag tree
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.TagTree(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tree})
}

// NotesByTag handles GET /api/tags/{tag}/notes.
func (h *Handler) NotesByTag(w http.ResponseWriter, r *http.Request) {
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid tag"))
		return
	}
	notes, err := h.svc.NotesByTag(r.Context(), currentUser(r), tag)
	if err != nil {
		writeError(w, "notes by tag", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// Sharing handles GET /api/{kind}/{owner}/{id}/sharing.
func (h *Handler) Sharing(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := h.svc.SharingInfo(r.Context(), currentUser(r), kind, docRef(r))
		if err != nil {
			writeError(w, "sharing info", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// Share handles POST /api/{kind}/{owner}/{id}/sharing.
//
//	@Summary		Share an item with a user or publicly
//	@Tags			sharing
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ShareRequest	true	"Bucket and permissions"
//	@Success		200		{object}	models.SharingInfo
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{kind}/{owner}/{id}/sharing [post]
func (h *Handler) Share(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ShareRequest
		if !decodeBody(w, r, &req) {
			return
		}
		info, err := h.svc.Share(r.Context(), currentUser(r), kind, docRef(r), req.ShareInput)
		if err != nil {
			writeError(w, "share", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// Unshare handles DELETE /api/{kind}/{owner}/{id}/sharing/{bucket}.
func (h *Handler) Unshare(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := h.svc.Unshare(r.Context(), currentUser(r), kind, docRef(r), chi.URLParam(r, "bucket"))
		if err != nil {
			writeError(w, "unshare", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
