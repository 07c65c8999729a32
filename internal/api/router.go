package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, auth AuthOptions, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth.Enabled, auth.Token))
	r.Use(IdentityMiddleware(auth.DefaultUser, auth.Admins, auth.Enabled))

	r.Get("/me", h.Me)

	// Checklists.
	r.Get("/checklists", h.ListChecklists)
	r.Post("/checklists", h.CreateChecklist)
	r.Route("/checklists/{owner}/{id}", func(r chi.Router) {
		r.Get("/", h.GetChecklist)
		r.Delete("/", h.DeleteChecklist)
		r.Post("/archive", h.ArchiveChecklist)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{item}", h.UpdateItem)
		r.Delete("/items/{item}", h.RemoveItem)
		r.Post("/items/{item}/toggle", h.ToggleItem)
		r.Post("/items/{item}/move", h.MoveItem)
		sharedRoutes(r, h, models.KindChecklist)
	})

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{owner}/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Post("/archive", h.ArchiveNote)
		sharedRoutes(r, h, models.KindNote)
	})

	// Tags, links and search.
	r.Get("/tags", h.Tags)
	r.Get("/tags/{tag}/notes", h.NotesByTag)
	r.Get("/links", h.Links)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// sharedRoutes mounts the links and sharing endpoints common to both kinds.
func sharedRoutes(r chi.Router, h *Handler, kind models.ItemKind) {
	r.Get("/links", h.ItemLinks(kind))
	r.Get("/sharing", h.Sharing(kind))
	r.Post("/sharing", h.Share(kind))
	r.Delete("/sharing/{bucket}", h.Unshare(kind))
}
