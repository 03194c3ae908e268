package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Structure catalogue.
	r.Route("/structures", func(r chi.Router) {
		r.Get("/", h.ListStructures)
		r.Post("/", h.CreateStructure)
		r.Post("/upload", h.UploadStructure)
		r.Get("/{id}", h.GetStructure)
		r.Put("/{id}", h.UpdateStructure)
		r.Delete("/{id}", h.DeleteStructure)
		r.Post("/{id}/move", h.MoveStructure)
	})
	r.Get("/search", h.Search)

	r.Route("/viewer", func(r chi.Router) {
		r.Post("/load", h.LoadStructure)
		r.Get("/sequence", h.GetSequence)
		r.Get("/chains", h.ListChains)
		r.Get("/components", h.ListComponents)

		r.Get("/selection", h.GetSelection)
		r.Put("/selection", h.ReplaceSelection)
		r.Delete("/selection", h.ClearSelection)
		r.Post("/selection/regions", h.AddRegion)
		r.Delete("/selection/regions/{id}", h.RemoveRegion)
		r.Post("/selection/range", h.SelectRange)
		r.Put("/selection/active", h.SetActive)
		r.Post("/selection/merge", h.MergeSelection)

		r.Get("/drag", h.GetDrag)
		r.Post("/drag/down", h.PointerDown)
		r.Post("/drag/enter", h.PointerEnter)
		r.Post("/drag/up", h.PointerUp)
		r.Post("/drag/cancel", h.CancelDrag)
		r.Post("/hover", h.Hover)
		r.Delete("/hover", h.ClearHover)
		r.Post("/pick", h.Pick)

		r.Post("/hide", h.Hide)
		r.Post("/isolate", h.Isolate)
		r.Post("/isolate-range", h.IsolateRange)
		r.Post("/show-all", h.ShowAll)
		r.Post("/actions/{action}", h.ResidueAction)
		r.Get("/operations", h.ListOperations)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
