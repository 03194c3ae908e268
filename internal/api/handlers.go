package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/seqsync/internal/catalog"
)

// ListStructures handles GET /api/structures.
//
//	@Summary		List catalogued structures with pagination
//	@Tags			structures
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	StructureListResponse
//	@Security		BearerAuth
//	@Router			/structures [get]
func (h *Handler) ListStructures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.catalog.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, "list structures", err)
		return
	}
	writeJSON(w, http.StatusOK, StructureListResponse{Structures: rows, Total: total})
}

// GetStructure handles GET /api/structures/{id}.
//
//	@Summary		Get a structure manifest by id
//	@Tags			structures
//	@Produce		json
//	@Param			id	path		string	true	"Structure id"
//	@Success		200	{object}	StructureDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures/{id} [get]
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	d, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get structure", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateStructure handles POST /api/structures.
//
//	@Summary		Create a structure manifest
//	@Tags			structures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ManifestRequest	true	"Manifest to create"
//	@Success		201		{object}	StructureDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures [post]
func (h *Handler) CreateStructure(w http.ResponseWriter, r *http.Request) {
	var req ManifestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	d, err := h.catalog.Create(r.Context(), []byte(req.Content))
	if err != nil {
		writeError(w, "create structure", err)
		return
	}
	h.events.PublishStructureEvent(catalog.EventCreated, d.Path)
	writeJSON(w, http.StatusCreated, d)
}

// UpdateStructure handles PUT /api/structures/{id}.
//
//	@Summary		Update a manifest with optimistic concurrency
//	@Tags			structures
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Structure id"
//	@Param			If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		ManifestRequest	true	"Updated manifest"
//	@Success		200			{object}	StructureDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures/{id} [put]
func (h *Handler) UpdateStructure(w http.ResponseWriter, r *http.Request) {
	var req ManifestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	d, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "update structure", err)
		return
	}
	h.events.PublishStructureEvent(catalog.EventUpdated, d.Path)
	writeJSON(w, http.StatusOK, d)
}

// MoveStructure handles POST /api/structures/{id}/move.
//
//	@Summary		Move a manifest within the structures directory
//	@Tags			structures
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Structure id"
//	@Param			body	body		MoveRequest	true	"New relative path"
//	@Success		200		{object}	StructureDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures/{id}/move [post]
func (h *Handler) MoveStructure(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.catalog.Move(r.Context(), chi.URLParam(r, "id"), req.Path)
	if err != nil {
		writeError(w, "move structure", err)
		return
	}
	h.events.PublishStructureEvent(catalog.EventUpdated, d.Path)
	writeJSON(w, http.StatusOK, d)
}

// DeleteStructure handles DELETE /api/structures/{id}.
//
//	@Summary		Delete a manifest
//	@Tags			structures
//	@Param			id	path	string	true	"Structure id"
//	@Success		204	"Structure deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures/{id} [delete]
func (h *Handler) DeleteStructure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, "delete structure", err)
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeError(w, "delete structure", err)
		return
	}
	h.events.PublishStructureEvent(catalog.EventDeleted, d.Path)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across structure ids, names and sequences
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
	results, err := h.catalog.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
