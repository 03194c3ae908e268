package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/starford/seqsync/internal/catalog"
	"github.com/starford/seqsync/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadStructure handles POST /api/structures/upload (multipart/form-data, field "file").
// The manifest is stored under its own id, whatever the uploaded file name.
//
//	@Summary		Upload a structure manifest file
//	@Tags			structures
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Manifest (.yaml or .yml)"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structures/upload [post]
func (h *Handler) UploadStructure(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean(header.Filename))
	if !storage.IsManifest(name) {
		writeJSON(w, http.StatusBadRequest, errorBody("only .yaml and .yml manifests are accepted"))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	d, err := h.catalog.Create(r.Context(), content)
	if err != nil {
		writeError(w, "upload structure", err)
		return
	}
	h.events.PublishStructureEvent(catalog.EventCreated, d.Path)

	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename:  name,
		Size:      int64(len(content)),
		Structure: d.ID,
	})
}
