package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/visibility"
)

// LoadStructure handles POST /api/viewer/load.
//
//	@Summary		Load a structure into the viewer
//	@Tags			viewer
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoadRequest	true	"Structure to load"
//	@Success		200		{object}	models.SequenceData
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/load [post]
func (h *Handler) LoadStructure(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !decode(w, r, &req) {
		return
	}
	data, err := h.session.Load(r.Context(), req.ID)
	if err != nil {
		writeError(w, "load structure", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetSequence handles GET /api/viewer/sequence.
func (h *Handler) GetSequence(w http.ResponseWriter, _ *http.Request) {
	data, err := h.session.Sequence()
	if err != nil {
		writeError(w, "get sequence", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// ListChains handles GET /api/viewer/chains.
//
//	@Summary		List chains of the loaded structure, hidden ones included
//	@Tags			viewer
//	@Produce		json
//	@Success		200	{object}	ChainsResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/chains [get]
func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.session.AvailableChains(r.Context())
	if err != nil {
		writeError(w, "list chains", err)
		return
	}
	if chains == nil {
		chains = []string{}
	}
	writeJSON(w, http.StatusOK, ChainsResponse{Mode: string(h.session.Mode()), Chains: chains})
}

// ListComponents handles GET /api/viewer/components.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	cs, err := h.session.Components(r.Context())
	if err != nil {
		writeError(w, "list components", err)
		return
	}
	writeJSON(w, http.StatusOK, ComponentsResponse{Components: cs})
}

// GetSelection handles GET /api/viewer/selection.
func (h *Handler) GetSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Selection())
}

// ReplaceSelection handles PUT /api/viewer/selection.
//
//	@Summary		Replace every selected region
//	@Tags			selection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ReplaceSelectionRequest	true	"New regions"
//	@Success		200		{object}	models.SequenceSelection
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/selection [put]
func (h *Handler) ReplaceSelection(w http.ResponseWriter, r *http.Request) {
	var req ReplaceSelectionRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.session.ReplaceSelection(req.Regions...); err != nil {
		writeError(w, "replace selection", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Selection())
}

// ClearSelection handles DELETE /api/viewer/selection.
func (h *Handler) ClearSelection(w http.ResponseWriter, _ *http.Request) {
	h.session.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// AddRegion handles POST /api/viewer/selection/regions.
//
//	@Summary		Add a region, filling in its id, sequence and label
//	@Tags			selection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.SelectionRegion	true	"Region"
//	@Success		201		{object}	models.SelectionRegion
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/selection/regions [post]
func (h *Handler) AddRegion(w http.ResponseWriter, r *http.Request) {
	var req models.SelectionRegion
	if !decode(w, r, &req) {
		return
	}
	region, err := h.session.AddRegion(req)
	if err != nil {
		writeError(w, "add region", err)
		return
	}
	writeJSON(w, http.StatusCreated, region)
}

// RemoveRegion handles DELETE /api/viewer/selection/regions/{id}.
func (h *Handler) RemoveRegion(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RemoveRegion(chi.URLParam(r, "id")); err != nil {
		writeError(w, "remove region", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectRange handles POST /api/viewer/selection/range.
func (h *Handler) SelectRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !decode(w, r, &req) {
		return
	}
	region, err := h.session.SelectRange(req.ChainID, req.Start, req.End, req.Add)
	if err != nil {
		writeError(w, "select range", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// SetActive handles PUT /api/viewer/selection/active.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.session.SetActive(req.ID); err != nil {
		writeError(w, "set active region", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Selection())
}

// MergeSelection handles POST /api/viewer/selection/merge.
func (h *Handler) MergeSelection(w http.ResponseWriter, _ *http.Request) {
	n := h.session.Merge()
	writeJSON(w, http.StatusOK, MergeResponse{Merged: n, Selection: h.session.Selection()})
}

// GetDrag handles GET /api/viewer/drag.
func (h *Handler) GetDrag(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.DragState())
}

// PointerDown handles POST /api/viewer/drag/down.
func (h *Handler) PointerDown(w http.ResponseWriter, r *http.Request) {
	var req ResidueRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.session.PointerDown(req.ChainID, req.Position); err != nil {
		writeError(w, "pointer down", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.DragState())
}

// PointerEnter handles POST /api/viewer/drag/enter.
func (h *Handler) PointerEnter(w http.ResponseWriter, r *http.Request) {
	var req ResidueRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.session.PointerEnter(req.ChainID, req.Position); err != nil {
		writeError(w, "pointer enter", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.DragState())
}

// PointerUp handles POST /api/viewer/drag/up and commits the drag.
//
//	@Summary		Commit the drag as a selection region
//	@Tags			drag
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PointerUpRequest	false	"Add to the selection instead of replacing it"
//	@Success		200		{object}	models.SelectionRegion
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/drag/up [post]
func (h *Handler) PointerUp(w http.ResponseWriter, r *http.Request) {
	var req PointerUpRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	region, err := h.session.PointerUp(req.Add)
	if err != nil {
		writeError(w, "pointer up", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// CancelDrag handles POST /api/viewer/drag/cancel, the context-menu gesture.
func (h *Handler) CancelDrag(w http.ResponseWriter, _ *http.Request) {
	cancelled := h.session.ContextMenu()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Hover handles POST /api/viewer/hover.
func (h *Handler) Hover(w http.ResponseWriter, r *http.Request) {
	var req HoverRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.session.Hover(req.ChainID, req.Positions...); err != nil {
		writeError(w, "hover", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.DragState())
}

// ClearHover handles DELETE /api/viewer/hover.
func (h *Handler) ClearHover(w http.ResponseWriter, _ *http.Request) {
	h.session.PointerLeave()
	w.WriteHeader(http.StatusNoContent)
}

// Pick handles POST /api/viewer/pick.
//
//	@Summary		Report an atom picked in the 3D view
//	@Tags			viewer
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PickRequest	true	"Pick in both numbering schemes"
//	@Success		200		{object}	PickResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/pick [post]
func (h *Handler) Pick(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if !decode(w, r, &req) {
		return
	}
	region, ok, err := h.session.Pick(req.Pick, req.Add)
	if err != nil {
		writeError(w, "pick", err)
		return
	}
	resp := PickResponse{Promoted: ok}
	if ok {
		resp.Region = &region
	}
	writeJSON(w, http.StatusOK, resp)
}

// Hide handles POST /api/viewer/hide. A request without start and end hides
// the whole chain; with only one of them it hides that residue.
//
//	@Summary		Hide a chain or residue range
//	@Tags			visibility
//	@Accept			json
//	@Produce		json
//	@Param			body	body		HideRequest	true	"Target"
//	@Success		200		{object}	visibility.Result
//	@Failure		400		{object}	visibility.Result
//	@Failure		409		{object}	visibility.Result
//	@Security		BearerAuth
//	@Router			/viewer/hide [post]
func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	var req HideRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.session.Hide(r.Context(), visibility.BoundedTarget(req.ChainID, req.Start, req.End)))
}

// Isolate handles POST /api/viewer/isolate.
func (h *Handler) Isolate(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.session.Isolate(r.Context(), req.ChainID))
}

// IsolateRange handles POST /api/viewer/isolate-range.
func (h *Handler) IsolateRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.session.IsolateRange(r.Context(), req.ChainID, req.Start, req.End))
}

// ShowAll handles POST /api/viewer/show-all.
func (h *Handler) ShowAll(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.session.ShowAll(r.Context()))
}

// ResidueAction handles POST /api/viewer/actions/{action}.
//
//	@Summary		Run a residue context-menu action
//	@Tags			visibility
//	@Accept			json
//	@Produce		json
//	@Param			action	path		string			true	"Action"	Enums(hide, isolate, highlight, copy)
//	@Param			body	body		ActionRequest	true	"Region id or range"
//	@Success		200		{object}	ActionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewer/actions/{action} [post]
func (h *Handler) ResidueAction(w http.ResponseWriter, r *http.Request) {
	action, err := visibility.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, "residue action", err)
		return
	}
	var req ActionRequest
	if !decode(w, r, &req) {
		return
	}

	var region models.SelectionRegion
	if req.RegionID != "" {
		region, err = h.session.Region(req.RegionID)
	} else {
		region, err = h.session.RegionForRange(req.ChainID, req.Start, req.End)
	}
	if err != nil {
		writeError(w, "residue action", err)
		return
	}

	ok, err := h.session.ResidueAction(r.Context(), action, region)
	if err != nil {
		writeError(w, "residue action", err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ActionResponse{Action: string(action), Success: ok})
}

// ListOperations handles GET /api/viewer/operations.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ops, err := h.session.Operations(limit)
	if err != nil {
		writeError(w, "list operations", err)
		return
	}
	writeJSON(w, http.StatusOK, OperationsResponse{Operations: ops})
}
