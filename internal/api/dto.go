package api

import (
	"github.com/starford/seqsync/internal/catalog"
	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/structure"
)

// ManifestRequest is the request body for creating or updating a structure manifest.
type ManifestRequest struct {
	Content string `json:"content" example:"id: 1abc\nchains: ..." validate:"required"`
}

// MoveRequest relocates a manifest within the structures directory.
type MoveRequest struct {
	Path string `json:"path" example:"antibodies/1abc.yaml" validate:"required"`
}

// StructureDetail is a catalogue row with its manifest (aliased from the domain layer).
type StructureDetail = catalog.Detail

// StructureListResponse wraps paginated catalogue listings.
type StructureListResponse struct {
	Structures []state.StructureRow `json:"structures" validate:"required"`
	Total      int                  `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []state.SearchResult `json:"results" validate:"required"`
}

// UploadResponse is returned after a successful manifest upload.
type UploadResponse struct {
	Filename  string `json:"filename" example:"1abc.yaml" validate:"required"`
	Size      int64  `json:"size" example:"2048" validate:"required"`
	Structure string `json:"structure" example:"1abc" validate:"required"`
}

// LoadRequest selects the structure to view.
type LoadRequest struct {
	ID string `json:"id" example:"1abc" validate:"required"`
}

// ChainsResponse lists the chains of the loaded structure.
type ChainsResponse struct {
	Mode   string   `json:"mode" example:"label"`
	Chains []string `json:"chains" validate:"required"`
}

// ComponentsResponse lists adapter components.
type ComponentsResponse struct {
	Components []structure.Component `json:"components" validate:"required"`
}

// RangeRequest addresses chain residues Start..End.
type RangeRequest struct {
	ChainID string `json:"chain_id" example:"A" validate:"required"`
	Start   int    `json:"start" example:"10"`
	End     int    `json:"end" example:"20"`
	Add     bool   `json:"add,omitempty"`
}

// HideRequest hides a chain, or part of it when a bound is present. A lone
// start (or end) hides that one residue.
type HideRequest struct {
	ChainID string `json:"chain_id" example:"A" validate:"required"`
	Start   *int   `json:"start,omitempty" example:"10"`
	End     *int   `json:"end,omitempty" example:"20"`
}

// ReplaceSelectionRequest replaces every selected region.
type ReplaceSelectionRequest struct {
	Regions []models.SelectionRegion `json:"regions"`
}

// ActiveRequest marks a region as active.
type ActiveRequest struct {
	ID string `json:"id" validate:"required"`
}

// MergeResponse reports how many regions a merge removed.
type MergeResponse struct {
	Merged    int                      `json:"merged"`
	Selection models.SequenceSelection `json:"selection"`
}

// ResidueRequest names a single residue for drag events.
type ResidueRequest struct {
	ChainID  string `json:"chain_id" example:"A" validate:"required"`
	Position int    `json:"position" example:"12" validate:"required"`
}

// PointerUpRequest commits a drag.
type PointerUpRequest struct {
	Add bool `json:"add"`
}

// HoverRequest previews residues of one chain.
type HoverRequest struct {
	ChainID   string `json:"chain_id" example:"A" validate:"required"`
	Positions []int  `json:"positions" validate:"required"`
}

// PickRequest reports an atom picked in the 3D view.
type PickRequest struct {
	structure.Pick
	Add bool `json:"add"`
}

// PickResponse reports whether the pick became a region.
type PickResponse struct {
	Promoted bool                    `json:"promoted"`
	Region   *models.SelectionRegion `json:"region,omitempty"`
}

// ActionRequest targets a residue action either at an existing region or at a range.
type ActionRequest struct {
	RegionID string `json:"region_id,omitempty"`
	RangeRequest
}

// ActionResponse reports a residue action.
type ActionResponse struct {
	Action  string `json:"action" example:"hide"`
	Success bool   `json:"success"`
}

// OperationsResponse wraps the operation log.
type OperationsResponse struct {
	Operations []state.Operation `json:"operations" validate:"required"`
}
