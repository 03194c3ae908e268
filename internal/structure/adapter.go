// Package structure defines the contract seqsync needs from a 3D structure
// engine and ships an in-memory implementation of it.
package structure

import (
	"context"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/parser"
)

// Ref identifies the loaded structure.
type Ref struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
}

// Component is a persistent, named subset of the structure's atoms.
type Component struct {
	Ref       string `json:"ref"`
	Label     string `json:"label"`
	Hidden    bool   `json:"hidden"`
	AtomCount int    `json:"atom_count"`
}

// Locus is an engine-side handle to a concrete set of atoms.
type Locus interface {
	Count() int
}

// ModifyResult reports the effect of a subtraction.
type ModifyResult struct {
	Components int `json:"components"`
	Removed    int `json:"removed"`
}

// Pick is an atom picked in the 3D view, reported in both numbering schemes.
type Pick struct {
	LabelChain string `json:"label_chain"`
	LabelSeq   int    `json:"label_seq"`
	AuthChain  string `json:"auth_chain"`
	AuthSeq    int    `json:"auth_seq"`
}

// Chain returns the chain id and residue number for the given mode.
func (p Pick) Chain(mode addressing.Mode) (string, int) {
	if mode == addressing.Auth {
		return p.AuthChain, p.AuthSeq
	}
	return p.LabelChain, p.LabelSeq
}

// Adapter is the narrow surface of the 3D engine used by the visibility engine
// and the selection bridge. Every call is a suspension point.
type Adapter interface {
	// LoadStructure replaces all prior structures and components.
	LoadStructure(ctx context.Context, sourceID string) error
	// CurrentStructure returns the primary loaded structure.
	CurrentStructure() (Ref, bool)
	// QueryLocus resolves d against atoms still present in the component tree.
	QueryLocus(ctx context.Context, d addressing.Descriptor) (Locus, error)
	SetCurrentSelection(ctx context.Context, l Locus) error
	ClearSelection(ctx context.Context) error
	// SubtractCurrentSelectionFromComponents removes the current selection's
	// atoms from each given component. The change cannot be undone.
	SubtractCurrentSelectionFromComponents(ctx context.Context, components []Component) (ModifyResult, error)
	// HighlightOnly replaces any existing highlight with l.
	HighlightOnly(ctx context.Context, l Locus) error
	ClearHighlights(ctx context.Context) error
	ListComponents(ctx context.Context) ([]Component, error)
	// ChainIDs enumerates polymer chain identifiers in the given mode.
	ChainIDs(ctx context.Context, mode addressing.Mode) ([]string, error)
}

// Source opens structure manifests by source id.
type Source interface {
	Open(ctx context.Context, sourceID string) (*parser.Structure, error)
}
