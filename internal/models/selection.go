package models

import "fmt"

// SelectionRegion is a contiguous, single-chain interval [Start,End].
type SelectionRegion struct {
	ID       string `json:"id"`
	ChainID  string `json:"chain_id"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Sequence string `json:"sequence"`
	Label    string `json:"label,omitempty"`
}

// Contains reports whether pos lies in [Start,End].
func (r SelectionRegion) Contains(pos int) bool {
	return r.Start <= pos && pos <= r.End
}

// Len returns the number of positions the region spans.
func (r SelectionRegion) Len() int {
	return r.End - r.Start + 1
}

// Range converts the region to a ResidueRange.
func (r SelectionRegion) Range() ResidueRange {
	return ResidueRange{ChainID: r.ChainID, Start: r.Start, End: r.End}
}

// Validate enforces Start <= End and, when Sequence is set, the length invariant.
func (r SelectionRegion) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("region: id is required")
	}
	if r.ChainID == "" {
		return fmt.Errorf("region %s: chain is required", r.ID)
	}
	if r.Start > r.End {
		return fmt.Errorf("region %s: start %d after end %d", r.ID, r.Start, r.End)
	}
	if r.Sequence != "" && len(r.Sequence) != r.Len() {
		return fmt.Errorf("region %s: sequence length %d does not match span %d", r.ID, len(r.Sequence), r.Len())
	}
	return nil
}

// DefaultLabel renders a short "A:10-20" style label.
func (r SelectionRegion) DefaultLabel() string {
	if r.Start == r.End {
		return fmt.Sprintf("%s:%d", r.ChainID, r.Start)
	}
	return fmt.Sprintf("%s:%d-%d", r.ChainID, r.Start, r.End)
}

// SequenceSelection is the authoritative selection state. Regions may overlap;
// a residue is selected when any region of its chain contains it.
type SequenceSelection struct {
	Regions      []SelectionRegion `json:"regions"`
	ActiveRegion *string           `json:"active_region"`
	Clipboard    *string           `json:"clipboard"`
}

// ResidueRange addresses residues [Start,End] of one chain.
type ResidueRange struct {
	ChainID string `json:"chain_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

func (r ResidueRange) String() string {
	return fmt.Sprintf("%s:%d-%d", r.ChainID, r.Start, r.End)
}
