// Package models defines the domain types for seqsync.
package models

import (
	"fmt"
	"strings"
)

// SecondaryStructure classifies a residue's backbone conformation.
type SecondaryStructure string

const (
	SecondaryHelix SecondaryStructure = "helix"
	SecondarySheet SecondaryStructure = "sheet"
	SecondaryLoop  SecondaryStructure = "loop"
)

// GapCode fills positions missing from a gapped chain when slicing a sequence.
const GapCode = "-"

// SequenceResidue is one monomer of a chain. Identity is (ChainID, Position).
type SequenceResidue struct {
	ChainID            string             `json:"chain_id"`
	Position           int                `json:"position"`
	Code               string             `json:"code"`
	SecondaryStructure SecondaryStructure `json:"secondary_structure,omitempty"`
}

// SequenceChain is an ordered list of residues, sorted by position.
// Positions need not be contiguous.
type SequenceChain struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Residues []SequenceResidue `json:"residues"`
}

// Residue returns the residue at pos.
func (c *SequenceChain) Residue(pos int) (SequenceResidue, bool) {
	i, ok := c.search(pos)
	if !ok {
		return SequenceResidue{}, false
	}
	return c.Residues[i], true
}

// search does a binary search over the sorted residue list.
func (c *SequenceChain) search(pos int) (int, bool) {
	lo, hi := 0, len(c.Residues)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if c.Residues[mid].Position < pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(c.Residues) && c.Residues[lo].Position == pos
}

// Slice returns the residue codes for positions in [start,end]. Positions that
// the chain does not contain are filled with GapCode, so the result always has
// end-start+1 characters.
func (c *SequenceChain) Slice(start, end int) string {
	if end < start {
		return ""
	}
	var b strings.Builder
	b.Grow(end - start + 1)
	i, _ := c.search(start)
	for pos := start; pos <= end; pos++ {
		if i < len(c.Residues) && c.Residues[i].Position == pos {
			b.WriteString(c.Residues[i].Code)
			i++
			continue
		}
		b.WriteString(GapCode)
	}
	return b.String()
}

// Bounds returns the first and last residue positions of the chain.
func (c *SequenceChain) Bounds() (first, last int, ok bool) {
	if len(c.Residues) == 0 {
		return 0, 0, false
	}
	return c.Residues[0].Position, c.Residues[len(c.Residues)-1].Position, true
}

// SequenceData is the full sequence view of one loaded structure. It is
// replaced wholesale on every load and never mutated in place.
type SequenceData struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Chains []SequenceChain `json:"chains"`
}

// Chain returns the chain with the given id.
func (d *SequenceData) Chain(id string) (*SequenceChain, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Chains {
		if d.Chains[i].ID == id {
			return &d.Chains[i], true
		}
	}
	return nil, false
}

// ChainIDs returns chain ids in declaration order.
func (d *SequenceData) ChainIDs() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.Chains))
	for i, c := range d.Chains {
		out[i] = c.ID
	}
	return out
}

// Validate checks chain id uniqueness and residue ordering.
func (d *SequenceData) Validate() error {
	seen := make(map[string]struct{}, len(d.Chains))
	for _, c := range d.Chains {
		if c.ID == "" {
			return fmt.Errorf("sequence %s: chain with empty id", d.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("sequence %s: duplicate chain %q", d.ID, c.ID)
		}
		seen[c.ID] = struct{}{}
		for i, r := range c.Residues {
			if !oneLetter(r.Code) {
				return fmt.Errorf("sequence %s: chain %s residue %d has code %q, want one letter",
					d.ID, c.ID, r.Position, r.Code)
			}
			if i > 0 && r.Position <= c.Residues[i-1].Position {
				return fmt.Errorf("sequence %s: chain %s residues not sorted at position %d",
					d.ID, c.ID, r.Position)
			}
		}
	}
	return nil
}

func oneLetter(code string) bool {
	return len(code) == 1 && code[0] >= 'A' && code[0] <= 'Z'
}
