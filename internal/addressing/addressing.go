// Package addressing translates chain/residue coordinates into structural
// query descriptors. Label identifiers are assigned at the structure-file level;
// auth identifiers are author-assigned and may differ for the same chain. A
// descriptor always carries exactly one mode.
package addressing

import (
	"fmt"
	"strings"

	"github.com/starford/seqsync/internal/apperr"
)

// Mode selects which identifier scheme a descriptor matches against.
type Mode string

const (
	Label Mode = "label"
	Auth  Mode = "auth"
)

// ParseMode accepts "label" or "auth" (case-insensitive). Empty means Label.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Label):
		return Label, nil
	case string(Auth):
		return Auth, nil
	default:
		return "", fmt.Errorf("addressing: unknown mode %q: %w", s, apperr.ErrInvalidArgument)
	}
}

func (m Mode) chainField() string { return string(m) + "_asym_id" }
func (m Mode) seqField() string   { return string(m) + "_seq_id" }

// Term matches atoms of one chain, optionally restricted to residues [Start,End].
type Term struct {
	ChainID string
	Start   int
	End     int
	// WholeChain ignores Start/End.
	WholeChain bool
}

// Matches reports whether a residue with the given chain id and sequence number
// satisfies the term.
func (t Term) Matches(chainID string, seq int) bool {
	if chainID != t.ChainID {
		return false
	}
	return t.WholeChain || (t.Start <= seq && seq <= t.End)
}

// Descriptor is a union of terms evaluated in a single mode.
type Descriptor struct {
	Mode  Mode
	Terms []Term
}

// Matches reports whether any term matches the residue.
func (d Descriptor) Matches(chainID string, seq int) bool {
	for _, t := range d.Terms {
		if t.Matches(chainID, seq) {
			return true
		}
	}
	return false
}

// Empty reports whether the descriptor has no terms and therefore matches nothing.
func (d Descriptor) Empty() bool { return len(d.Terms) == 0 }

// Chains returns the distinct chain ids referenced by the descriptor.
func (d Descriptor) Chains() []string {
	seen := make(map[string]struct{}, len(d.Terms))
	var out []string
	for _, t := range d.Terms {
		if _, ok := seen[t.ChainID]; ok {
			continue
		}
		seen[t.ChainID] = struct{}{}
		out = append(out, t.ChainID)
	}
	return out
}

func (d Descriptor) String() string {
	if d.Empty() {
		return "(none)"
	}
	parts := make([]string, len(d.Terms))
	for i, t := range d.Terms {
		switch {
		case t.WholeChain:
			parts[i] = fmt.Sprintf("(%s == %q)", d.Mode.chainField(), t.ChainID)
		case t.Start == t.End:
			parts[i] = fmt.Sprintf("(%s == %q and %s == %d)", d.Mode.chainField(), t.ChainID, d.Mode.seqField(), t.Start)
		default:
			parts[i] = fmt.Sprintf("(%s == %q and %s in %d..%d)", d.Mode.chainField(), t.ChainID, d.Mode.seqField(), t.Start, t.End)
		}
	}
	return strings.Join(parts, " or ")
}

// Chain builds a descriptor for every residue of a chain.
func Chain(mode Mode, chainID string) (Descriptor, error) {
	if err := checkChain(mode, chainID); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Mode: mode, Terms: []Term{{ChainID: chainID, WholeChain: true}}}, nil
}

// Range builds a descriptor for exactly one residue.
func Range(mode Mode, chainID string, pos int) (Descriptor, error) {
	return Span(mode, chainID, pos, pos)
}

// Span builds a descriptor for residues [start,end] of a chain.
func Span(mode Mode, chainID string, start, end int) (Descriptor, error) {
	if err := checkChain(mode, chainID); err != nil {
		return Descriptor{}, err
	}
	if start > end {
		return Descriptor{}, fmt.Errorf("addressing: start %d after end %d: %w", start, end, apperr.ErrInvalidArgument)
	}
	return Descriptor{Mode: mode, Terms: []Term{{ChainID: chainID, Start: start, End: end}}}, nil
}

// Union merges descriptors into one. All inputs must share a mode.
func Union(ds ...Descriptor) (Descriptor, error) {
	if len(ds) == 0 {
		return Descriptor{}, nil
	}
	out := Descriptor{Mode: ds[0].Mode}
	for _, d := range ds {
		if d.Mode != out.Mode {
			return Descriptor{}, fmt.Errorf("addressing: cannot mix %s and %s identifiers: %w", out.Mode, d.Mode, apperr.ErrInvalidArgument)
		}
		out.Terms = append(out.Terms, d.Terms...)
	}
	return out, nil
}

func checkChain(mode Mode, chainID string) error {
	if mode != Label && mode != Auth {
		return fmt.Errorf("addressing: unknown mode %q: %w", mode, apperr.ErrInvalidArgument)
	}
	if chainID == "" {
		return fmt.Errorf("addressing: chain id is required: %w", apperr.ErrInvalidArgument)
	}
	return nil
}
