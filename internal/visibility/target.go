package visibility

import (
	"fmt"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
)

// Action names a visibility or residue operation.
type Action string

const (
	ActionLoad         Action = "load"
	ActionHide         Action = "hide"
	ActionIsolate      Action = "isolate"
	ActionIsolateRange Action = "isolate-range"
	ActionShowAll      Action = "show-all"
	ActionHighlight    Action = "highlight"
	ActionCopy         Action = "copy"
)

// ParseAction validates a residue-action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionHide, ActionIsolate, ActionHighlight, ActionCopy:
		return a, nil
	}
	return "", fmt.Errorf("visibility: unknown action %q: %w", s, apperr.ErrInvalidArgument)
}

// Target is a whole chain or a residue range within one chain.
type Target struct {
	ChainID string `json:"chain_id"`
	Start   int    `json:"start,omitempty"`
	End     int    `json:"end,omitempty"`
	Whole   bool   `json:"whole"`
}

// ChainTarget addresses every residue of a chain.
func ChainTarget(chainID string) Target {
	return Target{ChainID: chainID, Whole: true}
}

// RangeTarget addresses residues [start,end] of a chain.
func RangeTarget(chainID string, start, end int) Target {
	return Target{ChainID: chainID, Start: start, End: end}
}

// BoundedTarget builds a target from optional bounds. With neither bound it
// is the whole chain; with one bound it is that single residue. Zero is a
// valid bound in auth numbering, so absence is nil, never 0.
func BoundedTarget(chainID string, start, end *int) Target {
	switch {
	case start == nil && end == nil:
		return ChainTarget(chainID)
	case end == nil:
		return RangeTarget(chainID, *start, *start)
	case start == nil:
		return RangeTarget(chainID, *end, *end)
	}
	return RangeTarget(chainID, *start, *end)
}

// Descriptor builds the structural query for t.
func (t Target) Descriptor(mode addressing.Mode) (addressing.Descriptor, error) {
	if t.Whole {
		return addressing.Chain(mode, t.ChainID)
	}
	return addressing.Span(mode, t.ChainID, t.Start, t.End)
}

func (t Target) String() string {
	if t.Whole {
		return t.ChainID
	}
	return fmt.Sprintf("%s:%d-%d", t.ChainID, t.Start, t.End)
}

// Result is the outcome of one operation, published as a
// visibility-operation-result event.
type Result struct {
	Action  Action `json:"action"`
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	// NoOp is set when the operation succeeded without touching the scene.
	NoOp bool `json:"no_op,omitempty"`
	// Steps counts hide steps that mutated the component tree.
	Steps   int   `json:"steps"`
	Removed int   `json:"removed"`
	Err     error `json:"-"`
}
