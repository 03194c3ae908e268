package drag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/selection"
)

func chainOf(id string, seq string, first int) models.SequenceChain {
	c := models.SequenceChain{ID: id}
	for i, code := range seq {
		c.Residues = append(c.Residues, models.SequenceResidue{ChainID: id, Position: first + i, Code: string(code)})
	}
	return c
}

func testData() *models.SequenceData {
	return &models.SequenceData{
		ID:   "1abc",
		Name: "test",
		Chains: []models.SequenceChain{
			chainOf("A", "MKTAYIAKQRQISFVKSHFS", 1),
			chainOf("B", "GSHMLEDP", 1),
		},
	}
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}
}

func res(chain string, pos int) models.SequenceResidue {
	return models.SequenceResidue{ChainID: chain, Position: pos}
}

func newTestController(t *testing.T) (*Controller, *selection.Model) {
	t.Helper()
	m := selection.NewModel(0)
	c := NewController(m, WithIDFunc(counterIDs()))
	c.SetSequence(testData())
	return c, m
}

// The candidate spans the drag origin and the residue under the pointer, so the
// order of intermediate enters never changes the committed range.
func TestDrag_OrderIndependent(t *testing.T) {
	orders := [][]int{
		{4, 9, 2, 7},
		{2, 4, 7, 9},
		{9, 7, 4, 2},
		{7, 2, 9, 4},
	}
	for _, last := range []int{2, 9, 5} {
		for _, enters := range orders {
			c, m := newTestController(t)
			if err := c.PointerDown(res("A", 5)); err != nil {
				t.Fatal(err)
			}
			for _, p := range enters {
				c.PointerEnter(res("A", p))
			}
			c.PointerEnter(res("A", last))
			r, err := c.PointerUp(false)
			if err != nil {
				t.Fatal(err)
			}
			wantStart, wantEnd := min(5, last), max(5, last)
			if r.Start != wantStart || r.End != wantEnd {
				t.Errorf("order %v last %d: region = [%d,%d], want [%d,%d]", enters, last, r.Start, r.End, wantStart, wantEnd)
			}
			if !m.IsResidueSelected("A", wantStart) || !m.IsResidueSelected("A", wantEnd) {
				t.Errorf("committed region not selected")
			}
		}
	}
}

func TestDrag_SpanFromOrigin(t *testing.T) {
	c, _ := newTestController(t)
	_ = c.PointerDown(res("A", 10))
	c.PointerEnter(res("A", 3))
	cand, _ := c.Candidate()
	if cand.Start != 3 || cand.End != 10 {
		t.Fatalf("candidate = [%d,%d], want [3,10]", cand.Start, cand.End)
	}
	if cand.Sequence != "AYIAKQRQ" {
		t.Errorf("sequence = %q", cand.Sequence)
	}
	if cand.Label != "A:3-10" {
		t.Errorf("label = %q", cand.Label)
	}
	if cand.ID != "r1" {
		t.Errorf("id = %q, want stable id across enters", cand.ID)
	}
}

func TestDrag_CandidateNotCommittedUntilUp(t *testing.T) {
	c, m := newTestController(t)
	_ = c.PointerDown(res("A", 1))
	c.PointerEnter(res("A", 4))
	if m.Len() != 0 {
		t.Fatal("candidate leaked into model before pointer up")
	}
	r, err := c.PointerUp(false)
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != Idle {
		t.Error("expected idle after pointer up")
	}
	got, ok := m.Region(r.ID)
	if !ok || got.Start != 1 || got.End != 4 || got.Sequence != "MKTA" {
		t.Errorf("committed region = %+v, ok=%v", got, ok)
	}
}

func TestDrag_CrossChainIgnored(t *testing.T) {
	c, _ := newTestController(t)
	_ = c.PointerDown(res("A", 2))
	c.PointerEnter(res("A", 6))
	c.PointerEnter(res("B", 3))
	cand, _ := c.Candidate()
	if cand.ChainID != "A" || cand.Start != 2 || cand.End != 6 {
		t.Errorf("cross-chain enter changed candidate: %+v", cand)
	}
	if c.State() != Dragging {
		t.Error("cross-chain enter should keep dragging")
	}
}

func TestDrag_AddModifier(t *testing.T) {
	c, m := newTestController(t)

	_ = c.PointerDown(res("A", 1))
	first, _ := c.PointerUp(false)
	_ = c.PointerDown(res("B", 2))
	second, _ := c.PointerUp(true)

	sel := m.Selection()
	if len(sel.Regions) != 2 || sel.Regions[0].ID != first.ID || sel.Regions[1].ID != second.ID {
		t.Fatalf("add drag should keep both regions: %+v", sel.Regions)
	}

	_ = c.PointerDown(res("A", 7))
	third, _ := c.PointerUp(false)
	sel = m.Selection()
	if len(sel.Regions) != 1 || sel.Regions[0].ID != third.ID {
		t.Errorf("plain drag should replace: %+v", sel.Regions)
	}
}

func TestDrag_ContextMenuCancels(t *testing.T) {
	c, m := newTestController(t)
	_ = c.PointerDown(res("A", 1))
	c.PointerEnter(res("A", 5))
	if !c.ContextMenu() {
		t.Fatal("context menu should cancel a drag")
	}
	if c.State() != Idle {
		t.Error("expected idle after context menu")
	}
	if _, err := c.PointerUp(false); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("pointer up after cancel: err = %v", err)
	}
	if m.Len() != 0 {
		t.Error("context menu committed the candidate")
	}
	if c.ContextMenu() {
		t.Error("context menu while idle should report no-op")
	}
}

func TestDrag_PointerDownUnknown(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.PointerDown(res("Z", 1)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown chain: err = %v", err)
	}
	if err := c.PointerDown(res("B", 99)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown residue: err = %v", err)
	}
	empty := NewController(selection.NewModel(0))
	if err := empty.PointerDown(res("A", 1)); !errors.Is(err, apperr.ErrNotInitialized) {
		t.Errorf("no sequence: err = %v", err)
	}
}

func TestDrag_CommitFailureReturnsIdle(t *testing.T) {
	m := selection.NewModel(1)
	c := NewController(m, WithIDFunc(counterIDs()))
	c.SetSequence(testData())

	_ = c.PointerDown(res("A", 1))
	_, _ = c.PointerUp(true)
	_ = c.PointerDown(res("A", 3))
	if _, err := c.PointerUp(true); !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Fatalf("err = %v, want constraint violation", err)
	}
	if c.State() != Idle {
		t.Error("controller stuck after failed commit")
	}
}

func TestHover(t *testing.T) {
	m := selection.NewModel(0)
	var previews [][]models.SequenceResidue
	c := NewController(m, WithHighlightFunc(func(rs []models.SequenceResidue) {
		previews = append(previews, rs)
	}))
	c.SetSequence(testData())

	c.Hover(res("A", 3))
	if got := c.Highlighted(); len(got) != 1 || got[0].Position != 3 {
		t.Fatalf("highlighted = %+v", got)
	}
	if m.Len() != 0 {
		t.Error("hover mutated the selection")
	}

	_ = c.PointerDown(res("A", 1))
	c.Hover(res("A", 9))
	if got := c.Highlighted(); len(got) != 1 || got[0].Position != 3 {
		t.Errorf("hover while dragging changed preview: %+v", got)
	}
	c.ContextMenu()

	c.PointerLeave()
	if len(c.Highlighted()) != 0 {
		t.Error("pointer leave did not clear preview")
	}
	if len(previews) != 2 || len(previews[1]) != 0 {
		t.Errorf("preview events = %+v", previews)
	}
}

func TestSlice_GappedChainPadded(t *testing.T) {
	m := selection.NewModel(0)
	c := NewController(m, WithIDFunc(counterIDs()))
	gapped := models.SequenceChain{ID: "G", Residues: []models.SequenceResidue{
		{ChainID: "G", Position: 1, Code: "M"},
		{ChainID: "G", Position: 2, Code: "K"},
		{ChainID: "G", Position: 5, Code: "L"},
	}}
	c.SetSequence(&models.SequenceData{ID: "g", Chains: []models.SequenceChain{gapped}})

	_ = c.PointerDown(res("G", 1))
	c.PointerEnter(res("G", 5))
	r, err := c.PointerUp(false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Sequence != "MK--L" {
		t.Errorf("sequence = %q, want MK--L", r.Sequence)
	}
}
