package structure

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/parser"
)

// Component refs created by Scene.
const (
	ComponentPolymer = "polymer"
	ComponentLigand  = "ligand"
	ComponentWater   = "water"
)

type atom struct {
	labelChain string
	authChain  string
	labelSeq   int
	authSeq    int
}

func (a atom) chain(mode addressing.Mode) (string, int) {
	if mode == addressing.Auth {
		return a.authChain, a.authSeq
	}
	return a.labelChain, a.labelSeq
}

type component struct {
	ref    string
	label  string
	hidden bool
	member []bool
	count  int
}

type locus struct {
	load  uint64
	atoms []int
}

func (l *locus) Count() int { return len(l.atoms) }

// Scene is an in-memory Adapter. It models atoms and components closely
// enough to exercise the select-then-subtract protocol without a renderer.
// Water atoms carry no chain id and are never matched by chain queries.
type Scene struct {
	mu     sync.Mutex
	source Source

	load       uint64
	ref        *Ref
	chains     []parser.Chain
	atoms      []atom
	components []*component
	current    *locus
	highlight  *locus
}

var _ Adapter = (*Scene)(nil)

// NewScene creates an empty scene that loads structures from src.
func NewScene(src Source) *Scene {
	return &Scene{source: src}
}

// LoadStructure opens sourceID and replaces the scene contents.
func (s *Scene) LoadStructure(ctx context.Context, sourceID string) error {
	st, err := s.source.Open(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("scene: load %s: %w", sourceID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var atoms []atom
	polymer := []int{}
	ligand := []int{}
	water := []int{}
	for _, c := range st.Chains {
		rs := c.Residues()
		for _, r := range rs {
			for k := 0; k < c.AtomsPerResidue; k++ {
				polymer = append(polymer, len(atoms))
				atoms = append(atoms, atom{labelChain: c.LabelID, authChain: c.AuthID, labelSeq: r.LabelSeq, authSeq: r.AuthSeq})
			}
		}
		next := rs[len(rs)-1].LabelSeq + 1
		for _, l := range st.Ligands {
			if l.Chain != c.LabelID {
				continue
			}
			for k := 0; k < l.Atoms; k++ {
				ligand = append(ligand, len(atoms))
				atoms = append(atoms, atom{labelChain: c.LabelID, authChain: c.AuthID, labelSeq: next, authSeq: next + c.AuthOffset})
			}
			next++
		}
	}
	for k := 0; k < st.Waters; k++ {
		water = append(water, len(atoms))
		atoms = append(atoms, atom{})
	}

	comps := []*component{newComponent(ComponentPolymer, "Polymer", len(atoms), polymer)}
	if len(ligand) > 0 {
		comps = append(comps, newComponent(ComponentLigand, "Ligand", len(atoms), ligand))
	}
	if len(water) > 0 {
		comps = append(comps, newComponent(ComponentWater, "Water", len(atoms), water))
	}

	name := st.Name
	if name == "" {
		name = st.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load++
	s.ref = &Ref{ID: st.ID, SourceID: sourceID, Name: name}
	s.chains = st.Chains
	s.atoms = atoms
	s.components = comps
	s.current = nil
	s.highlight = nil
	return nil
}

func newComponent(ref, label string, total int, idx []int) *component {
	c := &component{ref: ref, label: label, member: make([]bool, total), count: len(idx)}
	for _, i := range idx {
		c.member[i] = true
	}
	return c
}

// CurrentStructure returns the loaded structure.
func (s *Scene) CurrentStructure() (Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return Ref{}, false
	}
	return *s.ref, true
}

// QueryLocus returns atoms matching d that are still in some component.
func (s *Scene) QueryLocus(_ context.Context, d addressing.Descriptor) (Locus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return nil, fmt.Errorf("scene: query: %w", apperr.ErrNotInitialized)
	}
	l := &locus{load: s.load}
	for i, a := range s.atoms {
		chain, seq := a.chain(d.Mode)
		if chain == "" || !d.Matches(chain, seq) {
			continue
		}
		if s.inTree(i) {
			l.atoms = append(l.atoms, i)
		}
	}
	return l, nil
}

func (s *Scene) inTree(i int) bool {
	for _, c := range s.components {
		if c.member[i] {
			return true
		}
	}
	return false
}

func (s *Scene) own(l Locus) (*locus, error) {
	sl, ok := l.(*locus)
	if !ok || sl == nil {
		return nil, fmt.Errorf("scene: foreign locus %T: %w", l, apperr.ErrInvalidArgument)
	}
	if sl.load != s.load {
		return nil, fmt.Errorf("scene: locus from a previous load: %w", apperr.ErrStale)
	}
	return sl, nil
}

// SetCurrentSelection makes l the selection used by subtraction.
func (s *Scene) SetCurrentSelection(_ context.Context, l Locus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.own(l)
	if err != nil {
		return err
	}
	s.current = sl
	return nil
}

// ClearSelection drops the current selection.
func (s *Scene) ClearSelection(context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

// SubtractCurrentSelectionFromComponents removes the selected atoms from each
// named component.
func (s *Scene) SubtractCurrentSelectionFromComponents(ctx context.Context, components []Component) (ModifyResult, error) {
	if err := ctx.Err(); err != nil {
		return ModifyResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ModifyResult{}, fmt.Errorf("scene: subtract without a current selection: %w", apperr.ErrInvalidArgument)
	}
	if s.current.load != s.load {
		return ModifyResult{}, fmt.Errorf("scene: subtract: %w", apperr.ErrStale)
	}
	var res ModifyResult
	for _, want := range components {
		c := s.component(want.Ref)
		if c == nil {
			return res, fmt.Errorf("scene: component %q: %w", want.Ref, apperr.ErrNotFound)
		}
		res.Components++
		for _, i := range s.current.atoms {
			if c.member[i] {
				c.member[i] = false
				c.count--
				res.Removed++
			}
		}
	}
	return res, nil
}

func (s *Scene) component(ref string) *component {
	for _, c := range s.components {
		if c.ref == ref {
			return c
		}
	}
	return nil
}

// HighlightOnly replaces the highlight.
func (s *Scene) HighlightOnly(_ context.Context, l Locus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.own(l)
	if err != nil {
		return err
	}
	s.highlight = sl
	return nil
}

// ClearHighlights removes any highlight.
func (s *Scene) ClearHighlights(context.Context) error {
	s.mu.Lock()
	s.highlight = nil
	s.mu.Unlock()
	return nil
}

// HighlightCount returns the number of highlighted atoms.
func (s *Scene) HighlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highlight == nil {
		return 0
	}
	return len(s.highlight.atoms)
}

// ListComponents returns the component tree in creation order.
func (s *Scene) ListComponents(context.Context) ([]Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return nil, fmt.Errorf("scene: list components: %w", apperr.ErrNotInitialized)
	}
	out := make([]Component, len(s.components))
	for i, c := range s.components {
		out[i] = Component{Ref: c.ref, Label: c.label, Hidden: c.hidden, AtomCount: c.count}
	}
	return out, nil
}

// SetHidden toggles a component's visibility flag.
func (s *Scene) SetHidden(ref string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.component(ref)
	if c == nil {
		return fmt.Errorf("scene: component %q: %w", ref, apperr.ErrNotFound)
	}
	c.hidden = hidden
	return nil
}

// ChainIDs returns polymer chain ids in manifest order.
func (s *Scene) ChainIDs(_ context.Context, mode addressing.Mode) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return nil, fmt.Errorf("scene: chain ids: %w", apperr.ErrNotInitialized)
	}
	out := make([]string, len(s.chains))
	for i := range s.chains {
		out[i] = s.chains[i].ChainID(mode)
	}
	return out, nil
}

// VisibleCount counts atoms matching d that belong to a non-hidden component.
func (s *Scene) VisibleCount(d addressing.Descriptor) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, a := range s.atoms {
		chain, seq := a.chain(d.Mode)
		if chain == "" || !d.Matches(chain, seq) {
			continue
		}
		for _, c := range s.components {
			if !c.hidden && c.member[i] {
				n++
				break
			}
		}
	}
	return n
}

// PickAt returns the pick record for a residue, as the 3D view would report it.
func (s *Scene) PickAt(mode addressing.Mode, chainID string, seq int) (Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.atoms {
		chain, n := a.chain(mode)
		if chain == chainID && n == seq {
			return Pick{LabelChain: a.labelChain, LabelSeq: a.labelSeq, AuthChain: a.authChain, AuthSeq: a.authSeq}, nil
		}
	}
	return Pick{}, fmt.Errorf("scene: residue %s:%d: %w", chainID, seq, apperr.ErrNotFound)
}
