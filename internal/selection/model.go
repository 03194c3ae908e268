// Package selection holds the multi-region sequence selection and its
// mutation laws.
package selection

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/models"
)

// Listener receives the full selection after every successful mutation.
type Listener func(models.SequenceSelection)

// Model owns the current SequenceSelection.
//
// Every successful mutation emits exactly one selection-changed notification
// carrying a snapshot of the whole state. Listeners run while the model lock is
// held, so they must not call back into the model.
type Model struct {
	mu sync.Mutex

	regions   []models.SelectionRegion
	active    string
	clipboard *string
	byChain   map[string][]models.SelectionRegion

	maxSelections int

	listeners map[int]Listener
	nextID    int
}

// NewModel creates an empty model. maxSelections <= 0 means unlimited.
func NewModel(maxSelections int) *Model {
	return &Model{
		maxSelections: maxSelections,
		byChain:       make(map[string][]models.SelectionRegion),
		listeners:     make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it.
func (m *Model) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// AddRegion inserts r, or replaces the region with the same id, and makes it active.
func (m *Model) AddRegion(r models.SelectionRegion) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("selection: add: %v: %w", err, apperr.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(r.ID); i >= 0 {
		m.regions[i] = r
	} else {
		if m.maxSelections > 0 && len(m.regions) >= m.maxSelections {
			return fmt.Errorf("selection: add: limit of %d regions reached: %w", m.maxSelections, apperr.ErrConstraintViolation)
		}
		m.regions = append(m.regions, r)
	}
	m.active = r.ID
	m.changed()
	return nil
}

// RemoveRegion deletes the region with the given id. Removing the active region
// clears the active marker.
func (m *Model) RemoveRegion(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("selection: region %q: %w", id, apperr.ErrNotFound)
	}
	m.regions = slices.Delete(m.regions, i, i+1)
	if m.active == id {
		m.active = ""
	}
	m.changed()
	return nil
}

// ReplaceSelection sets the region list to exactly rs. Later duplicates of an
// id overwrite earlier ones in place. The last region becomes active.
func (m *Model) ReplaceSelection(rs ...models.SelectionRegion) error {
	next := make([]models.SelectionRegion, 0, len(rs))
	pos := make(map[string]int, len(rs))
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("selection: replace: %v: %w", err, apperr.ErrInvalidArgument)
		}
		if i, ok := pos[r.ID]; ok {
			next[i] = r
			continue
		}
		pos[r.ID] = len(next)
		next = append(next, r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSelections > 0 && len(next) > m.maxSelections {
		return fmt.Errorf("selection: replace: %d regions exceeds limit of %d: %w", len(next), m.maxSelections, apperr.ErrConstraintViolation)
	}
	m.regions = next
	m.active = ""
	if len(rs) > 0 {
		m.active = rs[len(rs)-1].ID
	}
	m.changed()
	return nil
}

// ClearSelection drops every region. The clipboard is preserved.
func (m *Model) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = nil
	m.active = ""
	m.changed()
}

// SetActive marks an existing region as active.
func (m *Model) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(id) < 0 {
		return fmt.Errorf("selection: region %q: %w", id, apperr.ErrNotFound)
	}
	m.active = id
	m.changed()
	return nil
}

// SetClipboard stores copied sequence text.
func (m *Model) SetClipboard(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clipboard = &text
	m.changed()
}

// Merge coalesces overlapping or adjacent regions of the same chain. It only
// runs when asked; the model never merges on its own. The merged region keeps
// the id and label of the first region in selection order.
func (m *Model) Merge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := make([]string, 0)
	groups := make(map[string][]models.SelectionRegion)
	for _, r := range m.regions {
		if _, ok := groups[r.ChainID]; !ok {
			order = append(order, r.ChainID)
		}
		groups[r.ChainID] = append(groups[r.ChainID], r)
	}

	var out []models.SelectionRegion
	for _, chain := range order {
		out = append(out, mergeChain(groups[chain])...)
	}
	merged := len(m.regions) - len(out)
	if merged == 0 {
		return 0
	}
	m.regions = out
	if m.indexOf(m.active) < 0 {
		m.active = ""
	}
	m.changed()
	return merged
}

// mergeChain merges regions of one chain, preserving first-seen order.
func mergeChain(rs []models.SelectionRegion) []models.SelectionRegion {
	idx := make([]int, len(rs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return rs[idx[a]].Start < rs[idx[b]].Start })

	type group struct {
		first int
		r     models.SelectionRegion
		parts []models.SelectionRegion
	}
	var groups []*group
	for _, i := range idx {
		r := rs[i]
		if n := len(groups); n > 0 && r.Start <= groups[n-1].r.End+1 {
			g := groups[n-1]
			if r.End > g.r.End {
				g.r.End = r.End
			}
			if i < g.first {
				g.first = i
				g.r.ID, g.r.Label = r.ID, r.Label
			}
			g.parts = append(g.parts, r)
			continue
		}
		groups = append(groups, &group{first: i, r: r, parts: []models.SelectionRegion{r}})
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].first < groups[b].first })

	out := make([]models.SelectionRegion, len(groups))
	for i, g := range groups {
		g.r.Sequence = mergeSequence(g.r.Start, g.r.End, g.parts)
		out[i] = g.r
	}
	return out
}

// mergeSequence rebuilds the residue codes of a merged span from its parts.
// If any part lacks a sequence the result is left empty.
func mergeSequence(start, end int, parts []models.SelectionRegion) string {
	buf := make([]byte, end-start+1)
	for _, p := range parts {
		if p.Sequence == "" {
			return ""
		}
		copy(buf[p.Start-start:], p.Sequence)
	}
	return string(buf)
}

// IsResidueSelected reports whether any region of chainID contains pos.
func (m *Model) IsResidueSelected(chainID string, pos int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byChain[chainID] {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}

// Selection returns a snapshot of the current state.
func (m *Model) Selection() models.SequenceSelection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Region returns the region with the given id.
func (m *Model) Region(id string) (models.SelectionRegion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.regions[i], true
	}
	return models.SelectionRegion{}, false
}

// Ranges returns the residue range of every region, in region order.
func (m *Model) Ranges() []models.ResidueRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ResidueRange, len(m.regions))
	for i, r := range m.regions {
		out[i] = r.Range()
	}
	return out
}

// Len returns the number of regions.
func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regions)
}

func (m *Model) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, r := range m.regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) reindex() {
	byChain := make(map[string][]models.SelectionRegion, len(m.byChain))
	for _, r := range m.regions {
		byChain[r.ChainID] = append(byChain[r.ChainID], r)
	}
	m.byChain = byChain
}

func (m *Model) snapshot() models.SequenceSelection {
	sel := models.SequenceSelection{Regions: slices.Clone(m.regions)}
	if sel.Regions == nil {
		sel.Regions = []models.SelectionRegion{}
	}
	if m.active != "" {
		a := m.active
		sel.ActiveRegion = &a
	}
	if m.clipboard != nil {
		c := *m.clipboard
		sel.Clipboard = &c
	}
	return sel
}

// changed rebuilds the chain index and notifies listeners. Caller holds mu.
func (m *Model) changed() {
	m.reindex()
	if len(m.listeners) == 0 {
		return
	}
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		m.listeners[id](m.snapshot())
	}
}
