// Package drag turns pointer events over the sequence view into selection
// regions. A drag holds a transient candidate region that is written into the
// selection model only when the pointer is released.
package drag

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/models"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Committer is the part of the selection model a drag commits into.
type Committer interface {
	AddRegion(r models.SelectionRegion) error
	ReplaceSelection(rs ...models.SelectionRegion) error
}

// HighlightFunc is called with the hover preview whenever it changes.
type HighlightFunc func([]models.SequenceResidue)

// Controller is the Idle -> Dragging -> Idle state machine.
type Controller struct {
	mu sync.Mutex

	target      Committer
	data        *models.SequenceData
	newID       func() string
	onHighlight HighlightFunc
	logger      *slog.Logger

	state     State
	dragStart models.SequenceResidue
	candidate models.SelectionRegion

	highlighted []models.SequenceResidue
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDFunc overrides region id generation.
func WithIDFunc(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithHighlightFunc sets the hover-preview callback.
func WithHighlightFunc(fn HighlightFunc) Option {
	return func(c *Controller) { c.onHighlight = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates an idle controller committing into target.
func NewController(target Committer, opts ...Option) *Controller {
	c := &Controller{
		target: target,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSequence installs the sequence of a newly loaded structure and resets
// any drag or hover state.
func (c *Controller) SetSequence(data *models.SequenceData) {
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	c.Reset()
}

// Reset abandons an in-flight drag and clears the hover preview.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = Idle
	c.candidate = models.SelectionRegion{}
	cleared := len(c.highlighted) > 0
	c.highlighted = nil
	c.mu.Unlock()
	if cleared {
		c.emitHighlight(nil)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Candidate returns the transient region while dragging.
func (c *Controller) Candidate() (models.SelectionRegion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return models.SelectionRegion{}, false
	}
	return c.candidate, true
}

// Highlighted returns the hover preview.
func (c *Controller) Highlighted() []models.SequenceResidue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.SequenceResidue, len(c.highlighted))
	copy(out, c.highlighted)
	return out
}

// PointerDown starts a drag at res with a single-residue candidate.
// A pointer-down while already dragging restarts the drag.
func (c *Controller) PointerDown(res models.SequenceResidue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	chain, err := c.chain(res.ChainID)
	if err != nil {
		return err
	}
	if _, ok := chain.Residue(res.Position); !ok {
		return fmt.Errorf("drag: residue %s:%d: %w", res.ChainID, res.Position, apperr.ErrNotFound)
	}
	c.state = Dragging
	c.dragStart = res
	c.candidate = c.regionFor(chain, res.Position, res.Position)
	c.candidate.ID = c.newID()
	return nil
}

// PointerEnter extends the candidate to cover res. Entering a residue of another
// chain leaves the candidate unchanged. It is a no-op while idle.
func (c *Controller) PointerEnter(res models.SequenceResidue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dragging || res.ChainID != c.dragStart.ChainID {
		return
	}
	chain, err := c.chain(res.ChainID)
	if err != nil {
		return
	}
	start, end := c.dragStart.Position, res.Position
	if end < start {
		start, end = end, start
	}
	id := c.candidate.ID
	c.candidate = c.regionFor(chain, start, end)
	c.candidate.ID = id
}

// PointerUp ends the drag. With add held the candidate is added to the
// selection, otherwise it replaces it. The controller is idle afterwards even
// when the commit fails.
func (c *Controller) PointerUp(add bool) (models.SelectionRegion, error) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return models.SelectionRegion{}, fmt.Errorf("drag: pointer up while idle: %w", apperr.ErrInvalidArgument)
	}
	r := c.candidate
	c.state = Idle
	c.candidate = models.SelectionRegion{}
	c.mu.Unlock()

	var err error
	if add {
		err = c.target.AddRegion(r)
	} else {
		err = c.target.ReplaceSelection(r)
	}
	if err != nil {
		c.logger.Warn("drag: commit failed",
			slog.String("region", r.Label),
			slog.Bool("add", add),
			slog.String("error", err.Error()))
		return models.SelectionRegion{}, err
	}
	return r, nil
}

// ContextMenu abandons an in-flight drag without committing.
func (c *Controller) ContextMenu() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return false
	}
	c.state = Idle
	c.candidate = models.SelectionRegion{}
	return true
}

// Hover updates the preview while idle. It never touches the selection.
func (c *Controller) Hover(res ...models.SequenceResidue) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return
	}
	c.highlighted = append(c.highlighted[:0:0], res...)
	out := c.highlighted
	c.mu.Unlock()
	c.emitHighlight(out)
}

// PointerLeave clears the hover preview.
func (c *Controller) PointerLeave() {
	c.mu.Lock()
	if len(c.highlighted) == 0 {
		c.mu.Unlock()
		return
	}
	c.highlighted = nil
	c.mu.Unlock()
	c.emitHighlight(nil)
}

func (c *Controller) emitHighlight(rs []models.SequenceResidue) {
	if c.onHighlight == nil {
		return
	}
	out := make([]models.SequenceResidue, len(rs))
	copy(out, rs)
	c.onHighlight(out)
}

func (c *Controller) chain(id string) (*models.SequenceChain, error) {
	if c.data == nil {
		return nil, fmt.Errorf("drag: %w", apperr.ErrNotInitialized)
	}
	chain, ok := c.data.Chain(id)
	if !ok {
		return nil, fmt.Errorf("drag: chain %q: %w", id, apperr.ErrNotFound)
	}
	return chain, nil
}

func (c *Controller) regionFor(chain *models.SequenceChain, start, end int) models.SelectionRegion {
	r := models.SelectionRegion{
		ChainID:  chain.ID,
		Start:    start,
		End:      end,
		Sequence: chain.Slice(start, end),
	}
	r.Label = r.DefaultLabel()
	return r
}
