// Package syncbridge keeps the 3D highlight in step with the sequence
// selection and dispatches residue context-menu actions.
package syncbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/clipboard"
	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/selection"
	"github.com/starford/seqsync/internal/structure"
	"github.com/starford/seqsync/internal/visibility"
)

// HighlightFunc receives the ranges sent to the 3D highlight.
type HighlightFunc func([]models.ResidueRange)

// Bridge connects a selection model to a structure adapter.
type Bridge struct {
	adapter   structure.Adapter
	engine    *visibility.Engine
	model     *selection.Model
	clipboard clipboard.Writer

	mode        addressing.Mode
	promote     bool
	newID       func() string
	logger      *slog.Logger
	onResult    visibility.ResultFunc
	onHighlight HighlightFunc

	// pendingPick holds the id of a promoted pick region until the model
	// reports it. That one change is not sent back to the adapter; changes
	// made by other callers in the meantime still are.
	pendingPick atomic.Pointer[string]

	mu       sync.Mutex
	sequence *models.SequenceData
	detach   func()
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMode sets the addressing mode for highlight queries and picks.
func WithMode(m addressing.Mode) Option {
	return func(b *Bridge) { b.mode = m }
}

// WithPromotePicks controls whether 3D picks become selection regions.
func WithPromotePicks(on bool) Option {
	return func(b *Bridge) { b.promote = on }
}

// WithClipboard sets the clipboard used by the copy action.
func WithClipboard(w clipboard.Writer) Option {
	return func(b *Bridge) { b.clipboard = w }
}

// WithIDFunc overrides region id generation for promoted picks.
func WithIDFunc(fn func() string) Option {
	return func(b *Bridge) { b.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithResultHook receives results of highlight and copy actions. Hide and
// isolate results are reported by the engine's own hook.
func WithResultHook(fn visibility.ResultFunc) Option {
	return func(b *Bridge) { b.onResult = fn }
}

// WithHighlightHook is called after every successful highlight update.
func WithHighlightHook(fn HighlightFunc) Option {
	return func(b *Bridge) { b.onHighlight = fn }
}

// New creates a bridge. Call Attach to start following the model.
func New(adapter structure.Adapter, engine *visibility.Engine, model *selection.Model, opts ...Option) *Bridge {
	b := &Bridge{
		adapter:   adapter,
		engine:    engine,
		model:     model,
		clipboard: &clipboard.Memory{},
		mode:      addressing.Label,
		promote:   true,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach subscribes to selection changes. Calling it twice is a no-op.
func (b *Bridge) Attach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detach != nil {
		return
	}
	b.detach = b.model.Subscribe(b.selectionChanged)
}

// Detach stops following the model.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detach != nil {
		b.detach()
		b.detach = nil
	}
}

// SetSequence sets the sequence used to fill promoted pick regions.
func (b *Bridge) SetSequence(data *models.SequenceData) {
	b.mu.Lock()
	b.sequence = data
	b.mu.Unlock()
}

func (b *Bridge) selectionChanged(sel models.SequenceSelection) {
	if p := b.pendingPick.Load(); p != nil && sel.ActiveRegion != nil && *sel.ActiveRegion == *p &&
		b.pendingPick.CompareAndSwap(p, nil) {
		b.logger.Debug("syncbridge: skipping highlight for promoted pick", slog.String("region", *p))
		return
	}
	ranges := make([]models.ResidueRange, len(sel.Regions))
	for i, r := range sel.Regions {
		ranges[i] = r.Range()
	}
	err := b.highlight(context.Background(), ranges)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotInitialized):
		// Load clears the selection before a structure is shown.
		b.logger.Debug("syncbridge: highlight skipped", slog.String("error", err.Error()))
	default:
		b.logger.Warn("syncbridge: highlight failed", slog.String("error", err.Error()))
	}
}

// Resync sends the model's current ranges to the adapter again, typically
// after a reload dropped the previous highlight.
func (b *Bridge) Resync(ctx context.Context) error {
	return b.highlight(ctx, b.model.Ranges())
}

// highlight replaces the adapter's highlight with the union of ranges.
func (b *Bridge) highlight(ctx context.Context, ranges []models.ResidueRange) error {
	if _, ok := b.adapter.CurrentStructure(); !ok {
		return fmt.Errorf("syncbridge: highlight: %w", apperr.ErrNotInitialized)
	}
	if len(ranges) == 0 {
		if err := safe("clear highlights", func() error { return b.adapter.ClearHighlights(ctx) }); err != nil {
			return err
		}
		b.notifyHighlight(ranges)
		return nil
	}

	ds := make([]addressing.Descriptor, 0, len(ranges))
	for _, r := range ranges {
		d, err := addressing.Span(b.mode, r.ChainID, r.Start, r.End)
		if err != nil {
			return fmt.Errorf("syncbridge: %s: %w", r, err)
		}
		ds = append(ds, d)
	}
	union, err := addressing.Union(ds...)
	if err != nil {
		return fmt.Errorf("syncbridge: %w", err)
	}

	var locus structure.Locus
	if err := safe("query", func() (err error) {
		locus, err = b.adapter.QueryLocus(ctx, union)
		return err
	}); err != nil {
		return err
	}
	if locus == nil || locus.Count() == 0 {
		// Every selected atom has been hidden.
		if err := safe("clear highlights", func() error { return b.adapter.ClearHighlights(ctx) }); err != nil {
			return err
		}
	} else if err := safe("highlight", func() error { return b.adapter.HighlightOnly(ctx, locus) }); err != nil {
		return err
	}
	b.notifyHighlight(ranges)
	return nil
}

func (b *Bridge) notifyHighlight(ranges []models.ResidueRange) {
	if b.onHighlight != nil {
		b.onHighlight(ranges)
	}
}

// HandlePick promotes a residue picked in the 3D view into the selection.
// It reports false when pick promotion is disabled.
func (b *Bridge) HandlePick(pick structure.Pick, add bool) (models.SelectionRegion, bool, error) {
	if !b.promote {
		return models.SelectionRegion{}, false, nil
	}
	chainID, seq := pick.Chain(b.mode)

	b.mu.Lock()
	data := b.sequence
	b.mu.Unlock()
	if data == nil {
		return models.SelectionRegion{}, false, fmt.Errorf("syncbridge: pick: %w", apperr.ErrNotInitialized)
	}
	chain, ok := data.Chain(chainID)
	if !ok {
		return models.SelectionRegion{}, false, fmt.Errorf("syncbridge: pick chain %q: %w", chainID, apperr.ErrNotFound)
	}
	res, ok := chain.Residue(seq)
	if !ok {
		return models.SelectionRegion{}, false, fmt.Errorf("syncbridge: pick residue %s:%d: %w", chainID, seq, apperr.ErrNotFound)
	}

	r := models.SelectionRegion{
		ID:       b.newID(),
		ChainID:  chainID,
		Start:    seq,
		End:      seq,
		Sequence: res.Code,
	}
	r.Label = r.DefaultLabel()

	id := r.ID
	b.pendingPick.Store(&id)
	var err error
	if add {
		err = b.model.AddRegion(r)
	} else {
		err = b.model.ReplaceSelection(r)
	}
	if err != nil {
		b.pendingPick.CompareAndSwap(&id, nil)
		return models.SelectionRegion{}, false, fmt.Errorf("syncbridge: promote pick: %w", err)
	}
	return r, true, nil
}

// PerformResidueAction runs a context-menu action on region. Failures are
// logged and reported through the result hooks; only success is returned.
func (b *Bridge) PerformResidueAction(ctx context.Context, action visibility.Action, region models.SelectionRegion) bool {
	switch action {
	case visibility.ActionHide:
		return b.engine.Hide(ctx, visibility.RangeTarget(region.ChainID, region.Start, region.End)).Success
	case visibility.ActionIsolate:
		return b.engine.IsolateRange(ctx, region.ChainID, region.Start, region.End).Success
	case visibility.ActionHighlight:
		err := b.highlight(ctx, []models.ResidueRange{region.Range()})
		return b.report(action, region, err)
	case visibility.ActionCopy:
		return b.report(action, region, b.copy(ctx, region))
	default:
		return b.report(action, region, fmt.Errorf("syncbridge: unknown action %q: %w", action, apperr.ErrInvalidArgument))
	}
}

func (b *Bridge) copy(ctx context.Context, region models.SelectionRegion) error {
	if region.Sequence == "" {
		return fmt.Errorf("syncbridge: region %s has no sequence: %w", region.Range(), apperr.ErrInvalidArgument)
	}
	if err := b.clipboard.WriteText(ctx, region.Sequence); err != nil {
		return fmt.Errorf("syncbridge: copy: %w", err)
	}
	b.model.SetClipboard(region.Sequence)
	return nil
}

func (b *Bridge) report(action visibility.Action, region models.SelectionRegion, err error) bool {
	res := visibility.Result{
		Action:  action,
		Target:  region.Range().String(),
		Success: err == nil,
		Err:     err,
	}
	if err != nil {
		res.Reason = err.Error()
		b.logger.Warn("syncbridge: action failed",
			slog.String("action", string(action)),
			slog.String("target", res.Target),
			slog.String("error", err.Error()))
	}
	if b.onResult != nil {
		b.onResult(res)
	}
	return res.Success
}

func safe(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("syncbridge: %s: panic: %v: %w", op, r, apperr.ErrAdapterFailure)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("syncbridge: %s: %w: %w", op, apperr.ErrAdapterFailure, err)
	}
	return nil
}
