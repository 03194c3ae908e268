// Package visibility hides and isolates chains and residue ranges by
// selecting atoms and subtracting them from the structure's component tree.
//
// Subtraction is destructive, so there is no incremental unhide: ShowAll
// reloads the structure from its source. Every mutation of the component tree
// is serialized; within one operation the hide steps run strictly in order.
package visibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/structure"
)

// DefaultMaxResidue is the upper sentinel used when hiding the tail of a chain.
const DefaultMaxResidue = 100000

// ResultFunc receives every operation result.
type ResultFunc func(Result)

// Engine issues hide/isolate/show-all operations against a structure adapter.
type Engine struct {
	adapter    structure.Adapter
	mode       addressing.Mode
	maxResidue int
	logger     *slog.Logger
	onResult   ResultFunc

	mu         sync.Mutex
	busy       atomic.Bool
	generation atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the addressing mode used for every query.
func WithMode(m addressing.Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMaxResidue overrides the tail sentinel.
func WithMaxResidue(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxResidue = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithResultHook registers fn for every operation result.
func WithResultHook(fn ResultFunc) Option {
	return func(e *Engine) { e.onResult = fn }
}

// New creates an engine bound to adapter.
func New(adapter structure.Adapter, opts ...Option) *Engine {
	e := &Engine{
		adapter:    adapter,
		mode:       addressing.Label,
		maxResidue: DefaultMaxResidue,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the addressing mode.
func (e *Engine) Mode() addressing.Mode { return e.mode }

// Generation returns the current structure generation.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// Invalidate bumps the structure generation. Operations that started under an
// older generation are discarded at their next step.
func (e *Engine) Invalidate() uint64 {
	return e.generation.Add(1)
}

// TryBegin claims the engine for one caller-driven operation. Callers that
// must not queue behind an operation in flight use it to fail fast with
// ErrBusy; release must be called when the operation returns.
func (e *Engine) TryBegin() (release func(), err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("visibility: %w", apperr.ErrBusy)
	}
	return func() { e.busy.Store(false) }, nil
}

// Busy reports whether a TryBegin claim is outstanding.
func (e *Engine) Busy() bool { return e.busy.Load() }

type outcome struct {
	steps   int
	removed int
	noOp    bool
	reason  string
}

// Load replaces the scene with sourceID.
func (e *Engine) Load(ctx context.Context, sourceID string) Result {
	gen := e.Invalidate()
	return e.run(ctx, gen, ActionLoad, sourceID, func(ctx context.Context, gen uint64) (outcome, error) {
		return outcome{}, e.load(ctx, gen, sourceID)
	})
}

// ShowAll reloads the current structure from its original source. It is the
// only way to restore hidden atoms.
func (e *Engine) ShowAll(ctx context.Context) Result {
	ref, ok := e.adapter.CurrentStructure()
	if !ok {
		return e.report(e.finish(ActionShowAll, "", outcome{}, fmt.Errorf("visibility: show all: %w", apperr.ErrNotInitialized)))
	}
	gen := e.Invalidate()
	return e.run(ctx, gen, ActionShowAll, ref.SourceID, func(ctx context.Context, gen uint64) (outcome, error) {
		return outcome{}, e.load(ctx, gen, ref.SourceID)
	})
}

func (e *Engine) load(ctx context.Context, gen uint64, sourceID string) error {
	if err := e.checkGeneration(gen); err != nil {
		return err
	}
	if err := e.call("load", func() error { return e.adapter.LoadStructure(ctx, sourceID) }); err != nil {
		return err
	}
	return e.checkGeneration(gen)
}

// Hide makes the atoms matching target invisible. Atoms that are already
// hidden stay hidden; a target with nothing left to hide is a no-op.
func (e *Engine) Hide(ctx context.Context, target Target) Result {
	return e.run(ctx, e.Generation(), ActionHide, target.String(), func(ctx context.Context, gen uint64) (outcome, error) {
		if _, err := e.chains(ctx, target.ChainID); err != nil {
			return outcome{}, err
		}
		d, err := target.Descriptor(e.mode)
		if err != nil {
			return outcome{}, err
		}
		var out outcome
		return out, e.step(ctx, gen, d, &out)
	})
}

// Isolate hides every chain except chainID, one chain at a time.
func (e *Engine) Isolate(ctx context.Context, chainID string) Result {
	return e.run(ctx, e.Generation(), ActionIsolate, chainID, func(ctx context.Context, gen uint64) (outcome, error) {
		all, err := e.chains(ctx, chainID)
		if err != nil {
			return outcome{}, err
		}
		others := complement(all, chainID)
		if len(others) == 0 {
			return outcome{noOp: true, reason: "single chain structure; nothing to isolate"}, nil
		}
		var out outcome
		for _, c := range others {
			d, err := addressing.Chain(e.mode, c)
			if err != nil {
				return out, err
			}
			if err := e.step(ctx, gen, d, &out); err != nil {
				return out, err
			}
		}
		return out, nil
	})
}

// IsolateRange hides everything outside residues [start,end] of chainID: the
// residues before and after the range within the chain, then every other chain.
func (e *Engine) IsolateRange(ctx context.Context, chainID string, start, end int) Result {
	target := RangeTarget(chainID, start, end)
	return e.run(ctx, e.Generation(), ActionIsolateRange, target.String(), func(ctx context.Context, gen uint64) (outcome, error) {
		if start > end {
			return outcome{}, fmt.Errorf("visibility: start %d after end %d: %w", start, end, apperr.ErrInvalidArgument)
		}
		all, err := e.chains(ctx, chainID)
		if err != nil {
			return outcome{}, err
		}

		var steps []addressing.Descriptor
		if lower := e.lowerBound(); start > lower {
			d, err := addressing.Span(e.mode, chainID, lower, start-1)
			if err != nil {
				return outcome{}, err
			}
			steps = append(steps, d)
		}
		if end < e.maxResidue {
			d, err := addressing.Span(e.mode, chainID, end+1, e.maxResidue)
			if err != nil {
				return outcome{}, err
			}
			steps = append(steps, d)
		}
		for _, c := range complement(all, chainID) {
			d, err := addressing.Chain(e.mode, c)
			if err != nil {
				return outcome{}, err
			}
			steps = append(steps, d)
		}

		var out outcome
		for _, d := range steps {
			if err := e.step(ctx, gen, d, &out); err != nil {
				return out, err
			}
		}
		if out.steps == 0 {
			out.noOp = true
			out.reason = "nothing outside the range is visible"
		}
		return out, nil
	})
}

// lowerBound is the first residue number hidden before a range. Label
// numbering starts at 1; author numbering may be zero or negative.
func (e *Engine) lowerBound() int {
	if e.mode == addressing.Auth {
		return -e.maxResidue
	}
	return 1
}

// step runs one select-then-subtract cycle. Caller holds mu.
func (e *Engine) step(ctx context.Context, gen uint64, d addressing.Descriptor, out *outcome) error {
	if err := e.checkGeneration(gen); err != nil {
		return err
	}

	var locus structure.Locus
	if err := e.call("query", func() (err error) {
		locus, err = e.adapter.QueryLocus(ctx, d)
		return err
	}); err != nil {
		return err
	}
	if locus == nil || locus.Count() == 0 {
		e.logger.Debug("visibility: empty match", slog.String("query", d.String()))
		return nil
	}

	var comps []structure.Component
	if err := e.call("list components", func() (err error) {
		comps, err = e.adapter.ListComponents(ctx)
		return err
	}); err != nil {
		return err
	}
	comps = slices.DeleteFunc(comps, func(c structure.Component) bool { return c.Hidden })
	if len(comps) == 0 {
		return nil
	}

	if err := e.checkGeneration(gen); err != nil {
		return err
	}
	if err := e.call("set selection", func() error { return e.adapter.SetCurrentSelection(ctx, locus) }); err != nil {
		return err
	}
	var res structure.ModifyResult
	subErr := e.call("subtract", func() (err error) {
		res, err = e.adapter.SubtractCurrentSelectionFromComponents(ctx, comps)
		return err
	})
	if err := e.call("clear selection", func() error { return e.adapter.ClearSelection(ctx) }); err != nil {
		e.logger.Warn("visibility: clear selection failed", slog.String("error", err.Error()))
	}
	if subErr != nil {
		return subErr
	}
	if err := e.checkGeneration(gen); err != nil {
		return err
	}

	if res.Removed > 0 {
		out.steps++
		out.removed += res.Removed
	}
	e.logger.Debug("visibility: subtracted",
		slog.String("query", d.String()),
		slog.Int("removed", res.Removed),
		slog.Int("components", res.Components))
	return nil
}

// chains lists chain ids of the current structure and checks want is among them.
func (e *Engine) chains(ctx context.Context, want string) ([]string, error) {
	if _, ok := e.adapter.CurrentStructure(); !ok {
		return nil, fmt.Errorf("visibility: %w", apperr.ErrNotInitialized)
	}
	var ids []string
	if err := e.call("chain ids", func() (err error) {
		ids, err = e.adapter.ChainIDs(ctx, e.mode)
		return err
	}); err != nil {
		return nil, err
	}
	if !slices.Contains(ids, want) {
		return nil, fmt.Errorf("visibility: chain %q (%s): %w", want, e.mode, apperr.ErrNotFound)
	}
	return ids, nil
}

func complement(all []string, exclude string) []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		if c != exclude {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) checkGeneration(gen uint64) error {
	if cur := e.generation.Load(); cur != gen {
		return fmt.Errorf("visibility: generation %d superseded by %d: %w", gen, cur, apperr.ErrStale)
	}
	return nil
}

// call invokes an adapter operation, converting errors and panics into
// ErrAdapterFailure.
func (e *Engine) call(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("visibility: %s: panic: %v: %w", op, r, apperr.ErrAdapterFailure)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("visibility: %s: %w: %w", op, apperr.ErrAdapterFailure, err)
	}
	return nil
}

// run serializes fn against other operations and reports its result. The
// context's cancellation is ignored: an issued operation runs to completion.
func (e *Engine) run(ctx context.Context, gen uint64, action Action, target string, fn func(context.Context, uint64) (outcome, error)) Result {
	ctx = context.WithoutCancel(ctx)
	res := func() Result {
		e.mu.Lock()
		defer e.mu.Unlock()
		out, err := fn(ctx, gen)
		return e.finish(action, target, out, err)
	}()
	return e.report(res)
}

func (e *Engine) finish(action Action, target string, out outcome, err error) Result {
	res := Result{
		Action:  action,
		Target:  target,
		Steps:   out.steps,
		Removed: out.removed,
		NoOp:    out.noOp,
		Reason:  out.reason,
		Success: err == nil,
		Err:     err,
	}
	if err == nil && action != ActionLoad && action != ActionShowAll && out.steps == 0 && !out.noOp {
		res.NoOp = true
		res.Reason = apperr.ErrEmptyMatch.Error()
	}
	if err != nil {
		res.Reason = reason(err)
		level := slog.LevelWarn
		if errors.Is(err, apperr.ErrStale) {
			level = slog.LevelInfo
		}
		e.logger.Log(context.Background(), level, "visibility: operation failed",
			slog.String("action", string(action)),
			slog.String("target", target),
			slog.String("error", err.Error()))
	}
	return res
}

func (e *Engine) report(res Result) Result {
	if e.onResult != nil {
		e.onResult(res)
	}
	return res
}

func reason(err error) string {
	if errors.Is(err, apperr.ErrStale) {
		return "discarded: structure was replaced"
	}
	return err.Error()
}
