// Package viewer composes the sequence provider, the structure adapter and the
// selection machinery into one session. The HTTP API and the MCP server both
// drive a Session.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/clipboard"
	"github.com/starford/seqsync/internal/drag"
	"github.com/starford/seqsync/internal/models"
	"github.com/starford/seqsync/internal/selection"
	"github.com/starford/seqsync/internal/sequence"
	"github.com/starford/seqsync/internal/sse"
	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/structure"
	"github.com/starford/seqsync/internal/syncbridge"
	"github.com/starford/seqsync/internal/visibility"
)

// KV keys used for persisted session state.
const (
	keyLastStructure   = "last_structure"
	keySelectionPrefix = "selection/"
)

// LoadedEvent is the payload of structure.loaded.
type LoadedEvent struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Chains []string `json:"chains"`
}

// Session is the single viewer instance. It is safe for concurrent use.
type Session struct {
	provider sequence.Provider
	adapter  structure.Adapter
	engine   *visibility.Engine
	model    *selection.Model
	drag     *drag.Controller
	bridge   *syncbridge.Bridge

	store  state.Store
	pub    sse.Publisher
	logger *slog.Logger
	mode   addressing.Mode
	newID  func() string

	// loadMu serializes Load. current is read without it.
	loadMu  sync.Mutex
	current atomic.Pointer[models.SequenceData]
}

type options struct {
	store         state.Store
	pub           sse.Publisher
	logger        *slog.Logger
	clip          clipboard.Writer
	mode          addressing.Mode
	maxSelections int
	maxResidue    int
	promote       bool
	newID         func() string
}

// Option configures a Session.
type Option func(*options)

// WithStore persists the last structure, per-structure selections and the
// operation log.
func WithStore(s state.Store) Option {
	return func(o *options) { o.store = s }
}

// WithPublisher receives selection, highlight and visibility events.
func WithPublisher(p sse.Publisher) Option {
	return func(o *options) { o.pub = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClipboard(w clipboard.Writer) Option {
	return func(o *options) { o.clip = w }
}

// WithMode sets the addressing mode for the whole session.
func WithMode(m addressing.Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithMaxSelections caps the number of regions. Zero means unlimited.
func WithMaxSelections(n int) Option {
	return func(o *options) { o.maxSelections = n }
}

func WithMaxResidue(n int) Option {
	return func(o *options) { o.maxResidue = n }
}

func WithPromotePicks(on bool) Option {
	return func(o *options) { o.promote = on }
}

// WithIDFunc overrides region id generation.
func WithIDFunc(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

type discard struct{}

func (discard) Publish(sse.Event) {}

// New builds a session over provider and adapter.
func New(provider sequence.Provider, adapter structure.Adapter, opts ...Option) *Session {
	o := options{
		pub:     discard{},
		logger:  slog.Default(),
		mode:    addressing.Label,
		promote: true,
		newID:   uuid.NewString,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.clip == nil {
		o.clip = clipboard.New(o.logger)
	}

	s := &Session{
		provider: provider,
		adapter:  adapter,
		store:    o.store,
		pub:      o.pub,
		logger:   o.logger,
		mode:     o.mode,
		newID:    o.newID,
		model:    selection.NewModel(o.maxSelections),
	}

	engineOpts := []visibility.Option{
		visibility.WithMode(o.mode),
		visibility.WithLogger(o.logger),
		visibility.WithResultHook(s.onResult),
	}
	if o.maxResidue > 0 {
		engineOpts = append(engineOpts, visibility.WithMaxResidue(o.maxResidue))
	}
	s.engine = visibility.New(adapter, engineOpts...)

	s.drag = drag.NewController(s.model,
		drag.WithIDFunc(o.newID),
		drag.WithLogger(o.logger),
		drag.WithHighlightFunc(func(rs []models.SequenceResidue) {
			s.pub.Publish(sse.Event{Type: sse.TypeHoverChanged, Data: rs})
		}),
	)

	s.bridge = syncbridge.New(adapter, s.engine, s.model,
		syncbridge.WithMode(o.mode),
		syncbridge.WithPromotePicks(o.promote),
		syncbridge.WithClipboard(o.clip),
		syncbridge.WithIDFunc(o.newID),
		syncbridge.WithLogger(o.logger),
		syncbridge.WithResultHook(s.onResult),
		syncbridge.WithHighlightHook(func(rs []models.ResidueRange) {
			s.pub.Publish(sse.Event{Type: sse.TypeHighlightsChanged, Data: rs})
		}),
	)
	s.bridge.Attach()
	s.model.Subscribe(s.selectionChanged)
	return s
}

// Close detaches the session from its adapter.
func (s *Session) Close() {
	s.bridge.Detach()
}

// Mode returns the session's addressing mode.
func (s *Session) Mode() addressing.Mode { return s.mode }

// Current returns the loaded sequence data, or nil.
func (s *Session) Current() *models.SequenceData { return s.current.Load() }

// Sequence returns the loaded sequence data or ErrNotInitialized.
func (s *Session) Sequence() (*models.SequenceData, error) {
	data := s.current.Load()
	if data == nil {
		return nil, fmt.Errorf("viewer: %w", apperr.ErrNotInitialized)
	}
	return data, nil
}

func (s *Session) currentID() string {
	if data := s.current.Load(); data != nil {
		return data.ID
	}
	return ""
}

// Load fetches the sequence for id and loads the structure into the adapter.
//
// The selection and drag state are cleared and in-flight visibility work is
// invalidated before the fetch starts. If the fetch fails the previous
// sequence stays current, but its selection is not brought back.
func (s *Session) Load(ctx context.Context, id string) (*models.SequenceData, error) {
	if id == "" {
		return nil, fmt.Errorf("viewer: structure id is required: %w", apperr.ErrInvalidArgument)
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	prev := s.current.Swap(nil)
	s.engine.Invalidate()
	s.drag.SetSequence(nil)
	s.bridge.SetSequence(nil)
	s.model.ClearSelection()

	data, err := s.provider.FetchSequence(ctx, id)
	if err != nil {
		s.logger.Warn("sequence fetch failed", "structure", id, "error", err)
		s.setSequence(prev)
		return nil, err
	}
	if res := s.engine.Load(ctx, id); !res.Success {
		s.setSequence(prev)
		if res.Err == nil {
			return nil, fmt.Errorf("viewer: load %s: %s: %w", id, res.Reason, apperr.ErrAdapterFailure)
		}
		return nil, res.Err
	}
	s.setSequence(data)

	s.put(keyLastStructure, id)
	s.restoreSelection(data)

	s.pub.Publish(sse.Event{Type: sse.TypeStructureLoaded, Data: LoadedEvent{
		ID: data.ID, Name: data.Name, Chains: data.ChainIDs(),
	}})
	s.logger.Info("structure loaded", "structure", id, "chains", len(data.Chains))
	return data, nil
}

func (s *Session) setSequence(data *models.SequenceData) {
	s.current.Store(data)
	s.drag.SetSequence(data)
	s.bridge.SetSequence(data)
}

// Restore reloads the last structure recorded in the store. It returns false
// when there is nothing to restore.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	id, ok, err := s.store.Get(keyLastStructure)
	if err != nil || !ok || id == "" {
		return false, err
	}
	if _, err := s.Load(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) selectionChanged(sel models.SequenceSelection) {
	s.pub.Publish(sse.Event{Type: sse.TypeSelectionChanged, Data: sel})
	id := s.currentID()
	if id == "" {
		return
	}
	raw, err := json.Marshal(sel)
	if err != nil {
		s.logger.Error("encode selection", "error", err)
		return
	}
	s.put(keySelectionPrefix+id, string(raw))
}

// restoreSelection brings back the saved selection of data. Regions that no
// longer fit the chains are dropped.
func (s *Session) restoreSelection(data *models.SequenceData) {
	if s.store == nil {
		return
	}
	raw, ok, err := s.store.Get(keySelectionPrefix + data.ID)
	if err != nil || !ok {
		return
	}
	var saved models.SequenceSelection
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		s.logger.Warn("discarding saved selection", "structure", data.ID, "error", err)
		return
	}
	var keep []models.SelectionRegion
	for _, r := range saved.Regions {
		fixed, err := regionIn(data, r)
		if err != nil {
			s.logger.Debug("dropping saved region", "region", r.ID, "error", err)
			continue
		}
		keep = append(keep, fixed)
	}
	if len(keep) == 0 {
		return
	}
	if err := s.model.ReplaceSelection(keep...); err != nil {
		s.logger.Warn("restore selection", "structure", data.ID, "error", err)
		return
	}
	if saved.ActiveRegion != nil {
		if err := s.model.SetActive(*saved.ActiveRegion); err != nil {
			s.logger.Debug("dropping saved active region", "region", *saved.ActiveRegion, "error", err)
		}
	}
}

func (s *Session) put(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(key, value); err != nil {
		s.logger.Warn("persist session state", "key", key, "error", err)
	}
}

func (s *Session) onResult(res visibility.Result) {
	// Loads are announced by structure.loaded.
	if res.Action == visibility.ActionLoad {
		return
	}
	s.pub.Publish(sse.Event{Type: sse.TypeVisibilityResult, Data: res})
	if s.store == nil {
		return
	}
	op := state.Operation{
		StructureID: s.currentID(),
		Action:      string(res.Action),
		Target:      res.Target,
		Success:     res.Success,
		Reason:      res.Reason,
	}
	if err := s.store.RecordOperation(op); err != nil {
		s.logger.Warn("record operation", "action", res.Action, "error", err)
	}
}

// Operations returns the newest entries of the operation log for the loaded
// structure.
func (s *Session) Operations(limit int) ([]state.Operation, error) {
	if s.store == nil {
		return []state.Operation{}, nil
	}
	return s.store.RecentOperations(s.currentID(), limit)
}

// AvailableChains enumerates the chains of the loaded structure. Hidden
// chains are still listed.
func (s *Session) AvailableChains(ctx context.Context) ([]string, error) {
	if _, ok := s.adapter.CurrentStructure(); !ok {
		return nil, fmt.Errorf("viewer: %w", apperr.ErrNotInitialized)
	}
	return s.adapter.ChainIDs(ctx, s.mode)
}

// Components lists the adapter's components with their hidden flags.
func (s *Session) Components(ctx context.Context) ([]structure.Component, error) {
	if _, ok := s.adapter.CurrentStructure(); !ok {
		return nil, fmt.Errorf("viewer: %w", apperr.ErrNotInitialized)
	}
	return s.adapter.ListComponents(ctx)
}

// guarded runs fn unless another visibility operation is in flight.
func (s *Session) guarded(action visibility.Action, target string, fn func() visibility.Result) visibility.Result {
	release, err := s.engine.TryBegin()
	if err != nil {
		res := visibility.Result{Action: action, Reason: err.Error(), Err: err}
		s.pub.Publish(sse.Event{Type: sse.TypeVisibilityResult, Data: res})
		s.logger.Debug("visibility request rejected", "action", action, "target", target)
		return res
	}
	defer release()
	return fn()
}

// Hide removes a chain or residue range from every visible component.
func (s *Session) Hide(ctx context.Context, t visibility.Target) visibility.Result {
	return s.guarded(visibility.ActionHide, t.String(), func() visibility.Result {
		return s.engine.Hide(ctx, t)
	})
}

// Isolate hides every chain except chainID.
func (s *Session) Isolate(ctx context.Context, chainID string) visibility.Result {
	return s.guarded(visibility.ActionIsolate, chainID, func() visibility.Result {
		return s.engine.Isolate(ctx, chainID)
	})
}

// IsolateRange hides everything outside chainID:start-end.
func (s *Session) IsolateRange(ctx context.Context, chainID string, start, end int) visibility.Result {
	return s.guarded(visibility.ActionIsolateRange, chainID, func() visibility.Result {
		return s.engine.IsolateRange(ctx, chainID, start, end)
	})
}

// ShowAll reloads the structure and re-sends the selection highlight.
func (s *Session) ShowAll(ctx context.Context) visibility.Result {
	return s.guarded(visibility.ActionShowAll, s.currentID(), func() visibility.Result {
		res := s.engine.ShowAll(ctx)
		if res.Success {
			if err := s.bridge.Resync(ctx); err != nil {
				s.logger.Warn("resync highlight after show all", "error", err)
			}
		}
		return res
	})
}

// ResidueAction runs a context-menu action on region.
func (s *Session) ResidueAction(ctx context.Context, action visibility.Action, region models.SelectionRegion) (bool, error) {
	if action == visibility.ActionHide || action == visibility.ActionIsolate {
		release, err := s.engine.TryBegin()
		if err != nil {
			return false, err
		}
		defer release()
	}
	return s.bridge.PerformResidueAction(ctx, action, region), nil
}

// RegionForRange builds a region over chainID:start-end of the loaded
// sequence, with a fresh id, its sequence text and a default label.
func (s *Session) RegionForRange(chainID string, start, end int) (models.SelectionRegion, error) {
	data, err := s.Sequence()
	if err != nil {
		return models.SelectionRegion{}, err
	}
	return regionIn(data, models.SelectionRegion{ID: s.newID(), ChainID: chainID, Start: start, End: end})
}

// regionIn checks r against the chain bounds in data and fills in its
// sequence and label.
func regionIn(data *models.SequenceData, r models.SelectionRegion) (models.SelectionRegion, error) {
	chain, ok := data.Chain(r.ChainID)
	if !ok {
		return r, fmt.Errorf("viewer: chain %q: %w", r.ChainID, apperr.ErrNotFound)
	}
	first, last, ok := chain.Bounds()
	if !ok {
		return r, fmt.Errorf("viewer: chain %q has no residues: %w", r.ChainID, apperr.ErrNotFound)
	}
	if r.Start > r.End || r.Start < first || r.End > last {
		return r, fmt.Errorf("viewer: range %d-%d outside chain %s (%d-%d): %w",
			r.Start, r.End, r.ChainID, first, last, apperr.ErrInvalidArgument)
	}
	r.Sequence = chain.Slice(r.Start, r.End)
	if r.Label == "" {
		r.Label = r.DefaultLabel()
	}
	return r, nil
}

func (s *Session) prepare(r models.SelectionRegion) (models.SelectionRegion, error) {
	data, err := s.Sequence()
	if err != nil {
		return r, err
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	return regionIn(data, r)
}

// Selection returns a snapshot of the selection.
func (s *Session) Selection() models.SequenceSelection { return s.model.Selection() }

// Region returns the region with id.
func (s *Session) Region(id string) (models.SelectionRegion, error) {
	r, ok := s.model.Region(id)
	if !ok {
		return r, fmt.Errorf("viewer: region %q: %w", id, apperr.ErrNotFound)
	}
	return r, nil
}

// AddRegion adds r, filling in a missing id, its sequence and label.
func (s *Session) AddRegion(r models.SelectionRegion) (models.SelectionRegion, error) {
	r, err := s.prepare(r)
	if err != nil {
		return r, err
	}
	return r, s.model.AddRegion(r)
}

// ReplaceSelection replaces every region with rs.
func (s *Session) ReplaceSelection(rs ...models.SelectionRegion) ([]models.SelectionRegion, error) {
	out := make([]models.SelectionRegion, 0, len(rs))
	for _, r := range rs {
		p, err := s.prepare(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := s.model.ReplaceSelection(out...); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectRange selects chainID:start-end, adding to the selection when add is set.
func (s *Session) SelectRange(chainID string, start, end int, add bool) (models.SelectionRegion, error) {
	r, err := s.RegionForRange(chainID, start, end)
	if err != nil {
		return r, err
	}
	if add {
		err = s.model.AddRegion(r)
	} else {
		err = s.model.ReplaceSelection(r)
	}
	return r, err
}

func (s *Session) RemoveRegion(id string) error { return s.model.RemoveRegion(id) }

func (s *Session) ClearSelection() { s.model.ClearSelection() }

func (s *Session) SetActive(id string) error { return s.model.SetActive(id) }

// Merge coalesces overlapping and adjacent regions per chain and returns the
// number of regions removed.
func (s *Session) Merge() int { return s.model.Merge() }

func (s *Session) IsResidueSelected(chainID string, pos int) bool {
	return s.model.IsResidueSelected(chainID, pos)
}

// residue resolves chainID:pos against the loaded sequence.
func (s *Session) residue(chainID string, pos int) (models.SequenceResidue, error) {
	data, err := s.Sequence()
	if err != nil {
		return models.SequenceResidue{}, err
	}
	chain, ok := data.Chain(chainID)
	if !ok {
		return models.SequenceResidue{}, fmt.Errorf("viewer: chain %q: %w", chainID, apperr.ErrNotFound)
	}
	res, ok := chain.Residue(pos)
	if !ok {
		return res, fmt.Errorf("viewer: residue %s:%d: %w", chainID, pos, apperr.ErrNotFound)
	}
	return res, nil
}

// PointerDown starts a drag on chainID:pos.
func (s *Session) PointerDown(chainID string, pos int) error {
	res, err := s.residue(chainID, pos)
	if err != nil {
		return err
	}
	return s.drag.PointerDown(res)
}

// PointerEnter extends the drag to chainID:pos.
func (s *Session) PointerEnter(chainID string, pos int) error {
	res, err := s.residue(chainID, pos)
	if err != nil {
		return err
	}
	s.drag.PointerEnter(res)
	return nil
}

// PointerUp commits the drag.
func (s *Session) PointerUp(add bool) (models.SelectionRegion, error) {
	return s.drag.PointerUp(add)
}

// ContextMenu cancels a drag in progress.
func (s *Session) ContextMenu() bool { return s.drag.ContextMenu() }

// Hover previews chainID at positions.
func (s *Session) Hover(chainID string, positions ...int) error {
	rs := make([]models.SequenceResidue, 0, len(positions))
	for _, p := range positions {
		res, err := s.residue(chainID, p)
		if err != nil {
			return err
		}
		rs = append(rs, res)
	}
	s.drag.Hover(rs...)
	return nil
}

func (s *Session) PointerLeave() { s.drag.PointerLeave() }

// DragState describes the drag controller.
type DragState struct {
	State       string                   `json:"state"`
	Candidate   *models.SelectionRegion  `json:"candidate,omitempty"`
	Highlighted []models.SequenceResidue `json:"highlighted"`
}

func (s *Session) DragState() DragState {
	out := DragState{State: s.drag.State().String(), Highlighted: s.drag.Highlighted()}
	if c, ok := s.drag.Candidate(); ok {
		out.Candidate = &c
	}
	if out.Highlighted == nil {
		out.Highlighted = []models.SequenceResidue{}
	}
	return out
}

// Pick handles an atom picked in the 3D view.
func (s *Session) Pick(pick structure.Pick, add bool) (models.SelectionRegion, bool, error) {
	if s.current.Load() == nil {
		return models.SelectionRegion{}, false, fmt.Errorf("viewer: %w", apperr.ErrNotInitialized)
	}
	return s.bridge.HandlePick(pick, add)
}
