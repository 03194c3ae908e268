package visibility

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/structure"
	"github.com/starford/seqsync/internal/testutil"
)

func visible(t *testing.T, s *structure.Scene, mode addressing.Mode, chain string) int {
	t.Helper()
	d, err := addressing.Chain(mode, chain)
	if err != nil {
		t.Fatal(err)
	}
	return s.VisibleCount(d)
}

func TestEngine_IsolateHidesComplement(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)

	res := e.Isolate(context.Background(), "A")
	if !res.Success || res.Err != nil {
		t.Fatalf("isolate failed: %+v", res)
	}
	if res.Steps != 1 || res.Removed != 50 {
		t.Errorf("steps=%d removed=%d, want 1/50", res.Steps, res.Removed)
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 0 {
		t.Errorf("chain B visible atoms = %d, want 0", n)
	}
	// 100 residues plus the 4 ligand atoms attached to A.
	if n := visible(t, scene, addressing.Label, "A"); n != 104 {
		t.Errorf("chain A visible atoms = %d, want 104", n)
	}

	// Subtraction empties chains but does not remove them from the hierarchy.
	ids, err := scene.ChainIDs(context.Background(), addressing.Label)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"A", "B"}) {
		t.Errorf("chain ids = %v, want [A B]", ids)
	}
}

func TestEngine_IsolateSingleChainIsNoOp(t *testing.T) {
	scene := testutil.Scene(t, testutil.SingleChainID)
	e := New(scene)

	res := e.Isolate(context.Background(), "A")
	if !res.Success || !res.NoOp {
		t.Fatalf("want successful no-op, got %+v", res)
	}
	if res.Steps != 0 {
		t.Errorf("steps = %d, want 0", res.Steps)
	}
	if n := visible(t, scene, addressing.Label, "A"); n != 30 {
		t.Errorf("visible = %d, want 30", n)
	}
}

func TestEngine_HideIsMonotonic(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)
	ctx := context.Background()

	first := e.Hide(ctx, ChainTarget("B"))
	if !first.Success || first.Removed != 50 {
		t.Fatalf("first hide: %+v", first)
	}
	second := e.Hide(ctx, ChainTarget("B"))
	if !second.Success || !second.NoOp || second.Removed != 0 {
		t.Fatalf("second hide should be an empty match, got %+v", second)
	}
	if second.Reason != apperr.ErrEmptyMatch.Error() {
		t.Errorf("reason = %q", second.Reason)
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 0 {
		t.Errorf("chain B visible atoms = %d", n)
	}
}

func TestEngine_HideRange(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)

	res := e.Hide(context.Background(), RangeTarget("A", 10, 20))
	if !res.Success || res.Removed != 11 {
		t.Fatalf("hide range: %+v", res)
	}
	if n := visible(t, scene, addressing.Label, "A"); n != 93 {
		t.Errorf("chain A visible atoms = %d, want 93", n)
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 50 {
		t.Errorf("chain B untouched, got %d", n)
	}
}

func TestEngine_ShowAllRestores(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)
	ctx := context.Background()

	e.Isolate(ctx, "A")
	gen := e.Generation()

	res := e.ShowAll(ctx)
	if !res.Success {
		t.Fatalf("show all: %+v", res)
	}
	if res.Target != testutil.TwoChainID {
		t.Errorf("target = %q", res.Target)
	}
	if e.Generation() <= gen {
		t.Error("show all must start a new generation")
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 50 {
		t.Errorf("chain B visible atoms = %d, want 50", n)
	}
}

func TestEngine_IsolateRange(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)

	res := e.IsolateRange(context.Background(), "A", 10, 20)
	if !res.Success {
		t.Fatalf("isolate range: %+v", res)
	}
	// Head, tail (which also holds the ligand) and chain B.
	if res.Steps != 3 {
		t.Errorf("steps = %d, want 3", res.Steps)
	}
	if n := visible(t, scene, addressing.Label, "A"); n != 11 {
		t.Errorf("chain A visible atoms = %d, want 11", n)
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 0 {
		t.Errorf("chain B visible atoms = %d, want 0", n)
	}
}

func TestEngine_IsolateRangeFromFirstResidue(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)

	res := e.IsolateRange(context.Background(), "A", 1, 5)
	if !res.Success || res.Steps != 2 {
		t.Fatalf("want tail and chain B steps only, got %+v", res)
	}
	if n := visible(t, scene, addressing.Label, "A"); n != 5 {
		t.Errorf("chain A visible atoms = %d, want 5", n)
	}
}

func TestEngine_IsolateRangeInvalid(t *testing.T) {
	e := New(testutil.Scene(t, testutil.TwoChainID))
	res := e.IsolateRange(context.Background(), "A", 20, 10)
	if res.Success || !errors.Is(res.Err, apperr.ErrInvalidArgument) {
		t.Fatalf("want invalid argument, got %+v", res)
	}
}

func TestEngine_AuthMode(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene, WithMode(addressing.Auth))
	ctx := context.Background()

	if res := e.Isolate(ctx, "A"); !errors.Is(res.Err, apperr.ErrNotFound) {
		t.Fatalf("label id in auth mode should not resolve, got %+v", res)
	}

	// Auth numbering of chain H runs 11..110.
	res := e.IsolateRange(ctx, "H", 15, 20)
	if !res.Success {
		t.Fatalf("isolate range: %+v", res)
	}
	if n := visible(t, scene, addressing.Auth, "H"); n != 6 {
		t.Errorf("chain H visible atoms = %d, want 6", n)
	}
	if n := visible(t, scene, addressing.Auth, "L"); n != 0 {
		t.Errorf("chain L visible atoms = %d, want 0", n)
	}
}

func TestEngine_NotInitialized(t *testing.T) {
	e := New(structure.NewScene(testutil.Source(t)))
	ctx := context.Background()

	for name, res := range map[string]Result{
		"hide":     e.Hide(ctx, ChainTarget("A")),
		"isolate":  e.Isolate(ctx, "A"),
		"range":    e.IsolateRange(ctx, "A", 1, 2),
		"show all": e.ShowAll(ctx),
	} {
		if res.Success || !errors.Is(res.Err, apperr.ErrNotInitialized) {
			t.Errorf("%s: want not initialized, got %+v", name, res)
		}
	}
}

func TestEngine_UnknownChain(t *testing.T) {
	e := New(testutil.Scene(t, testutil.TwoChainID))
	res := e.Isolate(context.Background(), "Z")
	if res.Success || !errors.Is(res.Err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %+v", res)
	}
}

func TestEngine_ResultHook(t *testing.T) {
	var got []Result
	e := New(testutil.Scene(t, testutil.TwoChainID), WithResultHook(func(r Result) {
		got = append(got, r)
	}))
	ctx := context.Background()

	e.Hide(ctx, ChainTarget("B"))
	e.Isolate(ctx, "Z")
	e.ShowAll(ctx)

	if len(got) != 3 {
		t.Fatalf("results = %d, want 3", len(got))
	}
	if got[0].Action != ActionHide || !got[0].Success {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Action != ActionIsolate || got[1].Success || got[1].Reason == "" {
		t.Errorf("second = %+v", got[1])
	}
	if got[2].Action != ActionShowAll || !got[2].Success {
		t.Errorf("third = %+v", got[2])
	}
}

func TestEngine_CancelledContextStillCompletes(t *testing.T) {
	scene := testutil.Scene(t, testutil.TwoChainID)
	e := New(scene)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Isolate(ctx, "A")
	if !res.Success {
		t.Fatalf("isolate with cancelled context: %+v", res)
	}
	if n := visible(t, scene, addressing.Label, "B"); n != 0 {
		t.Errorf("chain B visible atoms = %d", n)
	}
}

// faultyScene injects failures around a real scene.
type faultyScene struct {
	*structure.Scene
	subtractErr error
	panicQuery  bool
	onQuery     func()
	cleared     atomic.Int32
}

func (f *faultyScene) QueryLocus(ctx context.Context, d addressing.Descriptor) (structure.Locus, error) {
	if f.panicQuery {
		panic("renderer exploded")
	}
	l, err := f.Scene.QueryLocus(ctx, d)
	if f.onQuery != nil {
		f.onQuery()
	}
	return l, err
}

func (f *faultyScene) SubtractCurrentSelectionFromComponents(ctx context.Context, cs []structure.Component) (structure.ModifyResult, error) {
	if f.subtractErr != nil {
		return structure.ModifyResult{}, f.subtractErr
	}
	return f.Scene.SubtractCurrentSelectionFromComponents(ctx, cs)
}

func (f *faultyScene) ClearSelection(ctx context.Context) error {
	f.cleared.Add(1)
	return f.Scene.ClearSelection(ctx)
}

func TestEngine_AdapterFailureStopsSteps(t *testing.T) {
	boom := errors.New("boom")
	f := &faultyScene{Scene: testutil.Scene(t, testutil.TwoChainID), subtractErr: boom}
	e := New(f)

	res := e.IsolateRange(context.Background(), "A", 10, 20)
	if res.Success {
		t.Fatal("want failure")
	}
	if !errors.Is(res.Err, apperr.ErrAdapterFailure) || !errors.Is(res.Err, boom) {
		t.Errorf("err = %v", res.Err)
	}
	if res.Steps != 0 {
		t.Errorf("steps = %d, want 0", res.Steps)
	}
	// The first step failed and later steps never ran, but the selection was
	// still cleared.
	if n := f.cleared.Load(); n != 1 {
		t.Errorf("clear selection calls = %d, want 1", n)
	}
}

func TestEngine_AdapterPanicRecovered(t *testing.T) {
	f := &faultyScene{Scene: testutil.Scene(t, testutil.TwoChainID), panicQuery: true}
	e := New(f)

	res := e.Hide(context.Background(), ChainTarget("A"))
	if res.Success || !errors.Is(res.Err, apperr.ErrAdapterFailure) {
		t.Fatalf("want adapter failure, got %+v", res)
	}
}

func TestEngine_StaleGenerationDiscarded(t *testing.T) {
	f := &faultyScene{Scene: testutil.Scene(t, testutil.TwoChainID)}
	e := New(f)
	f.onQuery = func() { e.Invalidate() }

	res := e.Isolate(context.Background(), "A")
	if res.Success || !errors.Is(res.Err, apperr.ErrStale) {
		t.Fatalf("want stale, got %+v", res)
	}
	if n := visible(t, f.Scene, addressing.Label, "B"); n != 50 {
		t.Errorf("stale work mutated the scene: chain B visible = %d", n)
	}
}

// slowScene records how many mutations overlap.
type slowScene struct {
	*structure.Scene
	active atomic.Int32
	peak   atomic.Int32
}

func (s *slowScene) enter() func() {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return func() { s.active.Add(-1) }
}

func (s *slowScene) SetCurrentSelection(ctx context.Context, l structure.Locus) error {
	defer s.enter()()
	return s.Scene.SetCurrentSelection(ctx, l)
}

func (s *slowScene) SubtractCurrentSelectionFromComponents(ctx context.Context, cs []structure.Component) (structure.ModifyResult, error) {
	defer s.enter()()
	return s.Scene.SubtractCurrentSelectionFromComponents(ctx, cs)
}

func TestEngine_MutationsAreSerialized(t *testing.T) {
	s := &slowScene{Scene: testutil.Scene(t, testutil.TwoChainID)}
	e := New(s)
	ctx := context.Background()

	ops := []func() Result{
		func() Result { return e.Hide(ctx, RangeTarget("A", 1, 10)) },
		func() Result { return e.Hide(ctx, RangeTarget("A", 11, 20)) },
		func() Result { return e.Hide(ctx, RangeTarget("B", 1, 10)) },
		func() Result { return e.IsolateRange(ctx, "A", 40, 60) },
	}
	var wg sync.WaitGroup
	for _, op := range ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := op(); !res.Success {
				t.Errorf("op failed: %+v", res)
			}
		}()
	}
	wg.Wait()

	if p := s.peak.Load(); p != 1 {
		t.Errorf("peak concurrent mutations = %d, want 1", p)
	}
	if n := visible(t, s.Scene, addressing.Label, "A"); n != 21 {
		t.Errorf("chain A visible atoms = %d, want 21", n)
	}
}

func TestEngine_TryBegin(t *testing.T) {
	e := New(testutil.Scene(t, testutil.TwoChainID))

	release, err := e.TryBegin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.TryBegin(); !errors.Is(err, apperr.ErrBusy) {
		t.Fatalf("second claim: want busy, got %v", err)
	}
	release()
	if e.Busy() {
		t.Fatal("still busy after release")
	}
	release2, err := e.TryBegin()
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	release2()
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"hide", "isolate", "highlight", "copy"} {
		if _, err := ParseAction(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := ParseAction("show-all"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("show-all is not a residue action, got %v", err)
	}
}

func TestBoundedTarget(t *testing.T) {
	zero, five, nine := 0, 5, 9
	tests := []struct {
		name       string
		start, end *int
		want       Target
	}{
		{"no bounds", nil, nil, ChainTarget("A")},
		{"start only", &five, nil, RangeTarget("A", 5, 5)},
		{"end only", nil, &nine, RangeTarget("A", 9, 9)},
		{"both", &five, &nine, RangeTarget("A", 5, 9)},
		{"zero residue", &zero, &zero, RangeTarget("A", 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BoundedTarget("A", tt.start, tt.end); got != tt.want {
				t.Errorf("BoundedTarget = %+v, want %+v", got, tt.want)
			}
		})
	}
}
