package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sanjit/proofctl/internal/buffer"
	"github.com/sanjit/proofctl/internal/stm"
)

// fakeProver mirrors internal/stm's fakeProver test double: deterministic,
// sequential state IDs, an optional failOn map for scripted failures.
type fakeProver struct {
	mu       sync.Mutex
	events   chan stm.Event
	nextID   int
	failOn   map[string]string
	shutdown bool
}

func newFakeProver() *fakeProver {
	return &fakeProver{events: make(chan stm.Event, 64), failOn: make(map[string]string)}
}

func (f *fakeProver) Init(ctx context.Context) (string, <-chan stm.Event, error) {
	return "root", f.events, nil
}

func (f *fakeProver) Add(ctx context.Context, text string, parentStateID string, endPos buffer.Position, version int) (stm.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, bad := f.failOn[text]; bad {
		return stm.AddResult{}, &stm.FailureError{FailureAt: stm.FailureAt{Message: msg}}
	}
	f.nextID++
	return stm.AddResult{StateID: fmt.Sprintf("s%d", f.nextID)}, nil
}

func (f *fakeProver) EditAt(ctx context.Context, stateID string) (stm.FocusChange, error) {
	return stm.FocusChange{Kind: stm.FocusNewTip, StateID: stateID}, nil
}

func (f *fakeProver) Query(ctx context.Context, kind stm.QueryKind, argument string) (string, error) {
	return "ok:" + argument, nil
}

func (f *fakeProver) Interrupt()                {}
func (f *fakeProver) Resize(columns int)        {}
func (f *fakeProver) LtacProfile(*string) error { return nil }

func (f *fakeProver) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.shutdown {
		f.shutdown = true
		close(f.events)
	}
	return nil
}

func newTestController(t *testing.T, text string, hooks Hooks) (*DocumentController, *fakeProver) {
	t.Helper()
	fp := newFakeProver()
	factory := func(ctx context.Context) (stm.ProverClient, error) { return fp, nil }
	dc, err := New(context.Background(), factory, text, hooks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dc, fp
}

func TestStepForwardGrowsSpine(t *testing.T) {
	dc, _ := newTestController(t, "intro n. reflexivity. Qed.", Hooks{})
	defer dc.Quit()

	for i := 0; i < 3; i++ {
		res, err := dc.StepForward(context.Background())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Kind != ResultOK {
			t.Fatalf("step %d: expected ResultOK, got %v", i, res.Kind)
		}
	}
	if got := len(dc.Sentences()); got != 3 {
		t.Fatalf("expected 3 sentences, got %d", got)
	}
	res, err := dc.StepForward(context.Background())
	if err != nil {
		t.Fatalf("final step: %v", err)
	}
	if res.Kind != ResultEmpty {
		t.Fatalf("expected ResultEmpty at end of document, got %v", res.Kind)
	}
}

func TestStepForwardFailureReported(t *testing.T) {
	var mu sync.Mutex
	var diags []Diagnostic
	dc, fp := newTestController(t, "intro n. reflexivity. Qed.", Hooks{
		Diagnostics: func(d []Diagnostic) { mu.Lock(); diags = d; mu.Unlock() },
	})
	defer dc.Quit()
	fp.failOn["reflexivity."] = "Unable to unify."

	if _, err := dc.StepForward(context.Background()); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	res, err := dc.StepForward(context.Background())
	if err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if res.Kind != ResultFailure {
		t.Fatalf("expected ResultFailure, got %v", res.Kind)
	}
	if res.Failure == nil || res.Failure.Message != "Unable to unify." {
		t.Fatalf("expected failure message, got %+v", res.Failure)
	}
	mu.Lock()
	defer mu.Unlock()
	_ = diags // diagnostics hook is exercised; STM tracks last failure separately
}

func TestHighlightHookReceivesUpdates(t *testing.T) {
	var mu sync.Mutex
	var updates []HighlightUpdate
	dc, _ := newTestController(t, "intro n. Qed.", Hooks{
		Highlight: func(u []HighlightUpdate) {
			mu.Lock()
			updates = append(updates, u...)
			mu.Unlock()
		},
	})
	defer dc.Quit()

	if _, err := dc.StepForward(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) == 0 {
		t.Fatalf("expected at least one highlight update")
	}
}

func TestApplyTextEditsFullReplaceForcesRewind(t *testing.T) {
	dc, _ := newTestController(t, "intro n. reflexivity. Qed.", Hooks{})
	defer dc.Quit()

	if _, err := dc.StepForward(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := len(dc.Sentences()); got != 1 {
		t.Fatalf("expected 1 sentence before replace, got %d", got)
	}

	res, err := dc.ApplyTextEdits(context.Background(), []buffer.ContentChange{
		{Range: nil, Text: "intro m. reflexivity. Qed."},
	}, 2)
	if err != nil {
		t.Fatalf("ApplyTextEdits: %v", err)
	}
	if res.Kind == ResultStaleEdit {
		t.Fatalf("unexpected stale edit")
	}
	if got := len(dc.Sentences()); got != 0 {
		t.Fatalf("expected spine rewound to empty after full replace, got %d", got)
	}
	if dc.Text() != "intro m. reflexivity. Qed." {
		t.Fatalf("unexpected text after replace: %q", dc.Text())
	}
}

func TestApplyTextEditsStaleVersionRejected(t *testing.T) {
	dc, _ := newTestController(t, "intro n. Qed.", Hooks{})
	defer dc.Quit()

	res, err := dc.ApplyTextEdits(context.Background(), []buffer.ContentChange{
		{Range: nil, Text: "x."},
	}, 0)
	if err != nil {
		t.Fatalf("ApplyTextEdits: %v", err)
	}
	if res.Kind != ResultStaleEdit {
		t.Fatalf("expected ResultStaleEdit, got %v", res.Kind)
	}
}

func TestResetRebuildsMachinePreservingText(t *testing.T) {
	dc, _ := newTestController(t, "intro n. Qed.", Hooks{})
	defer dc.Quit()

	if _, err := dc.StepForward(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := dc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := len(dc.Sentences()); got != 0 {
		t.Fatalf("expected empty spine after reset, got %d", got)
	}
	if dc.Text() != "intro n. Qed." {
		t.Fatalf("expected text preserved across reset, got %q", dc.Text())
	}
	if !dc.IsRunning() {
		t.Fatalf("expected a fresh running machine after reset")
	}
}

func TestDiedHookFiresOnProverDeath(t *testing.T) {
	var mu sync.Mutex
	resetCalled := false
	dc, fp := newTestController(t, "intro n. Qed.", Hooks{
		Reset: func() { mu.Lock(); resetCalled = true; mu.Unlock() },
	})
	defer dc.Quit()

	fp.mu.Lock()
	reason := "process exited"
	fp.events <- stm.Event{Kind: stm.EventDied, Reason: &reason}
	fp.mu.Unlock()

	// Give the STM's dispatch goroutine a chance to process the event.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		fired := resetCalled
		mu.Unlock()
		if fired {
			break
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if !resetCalled {
		t.Fatalf("expected Reset hook to fire after ProverDied event")
	}
}
