package stm

import (
	"context"
	"fmt"
	"sync"

	"github.com/sanjit/proofctl/internal/buffer"
)

// fakeProver is a deterministic in-memory ProverClient double. Every
// Add succeeds unless its text is registered in failOn, in which case it
// returns a *FailureError. State IDs are assigned sequentially so tests
// can assert on them directly.
type fakeProver struct {
	mu       sync.Mutex
	events   chan Event
	nextID   int
	failOn   map[string]string // sentence text -> failure message
	died     bool
	shutdown bool

	addCalls  []string
	editCalls []string
}

func newFakeProver() *fakeProver {
	return &fakeProver{
		events: make(chan Event, 64),
		failOn: make(map[string]string),
	}
}

func (f *fakeProver) Init(ctx context.Context) (string, <-chan Event, error) {
	return "root", f.events, nil
}

func (f *fakeProver) Add(ctx context.Context, text string, parentStateID string, endPos buffer.Position, version int) (AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, text)
	if msg, bad := f.failOn[text]; bad {
		return AddResult{}, &FailureError{FailureAt{Message: msg}}
	}
	f.nextID++
	id := fmt.Sprintf("s%d", f.nextID)
	// Deliberately does not push StatusUpdate events here: in the real
	// adapter those arrive asynchronously, strictly after the state_id is
	// visible to the caller. Keeping them out keeps ordering deterministic;
	// the tests here do not exercise that asynchronous status cascade.
	return AddResult{StateID: id}, nil
}

func (f *fakeProver) EditAt(ctx context.Context, stateID string) (FocusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls = append(f.editCalls, stateID)
	return FocusChange{Kind: FocusNewTip, StateID: stateID}, nil
}

func (f *fakeProver) Query(ctx context.Context, kind QueryKind, argument string) (string, error) {
	return "ok:" + argument, nil
}

func (f *fakeProver) Interrupt() {}

func (f *fakeProver) Resize(columns int) {}

func (f *fakeProver) LtacProfile(stateID *string) error { return nil }

func (f *fakeProver) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.shutdown {
		f.shutdown = true
		close(f.events)
	}
	return nil
}

func (f *fakeProver) kill(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.died || f.shutdown {
		return
	}
	f.died = true
	f.events <- Event{Kind: EventDied, Reason: &reason}
	close(f.events)
	f.shutdown = true
}
