package stm

import (
	"context"
	"errors"

	"github.com/sanjit/proofctl/internal/buffer"
)

// QueryKind discriminates the read-only query forms DoQuery accepts.
type QueryKind int

const (
	QueryLocate QueryKind = iota
	QueryCheck
	QuerySearch
	QuerySearchAbout
	// QueryPrint prints an identifier's full definition (Rocq's `Print`),
	// kept distinct from QueryCheck since vsrocqtop exposes it as its own
	// RPC rather than an alias.
	QueryPrint
)

// AddResult is what a successful Add returns: the new state_id the
// prover assigned. Goal is an optional proof-state snapshot the adapter
// already had in hand by the time Add settled (most adapters wait for a
// proof-state notification before returning); when present the STM
// adopts it directly instead of waiting for a later EventGoalUpdate,
// which avoids a registration race between Add's return and the event
// stream.
type AddResult struct {
	StateID string
	Goal    *GoalSnapshot
}

// FailureAt describes a prover-reported failure anchored to a document
// range, e.g. a tactic that fails mid-proof.
type FailureAt struct {
	Range   buffer.Range
	Message string
}

// FailureError wraps a FailureAt so it can travel through Go's error
// return without losing its structured range and message.
type FailureError struct {
	FailureAt
}

func (e *FailureError) Error() string { return e.Message }

// AsFailure unwraps err into a *FailureError, following the same
// contract as errors.As.
func AsFailure(err error) (*FailureError, bool) {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// FocusChangeKind discriminates what edit_at reported about the new
// focus.
type FocusChangeKind int

const (
	// FocusNewTip means the prover simply rewound to the requested state;
	// that state is now the tip.
	FocusNewTip FocusChangeKind = iota
	// FocusNewFocus means edit_at landed inside an already-closed (qed'd)
	// proof and revealed a still-open, unfocused sibling goal.
	FocusNewFocus
)

// FocusChange is edit_at's result.
type FocusChange struct {
	Kind         FocusChangeKind
	StateID      string // for FocusNewTip
	QedStateID   string // for FocusNewFocus: the state that closed the proof
	FocusStateID string // for FocusNewFocus: the state now in focus
}

// EventKind discriminates the asynchronous events a ProverClient pushes
// after Init.
type EventKind int

const (
	EventStatusUpdate EventKind = iota
	EventError
	EventMessage
	EventLtacProfResults
	EventGoalUpdate
	EventDied
)

// Event is one item from a ProverClient's event stream. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// EventStatusUpdate, EventError, EventGoalUpdate
	StateID string

	// EventStatusUpdate: raw status token as reported by the prover
	// ("Processing", "InProgress", "Processed", ...).
	Status string

	// EventError
	SubRange *buffer.Range
	Message  string

	// EventMessage
	Level string
	Rich  *string

	// EventLtacProfResults
	Results any

	// EventGoalUpdate
	Goals          []Goal
	UnfocusedCount int
	ShelvedCount   int
	GivenUpCount   int
	Messages       []string

	// EventDied
	Reason *string
}

// ProverClient is the STM's sole external collaborator: a running proof
// assistant process exposing an incremental add/edit_at/query surface
// plus an asynchronous event stream. Implementations must
// serialize their own requests; the STM never issues more than one
// blocking call at a time.
type ProverClient interface {
	// Init starts the prover (if not already started) and returns the
	// initial state_id (the root of the document's state DAG) plus the
	// channel the client will push events on for the lifetime of the
	// connection. The channel is closed after a Died event or Shutdown.
	Init(ctx context.Context) (rootStateID string, events <-chan Event, err error)

	// Add submits one sentence's text as a child of parentStateID. On
	// success it returns the new state_id. On a prover-side rejection it
	// returns a *FailureError. Any other error is transport/internal.
	Add(ctx context.Context, text string, parentStateID string, endPos buffer.Position, version int) (AddResult, error)

	// EditAt rewinds (or refocuses) the proof state to stateID.
	EditAt(ctx context.Context, stateID string) (FocusChange, error)

	// Query issues a read-only request that never mutates prover state.
	Query(ctx context.Context, kind QueryKind, argument string) (string, error)

	// Interrupt asks the prover to abandon its current in-flight request.
	// It does not block for acknowledgement; the caller observes the
	// in-flight call returning (with a cancellation-shaped error) instead.
	Interrupt()

	// Resize informs the prover of the client's goal-display width, for
	// pretty-printing.
	Resize(columns int)

	// LtacProfile requests Ltac profiling results, either for one state or
	// (stateID == nil) cumulatively; results arrive as an
	// EventLtacProfResults event.
	LtacProfile(stateID *string) error

	// Shutdown terminates the prover process and releases its resources.
	Shutdown() error
}

// ErrNotRunning is returned by STM operations issued after Shutdown or
// after the prover has died.
var ErrNotRunning = errors.New("stm: prover not running")
