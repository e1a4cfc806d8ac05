// Package stm implements the State-Transaction Machine: the sentence
// forest that mirrors the prover's internal DAG, the spine of executed
// sentences, and the scheduling of add/edit_at calls against a
// ProverClient.
package stm

import "github.com/sanjit/proofctl/internal/buffer"

// SentenceID is an index into the STM's sentence arena.
type SentenceID int

// RootSentenceID is the sentinel parent of the first sentence on the spine.
const RootSentenceID SentenceID = -1

// SentenceStatus is a sentence's position in its per-sentence state
// machine.
type SentenceStatus int

const (
	StatusParsed SentenceStatus = iota
	StatusProcessing
	StatusInProgress
	StatusIncomplete
	StatusProcessed
	StatusComplete
	StatusError
	StatusCleared
)

func (s SentenceStatus) String() string {
	switch s {
	case StatusParsed:
		return "Parsed"
	case StatusProcessing:
		return "Processing"
	case StatusInProgress:
		return "InProgress"
	case StatusIncomplete:
		return "Incomplete"
	case StatusProcessed:
		return "Processed"
	case StatusComplete:
		return "Complete"
	case StatusError:
		return "Error"
	case StatusCleared:
		return "Cleared"
	default:
		return "Unknown"
	}
}

// OffsetRange is a half-open byte-offset span into the controller's
// TextBuffer. The STM never sees the TextBuffer itself; it
// only ever deals in offsets, which the controller later renders into
// Positions for the client.
type OffsetRange struct {
	Start, End int
}

// SentenceError is one diagnostic attached to a sentence. Unlike the
// sentence's own structural OffsetRange, error ranges are reported by the
// prover in document Position terms and are passed through opaquely.
type SentenceError struct {
	Range   buffer.Range
	Message string
}

// Sentence is one node of the forest the STM maintains.
type Sentence struct {
	ID          SentenceID
	StateID     string // "" until acknowledged by a successful add
	StartOffset int
	EndOffset   int
	Text        string
	Status      SentenceStatus
	Parent      SentenceID
	Errors      []SentenceError
}

func (s Sentence) Range() OffsetRange { return OffsetRange{s.StartOffset, s.EndOffset} }

// Goal is one focused goal, pre-rendered (hypotheses + conclusion), as
// produced by the prover adapter from a ppcmd tree.
type Goal struct {
	ID   string
	Text string
}

// GoalSnapshot is the most recently received proof state for the current
// tip, cached by the STM from the prover's event stream.
type GoalSnapshot struct {
	StateID        string
	Goals          []Goal
	UnfocusedCount int
	ShelvedCount   int
	GivenUpCount   int
	Messages       []string
}

// GoalKind discriminates GoalResult's variants.
type GoalKind int

const (
	GoalNotRunning GoalKind = iota
	GoalNoProof
	GoalProofView
	GoalFailure
	GoalInterrupted
)

// GoalResult is the tagged result of STM.GetGoal. Focus is a raw byte
// offset; the DocumentController annotates it into a Position on
// egress.
type GoalResult struct {
	Kind           GoalKind
	Focus          int
	Goals          []Goal
	UnfocusedCount int
	ShelvedCount   int
	GivenUpCount   int
	Messages       []string
	Message        string
	Range          buffer.Range
}

// ResultKind discriminates StepResult's variants.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultEmpty
	ResultIncomplete
	ResultFailure
	ResultInterrupted
	ResultNotRunning
)

// FailureInfo carries a ProverFailure's message and source range.
type FailureInfo struct {
	Message string
	Range   buffer.Range
}

// StepResult is the tagged result of step_forward, step_backward,
// interpret_to_point and apply_changes.
type StepResult struct {
	Kind        ResultKind
	SentenceID  SentenceID
	FocusOffset int
	Failure     *FailureInfo
}

// NextCommand is one parsed command the controller hands to the STM,
// bound to the tip's current offset.
type NextCommand struct {
	Text        string
	StartOffset int
	EndOffset   int
	EndPos      buffer.Position
	Version     int
}

// CommandOutcome discriminates what a CommandSource produced.
type CommandOutcome int

const (
	CommandReady CommandOutcome = iota
	CommandEmpty
	CommandIncomplete
)

// CommandSource pulls the next command bound to the STM's current tip
// offset. The controller implements this by slicing the TextBuffer and
// calling the SentenceParser; the STM never touches the TextBuffer
// directly.
type CommandSource func() (NextCommand, CommandOutcome)

// EditEffect is one already-applied TextBuffer edit, classified as
// passive or not, together with the offset delta it induced. Deltas must
// be supplied in ascending OldStart order (as buffer.Apply returns them).
type EditEffect struct {
	Delta   buffer.RangeDelta
	Passive bool
}
