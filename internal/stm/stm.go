package stm

import (
	"context"
	"sync"

	"github.com/sanjit/proofctl/internal/buffer"
)

// StatusHook is called whenever a sentence (real or pending) transitions
// status. id is the SentenceID it will have (or already has) in the
// arena; rng is its structural offset range at the time of the call.
type StatusHook func(id SentenceID, rng OffsetRange, status SentenceStatus)

// Hooks bundles the callbacks the STM drives as prover events arrive.
// Any field left nil is simply not called.
type Hooks struct {
	Status   StatusHook
	Message  func(level, text string, rich *string)
	Died     func(reason *string)
	LtacProf func(stateID *string, results any)
}

// STM is the State-Transaction Machine for one document: a forest of
// sentences mirroring the prover's state DAG, the spine of sentences
// currently executed, and the scheduling of add/edit_at calls against a
// ProverClient.
//
// STM's public methods are not safe to call concurrently with each
// other — the DocumentController serializes them — but they are safe
// to call while the background event-dispatch goroutine is running,
// since both paths take mu.
type STM struct {
	prover ProverClient
	hooks  Hooks

	mu          sync.Mutex
	running     bool
	rootStateID string

	arena   []Sentence
	spine   []SentenceID
	byState map[string]SentenceID

	lastFailure *SentenceError
	interrupted bool
	goalView    *GoalSnapshot
}

// New starts the prover via Init and returns a running STM. The caller
// must eventually call Shutdown.
func New(ctx context.Context, prover ProverClient, hooks Hooks) (*STM, error) {
	root, events, err := prover.Init(ctx)
	if err != nil {
		return nil, err
	}
	s := &STM{
		prover:      prover,
		hooks:       hooks,
		running:     true,
		rootStateID: root,
		byState:     make(map[string]SentenceID),
	}
	go s.dispatchEvents(events)
	return s, nil
}

func (s *STM) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Sentences returns a snapshot of the current spine, in order from root
// to tip. The controller uses this to classify edits as passive and to
// render highlight/diagnostic state from scratch (e.g. after Reset).
func (s *STM) Sentences() []Sentence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sentence, len(s.spine))
	for i, id := range s.spine {
		out[i] = s.arena[id]
	}
	return out
}

func (s *STM) dispatchEvents(events <-chan Event) {
	for ev := range events {
		s.handleEvent(ev)
	}
}

func (s *STM) handleEvent(ev Event) {
	s.mu.Lock()
	switch ev.Kind {
	case EventStatusUpdate:
		id, ok := s.byState[ev.StateID]
		if !ok {
			s.mu.Unlock()
			return // off-spine or stale; dropped silently
		}
		status, known := mapProverStatus(ev.Status)
		if !known {
			s.mu.Unlock()
			return
		}
		s.arena[id].Status = status
		s.notifyStatusLocked(id)
		s.mu.Unlock()
	case EventError:
		id, ok := s.byState[ev.StateID]
		if !ok {
			s.mu.Unlock()
			return
		}
		rng := buffer.Range{}
		if ev.SubRange != nil {
			rng = *ev.SubRange
		}
		s.arena[id].Status = StatusError
		s.arena[id].Errors = append(s.arena[id].Errors, SentenceError{Range: rng, Message: ev.Message})
		s.notifyStatusLocked(id)
		s.mu.Unlock()
	case EventGoalUpdate:
		// Only cache goal state for the current tip; a goal update for a
		// state that has since been rewound past is stale.
		tip := s.tipLocked()
		if tip == RootSentenceID || s.arena[tip].StateID != ev.StateID {
			s.mu.Unlock()
			return
		}
		s.goalView = &GoalSnapshot{
			StateID:        ev.StateID,
			Goals:          ev.Goals,
			UnfocusedCount: ev.UnfocusedCount,
			ShelvedCount:   ev.ShelvedCount,
			GivenUpCount:   ev.GivenUpCount,
			Messages:       ev.Messages,
		}
		s.mu.Unlock()
	case EventMessage:
		s.mu.Unlock()
		if s.hooks.Message != nil {
			s.hooks.Message(ev.Level, ev.Message, ev.Rich)
		}
	case EventLtacProfResults:
		s.mu.Unlock()
		if s.hooks.LtacProf != nil {
			s.hooks.LtacProf(nonEmptyPtr(ev.StateID), ev.Results)
		}
	case EventDied:
		// A Died pushed by the adapter's read loop after an explicit
		// Shutdown is not a death; only report the transition.
		wasRunning := s.running
		s.running = false
		s.mu.Unlock()
		if wasRunning && s.hooks.Died != nil {
			s.hooks.Died(ev.Reason)
		}
	default:
		s.mu.Unlock()
	}
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapProverStatus maps the adapter's raw status tokens onto SentenceStatus.
// Unknown tokens are ignored rather than guessed at.
func mapProverStatus(token string) (SentenceStatus, bool) {
	switch token {
	case "Processing":
		return StatusProcessing, true
	case "InProgress":
		return StatusInProgress, true
	case "Incomplete":
		return StatusIncomplete, true
	case "Processed":
		return StatusProcessed, true
	case "Complete":
		return StatusComplete, true
	default:
		return 0, false
	}
}

func (s *STM) notifyStatusLocked(id SentenceID) {
	if s.hooks.Status == nil {
		return
	}
	hook, rng, status := s.hooks.Status, s.arena[id].Range(), s.arena[id].Status
	// Called with mu held; callers must not re-enter the STM from inside
	// the hook. The controller's hook only converts rng to Positions and
	// forwards a single highlight update.
	hook(id, rng, status)
}

func (s *STM) tipLocked() SentenceID {
	if len(s.spine) == 0 {
		return RootSentenceID
	}
	return s.spine[len(s.spine)-1]
}

func (s *STM) focusOffsetLocked() int {
	tip := s.tipLocked()
	if tip == RootSentenceID {
		return 0
	}
	return s.arena[tip].EndOffset
}

func (s *STM) parentStateIDLocked(parent SentenceID) string {
	if parent == RootSentenceID {
		return s.rootStateID
	}
	return s.arena[parent].StateID
}

func (s *STM) addSentenceLocked(text string, start, end int, parent SentenceID) SentenceID {
	id := SentenceID(len(s.arena))
	s.arena = append(s.arena, Sentence{
		ID:          id,
		StartOffset: start,
		EndOffset:   end,
		Text:        text,
		Status:      StatusParsed,
		Parent:      parent,
	})
	return id
}

// StepForward pulls one command from next and attempts to add it as the
// new tip. It is stepForwardLimited with no limit; there, a non-nil limit
// vetoes committing a command whose end offset would exceed *limit — used
// by InterpretToPoint to stop short of overshooting the requested point.
func (s *STM) StepForward(ctx context.Context, next CommandSource) (StepResult, error) {
	return s.stepForwardLimited(ctx, next, nil)
}

func (s *STM) stepForwardLimited(ctx context.Context, next CommandSource, limit *int) (StepResult, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StepResult{Kind: ResultNotRunning}, nil
	}
	s.lastFailure = nil
	s.interrupted = false

	cmd, outcome := next()
	switch outcome {
	case CommandEmpty:
		r := StepResult{Kind: ResultEmpty, FocusOffset: s.focusOffsetLocked()}
		s.mu.Unlock()
		return r, nil
	case CommandIncomplete:
		r := StepResult{Kind: ResultIncomplete, FocusOffset: s.focusOffsetLocked()}
		s.mu.Unlock()
		return r, nil
	}
	if limit != nil && cmd.EndOffset > *limit {
		r := StepResult{Kind: ResultEmpty, FocusOffset: s.focusOffsetLocked()}
		s.mu.Unlock()
		return r, nil
	}

	parent := s.tipLocked()
	parentStateID := s.parentStateIDLocked(parent)
	pendingID := SentenceID(len(s.arena))
	pendingRange := OffsetRange{cmd.StartOffset, cmd.EndOffset}
	s.notifyPendingLocked(pendingID, pendingRange, StatusParsed)
	s.mu.Unlock()

	res, err := s.prover.Add(ctx, cmd.Text, parentStateID, cmd.EndPos, cmd.Version)
	if err != nil && ctx.Err() != nil {
		// The add was abandoned locally; tell the prover to stop chewing on
		// it too.
		s.prover.Interrupt()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StepResult{Kind: ResultNotRunning}, nil
	}
	if fe, ok := AsFailure(err); ok {
		s.lastFailure = &SentenceError{Range: fe.Range, Message: fe.Message}
		s.notifyPendingLocked(pendingID, pendingRange, StatusError)
		return StepResult{
			Kind:        ResultFailure,
			FocusOffset: s.focusOffsetLocked(),
			Failure:     &FailureInfo{Message: fe.Message, Range: fe.Range},
		}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			s.interrupted = true
			s.notifyPendingLocked(pendingID, pendingRange, StatusCleared)
			return StepResult{Kind: ResultInterrupted, FocusOffset: s.focusOffsetLocked()}, nil
		}
		return StepResult{}, err
	}

	id := s.addSentenceLocked(cmd.Text, cmd.StartOffset, cmd.EndOffset, parent)
	s.arena[id].StateID = res.StateID
	s.arena[id].Status = StatusProcessing
	s.byState[res.StateID] = id
	s.spine = append(s.spine, id)
	if res.Goal != nil {
		s.goalView = res.Goal
	}
	s.notifyStatusLocked(id)
	return StepResult{Kind: ResultContinue, SentenceID: id, FocusOffset: cmd.EndOffset}, nil
}

// notifyPendingLocked fires the status hook for a sentence that does not
// (or no longer) exist in the arena, by constructing a synthetic view.
func (s *STM) notifyPendingLocked(id SentenceID, rng OffsetRange, status SentenceStatus) {
	if s.hooks.Status == nil {
		return
	}
	s.hooks.Status(id, rng, status)
}

// StepBackward rewinds the tip to its predecessor. If the
// spine is empty, it rewinds the prover itself to the root state.
func (s *STM) StepBackward(ctx context.Context) (StepResult, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StepResult{Kind: ResultNotRunning}, nil
	}
	s.lastFailure = nil
	s.interrupted = false
	if len(s.spine) == 0 {
		s.mu.Unlock()
		return s.editAtAndTruncate(ctx, s.rootStateID, 0)
	}
	keep := len(s.spine) - 1
	predStateID := s.parentStateIDLocked(parentOf(s.spine, keep))
	s.mu.Unlock()
	return s.editAtAndTruncate(ctx, predStateID, keep)
}

func parentOf(spine []SentenceID, keep int) SentenceID {
	if keep == 0 {
		return RootSentenceID
	}
	return spine[keep-1]
}

// editAtAndTruncate issues edit_at(targetStateID) and, on success,
// truncates the spine to keep sentences, clearing the rest.
func (s *STM) editAtAndTruncate(ctx context.Context, targetStateID string, keep int) (StepResult, error) {
	fc, err := s.prover.EditAt(ctx, targetStateID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StepResult{Kind: ResultNotRunning}, nil
	}
	if fe, ok := AsFailure(err); ok {
		s.lastFailure = &SentenceError{Range: fe.Range, Message: fe.Message}
		return StepResult{Kind: ResultFailure, FocusOffset: s.focusOffsetLocked(), Failure: &FailureInfo{Message: fe.Message, Range: fe.Range}}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			s.interrupted = true
			return StepResult{Kind: ResultInterrupted, FocusOffset: s.focusOffsetLocked()}, nil
		}
		return StepResult{}, err
	}
	s.applyFocusChangeLocked(fc, keep)
	return StepResult{Kind: ResultContinue, FocusOffset: s.focusOffsetLocked()}, nil
}

// applyFocusChangeLocked clears every spine sentence beyond keep and
// reconciles the new focus per edit_at's reported FocusChange, which
// is taken as authoritative.
func (s *STM) applyFocusChangeLocked(fc FocusChange, keep int) {
	for _, id := range s.spine[keep:] {
		s.arena[id].Status = StatusCleared
		delete(s.byState, s.arena[id].StateID)
		s.notifyStatusLocked(id)
	}
	s.spine = s.spine[:keep]
	s.goalView = nil

	switch fc.Kind {
	case FocusNewTip:
		// Predecessor is already the tip; nothing further to reconcile.
	case FocusNewFocus:
		if id, ok := s.byState[fc.QedStateID]; ok {
			s.arena[id].Status = StatusComplete
			s.notifyStatusLocked(id)
		}
		// fc.FocusStateID is not consulted: no sibling branch is
		// reconstructed (the core drives one focused tip at a time), and
		// the tip stays the last sentence of the truncated spine.
	}
}

// InterpretToPoint drives the spine to reflect exactly the sentences
// ending at or before target, rewinding or stepping forward as needed.
func (s *STM) InterpretToPoint(ctx context.Context, target int, next CommandSource) (StepResult, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StepResult{Kind: ResultNotRunning}, nil
	}
	s.lastFailure = nil
	s.interrupted = false
	focus := s.focusOffsetLocked()
	s.mu.Unlock()

	if target < focus {
		return s.rewindToOffset(ctx, target)
	}
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			running := s.running
			s.interrupted = true
			s.mu.Unlock()
			if running {
				s.prover.Interrupt()
			}
			return StepResult{Kind: ResultInterrupted, FocusOffset: s.FocusOffset()}, nil
		default:
		}
		limit := target
		res, err := s.stepForwardLimited(ctx, next, &limit)
		if err != nil {
			return StepResult{}, err
		}
		if res.Kind != ResultContinue {
			return res, nil
		}
		if res.FocusOffset >= target {
			return res, nil
		}
	}
}

func (s *STM) rewindToOffset(ctx context.Context, target int) (StepResult, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StepResult{Kind: ResultNotRunning}, nil
	}
	idx := 0
	for idx < len(s.spine) && s.arena[s.spine[idx]].EndOffset <= target {
		idx++
	}
	if idx == len(s.spine) {
		r := StepResult{Kind: ResultContinue, FocusOffset: s.focusOffsetLocked()}
		s.mu.Unlock()
		return r, nil
	}
	predStateID := s.parentStateIDLocked(parentOf(s.spine, idx))
	s.mu.Unlock()
	return s.editAtAndTruncate(ctx, predStateID, idx)
}

// ApplyChanges reconciles the spine against a batch of already-applied
// TextBuffer edits: any edit that is not passive and intersects a
// tracked sentence forces a rewind to that sentence's parent; every
// surviving sentence has its offsets carried forward by the deltas.
func (s *STM) ApplyChanges(ctx context.Context, edits []EditEffect) (StepResult, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StepResult{Kind: ResultNotRunning}, nil
	}
	s.lastFailure = nil
	s.interrupted = false

	rewindIdx := -1
	for _, e := range edits {
		if e.Passive {
			continue
		}
		for i, id := range s.spine {
			sent := &s.arena[id]
			if sent.StartOffset < e.Delta.OldEnd && e.Delta.OldStart < sent.EndOffset {
				if rewindIdx == -1 || i < rewindIdx {
					rewindIdx = i
				}
				break
			}
		}
	}

	if rewindIdx == -1 {
		s.shiftSpineLocked(edits)
		r := StepResult{Kind: ResultContinue, FocusOffset: s.focusOffsetLocked()}
		s.mu.Unlock()
		return r, nil
	}

	parentStateID := s.parentStateIDLocked(parentOf(s.spine, rewindIdx))
	s.mu.Unlock()

	fc, err := s.prover.EditAt(ctx, parentStateID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StepResult{Kind: ResultNotRunning}, nil
	}
	if fe, ok := AsFailure(err); ok {
		s.lastFailure = &SentenceError{Range: fe.Range, Message: fe.Message}
		return StepResult{Kind: ResultFailure, FocusOffset: s.focusOffsetLocked(), Failure: &FailureInfo{Message: fe.Message, Range: fe.Range}}, nil
	}
	if err != nil {
		return StepResult{}, err
	}
	s.applyFocusChangeLocked(fc, rewindIdx)
	s.shiftSpineLocked(edits)
	return StepResult{Kind: ResultContinue, FocusOffset: s.focusOffsetLocked()}, nil
}

func (s *STM) shiftSpineLocked(edits []EditEffect) {
	if len(edits) == 0 {
		return
	}
	deltas := make([]buffer.RangeDelta, len(edits))
	for i, e := range edits {
		deltas[i] = e.Delta
	}
	for _, id := range s.spine {
		sent := &s.arena[id]
		if newStart, consumed := buffer.TransformOffset(sent.StartOffset, deltas); !consumed {
			sent.StartOffset = newStart
		}
		if newEnd, consumed := buffer.TransformOffset(sent.EndOffset, deltas); !consumed {
			sent.EndOffset = newEnd
		}
	}
}

// FocusOffset returns the current tip's end offset (0 if the spine is
// empty), i.e. where the next sentence would begin.
func (s *STM) FocusOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusOffsetLocked()
}

// GetGoal reports the cached proof state for the current tip. It
// never issues a prover request; goal state arrives with a successful
// Add's result or via EventGoalUpdate on the event stream.
func (s *STM) GetGoal() GoalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	focus := s.focusOffsetLocked()
	if !s.running {
		return GoalResult{Kind: GoalNotRunning, Focus: focus}
	}
	if s.lastFailure != nil {
		return GoalResult{Kind: GoalFailure, Message: s.lastFailure.Message, Range: s.lastFailure.Range, Focus: focus}
	}
	if s.interrupted {
		return GoalResult{Kind: GoalInterrupted, Focus: focus}
	}
	if len(s.spine) == 0 {
		return GoalResult{Kind: GoalNoProof, Focus: focus}
	}
	if s.goalView == nil || len(s.goalView.Goals) == 0 {
		return GoalResult{Kind: GoalNoProof, Focus: focus}
	}
	return GoalResult{
		Kind:           GoalProofView,
		Focus:          focus,
		Goals:          s.goalView.Goals,
		UnfocusedCount: s.goalView.UnfocusedCount,
		ShelvedCount:   s.goalView.ShelvedCount,
		GivenUpCount:   s.goalView.GivenUpCount,
		Messages:       s.goalView.Messages,
	}
}

// Diagnostics returns the full, current set of sentence errors on the
// spine plus the most recent add failure (which never made it onto the
// spine). The controller sends this as a full replacement list after
// every operation.
func (s *STM) Diagnostics() []SentenceError {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentenceError
	for _, id := range s.spine {
		out = append(out, s.arena[id].Errors...)
	}
	if s.lastFailure != nil {
		out = append(out, *s.lastFailure)
	}
	return out
}

// DoQuery issues a read-only request against the current prover state.
func (s *STM) DoQuery(ctx context.Context, kind QueryKind, argument string) (string, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return "", ErrNotRunning
	}
	return s.prover.Query(ctx, kind, argument)
}

// LtacProfile requests Ltac profiling results for stateID (nil for
// cumulative); results arrive asynchronously via Hooks.LtacProf.
func (s *STM) LtacProfile(stateID *string) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return s.prover.LtacProfile(stateID)
}

// Resize forwards a goal-display width change to the prover.
func (s *STM) Resize(columns int) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		s.prover.Resize(columns)
	}
}

// Interrupt asks the prover to abandon its current in-flight request.
func (s *STM) Interrupt() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		s.prover.Interrupt()
	}
}

// Shutdown stops the prover. After Shutdown, every STM method returns
// ResultNotRunning / ErrNotRunning.
func (s *STM) Shutdown() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()
	return s.prover.Shutdown()
}
