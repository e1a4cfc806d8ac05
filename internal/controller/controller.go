// Package controller implements the DocumentController: the per-document
// façade that validates incoming edits against the STM, applies them to a
// TextBuffer, dispatches user commands, assembles CommandResult payloads,
// throttles "computing" status, and translates STM sentence statuses into
// client highlight arrays.
package controller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sanjit/proofctl/internal/buffer"
	"github.com/sanjit/proofctl/internal/sentence"
	"github.com/sanjit/proofctl/internal/stm"
)

// computingCadence is the sampling interval for "computing" status updates
// during long prover calls.
const computingCadence = 500 * time.Millisecond

// HighlightStyle is the closed set of client highlight styles.
type HighlightStyle int

const (
	HighlightClear HighlightStyle = iota
	HighlightParsing
	HighlightProcessing
	HighlightInProgress
	HighlightIncomplete
	HighlightProcessed
	HighlightComplete
	HighlightTacticFailure
)

func (h HighlightStyle) String() string {
	switch h {
	case HighlightClear:
		return "Clear"
	case HighlightParsing:
		return "Parsing"
	case HighlightProcessing:
		return "Processing"
	case HighlightInProgress:
		return "InProgress"
	case HighlightIncomplete:
		return "Incomplete"
	case HighlightProcessed:
		return "Processed"
	case HighlightComplete:
		return "Complete"
	case HighlightTacticFailure:
		return "TacticFailure"
	default:
		return "Unknown"
	}
}

// statusHighlight is the fixed mapping from sentence status to client
// highlight style.
var statusHighlight = map[stm.SentenceStatus]HighlightStyle{
	stm.StatusParsed:     HighlightParsing,
	stm.StatusProcessing: HighlightProcessing,
	stm.StatusInProgress: HighlightInProgress,
	stm.StatusIncomplete: HighlightIncomplete,
	stm.StatusProcessed:  HighlightProcessed,
	stm.StatusComplete:   HighlightComplete,
	stm.StatusError:      HighlightTacticFailure,
	stm.StatusCleared:    HighlightClear,
}

// HighlightUpdate is one {style, range} pair pushed to the client.
type HighlightUpdate struct {
	Style HighlightStyle
	Range buffer.Range
}

// Diagnostic is one LSP-shaped diagnostic. Severity follows LSP numbering;
// this controller only ever produces 1 (Error).
type Diagnostic struct {
	Range    buffer.Range
	Severity int
	Message  string
}

// Hooks bundles the controller's outbound notifications. A nil
// field is simply never called.
type Hooks struct {
	Highlight       func([]HighlightUpdate)
	Diagnostics     func([]Diagnostic)
	Message         func(level, text string, rich *string)
	Reset           func()
	LtacProf        func(stateID *string, results any)
	ComputingStatus func(status string, elapsedMs int64)
}

// ResultKind discriminates CommandResult's variants. It mirrors
// stm.ResultKind plus the controller-level StaleEdit outcome.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultEmpty
	ResultIncomplete
	ResultFailure
	ResultInterrupted
	ResultNotRunning
	ResultStaleEdit
)

// CommandResult is the tagged result of every mutating controller command
// (design note: tagged result variants with a shared Focus field).
type CommandResult struct {
	Kind    ResultKind
	Focus   buffer.Position
	Failure *stm.FailureInfo
}

// GoalResult mirrors stm.GoalResult with Focus rendered as a document
// Position instead of a raw byte offset.
type GoalResult struct {
	Kind           stm.GoalKind
	Focus          buffer.Position
	Goals          []stm.Goal
	UnfocusedCount int
	ShelvedCount   int
	GivenUpCount   int
	Messages       []string
	Message        string
	Range          buffer.Range
}

// ProverFactory starts a fresh ProverClient. The controller calls it once
// at construction and again on every explicit Reset — DocumentController
// owns prover lifecycle, not the STM.
type ProverFactory func(ctx context.Context) (stm.ProverClient, error)

// DocumentController is the top-level per-document façade:
// it owns a TextBuffer, an STM, and the callback bag the STM's sentence
// events and the controller's own edit/command handling are translated
// into. opMu serializes controller-level operations the way a
// single-consumer op queue would; bufMu separately guards the
// TextBuffer against the STM's asynchronous status-hook goroutine reading
// positions concurrently with an in-flight edit.
type DocumentController struct {
	factory ProverFactory
	hooks   Hooks

	opMu sync.Mutex

	bufMu sync.Mutex
	buf   *buffer.TextBuffer

	machineMu sync.Mutex
	machine   *stm.STM
}

// New starts a fresh prover via factory and returns a ready controller
// seeded with initialText at version 1.
func New(ctx context.Context, factory ProverFactory, initialText string, hooks Hooks) (*DocumentController, error) {
	dc := &DocumentController{
		factory: factory,
		hooks:   hooks,
		buf:     buffer.New(initialText, 1),
	}
	prover, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	machine, err := stm.New(ctx, prover, dc.stmHooks())
	if err != nil {
		return nil, err
	}
	dc.machine = machine
	return dc, nil
}

func (dc *DocumentController) stmHooks() stm.Hooks {
	return stm.Hooks{
		Status:   dc.onStatus,
		Message:  dc.onMessage,
		Died:     dc.onDied,
		LtacProf: dc.onLtacProf,
	}
}

func (dc *DocumentController) currentMachine() *stm.STM {
	dc.machineMu.Lock()
	defer dc.machineMu.Unlock()
	return dc.machine
}

// onStatus is the STM's per-sentence status hook; it is called with the
// STM's own mutex held, so it must not call back into the STM (matching
// its documented contract) — it only resolves a document Position and
// forwards a single-element highlight update.
func (dc *DocumentController) onStatus(id stm.SentenceID, rng stm.OffsetRange, status stm.SentenceStatus) {
	if dc.hooks.Highlight == nil {
		return
	}
	dc.bufMu.Lock()
	r := buffer.Range{Start: dc.buf.PositionAt(rng.Start), End: dc.buf.PositionAt(rng.End)}
	dc.bufMu.Unlock()
	style, ok := statusHighlight[status]
	if !ok {
		style = HighlightClear
	}
	dc.hooks.Highlight([]HighlightUpdate{{Style: style, Range: r}})
}

func (dc *DocumentController) onMessage(level, text string, rich *string) {
	if dc.hooks.Message != nil {
		dc.hooks.Message(level, text, rich)
	}
}

// onDied is the STM's prover-death hook: the controller
// emits reset() to the client and leaves every subsequent call returning
// NotRunning until the client issues the explicit reset command.
func (dc *DocumentController) onDied(reason *string) {
	if dc.hooks.Reset != nil {
		dc.hooks.Reset()
	}
}

func (dc *DocumentController) onLtacProf(stateID *string, results any) {
	if dc.hooks.LtacProf != nil {
		dc.hooks.LtacProf(stateID, results)
	}
}

// newCommandSource builds a stm.CommandSource that lazily slices the
// TextBuffer and delimits sentences starting at start, advancing its own
// cursor on each call; the STM never touches the TextBuffer directly.
func (dc *DocumentController) newCommandSource(start int) stm.CommandSource {
	offset := start
	return func() (stm.NextCommand, stm.CommandOutcome) {
		dc.bufMu.Lock()
		defer dc.bufMu.Unlock()
		text := dc.buf.Substr(offset, dc.buf.Len()-offset)
		r := sentence.Parse(text)
		switch r.Outcome {
		case sentence.Incomplete:
			return stm.NextCommand{}, stm.CommandIncomplete
		case sentence.Empty:
			return stm.NextCommand{}, stm.CommandEmpty
		}
		start := offset + r.TrimStart
		end := offset + r.Length
		cmd := stm.NextCommand{
			Text:        text[r.TrimStart:r.Length],
			StartOffset: start,
			EndOffset:   end,
			EndPos:      dc.buf.PositionAt(end),
			Version:     dc.buf.Version(),
		}
		offset = end
		return cmd, stm.CommandReady
	}
}

func (dc *DocumentController) toCommandResult(r stm.StepResult) CommandResult {
	dc.bufMu.Lock()
	focus := dc.buf.PositionAt(r.FocusOffset)
	dc.bufMu.Unlock()

	kinds := map[stm.ResultKind]ResultKind{
		stm.ResultContinue:    ResultOK,
		stm.ResultEmpty:       ResultEmpty,
		stm.ResultIncomplete:  ResultIncomplete,
		stm.ResultFailure:     ResultFailure,
		stm.ResultInterrupted: ResultInterrupted,
		stm.ResultNotRunning:  ResultNotRunning,
	}
	return CommandResult{Kind: kinds[r.Kind], Focus: focus, Failure: r.Failure}
}

func (dc *DocumentController) publishDiagnostics() {
	if dc.hooks.Diagnostics == nil {
		return
	}
	errs := dc.currentMachine().Diagnostics()
	out := make([]Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = Diagnostic{Range: e.Range, Severity: 1, Message: e.Message}
	}
	dc.hooks.Diagnostics(out)
}

type computingSampler struct {
	stop chan struct{}
	done chan struct{}
}

// beginComputing starts sampling elapsed wall-clock time at computingCadence
// for the duration of a long prover call.
func (dc *DocumentController) beginComputing(status string) *computingSampler {
	if dc.hooks.ComputingStatus == nil {
		return nil
	}
	s := &computingSampler{stop: make(chan struct{}), done: make(chan struct{})}
	start := time.Now()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(computingCadence)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				dc.hooks.ComputingStatus(status, now.Sub(start).Milliseconds())
			}
		}
	}()
	return s
}

func (dc *DocumentController) endComputing(s *computingSampler) {
	if s == nil {
		return
	}
	close(s.stop)
	<-s.done
}

// StepForward parses and submits the next sentence after the current
// focus.
func (dc *DocumentController) StepForward(ctx context.Context) (CommandResult, error) {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()

	sampler := dc.beginComputing("stepForward")
	defer dc.endComputing(sampler)

	machine := dc.currentMachine()
	start := machine.FocusOffset()
	res, err := machine.StepForward(ctx, dc.newCommandSource(start))
	if err != nil {
		return CommandResult{}, err
	}
	dc.publishDiagnostics()
	return dc.toCommandResult(res), nil
}

// StepBackward rewinds the tip to its predecessor.
func (dc *DocumentController) StepBackward(ctx context.Context) (CommandResult, error) {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()

	sampler := dc.beginComputing("stepBackward")
	defer dc.endComputing(sampler)

	res, err := dc.currentMachine().StepBackward(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	dc.publishDiagnostics()
	return dc.toCommandResult(res), nil
}

// InterpretToPoint drives the spine to reflect exactly the sentences ending
// at or before targetOffset.
func (dc *DocumentController) InterpretToPoint(ctx context.Context, targetOffset int) (CommandResult, error) {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()

	sampler := dc.beginComputing("interpretToPoint")
	defer dc.endComputing(sampler)

	machine := dc.currentMachine()
	start := machine.FocusOffset()
	res, err := machine.InterpretToPoint(ctx, targetOffset, dc.newCommandSource(start))
	if err != nil {
		return CommandResult{}, err
	}
	dc.publishDiagnostics()
	return dc.toCommandResult(res), nil
}

// InterpretToEnd is InterpretToPoint bound to the end of the document.
func (dc *DocumentController) InterpretToEnd(ctx context.Context) (CommandResult, error) {
	dc.bufMu.Lock()
	end := dc.buf.Len()
	dc.bufMu.Unlock()
	return dc.InterpretToPoint(ctx, end)
}

// ApplyTextEdits applies an edit batch to the TextBuffer and reconciles the
// STM's spine against it. A change whose Range
// is nil is a whole-document replacement (e.g. a disk resync) and always
// forces a rewind, regardless of the inserted text's content.
func (dc *DocumentController) ApplyTextEdits(ctx context.Context, changes []buffer.ContentChange, newVersion int) (CommandResult, error) {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()

	// Snapshot the spine before touching the buffer: the STM's status hook
	// takes bufMu while the STM's own mutex is held, so this call must not
	// happen under bufMu.
	machine := dc.currentMachine()
	spine := machine.Sentences()

	dc.bufMu.Lock()
	oldLen := dc.buf.Len()
	fullReplace := false
	type resolved struct {
		start, end int
		passive    bool
	}
	resolvedChanges := make([]resolved, 0, len(changes))
	for _, c := range changes {
		if c.Range == nil {
			fullReplace = true
			continue
		}
		start := dc.buf.OffsetAt(c.Range.Start)
		end := dc.buf.OffsetAt(c.Range.End)
		if start > end {
			start, end = end, start
		}
		resolvedChanges = append(resolvedChanges, resolved{start, end, sentence.IsPassiveText(c.Text)})
	}
	deltas, err := dc.buf.Apply(changes, newVersion)
	newLen := dc.buf.Len()
	dc.bufMu.Unlock()

	if err != nil {
		if errors.Is(err, buffer.ErrStaleEdit) {
			return CommandResult{Kind: ResultStaleEdit}, nil
		}
		return CommandResult{}, err
	}

	var effects []stm.EditEffect
	if fullReplace {
		effects = []stm.EditEffect{{Delta: buffer.RangeDelta{OldStart: 0, OldEnd: oldLen, NewLen: newLen}, Passive: false}}
	} else {
		sort.SliceStable(resolvedChanges, func(i, j int) bool { return resolvedChanges[i].start < resolvedChanges[j].start })
		effects = make([]stm.EditEffect, len(deltas))
		for i, d := range deltas {
			passive := true
			if i < len(resolvedChanges) {
				passive = resolvedChanges[i].passive
			}
			if passive {
				for _, sent := range spine {
					if sent.StartOffset < d.OldEnd && d.OldStart < sent.EndOffset {
						passive = false
						break
					}
				}
			}
			effects[i] = stm.EditEffect{Delta: d, Passive: passive}
		}
	}

	res, err := machine.ApplyChanges(ctx, effects)
	if err != nil {
		return CommandResult{}, err
	}
	dc.publishDiagnostics()
	return dc.toCommandResult(res), nil
}

// GetGoal reports the cached proof state for the current tip, with Focus
// rendered as a document Position.
func (dc *DocumentController) GetGoal() GoalResult {
	r := dc.currentMachine().GetGoal()
	dc.bufMu.Lock()
	focus := dc.buf.PositionAt(r.Focus)
	dc.bufMu.Unlock()
	return GoalResult{
		Kind:           r.Kind,
		Focus:          focus,
		Goals:          r.Goals,
		UnfocusedCount: r.UnfocusedCount,
		ShelvedCount:   r.ShelvedCount,
		GivenUpCount:   r.GivenUpCount,
		Messages:       r.Messages,
		Message:        r.Message,
		Range:          r.Range,
	}
}

func (dc *DocumentController) Locate(ctx context.Context, ident string) (string, error) {
	return dc.currentMachine().DoQuery(ctx, stm.QueryLocate, ident)
}

func (dc *DocumentController) Check(ctx context.Context, term string) (string, error) {
	return dc.currentMachine().DoQuery(ctx, stm.QueryCheck, term)
}

func (dc *DocumentController) Search(ctx context.Context, q string) (string, error) {
	return dc.currentMachine().DoQuery(ctx, stm.QuerySearch, q)
}

func (dc *DocumentController) SearchAbout(ctx context.Context, q string) (string, error) {
	return dc.currentMachine().DoQuery(ctx, stm.QuerySearchAbout, q)
}

func (dc *DocumentController) Print(ctx context.Context, ident string) (string, error) {
	return dc.currentMachine().DoQuery(ctx, stm.QueryPrint, ident)
}

// SetWrappingWidth forwards the client's goal-display width to the prover.
func (dc *DocumentController) SetWrappingWidth(columns int) {
	dc.currentMachine().Resize(columns)
}

// RequestLtacProfResults asks for Ltac profiling results; they arrive
// asynchronously via Hooks.LtacProf.
func (dc *DocumentController) RequestLtacProfResults(stateID *string) error {
	return dc.currentMachine().LtacProfile(stateID)
}

// Interrupt asks the prover to abandon its current in-flight request.
func (dc *DocumentController) Interrupt() {
	dc.currentMachine().Interrupt()
}

// Reset recovers from a dead prover (or an explicit client-issued reset):
// it shuts down the current STM (a no-op if already not running), starts a
// fresh prover via the factory, and installs a new STM with an empty spine,
// leaving the document's text untouched.
func (dc *DocumentController) Reset(ctx context.Context) error {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()

	dc.machineMu.Lock()
	old := dc.machine
	dc.machineMu.Unlock()
	_ = old.Shutdown()

	prover, err := dc.factory(ctx)
	if err != nil {
		return err
	}
	machine, err := stm.New(ctx, prover, dc.stmHooks())
	if err != nil {
		return err
	}
	dc.machineMu.Lock()
	dc.machine = machine
	dc.machineMu.Unlock()
	return nil
}

// Quit shuts down the prover without discarding the controller's buffer.
func (dc *DocumentController) Quit() error {
	dc.opMu.Lock()
	defer dc.opMu.Unlock()
	return dc.currentMachine().Shutdown()
}

// Close tears the document down entirely; callers (the session registry)
// remove it from their own map after Close returns.
func (dc *DocumentController) Close() error {
	return dc.Quit()
}

// IsRunning reports whether the underlying STM has a live prover.
func (dc *DocumentController) IsRunning() bool {
	return dc.currentMachine().IsRunning()
}

// Text returns the document's current full text.
func (dc *DocumentController) Text() string {
	dc.bufMu.Lock()
	defer dc.bufMu.Unlock()
	return dc.buf.Text()
}

// Version returns the document's current TextBuffer version.
func (dc *DocumentController) Version() int {
	dc.bufMu.Lock()
	defer dc.bufMu.Unlock()
	return dc.buf.Version()
}

// OffsetAt converts a document Position to a byte offset.
func (dc *DocumentController) OffsetAt(pos buffer.Position) int {
	dc.bufMu.Lock()
	defer dc.bufMu.Unlock()
	return dc.buf.OffsetAt(pos)
}

// PositionAt converts a byte offset to a document Position.
func (dc *DocumentController) PositionAt(offset int) buffer.Position {
	dc.bufMu.Lock()
	defer dc.bufMu.Unlock()
	return dc.buf.PositionAt(offset)
}

// Sentences returns a snapshot of the current spine, root to tip.
func (dc *DocumentController) Sentences() []stm.Sentence {
	return dc.currentMachine().Sentences()
}

// Diagnostics returns the current spine's error diagnostics.
func (dc *DocumentController) Diagnostics() []Diagnostic {
	errs := dc.currentMachine().Diagnostics()
	out := make([]Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = Diagnostic{Range: e.Range, Severity: 1, Message: e.Message}
	}
	return out
}
