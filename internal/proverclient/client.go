// Package proverclient implements stm.ProverClient against a running
// vsrocqtop subprocess, speaking vsrocqtop's LSP-shaped wire protocol
// (textDocument/didChange, prover/interpretToPoint,
// prover/about, prover/check, prover/locate, prover/search,
// prover/proofView, prover/ltacProfileResults, textDocument/publishDiagnostics).
//
// vsrocqtop does not expose sertop-style discrete state_ids; this
// adapter synthesizes them as the decimal byte offset of the mirrored
// document at the point each sentence was accepted.
package proverclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sanjit/proofctl/internal/buffer"
	"github.com/sanjit/proofctl/internal/stm"
)

// Client manages one vsrocqtop subprocess for one open document.
type Client struct {
	cmd   *exec.Cmd
	codec *codec
	uri   string

	pending   map[int64]chan *rawMessage
	pendingMu sync.Mutex

	handlers   map[string]func(json.RawMessage)
	handlersMu sync.RWMutex

	sem *semaphore.Weighted // enforces one in-flight prover request

	mirrorMu sync.Mutex
	mirror   *buffer.TextBuffer // shadow copy of the document, offset/Position bookkeeping only

	events chan stm.Event

	searchMu       sync.Mutex
	searchHandlers map[string]chan searchHit

	profileMu sync.Mutex
}

type searchHit struct {
	Name      string
	Statement string
}

// New spawns vsrocqtop and prepares (but does not yet start) a Client
// for the document at uri.
func New(vsrocqPath string, extraArgs []string, uri string) (*Client, error) {
	if vsrocqPath == "" {
		vsrocqPath = "vsrocqtop"
	}
	cmd := exec.Command(vsrocqPath, extraArgs...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", vsrocqPath, err)
	}

	c := &Client{
		cmd:            cmd,
		codec:          newCodec(stdout, stdin),
		uri:            uri,
		pending:        make(map[int64]chan *rawMessage),
		handlers:       make(map[string]func(json.RawMessage)),
		sem:            semaphore.NewWeighted(1),
		mirror:         buffer.New("", 1),
		events:         make(chan stm.Event, 64),
		searchHandlers: make(map[string]chan searchHit),
	}
	return c, nil
}

// Init performs the LSP handshake and returns the synthesized root
// state_id ("0") plus the event stream.
func (c *Client) Init(ctx context.Context) (string, <-chan stm.Event, error) {
	go c.readLoop()

	c.onNotification("textDocument/publishDiagnostics", c.handleDiagnostics)
	c.onNotification("prover/proofView", c.handleProofView)
	c.onNotification("prover/searchResult", c.handleSearchResult)
	c.onNotification("prover/ltacProfileResults", c.handleLtacProfile)
	c.onNotification("prover/debugMessage", func(p json.RawMessage) {
		c.pushMessage("info", string(p), nil)
	})
	c.onNotification("prover/updateHighlights", func(json.RawMessage) {})
	c.onNotification("prover/moveCursor", func(json.RawMessage) {})
	c.onNotification("prover/blockOnError", func(json.RawMessage) {})

	cwd, _ := os.Getwd()
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   "file://" + cwd,
		"capabilities": map[string]any{
			"textDocument": map[string]any{"publishDiagnostics": map[string]any{}},
		},
	}
	if _, err := c.request(ctx, "initialize", params); err != nil {
		return "", nil, fmt.Errorf("initialize: %w", err)
	}
	if err := c.notify("initialized", map[string]any{}); err != nil {
		return "", nil, fmt.Errorf("initialized: %w", err)
	}
	settings := map[string]any{
		"settings": map[string]any{
			"vsrocq": map[string]any{"proof": map[string]any{"mode": 0}},
		},
	}
	if err := c.notify("workspace/didChangeConfiguration", settings); err != nil {
		return "", nil, fmt.Errorf("didChangeConfiguration: %w", err)
	}
	if err := c.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        c.uri,
			"languageId": "rocq",
			"version":    1,
			"text":       "",
		},
	}); err != nil {
		return "", nil, fmt.Errorf("didOpen: %w", err)
	}
	return "0", c.events, nil
}

func (c *Client) readLoop() {
	for {
		msg, err := c.codec.decode()
		if err != nil {
			reason := err.Error()
			c.events <- stm.Event{Kind: stm.EventDied, Reason: &reason}
			close(c.events)
			return
		}
		if msg.ID != nil && msg.Method == nil {
			c.pendingMu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		if msg.Method != nil {
			c.handlersMu.RLock()
			handler, ok := c.handlers[*msg.Method]
			c.handlersMu.RUnlock()
			if ok {
				handler(msg.Params)
			} else {
				log.Printf("proverclient: unhandled notification %s", *msg.Method)
			}
		}
	}
}

func (c *Client) onNotification(method string, handler func(json.RawMessage)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = handler
}

func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id, err := c.codec.sendRequest(method, params)
	if err != nil {
		return nil, err
	}
	ch := make(chan *rawMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string, params any) error {
	return c.codec.sendNotification(method, params)
}

func (c *Client) pushMessage(level, text string, rich *string) {
	c.events <- stm.Event{Kind: stm.EventMessage, Level: level, Message: text, Rich: rich}
}

func (c *Client) handleDiagnostics(params json.RawMessage) {
	// Full-document diagnostics are consumed synchronously by
	// interpretAndAwait during Add/EditAt; nothing further to dispatch here.
	_ = params
}

func (c *Client) handleProofView(params json.RawMessage) {
	// Consumed synchronously by interpretAndAwait during Add/EditAt; nothing to
	// forward asynchronously in the adapter's normal flow.
	_ = params
}

func (c *Client) handleSearchResult(params json.RawMessage) {
	var body struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Statement string `json:"statement"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		return
	}
	c.searchMu.Lock()
	ch, ok := c.searchHandlers[body.ID]
	c.searchMu.Unlock()
	if ok {
		select {
		case ch <- searchHit{Name: body.Name, Statement: body.Statement}:
		default:
		}
	}
}

func (c *Client) handleLtacProfile(params json.RawMessage) {
	var results any
	json.Unmarshal(params, &results)
	c.events <- stm.Event{Kind: stm.EventLtacProfResults, Results: results}
}

// Add appends text as the mirrored document's new tail, interprets to
// the resulting offset, and reports whether vsrocqtop accepted it
// cleanly. The state_id is synthesized as the decimal end offset.
func (c *Client) Add(ctx context.Context, text string, parentStateID string, endPos buffer.Position, version int) (stm.AddResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return stm.AddResult{}, err
	}
	defer c.sem.Release(1)

	c.mirrorMu.Lock()
	startOffset := c.mirror.Len()
	startPos := c.mirror.PositionAt(startOffset)
	_, err := c.mirror.Apply([]buffer.ContentChange{{
		Range: &buffer.Range{Start: startPos, End: startPos},
		Text:  text,
	}}, c.mirror.Version()+1)
	if err != nil {
		c.mirrorMu.Unlock()
		return stm.AddResult{}, err
	}
	endOffset := c.mirror.Len()
	endDocPos := c.mirror.PositionAt(endOffset)
	docVersion := c.mirror.Version()
	c.mirrorMu.Unlock()

	if err := c.notify("textDocument/didChange", map[string]any{
		"textDocument": map[string]any{"uri": c.uri, "version": docVersion},
		"contentChanges": []map[string]any{{
			"range": lspRange(startPos, startPos),
			"text":  text,
		}},
	}); err != nil {
		return stm.AddResult{}, err
	}

	diags, snap, err := c.interpretAndAwait(ctx, endDocPos, fmt.Sprintf("%d", endOffset))
	if err != nil {
		return stm.AddResult{}, err
	}
	if fail, ok := findErrorIn(diags, startOffset, endOffset, c.offsetAt); ok {
		return stm.AddResult{}, &stm.FailureError{FailureAt: stm.FailureAt{Range: fail.rng, Message: fail.message}}
	}
	return stm.AddResult{StateID: fmt.Sprintf("%d", endOffset), Goal: snap}, nil
}

// EditAt rewinds the mirrored document back to the byte offset encoded
// in stateID and asks vsrocqtop to reinterpret to that point.
func (c *Client) EditAt(ctx context.Context, stateID string) (stm.FocusChange, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return stm.FocusChange{}, err
	}
	defer c.sem.Release(1)

	target, err := strconv.Atoi(stateID)
	if err != nil {
		return stm.FocusChange{}, fmt.Errorf("malformed state_id %q", stateID)
	}

	c.mirrorMu.Lock()
	if target > c.mirror.Len() {
		target = c.mirror.Len()
	}
	full := c.mirror.Text()
	kept := full[:target]
	docVersion := c.mirror.Version() + 1
	_, err = c.mirror.Apply([]buffer.ContentChange{{Text: kept}}, docVersion)
	targetPos := c.mirror.PositionAt(target)
	c.mirrorMu.Unlock()
	if err != nil {
		return stm.FocusChange{}, err
	}

	if err := c.notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": c.uri, "version": docVersion},
		"contentChanges": []map[string]any{{"text": kept}},
	}); err != nil {
		return stm.FocusChange{}, err
	}
	if _, _, err := c.interpretAndAwait(ctx, targetPos, stateID); err != nil {
		return stm.FocusChange{}, err
	}
	return stm.FocusChange{Kind: stm.FocusNewTip, StateID: stateID}, nil
}

// interpretAndAwait sends prover/interpretToPoint and waits for the
// next proofView and publishDiagnostics notifications, returning once
// both have arrived or ctx is done. There is no timeout of its own.
func (c *Client) interpretAndAwait(ctx context.Context, pos buffer.Position, stateID string) ([]diagnostic, *stm.GoalSnapshot, error) {
	diagsCh := make(chan []diagnostic, 1)
	snapCh := make(chan *stm.GoalSnapshot, 1)

	c.onNotification("textDocument/publishDiagnostics", func(p json.RawMessage) {
		select {
		case diagsCh <- parseDiagnostics(p):
		default:
		}
	})
	c.onNotification("prover/proofView", func(p json.RawMessage) {
		select {
		case snapCh <- parseProofView(stateID, p):
		default:
		}
	})
	defer func() {
		c.onNotification("textDocument/publishDiagnostics", c.handleDiagnostics)
		c.onNotification("prover/proofView", c.handleProofView)
	}()

	if err := c.notify("prover/interpretToPoint", map[string]any{
		"textDocument": map[string]any{"uri": c.uri, "version": c.mirrorVersion()},
		"position":     map[string]any{"line": pos.Line, "character": pos.Character},
	}); err != nil {
		return nil, nil, err
	}

	var diags []diagnostic
	var snap *stm.GoalSnapshot
	gotDiags, gotSnap := false, false
	for !gotDiags || !gotSnap {
		select {
		case diags = <-diagsCh:
			gotDiags = true
		case snap = <-snapCh:
			gotSnap = true
		case <-ctx.Done():
			return diags, snap, ctx.Err()
		}
	}
	return diags, snap, nil
}

func (c *Client) mirrorVersion() int {
	c.mirrorMu.Lock()
	defer c.mirrorMu.Unlock()
	return c.mirror.Version()
}

func (c *Client) offsetAt(pos buffer.Position) int {
	c.mirrorMu.Lock()
	defer c.mirrorMu.Unlock()
	return c.mirror.OffsetAt(pos)
}

type foundError struct {
	rng     buffer.Range
	message string
}

// findErrorIn reports the first error-severity diagnostic whose start
// falls within [start,end), the span of the sentence just submitted.
func findErrorIn(diags []diagnostic, start, end int, offsetAt func(buffer.Position) int) (foundError, bool) {
	for _, d := range diags {
		if d.Severity != 1 {
			continue
		}
		startPos := buffer.Position{Line: d.Range.Start.Line, Character: d.Range.Start.Character}
		startOff := offsetAt(startPos)
		if startOff < start || startOff >= end {
			continue
		}
		return foundError{
			rng: buffer.Range{
				Start: startPos,
				End:   buffer.Position{Line: d.Range.End.Line, Character: d.Range.End.Character},
			},
			message: d.Message,
		}, true
	}
	return foundError{}, false
}

func lspRange(start, end buffer.Position) map[string]any {
	return map[string]any{
		"start": map[string]any{"line": start.Line, "character": start.Character},
		"end":   map[string]any{"line": end.Line, "character": end.Character},
	}
}

// Query issues a read-only prover/{about,check,locate,search} request.
func (c *Client) Query(ctx context.Context, kind stm.QueryKind, argument string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	method := map[stm.QueryKind]string{
		stm.QueryLocate:      "prover/locate",
		stm.QueryCheck:       "prover/check",
		stm.QuerySearch:      "prover/search",
		stm.QuerySearchAbout: "prover/about",
		stm.QueryPrint:       "prover/print",
	}[kind]

	params := map[string]any{
		"textDocument": map[string]any{"uri": c.uri, "version": c.mirrorVersion()},
		"position":     map[string]any{"line": 0, "character": 0},
		"pattern":      argument,
	}
	result, err := c.request(ctx, method, params)
	if err != nil {
		return "", err
	}
	text := renderPpcmd(result)
	if strings.TrimSpace(text) == "" {
		return "No result.", nil
	}
	return text, nil
}

// Interrupt sends a best-effort $/cancelRequest notification. vsrocqtop
// has no dedicated interrupt RPC in manual mode, and the notification
// carries no request id, so it does not name the in-flight request.
func (c *Client) Interrupt() {
	c.notify("$/cancelRequest", map[string]any{})
}

// Resize forwards the goal-display width as a configuration update.
func (c *Client) Resize(columns int) {
	c.notify("workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{
			"vsrocq": map[string]any{"goals": map[string]any{"maxWidth": columns}},
		},
	})
}

// LtacProfile requests profiling results; they arrive via
// prover/ltacProfileResults and are dispatched as EventLtacProfResults.
func (c *Client) LtacProfile(stateID *string) error {
	params := map[string]any{"textDocument": map[string]any{"uri": c.uri}}
	if stateID != nil {
		// state_ids are decimal end offsets into the mirrored document.
		pos := buffer.Position{}
		if off, err := strconv.Atoi(*stateID); err == nil {
			c.mirrorMu.Lock()
			pos = c.mirror.PositionAt(off)
			c.mirrorMu.Unlock()
		}
		params["position"] = map[string]any{"line": pos.Line, "character": pos.Character}
	}
	return c.notify("prover/ltacProfile", params)
}

// Shutdown terminates vsrocqtop cleanly.
func (c *Client) Shutdown() error {
	ctx := context.Background()
	if _, err := c.request(ctx, "shutdown", nil); err != nil {
		c.cmd.Process.Kill()
		return err
	}
	if err := c.notify("exit", nil); err != nil {
		return err
	}
	return c.cmd.Wait()
}

// DocumentProofs asks vsrocqtop for the document's proof structure, a
// side-channel request independent of the STM's state-id bookkeeping.
func (c *Client) DocumentProofs(ctx context.Context) ([]ProofBlock, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	result, err := c.request(ctx, "prover/documentProofs", map[string]any{
		"textDocument": map[string]any{"uri": c.uri},
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Proofs []ProofBlock `json:"proofs"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parse documentProofs: %w", err)
	}
	return resp.Proofs, nil
}

// Search issues prover/search and collects the streamed
// prover/searchResult notifications correlated by searchID behind one
// blocking call.
func (c *Client) Search(ctx context.Context, pattern string) ([]SearchHit, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	searchID := uuid.NewString()
	resultCh := make(chan searchHit, 256)
	c.searchMu.Lock()
	c.searchHandlers[searchID] = resultCh
	c.searchMu.Unlock()
	defer func() {
		c.searchMu.Lock()
		delete(c.searchHandlers, searchID)
		c.searchMu.Unlock()
	}()

	if _, err := c.request(ctx, "prover/search", map[string]any{
		"textDocument": map[string]any{"uri": c.uri, "version": c.mirrorVersion()},
		"position":     map[string]any{"line": 0, "character": 0},
		"pattern":      pattern,
		"id":           searchID,
	}); err != nil {
		return nil, err
	}

	var hits []SearchHit
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for {
		select {
		case r := <-resultCh:
			hits = append(hits, SearchHit{Name: r.Name, Statement: r.Statement})
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(200 * time.Millisecond)
		case <-timer.C:
			return hits, nil
		case <-ctx.Done():
			return hits, ctx.Err()
		}
	}
}
