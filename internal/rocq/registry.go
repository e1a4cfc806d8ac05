// Package rocq is the session registry: it binds open file URIs to
// DocumentControllers, one DocumentController (and one vsrocqtop
// subprocess) per open document.
package rocq

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sanjit/proofctl/internal/buffer"
	"github.com/sanjit/proofctl/internal/controller"
	"github.com/sanjit/proofctl/internal/proverclient"
	"github.com/sanjit/proofctl/internal/stm"
)

// Config carries the knobs a session registry is constructed with, a
// plain struct populated by the caller from Cobra flags or raw os.Args.
type Config struct {
	VsrocqPath       string
	VsrocqArgs       []string
	WatchDebounce    time.Duration
	ComputingCadence time.Duration
}

func (c Config) debounce() time.Duration {
	if c.WatchDebounce <= 0 {
		return 300 * time.Millisecond
	}
	return c.WatchDebounce
}

// Doc is one open document's registry-level bookkeeping: the
// DocumentController driving it, plus the concrete vsrocqtop client for
// the handful of side-channel requests (document structure, streaming
// search) that fall outside the DocumentController's STM-shaped surface.
type Doc struct {
	URI        string
	Path       string
	Controller *controller.DocumentController

	clientMu sync.Mutex
	client   *proverclient.Client

	prevMu   sync.Mutex
	prevGoal controller.GoalResult
}

// takePrevGoal returns the goal snapshot recorded after the previous
// operation and records cur as the new one, for FormatDelta's
// before/after comparison.
func (d *Doc) takePrevGoal(cur controller.GoalResult) controller.GoalResult {
	d.prevMu.Lock()
	defer d.prevMu.Unlock()
	prev := d.prevGoal
	d.prevGoal = cur
	return prev
}

func (d *Doc) currentClient() *proverclient.Client {
	d.clientMu.Lock()
	defer d.clientMu.Unlock()
	return d.client
}

// Registry owns every open document plus the filesystem watcher backing
// `rocqctl watch`.
type Registry struct {
	cfg Config

	mu   sync.Mutex
	docs map[string]*Doc

	watcher *fsnotify.Watcher
}

// NewRegistry creates an empty session registry. The filesystem watcher
// is started lazily on the first Watch call.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:  cfg,
		docs: make(map[string]*Doc),
	}
}

// FileURI renders a filesystem path as a file:// URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs
}

// OpenDoc reads path from disk and starts a fresh vsrocqtop subprocess
// and DocumentController for it.
func (r *Registry) OpenDoc(ctx context.Context, path string) error {
	return r.OpenDocWithHooks(ctx, path, controller.Hooks{})
}

// OpenDocWithHooks is OpenDoc with caller-supplied notification hooks,
// for front ends (MCP, CLI) that want live highlight/diagnostic pushes.
func (r *Registry) OpenDocWithHooks(ctx context.Context, path string, hooks controller.Hooks) error {
	r.mu.Lock()
	uri := FileURI(path)
	if _, exists := r.docs[uri]; exists {
		r.mu.Unlock()
		return fmt.Errorf("document already open: %s", path)
	}
	r.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	doc := &Doc{URI: uri, Path: path}
	factory := func(ctx context.Context) (stm.ProverClient, error) {
		c, err := proverclient.New(r.cfg.VsrocqPath, r.cfg.VsrocqArgs, uri)
		if err != nil {
			return nil, err
		}
		doc.clientMu.Lock()
		doc.client = c
		doc.clientMu.Unlock()
		return c, nil
	}

	ctrl, err := controller.New(ctx, factory, string(content), hooks)
	if err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	doc.Controller = ctrl

	r.mu.Lock()
	r.docs[uri] = doc
	r.mu.Unlock()
	return nil
}

// CloseDoc shuts down a document's prover and removes it from the
// registry, unwatching it first if it was being watched.
func (r *Registry) CloseDoc(path string) error {
	uri := FileURI(path)

	r.mu.Lock()
	doc, ok := r.docs[uri]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("document not open: %s", path)
	}
	delete(r.docs, uri)
	r.mu.Unlock()

	r.Unwatch(path)
	return doc.Controller.Close()
}

// SyncDoc re-reads path from disk and funnels the result through
// ApplyTextEdits as a whole-document replace, so external edits respect
// the same spine-rewind invariants as editor-originated ones.
func (r *Registry) SyncDoc(ctx context.Context, path string) error {
	doc, err := r.GetDoc(path)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	_, err = doc.Controller.ApplyTextEdits(ctx, []buffer.ContentChange{
		{Range: nil, Text: string(content)},
	}, doc.Controller.Version()+1)
	return err
}

// GetDoc looks up an open document by path.
func (r *Registry) GetDoc(path string) (*Doc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[FileURI(path)]
	if !ok {
		return nil, fmt.Errorf("document not open: %s", path)
	}
	return doc, nil
}

// Shutdown tears down every open document and the filesystem watcher.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	docs := make([]*Doc, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	r.docs = make(map[string]*Doc)
	watcher := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	var firstErr error
	for _, d := range docs {
		if err := d.Controller.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if watcher != nil {
		if err := watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
