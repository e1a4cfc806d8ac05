package proverclient

// Integration tests against a real vsrocqtop subprocess. Skipped when
// the binary is not on PATH (CI runs them where vsrocqtop is installed;
// a plain dev machine skips).

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/sanjit/proofctl/internal/buffer"
	"github.com/sanjit/proofctl/internal/stm"
)

func requireVsrocqtop(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("vsrocqtop")
	if err != nil {
		t.Skip("vsrocqtop not on PATH, skipping integration test")
	}
	return path
}

func TestIntegration_InitShutdown(t *testing.T) {
	path := requireVsrocqtop(t)
	c, err := New(path, nil, "file:///tmp/integration.v")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	root, events, err := c.Init(ctx)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if root == "" {
		t.Fatal("expected a non-empty root state_id")
	}
	if events == nil {
		t.Fatal("expected a non-nil event channel")
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestIntegration_AddSimpleSentence(t *testing.T) {
	path := requireVsrocqtop(t)
	c, err := New(path, nil, "file:///tmp/integration.v")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	root, _, err := c.Init(ctx)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	res, err := c.Add(ctx, "Goal forall n : nat, n = n.", root, buffer.Position{Line: 0, Character: 27}, 1)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.StateID == "" {
		t.Fatal("expected a non-empty state_id")
	}

	if _, err := c.EditAt(ctx, root); err != nil {
		t.Fatalf("EditAt(root): %v", err)
	}
}

func TestIntegration_QueryAbout(t *testing.T) {
	path := requireVsrocqtop(t)
	c, err := New(path, nil, "file:///tmp/integration.v")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, _, err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := c.Query(ctx, stm.QueryLocate, "nat"); err != nil {
		t.Fatalf("Query(Locate): %v", err)
	}
}
