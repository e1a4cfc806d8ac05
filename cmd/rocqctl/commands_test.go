package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjit/proofctl/internal/rocq"
)

// TestWithDoc_OpenFailurePropagates verifies withDoc surfaces OpenDoc's
// error (and never invokes fn) when the target file does not exist, so
// a subcommand reports a clean error instead of driving a nil registry.
func TestWithDoc_OpenFailurePropagates(t *testing.T) {
	called := false
	err := withDoc("/nonexistent/does-not-exist.v", func(ctx context.Context, reg *rocq.Registry) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called, "fn must not run when OpenDoc fails")
	assert.Contains(t, err.Error(), "does-not-exist.v")
}

// TestGotoFlags_DefaultToOrigin verifies goto's --line/--col flags
// default to 0:0 (the document origin) when the user supplies neither.
func TestGotoFlags_DefaultToOrigin(t *testing.T) {
	assert.Equal(t, "0", gotoCmd.Flags().Lookup("line").DefValue)
	assert.Equal(t, "0", gotoCmd.Flags().Lookup("col").DefValue)
}
