package orchestrator

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSessionBinaries(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not on PATH")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
}

func TestInitializeThenShutdownRoundTrips(t *testing.T) {
	requireSessionBinaries(t)
	o := newTestOrchestrator(t)

	require.NoError(t, o.Initialize(context.Background()))

	o.state.mu.Lock()
	initialized := o.state.initialized
	o.state.mu.Unlock()
	assert.True(t, initialized)

	require.NoError(t, o.Shutdown(context.Background()))

	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	assert.True(t, o.state.shutdownInProgress)
}

func TestInitializeTwiceFails(t *testing.T) {
	requireSessionBinaries(t)
	o := newTestOrchestrator(t)
	require.NoError(t, o.Initialize(context.Background()))
	defer o.Shutdown(context.Background())

	assert.Error(t, o.Initialize(context.Background()))
}

func TestShutdownIsIdempotent(t *testing.T) {
	requireSessionBinaries(t)
	o := newTestOrchestrator(t)
	require.NoError(t, o.Initialize(context.Background()))

	require.NoError(t, o.Shutdown(context.Background()))
	require.NoError(t, o.Shutdown(context.Background()))
}
