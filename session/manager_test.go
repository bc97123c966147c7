package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestPersistSessionsWritesDocumentedEnvelope(t *testing.T) {
	withTempHome(t)

	m := New(nil)
	m.sessions["s1"] = &Session{
		ID: "s1", AgentID: "a1", Status: StatusActive,
		CreatedAt: time.Now(), LastActiveAt: time.Now(),
	}

	metrics := Metrics{CompletedTasks: 4, FailedTasks: 1, TotalTaskDuration: 250 * time.Millisecond}
	require.NoError(t, m.PersistSessions(context.Background(), metrics))

	path, err := snapshotPath()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Contains(t, envelope, "sessions")
	assert.Contains(t, envelope, "metrics")
	assert.Contains(t, envelope, "savedAt")

	var gotMetrics Metrics
	require.NoError(t, json.Unmarshal(envelope["metrics"], &gotMetrics))
	assert.Equal(t, metrics, gotMetrics)
}

func TestRestoreSessionsRoundTripsActiveAndIdleOnly(t *testing.T) {
	withTempHome(t)

	m := New(nil)
	now := time.Now()
	m.sessions["active"] = &Session{ID: "active", Status: StatusActive, CreatedAt: now, LastActiveAt: now}
	m.sessions["idle"] = &Session{ID: "idle", Status: StatusIdle, CreatedAt: now, LastActiveAt: now}
	m.sessions["terminated"] = &Session{ID: "terminated", Status: StatusTerminated, CreatedAt: now, LastActiveAt: now}

	require.NoError(t, m.PersistSessions(context.Background(), Metrics{}))

	restored := New(nil)
	require.NoError(t, restored.RestoreSessions())

	_, ok := restored.Get("active")
	assert.True(t, ok)
	_, ok = restored.Get("idle")
	assert.True(t, ok)
	_, ok = restored.Get("terminated")
	assert.False(t, ok)
}

func TestRestoreSessionsMissingFileIsNotAnError(t *testing.T) {
	withTempHome(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(mustSnapshotPath(t)), 0755))

	m := New(nil)
	assert.NoError(t, m.RestoreSessions())
}

func mustSnapshotPath(t *testing.T) string {
	t.Helper()
	p, err := snapshotPath()
	require.NoError(t, err)
	return p
}
