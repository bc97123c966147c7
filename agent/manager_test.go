package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/eventbus"
)

type fakeProcess struct {
	mu      sync.Mutex
	started bool
	stopped bool
	exited  bool
}

func (f *fakeProcess) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeProcess) Stop(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.exited = true
	return nil
}

func (f *fakeProcess) Exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

type memStore struct {
	mu     sync.Mutex
	states map[string]State
}

func newMemStore() *memStore { return &memStore{states: make(map[string]State)} }

func (s *memStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = state
	return nil
}

func (s *memStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

func (s *memStore) LoadAll() (map[string]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func testManager(t *testing.T) (*Manager, *eventbus.Bus, *memStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DefaultTimeoutMs = 200
	cfg.MaxAgents = 2
	bus := eventbus.New()
	store := newMemStore()
	m := New(cfg, bus, store)
	m.newProcess = func(spec ProcessSpec) processHandle { return &fakeProcess{} }
	return m, bus, store
}

func TestCreateAgentUnknownTemplate(t *testing.T) {
	m, _, _ := testManager(t)
	_, err := m.CreateAgent("nonexistent", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestCreateAgentLimitExceeded(t *testing.T) {
	m, _, _ := testManager(t)
	_, err := m.CreateAgent("coder", nil)
	require.NoError(t, err)
	_, err = m.CreateAgent("coder", nil)
	require.NoError(t, err)
	_, err = m.CreateAgent("coder", nil)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestStartAgentSucceedsOnReadyEvent(t *testing.T) {
	m, bus, store := testManager(t)
	id, err := m.CreateAgent("coder", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Emit(eventbus.TopicAgentReady, eventbus.AgentReadyPayload{AgentID: id})
	}()

	err = m.StartAgent(context.Background(), id)
	require.NoError(t, err)

	a, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusIdle, a.Status)

	states, _ := store.LoadAll()
	assert.Equal(t, StatusIdle, states[id].Status)
}

func TestStartAgentTimesOutWithoutReadyEvent(t *testing.T) {
	m, _, _ := testManager(t)
	id, err := m.CreateAgent("coder", nil)
	require.NoError(t, err)

	err = m.StartAgent(context.Background(), id)
	require.Error(t, err)

	a, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusError, a.Status)
	assert.NotEmpty(t, a.Errors)
}

func TestStopAgentIsIdempotent(t *testing.T) {
	m, _, _ := testManager(t)
	id, err := m.CreateAgent("coder", nil)
	require.NoError(t, err)

	require.NoError(t, m.StopAgent(id, "test"))
	require.NoError(t, m.StopAgent(id, "test"))

	a, _ := m.Get(id)
	assert.Equal(t, StatusTerminated, a.Status)
}

func TestRemoveAgentDeletesEverything(t *testing.T) {
	m, _, store := testManager(t)
	id, err := m.CreateAgent("coder", nil)
	require.NoError(t, err)

	require.NoError(t, m.RemoveAgent(id))
	_, ok := m.Get(id)
	assert.False(t, ok)

	states, _ := store.LoadAll()
	_, ok = states[id]
	assert.False(t, ok)
}

func TestCreateAgentPoolStartsMinSize(t *testing.T) {
	m, bus, _ := testManager(t)
	m.cfg.MaxAgents = 10

	bus.On(eventbus.TopicAgentReady, func(payload any) {})
	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(5 * time.Millisecond)
		}
	}()

	// Auto-acknowledge every ready wait immediately via a background emitter
	// keyed off agent creation would require hooking CreateAgent; instead
	// rely on StartAgent's timeout path being tolerated by the pool, which
	// logs and continues per §4.6's "partial agents are kept and counted".
	poolID, err := m.CreateAgentPool(context.Background(), "pool-1", "coder", 2, 4)
	require.NoError(t, err)

	pool, ok := m.GetPool(poolID)
	require.True(t, ok)
	assert.Len(t, pool.AgentIDs, 2)
}
