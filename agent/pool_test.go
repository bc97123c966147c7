package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrace/control-plane/eventbus"
)

func TestScalePoolRejectsOutOfBoundsTarget(t *testing.T) {
	m, _, _ := testManager(t)
	m.cfg.MaxAgents = 10
	poolID, err := m.CreateAgentPool(context.Background(), "pool-1", "coder", 2, 4)
	require.NoError(t, err)

	pool, ok := m.GetPool(poolID)
	require.True(t, ok)
	before := append([]string(nil), pool.AgentIDs...)

	err = m.ScalePool(context.Background(), poolID, pool.MinSize-1)
	assert.ErrorIs(t, err, ErrValidation)

	err = m.ScalePool(context.Background(), poolID, pool.MaxSize+1)
	assert.ErrorIs(t, err, ErrValidation)

	pool, ok = m.GetPool(poolID)
	require.True(t, ok)
	assert.Equal(t, before, pool.AgentIDs)
}

func TestScalePoolUnknownPool(t *testing.T) {
	m, _, _ := testManager(t)
	err := m.ScalePool(context.Background(), "pool-missing", 3)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestScalePoolEmitsFromAndToSize(t *testing.T) {
	m, bus, _ := testManager(t)
	m.cfg.MaxAgents = 10
	poolID, err := m.CreateAgentPool(context.Background(), "pool-1", "coder", 2, 4)
	require.NoError(t, err)

	var got eventbus.PoolScaledPayload
	bus.On(eventbus.TopicPoolScaled, func(payload any) {
		if p, ok := payload.(eventbus.PoolScaledPayload); ok {
			got = p
		}
	})

	require.NoError(t, m.ScalePool(context.Background(), poolID, 4))

	assert.Equal(t, poolID, got.Pool)
	assert.Equal(t, 2, got.FromSize)
	assert.Equal(t, 4, got.ToSize)
}
