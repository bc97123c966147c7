package agent

import (
	"context"
	"fmt"

	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
)

// CreateAgentPool eagerly creates and starts minSize agents from template.
// A failure partway through leaves the pool registered with whatever agents
// did succeed — it is reportable but inconsistent, per §4.6.
func (m *Manager) CreateAgentPool(ctx context.Context, name, templateName string, minSize, maxSize int) (string, error) {
	if _, ok := defaultTemplates[templateName]; !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}

	m.mu.Lock()
	m.nextPoolID++
	poolID := fmt.Sprintf("pool-%d", m.nextPoolID)
	pool := &Pool{ID: poolID, Name: name, TemplateType: templateName, MinSize: minSize, MaxSize: maxSize}
	m.pools[poolID] = pool
	m.mu.Unlock()

	for i := 0; i < minSize; i++ {
		id, err := m.CreateAgent(templateName, nil)
		if err != nil {
			log.ErrorLog.Printf("pool %s: failed to create agent %d/%d: %v", poolID, i+1, minSize, err)
			continue
		}
		if err := m.StartAgent(ctx, id); err != nil {
			log.ErrorLog.Printf("pool %s: failed to start agent %s: %v", poolID, id, err)
		}
		m.mu.Lock()
		pool.AgentIDs = append(pool.AgentIDs, id)
		m.mu.Unlock()
	}

	if m.bus != nil {
		m.bus.Emit(eventbus.TopicPoolCreated, eventbus.PoolCreatedPayload{Pool: poolID})
	}
	return poolID, nil
}

// ScalePool adjusts a pool to targetSize. targetSize outside
// [MinSize, MaxSize] is a validation error and the pool is left untouched.
// Scale-up creates and starts new agents; scale-down removes idle
// (available, never busy) agents first.
func (m *Manager) ScalePool(ctx context.Context, poolID string, targetSize int) error {
	m.mu.Lock()
	pool, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		return ErrPoolNotFound
	}
	if targetSize < pool.MinSize || targetSize > pool.MaxSize {
		m.mu.Unlock()
		return fmt.Errorf("%w: target size %d outside pool bounds [%d, %d]",
			ErrValidation, targetSize, pool.MinSize, pool.MaxSize)
	}
	fromSize := len(pool.AgentIDs)
	current := fromSize
	m.mu.Unlock()

	switch {
	case targetSize > current:
		for i := 0; i < targetSize-current; i++ {
			id, err := m.CreateAgent(pool.TemplateType, nil)
			if err != nil {
				log.ErrorLog.Printf("pool %s: scale-up create failed: %v", poolID, err)
				continue
			}
			if err := m.StartAgent(ctx, id); err != nil {
				log.ErrorLog.Printf("pool %s: scale-up start failed for %s: %v", poolID, id, err)
			}
			m.mu.Lock()
			pool.AgentIDs = append(pool.AgentIDs, id)
			m.mu.Unlock()
		}
	case targetSize < current:
		removed := 0
		need := current - targetSize
		m.mu.Lock()
		remaining := pool.AgentIDs[:0]
		victims := make([]string, 0, need)
		for _, id := range pool.AgentIDs {
			a, ok := m.agents[id]
			if ok && a.Status == StatusIdle && removed < need {
				victims = append(victims, id)
				removed++
				continue
			}
			remaining = append(remaining, id)
		}
		pool.AgentIDs = remaining
		m.mu.Unlock()

		for _, id := range victims {
			if err := m.RemoveAgent(id); err != nil {
				log.ErrorLog.Printf("pool %s: scale-down remove failed for %s: %v", poolID, id, err)
			}
		}
	}

	if m.bus != nil {
		m.bus.Emit(eventbus.TopicPoolScaled, eventbus.PoolScaledPayload{
			Pool: poolID, FromSize: fromSize, ToSize: targetSize,
		})
	}
	return nil
}

// GetPool returns a read-only copy of a pool's state.
func (m *Manager) GetPool(poolID string) (Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return Pool{}, false
	}
	cp := *p
	cp.AgentIDs = append([]string(nil), p.AgentIDs...)
	return cp, true
}

// ListPools returns a read-only copy of every known pool.
func (m *Manager) ListPools() []Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pool, 0, len(m.pools))
	for _, p := range m.pools {
		cp := *p
		cp.AgentIDs = append([]string(nil), p.AgentIDs...)
		out = append(out, cp)
	}
	return out
}
