// Package eventbus implements a typed, single-threaded, cooperative
// in-process publish/subscribe bus (§4.1/§5): handlers on the same topic
// run synchronously, in registration order, on the emitting goroutine; a
// handler panic is caught and republished on the reserved "error" topic
// rather than aborting its siblings or the emitter.
//
// It is intentionally not an async, channel-per-subscriber design: the
// control plane requires synchronous, in-order delivery, which rules out
// fan-out over buffered channels.
package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/log"
)

// ErrorTopic is the reserved topic onto which caught handler panics are
// republished. Subscribing to it must never itself panic back into Emit.
const ErrorTopic = "error"

// HandlerError is the payload delivered on ErrorTopic.
type HandlerError struct {
	Topic   string
	Err     error
	Handler string
}

// Handler receives a topic's payload. Handlers must not block; long-running
// work must be re-dispatched (e.g. via a goroutine the handler itself owns).
type Handler func(payload any)

// Predicate filters payloads for OnFiltered.
type Predicate func(payload any) bool

type subscription struct {
	id       uint64
	handler  Handler
	pred     Predicate
	once     bool
	lastSeen time.Time
}

type topicState struct {
	subs        []*subscription
	count       uint64
	lastEmitted time.Time
}

// Bus is the typed event dispatcher. It is constructed once per Orchestrator
// and injected into every component that needs it — it is explicitly not a
// package-level singleton (§9's "global singletons" redesign flag).
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topicState
	nextID uint64
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string]*topicState)}
}

func (b *Bus) topic(name string) *topicState {
	t, ok := b.topics[name]
	if !ok {
		t = &topicState{}
		b.topics[name] = t
	}
	return t
}

// On registers handler for topic, returning a subscription id usable with
// Off. Handlers registered on the same topic fire in registration order.
func (b *Bus) On(topic string, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	t := b.topic(topic)
	t.subs = append(t.subs, &subscription{id: id, handler: handler})
	return id
}

// Once registers a handler that automatically unsubscribes after its first
// invocation.
func (b *Bus) Once(topic string, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	t := b.topic(topic)
	t.subs = append(t.subs, &subscription{id: id, handler: handler, once: true})
	return id
}

// OnFiltered registers handler for topic but only invokes it for payloads
// matching pred.
func (b *Bus) OnFiltered(topic string, pred Predicate, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	t := b.topic(topic)
	t.subs = append(t.subs, &subscription{id: id, handler: handler, pred: pred})
	return id
}

// Off removes the subscription with the given id from topic. Unsubscribe is
// always explicit; the bus never removes a handler on its own.
func (b *Bus) Off(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topic]
	if !ok {
		return
	}
	for i, s := range t.subs {
		if s.id == id {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every handler registered on topic, in
// registration order, synchronously. A handler panic is recovered and
// republished on ErrorTopic; it does not stop delivery to the remaining
// handlers of this emission.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	t := b.topic(topic)
	t.count++
	t.lastEmitted = time.Now()
	// Snapshot under lock; Once-subscriptions removed after invocation.
	subs := make([]*subscription, len(t.subs))
	copy(subs, t.subs)
	b.mu.Unlock()

	var onceIDs []uint64
	for _, s := range subs {
		if s.pred != nil && !s.pred(payload) {
			continue
		}
		b.invoke(topic, s, payload)
		if s.once {
			onceIDs = append(onceIDs, s.id)
		}
	}
	for _, id := range onceIDs {
		b.Off(topic, id)
	}
}

func (b *Bus) invoke(topic string, s *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in handler for topic %q: %v", topic, r)
			log.ErrorLog.Printf("%v", err)
			if topic != ErrorTopic {
				b.Emit(ErrorTopic, HandlerError{Topic: topic, Err: err})
			}
		}
	}()
	b.mu.Lock()
	s.lastSeen = time.Now()
	b.mu.Unlock()
	s.handler(payload)
}

// Stats reports the per-topic emission counters (§4.1).
type Stats struct {
	Count       uint64
	LastEmitted time.Time
}

// TopicStats returns the emission counter and last-emitted timestamp for a
// topic. Absent topics report a zero Stats.
func (b *Bus) TopicStats(topic string) Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topic]
	if !ok {
		return Stats{}
	}
	return Stats{Count: t.count, LastEmitted: t.lastEmitted}
}

// TimeoutError is returned by WaitFor when the deadline elapses before the
// topic fires.
type TimeoutError struct {
	Topic   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for topic %q", e.Timeout, e.Topic)
}

// WaitFor blocks (via a suspension point, not a busy loop) until topic next
// fires or timeout elapses, returning the payload or a *TimeoutError.
func (b *Bus) WaitFor(topic string, timeout time.Duration) (any, error) {
	ch := make(chan any, 1)
	id := b.Once(topic, func(payload any) {
		select {
		case ch <- payload:
		default:
		}
	})

	select {
	case payload := <-ch:
		return payload, nil
	case <-time.After(timeout):
		b.Off(topic, id)
		return nil, &TimeoutError{Topic: topic, Timeout: timeout}
	}
}
