package eventbus

import (
	"context"
	"time"

	"github.com/orchestrace/control-plane/log"
)

// StartDeadSubscriberSweep periodically logs handlers on busy topics that
// have not been invoked within window. A subscriber here can only go quiet
// because its topic stopped firing to it specifically (e.g. an OnFiltered
// predicate that no longer matches), so the sweep logs rather than removes;
// removal must always be an explicit Off call.
func (b *Bus) StartDeadSubscriberSweep(ctx context.Context, window, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.logQuietSubscribers(window)
			}
		}
	}()
}

func (b *Bus) logQuietSubscribers(window time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for topic, t := range b.topics {
		if t.count == 0 {
			continue
		}
		for _, s := range t.subs {
			if s.lastSeen.IsZero() {
				continue
			}
			if now.Sub(s.lastSeen) > window {
				log.WarningLog.Printf("eventbus: subscriber %d on topic %q has not received an event in %s", s.id, topic, now.Sub(s.lastSeen))
			}
		}
	}
}
