package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
)

// lockTable hands out one-slot semaphores keyed by conflict domain, so
// check-then-insert sequences for the same (service, day) or
// (provider, date) never interleave.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (t *lockTable) slot(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.slots[key] = ch
	}
	return ch
}

// acquire blocks until the key's slot is free, the context ends, or the wait
// bound expires. The expired wait maps to ErrTimeout, matching the SQL
// store's lock_timeout behavior.
func (t *lockTable) acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	ch := t.slot(key)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, engine.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
