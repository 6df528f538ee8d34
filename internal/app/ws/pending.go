package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrPendingTimeout is returned when no reply arrives within the
	// await bound.
	ErrPendingTimeout = errors.New("pending request timed out")

	// ErrPendingCanceled is returned when the waiter was displaced by a
	// re-registration of the same key, or the await context ended.
	ErrPendingCanceled = errors.New("pending request canceled")
)

// PendingTable maps a correlation key to a waiter that resolves exactly
// once. Whoever supplies the first matching reply wins; later replies
// for the same key are dropped.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[string]*Pending
}

// Pending is one registered waiter.
type Pending struct {
	id    string
	table *PendingTable
	ch    chan json.RawMessage
}

func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[string]*Pending)}
}

// Register creates a waiter for id. Registering a key that already has
// a live waiter is a caller error; the old waiter is canceled and a
// warning logged rather than leaving two waiters racing.
func (t *PendingTable) Register(id string) *Pending {
	p := &Pending{id: id, table: t, ch: make(chan json.RawMessage, 1)}
	t.mu.Lock()
	if prev, ok := t.waiters[id]; ok {
		log.Printf("WS--> duplicate pending request %q, canceling previous waiter", id)
		close(prev.ch)
	}
	t.waiters[id] = p
	t.mu.Unlock()
	return p
}

// Resolve hands payload to the waiter registered under id, removing it
// from the table. Returns false when no waiter was registered, which is
// not an error: late and duplicate replies are expected.
func (t *PendingTable) Resolve(id string, payload json.RawMessage) bool {
	t.mu.Lock()
	p, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.ch <- payload
	return true
}

// remove drops p from the table if it is still the registered waiter.
func (t *PendingTable) remove(p *Pending) {
	t.mu.Lock()
	if cur, ok := t.waiters[p.id]; ok && cur == p {
		delete(t.waiters, p.id)
	}
	t.mu.Unlock()
}

// Await blocks until the request resolves, the timeout passes, or ctx
// ends. The table entry is removed on every outcome so the key can be
// reused afterwards.
func (p *Pending) Await(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	defer p.table.remove(p)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-p.ch:
		if !ok {
			return nil, ErrPendingCanceled
		}
		return payload, nil
	case <-timer.C:
		return nil, ErrPendingTimeout
	case <-ctx.Done():
		return nil, ErrPendingCanceled
	}
}
