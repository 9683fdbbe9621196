package chat

import (
	"sync"

	"github.com/eapache/queue"
)

// UndeliveredQueue retains payloads for offline recipients and hands them
// back out, in enqueue order, on the recipient's next connect. Backed by
// eapache/queue's ring buffer rather than a hand-rolled slice, one per
// recipient, all guarded by a single mutex dedicated to this component.
type UndeliveredQueue struct {
	mu      sync.Mutex
	enabled bool
	queues  map[uint64]*queue.Queue
}

func NewUndeliveredQueue(enabled bool) *UndeliveredQueue {
	return &UndeliveredQueue{enabled: enabled, queues: make(map[uint64]*queue.Queue)}
}

// Enqueue copies payload, narrows its recipient set to exactly {target},
// and appends it to target's queue. A no-op when the feature is disabled.
func (q *UndeliveredQueue) Enqueue(target uint64, payload Payload) {
	if !q.enabled {
		return
	}
	cp := payload.WithRecipient(target)

	q.mu.Lock()
	defer q.mu.Unlock()
	qq := q.queues[target]
	if qq == nil {
		qq = queue.New()
		q.queues[target] = qq
	}
	qq.Add(cp)
}

// Drain pops and returns every payload queued for recipient, in insertion
// order, clearing the queue. Returns nil (not an error) when the feature
// is disabled or nothing is queued.
func (q *UndeliveredQueue) Drain(recipient uint64) []Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	qq := q.queues[recipient]
	if qq == nil || qq.Length() == 0 {
		return nil
	}
	out := make([]Payload, 0, qq.Length())
	for qq.Length() > 0 {
		out = append(out, qq.Remove().(Payload))
	}
	delete(q.queues, recipient)
	return out
}

// Has reports whether recipient has at least one queued payload.
func (q *UndeliveredQueue) Has(recipient uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	qq := q.queues[recipient]
	return qq != nil && qq.Length() > 0
}
