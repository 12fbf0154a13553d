package queue

import (
	"context"
	"strconv"
	"sync"
)

// MemoryQueue is an in-process queue for local development and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	nextID  int
	pending []Delivery
	acked   map[string]bool
}

// NewMemoryQueue returns an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{acked: make(map[string]bool)}
}

// Send appends the encoded message.
func (q *MemoryQueue) Send(_ context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := strconv.Itoa(q.nextID)
	q.pending = append(q.pending, Delivery{ID: id, Body: string(payload), ReceiptHandle: "rh-" + id})
	return nil
}

// Receive pops up to max pending deliveries. It does not block.
func (q *MemoryQueue) Receive(ctx context.Context, max int32) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := int(max)
	if n <= 0 || n > len(q.pending) {
		n = len(q.pending)
	}
	out := append([]Delivery(nil), q.pending[:n]...)
	q.pending = q.pending[n:]
	return out, nil
}

// Delete marks a delivery as acknowledged.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked[receiptHandle] = true
	return nil
}

// Acked reports whether receiptHandle was deleted.
func (q *MemoryQueue) Acked(receiptHandle string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked[receiptHandle]
}

// Len returns the number of pending deliveries.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

var (
	_ Client   = (*MemoryQueue)(nil)
	_ Consumer = (*MemoryQueue)(nil)
)
