package queue

import (
	"context"
	"sync"
)

var _ DocumentQueue = (*NopQueue)(nil)

// NopQueue drops every event. Used when no brokers are configured.
type NopQueue struct{}

func NewNopQueue() *NopQueue {
	return &NopQueue{}
}

func (NopQueue) PublishGenerated(context.Context, DocumentEvent) error {
	return nil
}

func (NopQueue) Close() {}

var _ DocumentQueue = (*MemoryQueue)(nil)

// MemoryQueue keeps published events in memory.
type MemoryQueue struct {
	mu     sync.Mutex
	events []DocumentEvent
	err    error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// FailWith makes subsequent publishes return err.
func (q *MemoryQueue) FailWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *MemoryQueue) PublishGenerated(_ context.Context, event DocumentEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, event)

	return nil
}

func (q *MemoryQueue) Events() []DocumentEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]DocumentEvent(nil), q.events...)
}

func (q *MemoryQueue) Close() {}
