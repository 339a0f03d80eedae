// Package mailbox provides a single-slot job buffer where the latest
// trigger always wins. It is NOT a queue: a backup already waiting is
// simply replaced, because running it twice back to back buys nothing.
package mailbox

import (
	"context"
	"sync"
)

type Mailbox[T any] struct {
	mu     sync.Mutex
	job    *T
	signal chan struct{}
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{signal: make(chan struct{}, 1)}
}

// Put stores a job, replacing any pending one. It never blocks.
func (m *Mailbox[T]) Put(j T) {
	m.mu.Lock()
	m.job = &j
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Take blocks until a job is available or the context is cancelled.
// The second return is false only on cancellation.
func (m *Mailbox[T]) Take(ctx context.Context) (T, bool) {
	for {
		m.mu.Lock()
		if m.job != nil {
			j := *m.job
			m.job = nil
			m.mu.Unlock()
			return j, true
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// TryTake returns the pending job, or nil when empty. It never blocks.
func (m *Mailbox[T]) TryTake() *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.job
	m.job = nil
	return j
}

// HasJob reports whether a job is currently waiting.
func (m *Mailbox[T]) HasJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job != nil
}
