// Package queue provides the in-process FIFO buffer between the webhook
// receiver and the worker pool.
//
// The queue is channel-backed: Push never blocks (a full queue fails fast so
// the receiver can answer the platform timely) and Pop suspends until an item
// arrives or the caller's context is cancelled, replacing the poll-and-sleep
// loop of earlier designs. Ordering is global FIFO across all bots.
//
// The queue is not durable. Envelopes not yet popped when the process stops
// are lost; this is an accepted limitation of the at-most-once delivery
// contract, not a bug.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrFull is returned by Push when the queue has reached capacity.
var ErrFull = errors.New("update queue is full")

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("update queue is closed")

// UpdateEnvelope wraps one raw inbound update with its routing metadata.
// RawUpdate stays opaque until a worker extracts it.
type UpdateEnvelope struct {
	BotID      string          `json:"bot_id"`
	RawUpdate  json.RawMessage `json:"update"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// UpdateQueue is a bounded FIFO of UpdateEnvelope. Safe for concurrent use.
type UpdateQueue struct {
	ch     chan UpdateEnvelope
	closed chan struct{}
}

// New constructs a queue holding at most size envelopes. A non-positive size
// falls back to 1024.
func New(size int) *UpdateQueue {
	if size <= 0 {
		size = 1024
	}
	return &UpdateQueue{
		ch:     make(chan UpdateEnvelope, size),
		closed: make(chan struct{}),
	}
}

// Push enqueues an envelope without blocking. Returns ErrFull when the queue
// is at capacity and ErrClosed after shutdown.
func (q *UpdateQueue) Push(env UpdateEnvelope) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- env:
		return nil
	default:
		return ErrFull
	}
}

// Pop dequeues the oldest envelope, blocking until one is available or ctx is
// done. The bool result is false when the wait was cancelled.
func (q *UpdateQueue) Pop(ctx context.Context) (UpdateEnvelope, bool) {
	select {
	case env := <-q.ch:
		return env, true
	case <-ctx.Done():
		return UpdateEnvelope{}, false
	}
}

// TryPop dequeues without waiting. Used by drain loops and tests.
func (q *UpdateQueue) TryPop() (UpdateEnvelope, bool) {
	select {
	case env := <-q.ch:
		return env, true
	default:
		return UpdateEnvelope{}, false
	}
}

// Len reports the number of buffered envelopes.
func (q *UpdateQueue) Len() int { return len(q.ch) }

// Close rejects further pushes. Buffered envelopes remain poppable so
// in-flight shutdown can finish what it already accepted.
func (q *UpdateQueue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
