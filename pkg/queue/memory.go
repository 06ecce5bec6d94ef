package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with SQS-like visibility semantics:
// received messages are hidden until the visibility timeout passes or the
// receipt is deleted, and each redelivery increments the receive count.
// Used by tests and by the single-binary development mode.
type MemoryQueue struct {
	mu       sync.Mutex
	messages []*memoryMessage
	nextID   int
	config   Config

	// now is swappable so tests can force visibility expiry.
	now func() time.Time
}

type memoryMessage struct {
	id            string
	body          string
	receiveCount  int
	invisibleTil  time.Time
	receiptHandle string
	deleted       bool
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(cfg Config) *MemoryQueue {
	cfg.applyDefaults()
	return &MemoryQueue{config: cfg, now: time.Now}
}

// Send appends a message.
func (q *MemoryQueue) Send(_ context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.messages = append(q.messages, &memoryMessage{
		id:   fmt.Sprintf("mem-%d", q.nextID),
		body: body,
	})
	return nil
}

// Receive returns up to max visible messages without blocking. An empty queue
// returns an empty slice, mirroring a long-poll timeout.
func (q *MemoryQueue) Receive(_ context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Message
	for _, m := range q.messages {
		if len(out) >= max {
			break
		}
		if m.deleted || now.Before(m.invisibleTil) {
			continue
		}
		m.receiveCount++
		m.invisibleTil = now.Add(q.config.VisibilityTimeout)
		m.receiptHandle = fmt.Sprintf("%s#%d", m.id, m.receiveCount)
		out = append(out, Message{
			ID:            m.id,
			ReceiptHandle: m.receiptHandle,
			Body:          m.body,
			ReceiveCount:  m.receiveCount,
		})
	}
	return out, nil
}

// Delete acknowledges the message for the given receipt. Stale receipts from
// an earlier delivery are ignored, matching SQS behavior after redelivery.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return ErrEmptyReceipt
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.receiptHandle == receiptHandle {
			m.deleted = true
			return nil
		}
	}
	return nil
}

// ExpireVisibility makes all in-flight messages immediately visible again.
// Test helper for exercising redelivery.
func (q *MemoryQueue) ExpireVisibility() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		m.invisibleTil = time.Time{}
	}
}

// Len returns the number of undeleted messages, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, m := range q.messages {
		if !m.deleted {
			n++
		}
	}
	return n
}
