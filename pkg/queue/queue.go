// Package queue abstracts the durable job dispatch channel between the API
// and the analysis workers. The production implementation is Amazon SQS; an
// in-memory implementation with the same visibility semantics backs tests.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyReceipt is returned by Delete when the receipt handle is missing.
var ErrEmptyReceipt = errors.New("empty receipt handle")

// JobMessage is the payload placed on the queue when an upload completes.
// The job row is the source of truth; the message only points at it.
type JobMessage struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	S3Key     string `json:"s3_key"`
}

// Encode serializes the message body.
func (m JobMessage) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode job message: %w", err)
	}
	return string(b), nil
}

// DecodeJobMessage parses a queue body into a JobMessage.
func DecodeJobMessage(body string) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return JobMessage{}, fmt.Errorf("failed to decode job message: %w", err)
	}
	if m.JobID == "" {
		return JobMessage{}, errors.New("job message missing job_id")
	}
	return m, nil
}

// Message is a received queue message. ReceiveCount counts deliveries of the
// same message, including this one.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceiveCount  int
}

// Queue is the dispatch port. Receive blocks up to the configured wait time
// and returns zero or more messages; each received message stays invisible to
// other consumers until the visibility timeout expires or Delete is called.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Config holds the tunables shared by queue implementations.
type Config struct {
	// URL identifies the queue (SQS queue URL).
	URL string

	// WaitTime is the long-poll duration for Receive. Default: 20s.
	WaitTime time.Duration

	// VisibilityTimeout hides received messages from other consumers.
	// Default: 15m, sized to the deep-pass worst case.
	VisibilityTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.WaitTime <= 0 {
		c.WaitTime = 20 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 15 * time.Minute
	}
}
