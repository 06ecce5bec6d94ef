package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSQueue implements Queue on Amazon SQS. Safe for concurrent use.
type SQSQueue struct {
	client *sqs.Client
	config Config
}

// NewSQSQueue wraps an SQS client for the configured queue URL.
func NewSQSQueue(client *sqs.Client, cfg Config) (*SQSQueue, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("queue URL is required")
	}
	cfg.applyDefaults()
	return &SQSQueue{client: client, config: cfg}, nil
}

// Send publishes body to the queue.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.config.URL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send queue message: %w", err)
	}
	return nil
}

// Receive long-polls for up to max messages. Received messages stay invisible
// for the configured visibility timeout.
func (q *SQSQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.config.URL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(q.config.WaitTime.Seconds()),
		VisibilityTimeout:   int32(q.config.VisibilityTimeout.Seconds()),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive queue messages: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			ReceiveCount:  1,
		}
		if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				msg.ReceiveCount = n
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete acknowledges a message so it is never redelivered.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return ErrEmptyReceipt
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.config.URL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete queue message: %w", err)
	}
	return nil
}
