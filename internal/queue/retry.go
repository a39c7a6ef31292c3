package queue

import (
	"context"
	"fmt"
	"log"

	"mobilepush/internal/model"
)

// DefaultMaxRetries is how many times an event is re-queued before it is
// given up on.
const DefaultMaxRetries = 3

// RetryQueue re-queues events whose processing failed transiently. It owns
// the attempt count, carried in the event's failed_tries field.
type RetryQueue struct {
	publisher  Publisher
	maxRetries int
}

func NewRetryQueue(publisher Publisher, maxRetries int) *RetryQueue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &RetryQueue{publisher: publisher, maxRetries: maxRetries}
}

// Submit counts one more failed attempt for event. Once the count exceeds
// the maximum, onExhausted is called with the event and nothing is queued;
// otherwise the event is published to stream again.
func (q *RetryQueue) Submit(ctx context.Context, stream string, event model.MissedMessageEvent, onExhausted func(model.MissedMessageEvent)) error {
	tries := 1
	if event.FailedTries != nil {
		tries = *event.FailedTries + 1
	}
	event.FailedTries = &tries

	if tries > q.maxRetries {
		log.Printf("[RetryQueue] Giving up: stream=%s user=%d message=%d tries=%d",
			stream, event.UserProfileID, event.MessageID, tries)
		if onExhausted != nil {
			onExhausted(event)
		}
		return nil
	}

	if _, err := q.publisher.Publish(ctx, stream, event); err != nil {
		return fmt.Errorf("requeue event: %w", err)
	}
	log.Printf("[RetryQueue] Requeued: stream=%s user=%d message=%d tries=%d",
		stream, event.UserProfileID, event.MessageID, tries)
	return nil
}
