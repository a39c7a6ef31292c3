package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"mobilepush/internal/model"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event model.MissedMessageEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish adds an event to the stream using XADD with an auto-generated ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event model.MissedMessageEvent) (string, error) {
	startTime := time.Now()

	values, err := EncodeEvent(event)
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s trigger=%s err=%v", stream, event.Trigger, err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s trigger=%s err=%v", stream, event.Trigger, err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Printf("[Publisher] Publish OK: stream=%s trigger=%s msgID=%s user=%d message=%d duration=%v",
		stream, event.Trigger, messageID, event.UserProfileID, event.MessageID, time.Since(startTime))
	return messageID, nil
}
