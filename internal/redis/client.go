package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const clientName = "mobilepush"

// Connect opens the client shared by the stream publisher, consumer and
// retry queue, and pings it so startup fails fast if Redis is unreachable.
// URL format: redis://[:password@]host:port[/db]
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ClientName = clientName

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
