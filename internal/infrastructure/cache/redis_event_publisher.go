package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/event"
)

// RedisEventPublisher keeps a capped list of recent events in Redis and
// publishes each event on a channel for live consumers
type RedisEventPublisher struct {
	client  *redis.Client
	listKey string
	channel string
	maxLen  int64
}

// NewRedisEventPublisher creates a new RedisEventPublisher
func NewRedisEventPublisher(client *redis.Client, listKey, channel string, maxLen int64) *RedisEventPublisher {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisEventPublisher{
		client:  client,
		listKey: listKey,
		channel: channel,
		maxLen:  maxLen,
	}
}

// Write pushes a batch in one pipeline
func (p *RedisEventPublisher) Write(ctx context.Context, records []event.Record) error {
	if len(records) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", rec.ID, err)
		}
		pipe.LPush(ctx, p.listKey, payload)
		if p.channel != "" {
			pipe.Publish(ctx, p.channel, payload)
		}
	}
	pipe.LTrim(ctx, p.listKey, 0, p.maxLen-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

// FindRecent returns up to limit records from the list, newest first
func (p *RedisEventPublisher) FindRecent(ctx context.Context, limit int) ([]event.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	values, err := p.client.LRange(ctx, p.listKey, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}

	records := make([]event.Record, 0, len(values))
	for _, v := range values {
		var rec event.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("invalid event in list: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping checks the Redis connection
func (p *RedisEventPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
