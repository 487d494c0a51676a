package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastEventKeyPrefix = "notify:last:"

// RedisPublisher delivers notifications on a Redis pub/sub channel for push gateways to fan out,
// and keeps the latest event per listing for subscribers that connect late.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
	ttl     time.Duration
}

func NewRedisPublisher(rdb redis.Cmdable, channel string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, ttl: ttl}
}

func (p *RedisPublisher) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}

	pipe := p.rdb.TxPipeline()
	publish := pipe.Publish(ctx, p.channel, payload)
	pipe.Set(ctx, LastEventKey(n.ListingID.String()), payload, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", n.ID, err)
	}
	log.Printf("Published notification %s for listing %s to %d subscribers", n.ID, n.ListingID.String(), publish.Val())
	return nil
}

// LastEventKey is the Redis key holding the latest notification for a listing.
func LastEventKey(listingID string) string {
	return lastEventKeyPrefix + listingID
}
