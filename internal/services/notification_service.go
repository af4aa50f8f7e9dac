package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

type NotificationKind string

const (
	NotificationClaim NotificationKind = "claim"
	NotificationError NotificationKind = "error"
)

type Notification struct {
	AccountID string           `json:"accountId"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Route     string           `json:"route,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NotificationSink receives claim outcome events. Delivery is fire-and-forget;
// a sink failure never affects the claim that produced the event.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}

// RedisNotificationSink pushes events onto a Redis list consumed by the
// delivery service.
type RedisNotificationSink struct {
	redis *redis.Client
	queue string
}

func NewRedisNotificationSink(redisClient *redis.Client, queue string) *RedisNotificationSink {
	return &RedisNotificationSink{
		redis: redisClient,
		queue: queue,
	}
}

func (s *RedisNotificationSink) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return s.redis.RPush(ctx, s.queue, data).Err()
}

// LogNotificationSink is the local fallback used when the primary sink is
// unavailable or fails.
type LogNotificationSink struct{}

func (LogNotificationSink) Notify(_ context.Context, n Notification) error {
	log.Printf("[NOTIFY] account=%s kind=%s message=%q", n.AccountID, n.Kind, n.Message)
	return nil
}
