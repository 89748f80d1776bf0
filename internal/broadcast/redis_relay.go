// Package broadcast relays comment events between instances over Redis
// pub/sub so that every instance's hub sees every comment.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vedran77/activities/internal/config"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/logging"
)

const (
	commentChannelFmt     = "activities:%s:comments"
	commentChannelPattern = "activities:*:comments"
	publishTimeout        = 2 * time.Second
)

// CommentChannel is the Redis channel carrying one activity's comments.
func CommentChannel(activityID uuid.UUID) string {
	return fmt.Sprintf(commentChannelFmt, activityID)
}

// LocalBroadcaster delivers a comment to this process's connected clients.
type LocalBroadcaster interface {
	BroadcastComment(c *domain.Comment) error
}

// RedisRelay implements service.Notifier by publishing to Redis; Run feeds
// everything published by any instance into the local broadcaster.
type RedisRelay struct {
	client *redis.Client
	local  LocalBroadcaster
}

func NewRedisRelay(client *redis.Client, local LocalBroadcaster) *RedisRelay {
	return &RedisRelay{client: client, local: local}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

func (r *RedisRelay) NotifyNewComment(ctx context.Context, c *domain.Comment) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding comment: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, CommentChannel(c.ActivityID), data).Err(); err != nil {
		return fmt.Errorf("publishing comment: %w", err)
	}
	return nil
}

// Run subscribes to every activity's comment channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, commentChannelPattern)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", commentChannelPattern, err)
	}

	l := logging.L()
	l.Info().Str("pattern", commentChannelPattern).Msg("redis relay: subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.relay(msg.Channel, msg.Payload); err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("redis relay: dropping message")
			}
		}
	}
}

func (r *RedisRelay) relay(channel, payload string) error {
	var c domain.Comment
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return fmt.Errorf("decoding comment: %w", err)
	}
	if want := CommentChannel(c.ActivityID); !strings.EqualFold(channel, want) {
		return fmt.Errorf("comment for %s arrived on %s", c.ActivityID, channel)
	}
	return r.local.BroadcastComment(&c)
}
