package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/pkg/logger"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "gatekeeper:authz:invalidate"

// Purger drops locally memoised authorization state.
type Purger interface {
	Purge()
}

// Broadcaster purges the local effective-permission cache and tells every
// other replica sharing the Redis channel to do the same.
type Broadcaster struct {
	client  *redis.Client
	local   Purger
	channel string
	nodeID  string
	log     *zap.Logger
}

// NewBroadcaster wires a broadcaster around an existing client. A nil client
// degrades to local-only invalidation.
func NewBroadcaster(client *redis.Client, local Purger, channel string) *Broadcaster {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		client:  client,
		local:   local,
		channel: channel,
		nodeID:  uuid.NewString(),
		log:     logger.WithModule("cache"),
	}
}

// NodeID identifies this replica in published messages.
func (b *Broadcaster) NodeID() string {
	return b.nodeID
}

// Channel returns the pub/sub channel in use.
func (b *Broadcaster) Channel() string {
	return b.channel
}

// InvalidateAll purges the local cache and publishes the invalidation. The
// local purge always happens; a failed publish is logged and not returned,
// because the mutation that triggered it has already committed.
func (b *Broadcaster) InvalidateAll(ctx context.Context) error {
	if b.local != nil {
		b.local.Purge()
	}
	monitoring.RecordCacheInvalidation("local")

	if b.client == nil {
		return nil
	}
	if err := b.client.Publish(ctx, b.channel, b.nodeID).Err(); err != nil {
		b.log.Warn("publish cache invalidation failed",
			zap.String("channel", b.channel),
			zap.Error(err),
		)
	}
	return nil
}

// Listen subscribes to the invalidation channel and purges the local cache for
// every message published by another replica. It returns once the
// subscription is confirmed; the receive loop runs until ctx is cancelled.
func (b *Broadcaster) Listen(ctx context.Context) error {
	if b == nil || b.client == nil {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("cache: subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == b.nodeID {
					continue
				}
				if b.local != nil {
					b.local.Purge()
				}
				monitoring.RecordCacheInvalidation("remote")
				b.log.Debug("remote cache invalidation applied", zap.String("origin", msg.Payload))
			}
		}
	}()
	return nil
}

// RedisConfig describes the connection used for invalidation broadcasts.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("cache: redis address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return client, nil
}

// Pinger adapts a go-redis client to the readiness probe interface.
type Pinger struct {
	Client *redis.Client
}

// Ping reports whether Redis answers.
func (p Pinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return errors.New("cache: redis client not configured")
	}
	return p.Client.Ping(ctx).Err()
}
