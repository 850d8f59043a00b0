package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const (
	DefaultRedisChannel = "wes:run_events"
	DefaultRedisTimeout = 5 * time.Second
)

// RedisSender publishes run events as JSON on a Redis pub/sub channel.
type RedisSender struct {
	config config.RedisConfig
	client *goredis.Client
}

// NewRedisSender parses a redis://[:password@]host:port[/db] URL.
func NewRedisSender(cfg config.RedisConfig) (*RedisSender, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis event sender requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis event sender: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultRedisChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &RedisSender{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

func (s *RedisSender) Name() string {
	return "redis"
}

func (s *RedisSender) Send(ctx context.Context, event *api.RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	var lastErr error
	attempts := 1 + s.config.Retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}
		if i > 0 {
			if err := backoff(ctx, i); err != nil {
				return fmt.Errorf("redis: context canceled during backoff: %w", err)
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		lastErr = s.client.Publish(publishCtx, s.config.Channel, body).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

func (s *RedisSender) Close() error {
	return s.client.Close()
}

var _ abstractions.EventSender = (*RedisSender)(nil)
