package app

import (
	"strings"

	"github.com/charlesng35/gatekeeper/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Timeout:  c.Redis.Timeout,
	}
}

// InvalidationChannel returns the pub/sub channel, falling back to the package default.
func (c CacheConfig) InvalidationChannel() string {
	if channel := strings.TrimSpace(c.Redis.Channel); channel != "" {
		return channel
	}
	return cache.DefaultChannel
}
