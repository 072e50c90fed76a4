package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a string key-value cache with per-entry TTL.
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory builds a cache from its configuration.
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache registers a cache implementation.
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache creates a cache instance, defaulting to memory.
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	return NewMemoryCache(config)
}

// Config holds cache settings.
type Config struct {
	// cache type: "memory" or "redis"
	Type string
	// redis connection address
	RedisAddr string
	// redis password
	RedisPassword string
	// redis database number
	RedisDB int
	// default entry lifetime
	DefaultTTL time.Duration
	// eviction sweep interval for the memory cache
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      time.Hour * 24,
		CleanupInterval: time.Minute * 10,
	}
}

// GenerateCacheKey joins parts into a namespaced key.
func GenerateCacheKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// AnswerCacheKey builds the cache key for a generated answer. The
// question text is hashed so arbitrary input cannot produce oversized
// or colliding keys, and the model name is part of the key so answers
// from different models never shadow each other.
func AnswerCacheKey(model, scope, question string) string {
	sum := sha256.Sum256([]byte(question))
	return GenerateCacheKey("qa", model, scope, hex.EncodeToString(sum[:]))
}
