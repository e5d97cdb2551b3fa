package cache

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config selects and configures a Cache driver.
type Config struct {
	// Driver is "memory" or "redis".
	Driver string
	// Redis is required when Driver is "redis".
	Redis *redis.Client
	// Prefix namespaces redis keys.
	Prefix string
}

// New builds the Cache selected by cfg.Driver.
func New(cfg Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("cache: redis client is required")
		}
		return NewRedis(cfg.Redis, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
