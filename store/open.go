// Package store picks a leave.Repository backend from configuration.
package store

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/warp/leave-portal/config"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/store/memory"
	"github.com/warp/leave-portal/store/redis"
	"github.com/warp/leave-portal/store/sqlite"
)

// Backend is a Repository that owns a connection.
type Backend interface {
	leave.Repository
	io.Closer
}

// Open returns the backend named by cfg.Store.
func Open(cfg config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite, "":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLitePath, err)
		}
		return s, nil
	case config.StoreRedis:
		s, err := redis.New(cfg.RedisURL, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
