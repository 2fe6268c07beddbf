package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DatabaseURL string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger.Info.Printf("store: using %s backend", opts.Backend)
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendRedis:
		r := NewRedis(opts.RedisAddr, opts.RedisPrefix)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	case BackendPostgres:
		return NewPostgres(ctx, opts.DatabaseURL)
	case BackendSQLite:
		return NewSQLite(ctx, opts.SQLitePath)
	default:
		return nil, errors.Errorf("unknown store backend %q", opts.Backend)
	}
}
