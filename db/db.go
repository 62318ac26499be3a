package db

import (
	"context"
	"fmt"

	"bomsabor-web/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects a pool and verifies the server answers.
func Open(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return pool, nil
}
