// Package database opens the PostgreSQL pool and ties it to the lifecycle
// coordinator.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
)

// ErrNotReady is returned when the database stays unreachable for the
// whole connection timeout.
var ErrNotReady = errors.New("database not ready")

const pingInterval = 500 * time.Millisecond

// System exposes the connection pool to the domain repositories.
type System interface {
	Connection() *sql.DB
	// Start registers startup and shutdown hooks. Startup keeps pinging
	// until the connection timeout elapses, so a database that is still
	// booting does not fail the run.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
}

// New opens the pool and applies the pool limits. No connection is made
// until the startup hook runs.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database %s@%s:%d: %w", cfg.Name, cfg.Host, cfg.Port, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database", "host", cfg.Host, "name", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() error {
		ctx, cancel := context.WithTimeout(lc.Context(), d.connTimeout)
		defer cancel()

		attempts, err := waitReady(ctx, d.conn.PingContext, pingInterval)
		if err != nil {
			d.logger.Error("database unreachable", "attempts", attempts, "error", err)
			return err
		}

		stats := d.conn.Stats()
		d.logger.Info("database ready",
			"attempts", attempts,
			"max_open", stats.MaxOpenConnections,
		)
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database closed")
	})

	return nil
}

// waitReady calls ping until it succeeds or ctx ends, sleeping interval
// between attempts. It returns the number of attempts made.
func waitReady(ctx context.Context, ping func(context.Context) error, interval time.Duration) (int, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last error
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			if last == nil {
				last = ctx.Err()
			}
			return attempt - 1, fmt.Errorf("%w: %w", ErrNotReady, last)
		case <-timer.C:
		}

		if last = ping(ctx); last == nil {
			return attempt, nil
		}
		timer.Reset(interval)
	}
}
