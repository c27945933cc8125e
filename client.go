package formulite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/snapshot"
)

// Client owns the entity registry and the database connection. Schema
// operations are serialized; data operations may run concurrently with
// each other.
type Client struct {
	mu       sync.RWMutex
	driver   dialect.Driver
	stats    *sql.StatsDriver
	registry *schema.Registry
	store    snapshot.Store
	log      *slog.Logger
	loaded   bool
}

// Open opens the SQLite database at dsn and restores the persisted schema.
// Foreign key enforcement is turned on for the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	drv, err := sql.Open(dialect.SQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("formulite: open %s: %w", dsn, err)
	}
	var (
		d     dialect.Driver = drv
		stats *sql.StatsDriver
	)
	if cfg.withStats {
		stats = sql.NewStatsDriver(drv, cfg.stats...)
		d = stats
	}
	if cfg.debug {
		d = sql.NewDebugDriver(d, cfg.log)
	}
	c := newClient(d, cfg)
	c.stats = stats
	if err := c.ReloadSchema(ctx); err != nil {
		return nil, errors.Join(err, drv.Close())
	}
	return c, nil
}

// NewClient returns a client over an already opened driver. The schema is
// not restored; call ReloadSchema for that.
func NewClient(drv dialect.Driver, opts ...Option) *Client {
	return newClient(drv, newConfig(opts))
}

func newClient(drv dialect.Driver, cfg *config) *Client {
	return &Client{
		driver:   drv,
		registry: schema.NewRegistry(),
		store:    cfg.store,
		log:      cfg.log,
	}
}

// Driver returns the underlying driver.
func (c *Client) Driver() dialect.Driver {
	return c.driver
}

// Stats returns the query statistics collected since Open, if the client
// was opened with WithStats.
func (c *Client) Stats() (sql.StatsSnapshot, bool) {
	if c.stats == nil {
		return sql.StatsSnapshot{}, false
	}
	return c.stats.QueryStats().Stats(), true
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.driver.Close()
}

// withTx runs fn in a transaction, committing on success.
func (c *Client) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting a transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
