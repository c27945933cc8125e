package formulite

import (
	"io"
	"log/slog"

	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/schema/snapshot"
)

// Option configures a Client.
type Option func(*config)

type config struct {
	log   *slog.Logger
	store snapshot.Store
	stats []sql.StatsOption
	// withStats wraps the driver opened by Open with a StatsDriver.
	withStats bool
	debug     bool
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.store == nil {
		cfg.store = snapshot.NewTableStore()
	}
	return cfg
}

// WithLogger sets the logger of the client. Nothing is logged by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.log = logger
	}
}

// WithSnapshotStore sets where the schema snapshot is kept. The default
// stores it in a table of the database itself.
func WithSnapshotStore(store snapshot.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithStats records query statistics on the driver opened by Open.
//
//	client, err := formulite.Open(ctx, dsn,
//		formulite.WithStats(sql.WithSlowThreshold(50*time.Millisecond)),
//	)
func WithStats(opts ...sql.StatsOption) Option {
	return func(c *config) {
		c.withStats = true
		c.stats = append(c.stats, opts...)
	}
}

// WithDebug logs every statement the client runs at debug level.
func WithDebug() Option {
	return func(c *config) {
		c.debug = true
	}
}
