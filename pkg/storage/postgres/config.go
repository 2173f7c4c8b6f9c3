package postgres

import "time"

// Config configures the thread store connection pool.
type Config struct {
	DSN string

	// Pool bounds. Thread writes are one short statement per completed
	// run, so a small pool is enough.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// MigrateOnStart applies embedded migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
}
