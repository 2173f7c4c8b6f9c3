package engine

import "time"

// Config holds configuration for the query engine.
type Config struct {
	// Timeout bounds a whole run, from request to terminal event.
	// Zero or negative means the default of 5 minutes. A caller's context
	// deadline still applies when it is earlier.
	Timeout time.Duration

	// IdleTimeout fails a run when no event (heartbeats included) arrives
	// for this long. Zero means the default of 90 seconds; negative
	// disables the idle check.
	IdleTimeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Minute
	}
	return c.Timeout
}

func (c Config) idleTimeout() time.Duration {
	switch {
	case c.IdleTimeout < 0:
		return 0
	case c.IdleTimeout == 0:
		return 90 * time.Second
	default:
		return c.IdleTimeout
	}
}
