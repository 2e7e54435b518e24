package local

import (
	"fmt"
	"time"
)

type Config struct {
	// DatabasePath is the SQLite file backing the queue. It can share the
	// file with the primary store.
	DatabasePath string
	// PollInterval is how often the consumer looks for work.
	PollInterval time.Duration
	// LeaseDuration is how long a claimed job stays invisible before it is
	// considered abandoned and redelivered.
	LeaseDuration time.Duration
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.LeaseDuration == 0 {
		c.LeaseDuration = 10 * time.Minute
	}
	return nil
}

func (c *Config) GetType() string {
	return "local"
}
