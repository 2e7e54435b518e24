package rabbitmq

import "fmt"

type Config struct {
	URL   string
	Queue string
	// Prefetch bounds unacked deliveries per worker.
	Prefetch int
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("connection URL is required")
	}
	if c.Queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.Prefetch == 0 {
		c.Prefetch = 5
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("prefetch must be positive, got %d", c.Prefetch)
	}
	return nil
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
