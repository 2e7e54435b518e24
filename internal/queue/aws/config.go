package aws

import "fmt"

type Config struct {
	QueueURL string
	Region   string
	// MaxMessages per receive, 1-10.
	MaxMessages int32
	// VisibilityTimeout in seconds. Must exceed the worst-case job
	// duration or a running job gets redelivered mid-flight.
	VisibilityTimeout int32
	WaitTimeSeconds   int32
}

func (c *Config) Validate() error {
	if c.QueueURL == "" {
		return fmt.Errorf("queue URL is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 5
	}
	if c.MaxMessages < 1 || c.MaxMessages > 10 {
		return fmt.Errorf("max messages must be between 1 and 10, got %d", c.MaxMessages)
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 600
	}
	if c.WaitTimeSeconds == 0 {
		c.WaitTimeSeconds = 10
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqs"
}
