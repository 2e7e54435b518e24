package kafka

import "fmt"

type Config struct {
	Brokers string
	Topic   string
	GroupID string
}

func (c *Config) Validate() error {
	if c.Brokers == "" {
		return fmt.Errorf("bootstrap servers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("consumer group id is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "kafka"
}
