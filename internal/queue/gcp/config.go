package gcp

import "fmt"

type Config struct {
	ProjectID    string
	Topic        string
	Subscription string
}

func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.Subscription == "" {
		return fmt.Errorf("subscription is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "pubsub"
}
