package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := &Config{
		Brokers: "localhost:9092",
		Topic:   "analysis-jobs",
		GroupID: "trade-coach-worker",
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Config{Topic: "t", GroupID: "g"}).Validate())
	assert.Error(t, (&Config{Brokers: "b", GroupID: "g"}).Validate())
	assert.Error(t, (&Config{Brokers: "b", Topic: "t"}).Validate())
}

func TestConfig_GetType(t *testing.T) {
	assert.Equal(t, "kafka", (&Config{}).GetType())
}
