package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := &Config{
		ProjectID:    "trade-coach-prod",
		Topic:        "analysis-jobs",
		Subscription: "analysis-jobs-worker",
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Config{Topic: "t", Subscription: "s"}).Validate())
	assert.Error(t, (&Config{ProjectID: "p", Subscription: "s"}).Validate())
	assert.Error(t, (&Config{ProjectID: "p", Topic: "t"}).Validate())
}

func TestConfig_GetType(t *testing.T) {
	assert.Equal(t, "pubsub", (&Config{}).GetType())
}
