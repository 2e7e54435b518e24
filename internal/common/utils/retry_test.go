package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return errors.New("always failing")
	})

	if err == nil {
		t.Fatal("RetryWithBackoff() error = nil, want error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error = %q, want max retries exceeded", err)
	}
}

func TestRetryWithBackoff_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("not found")
	config := fastRetryConfig()
	config.RetryableErrors = func(err error) bool {
		return !errors.Is(err, permanent)
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Errorf("error = %v, want %v returned unwrapped", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := fastRetryConfig()
	config.InitialDelay = time.Second

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- RetryWithBackoff(ctx, config, func() error {
			attempts++
			return errors.New("transient")
		})
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "retry cancelled") {
			t.Errorf("error = %v, want retry cancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RetryWithBackoff() did not return after context cancellation")
	}
}

func TestGenerateJobID(t *testing.T) {
	id1 := GenerateJobID("user1")
	id2 := GenerateJobID("user1")

	if !strings.HasPrefix(id1, "user1-") {
		t.Errorf("GenerateJobID() = %q, want user1- prefix", id1)
	}
	if id1 == id2 {
		t.Errorf("GenerateJobID() returned duplicate IDs: %q", id1)
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID(8)
	if len(id) != 16 {
		t.Errorf("GenerateRandomID(8) length = %d, want 16", len(id))
	}
}
