package util

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryWithBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func(int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 2, func(attempt int) error {
		calls++
		if attempt == 0 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryWithBackoffExhausted(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	err := RetryWithBackoff(context.Background(), 1, func(int) error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (initial + 1 retry), got %d", calls)
	}
}

func TestRetryWithBackoffPermanentError(t *testing.T) {
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(context.Background(), 3, func(int) error {
		calls++
		return fmt.Errorf("gone: %w", ErrPermanent)
	})
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("expected wrapped ErrPermanent, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a permanent failure, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("permanent failure should not have waited for backoff")
	}
}

func TestRetryWithBackoffCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RetryWithBackoff(ctx, 3, func(int) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled retry should not have waited for backoff")
	}
}
