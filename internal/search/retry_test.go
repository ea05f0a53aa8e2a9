package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryWithBackoffSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoffSucceedsOnNthAttempt(t *testing.T) {
	var calls atomic.Int32
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		if calls.Add(1) < 3 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestRetryWithBackoffDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	permanent := errors.New("itunes HTTP 400: bad request")
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoffExhaustsAllAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return fmt.Errorf("timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoffRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}
	err := RetryWithBackoff(ctx, cfg, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return fmt.Errorf("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestApplyJitterStaysInRange(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		jittered := applyJitter(base)
		if jittered < 75*time.Millisecond || jittered >= 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside [75ms, 125ms)", jittered)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	transient := []error{
		context.DeadlineExceeded,
		errors.New("read tcp: connection reset by peer"),
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
	}
	for _, err := range transient {
		if !isTransientError(err) {
			t.Fatalf("%v should be transient", err)
		}
	}

	permanent := []error{
		nil,
		errors.New("archive HTTP 400: malformed query"),
		errors.New("justwatch: query too complex"),
	}
	for _, err := range permanent {
		if isTransientError(err) {
			t.Fatalf("%v should not be transient", err)
		}
	}
}
