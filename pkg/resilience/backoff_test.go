package resilience

import (
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{7, 10 * time.Second}, // 12800ms, capped at 10s
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		delay := backoff.NextDelay(tt.attempt)
		if delay != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, delay, tt.expected)
		}
	}
}

func TestExponentialBackoff_WithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}

	// Expected delay for attempt 3: 800ms; with ±10% jitter: 720ms - 880ms
	minExpected := 720 * time.Millisecond
	maxExpected := 880 * time.Millisecond

	allSame := true
	first := backoff.NextDelay(3)
	for i := 0; i < 100; i++ {
		delay := backoff.NextDelay(3)
		if delay < minExpected || delay > maxExpected {
			t.Errorf("delay = %v, expected range [%v, %v]", delay, minExpected, maxExpected)
		}
		if delay != first {
			allSame = false
		}
	}

	if allSame {
		t.Error("all delays are identical - jitter is not working")
	}
}

func TestExponentialBackoff_NegativeAttempt(t *testing.T) {
	backoff := ReceiptPollBackoff()

	delay := backoff.NextDelay(-1)
	if delay != backoff.BaseDelay {
		t.Errorf("NextDelay(-1) = %v, want %v", delay, backoff.BaseDelay)
	}
}

func TestStepBackoff_NextDelay(t *testing.T) {
	backoff := RateLimitBackoff()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 5 * time.Second},
		{3, 10 * time.Second},
		{4, 10 * time.Second}, // sequence exhausted, last delay repeats
		{50, 10 * time.Second},
	}

	for _, tt := range tests {
		delay := backoff.NextDelay(tt.attempt)
		if delay != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, delay, tt.expected)
		}
	}
}

func TestStepBackoff_Empty(t *testing.T) {
	backoff := &StepBackoff{}
	if delay := backoff.NextDelay(0); delay != 0 {
		t.Errorf("NextDelay on empty sequence = %v, want 0", delay)
	}
}

func TestFixedBackoff(t *testing.T) {
	backoff := &FixedBackoff{Delay: 3 * time.Second}
	for _, attempt := range []int{0, 1, 10} {
		if delay := backoff.NextDelay(attempt); delay != 3*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 3s", attempt, delay)
		}
	}
}
