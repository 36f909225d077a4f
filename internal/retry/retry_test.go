package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestWithRetryReturnsFirstSuccess(t *testing.T) {
	calls := 0
	rows, err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) ([][]interface{}, error) {
		calls++
		return [][]interface{}{{"ID", "Title"}}, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(rows))
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 backend unavailable")
		}
		return "threads", nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "threads" {
		t.Errorf("Expected 'threads', got %s", result)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	persistent := errors.New("persistent failure")
	_, err := WithRetry(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
		calls++
		return 0, persistent
	})
	if !errors.Is(err, persistent) {
		t.Errorf("Expected wrapped persistent error, got %v", err)
	}
	if calls != 3 { // MaxRetries + 1
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("header row too short")
	config := fastConfig(5)
	config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	_, err := WithRetry(context.Background(), config, func(ctx context.Context) (string, error) {
		calls++
		return "", permanent
	})
	if err != permanent {
		t.Errorf("Expected the permanent error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithRetryContextCancellation(t *testing.T) {
	config := Config{
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   200 * time.Millisecond,
		Timeout:    time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := WithRetry(ctx, config, func(ctx context.Context) (string, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return "", errors.New("failure")
	})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls > 3 {
		t.Errorf("Expected at most 3 calls due to cancellation, got %d", calls)
	}
}

func TestWithRetryZeroTimeoutKeepsParentDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	parentDeadline, _ := ctx.Deadline()

	config := fastConfig(0)
	config.Timeout = 0

	_, err := WithRetry(ctx, config, func(opCtx context.Context) (struct{}, error) {
		deadline, ok := opCtx.Deadline()
		if !ok || !deadline.Equal(parentDeadline) {
			t.Errorf("Expected parent deadline %v, got %v (set=%v)", parentDeadline, deadline, ok)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestCalculateBackoffDelay(t *testing.T) {
	baseDelay := 10 * time.Millisecond
	maxDelay := 100 * time.Millisecond

	tests := []struct {
		attempt     int
		minDelay    time.Duration
		maxExpected time.Duration
	}{
		{0, 5 * time.Millisecond, 15 * time.Millisecond},
		{1, 10 * time.Millisecond, 30 * time.Millisecond},
		{2, 20 * time.Millisecond, 60 * time.Millisecond},
		{4, 50 * time.Millisecond, 100 * time.Millisecond},
		{64, 50 * time.Millisecond, 100 * time.Millisecond}, // must not overflow
	}

	for _, test := range tests {
		for i := 0; i < 10; i++ {
			result := calculateBackoffDelay(test.attempt, baseDelay, maxDelay)
			if result < test.minDelay || result > test.maxExpected {
				t.Errorf("calculateBackoffDelay(%d) = %v, expected between %v and %v",
					test.attempt, result, test.minDelay, test.maxExpected)
			}
		}
	}
}
