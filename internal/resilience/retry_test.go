package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/meetsense/platform/internal/errors"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.01,
		IsRetryable:  func(error) bool { return true },
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.CodeUnavailable, "flaky")
		}
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		calls++
		return boom
	})
	if err != boom {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	cfg := fastRetry(3)
	cfg.IsRetryable = IsRetryableCollaborator

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return apperrors.New(apperrors.CodeInvalidOutput, "malformed response")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for non-retryable", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetry(3), func() error {
		calls++
		return errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after cancellation", calls)
	}
}

func TestIsRetryableCollaborator(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"coded unavailable", apperrors.New(apperrors.CodeUnavailable, "down"), true},
		{"coded rate limited", apperrors.New(apperrors.CodeRateLimited, "slow down"), true},
		{"coded invalid output", apperrors.New(apperrors.CodeInvalidOutput, "bad json"), false},
		{"grpc unavailable", status.Error(codes.Unavailable, "conn refused"), true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain error", errors.New("whatever"), false},
	}

	for _, tt := range tests {
		if got := IsRetryableCollaborator(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryableCollaborator = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 4 * time.Second, JitterFactor: 0.001}
	for attempt := 0; attempt < 12; attempt++ {
		d := backoffDelay(cfg, attempt)
		if d > 5*time.Second {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}

func TestExtractionRetryConfig(t *testing.T) {
	cfg := ExtractionRetryConfig()
	if cfg.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", cfg.MaxRetries)
	}
}
