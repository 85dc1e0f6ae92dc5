package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeTimeout, "slow")); got != CodeTimeout {
		t.Errorf("CodeOf = %s, want timeout", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Errorf("CodeOf plain = %s, want unknown", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Errorf("CodeOf nil = %s, want unknown", got)
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(CodeNotFound, "no such session")
	outer := Wrap(inner, CodeInternal, "lookup failed")

	// The outermost code wins, the cause stays reachable.
	if CodeOf(outer) != CodeInternal {
		t.Errorf("CodeOf = %s, want internal", CodeOf(outer))
	}
	if !stderrors.Is(outer, inner) {
		t.Error("wrapped cause lost from the chain")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeUnavailable, true},
		{CodeTimeout, true},
		{CodeRateLimited, true},
		{CodeInvalidInput, false},
		{CodeInvalidOutput, false},
		{CodeSessionState, false},
		{CodeOutOfOrder, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(New(tt.code, "x")); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Wrapf(stderrors.New("dial refused"), CodeUnavailable, "qdrant at %s", "localhost:6334").
		WithMetadata("collection", "meeting-history")

	msg := err.Error()
	for _, want := range []string{"unavailable", "qdrant at localhost:6334", "collection", "dial refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(CodeOutOfOrder, "seq %d not after %d", 4, 7)
	if !IsCode(err, CodeOutOfOrder) {
		t.Error("IsCode should match")
	}
	if IsCode(err, CodeTimeout) {
		t.Error("IsCode should not match a different code")
	}
}
