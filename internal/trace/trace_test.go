package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewGeneratesIDs(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace id length = %d, want 32 hex chars", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span id length = %d, want 16 hex chars", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("fresh context should have no parent")
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child must keep the trace id")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child must get a new span id")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child must record its parent span")
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Errorf("FromContext = (%+v, %v)", got, ok)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("bare context should carry no trace")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if tc.TraceID == "" {
		t.Fatal("EnsureContext should mint ids")
	}

	ctx2, tc2 := EnsureContext(ctx)
	if ctx2 != ctx || tc2 != tc {
		t.Error("EnsureContext must not replace an existing trace")
	}
}

func TestStartSpanChildOfExisting(t *testing.T) {
	parent := New()
	ctx := WithContext(context.Background(), parent)

	ctx, span := StartSpan(ctx, "extraction_round")
	defer span.End()

	got, _ := FromContext(ctx)
	if got.TraceID != parent.TraceID {
		t.Error("span must continue the trace")
	}
	if got.ParentSpanID != parent.SpanID {
		t.Error("span must parent off the existing span")
	}
	if span.Name != "extraction_round" {
		t.Errorf("name = %q", span.Name)
	}
}

func TestSpanDuration(t *testing.T) {
	_, span := StartSpan(context.Background(), "op")
	if span.Duration() != 0 {
		t.Error("duration before End should be zero")
	}
	span.End()
	if span.Duration() < 0 {
		t.Error("negative duration")
	}
}

func TestMiddlewarePropagatesHeaders(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set(TraceIDKey, "abc123")
	req.Header.Set(SpanIDKey, "parent456")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.TraceID != "abc123" {
		t.Errorf("trace id = %q, want propagated abc123", got.TraceID)
	}
	if got.ParentSpanID != "parent456" {
		t.Errorf("parent span = %q, want parent456", got.ParentSpanID)
	}

	// Without headers a fresh trace is minted.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws", nil))
	if got.TraceID == "abc123" {
		t.Error("second request should not reuse the first trace")
	}
}

func TestLoggerWithoutTrace(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Error("Logger must fall back to the default logger")
	}
}
