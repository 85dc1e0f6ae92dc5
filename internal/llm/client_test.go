package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/meetsense/platform/internal/errors"
)

// chatResponse builds an OpenAI-shaped chat completion body whose assistant
// message content is the given JSON payload.
func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	})
}

func TestExtractInsightsParsesAndFilters(t *testing.T) {
	payload := `{"insights":[
		{"kind":"action_item","priority":"high","content":"ship the fix","confidence":0.9,"assignee":"dana","due_date":"friday"},
		{"kind":"decision","priority":"medium","content":"","confidence":0.8},
		{"kind":"meeting_vibe","priority":"low","content":"good energy","confidence":0.9},
		{"kind":"risk","priority":"high","content":"migration may slip","confidence":0.7}
	]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(payload))
	})

	got, err := c.ExtractInsights(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("ExtractInsights: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 (empty content and unknown kind dropped)", len(got))
	}
	if got[0].Kind != "action_item" || got[0].Assignee != "dana" {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[1].Kind != "risk" {
		t.Errorf("second candidate = %+v", got[1])
	}
}

func TestExtractInsightsMalformedOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse("here are your insights: ship the fix"))
	})

	_, err := c.ExtractInsights(context.Background(), "transcript text")
	if !apperrors.IsCode(err, apperrors.CodeInvalidOutput) {
		t.Errorf("err = %v, want CodeInvalidOutput", err)
	}
}

func TestExtractInsightsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	_, err := c.ExtractInsights(context.Background(), "transcript text")
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("err = %v, want CodeUnavailable", err)
	}
}

func TestGenerateAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(`{"answer":"deploys freeze on friday","confidence":0.82}`))
	})

	text, conf, err := c.GenerateAnswer(context.Background(), "when do deploys freeze", "context")
	if err != nil {
		t.Fatalf("GenerateAnswer: %v", err)
	}
	if text != "deploys freeze on friday" || conf != 0.82 {
		t.Errorf("answer = (%q, %v)", text, conf)
	}
}

func TestEmbedMapsByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Out of order on purpose; the client must map by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	})

	got, err := c.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("embeddings misordered: %v", got)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
		})
	})

	_, err := c.Embed(context.Background(), []string{"a", "b"})
	if !apperrors.IsCode(err, apperrors.CodeInvalidOutput) {
		t.Errorf("err = %v, want CodeInvalidOutput", err)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no call expected for empty input")
	})

	got, err := c.Embed(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("Embed(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}
