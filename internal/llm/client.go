// Package llm wraps the language-model collaborator. One method per
// operation, each with a strict timeout; callers treat failures as tier or
// phase failures, never as session-fatal.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/insight"
)

// Candidate is one typed item returned by the extraction call, before
// confidence filtering and deduplication.
type Candidate struct {
	Kind       string  `json:"kind"`
	Priority   string  `json:"priority"`
	Content    string  `json:"content"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
	Assignee   string  `json:"assignee,omitempty"`
	DueDate    string  `json:"due_date,omitempty"`
}

// Config holds client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client is the language-model collaborator client.
type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	timeout    time.Duration
}

// New creates a client.
func New(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		timeout:    cfg.Timeout,
	}
}

const extractSystemPrompt = `You analyze live meeting transcript excerpts and extract structured insights.
Return JSON: {"insights":[{"kind":"action_item|decision|question|risk|key_point|contradiction|missing_info|reference","priority":"high|medium|low","content":"...","context":"supporting quote","confidence":0.0-1.0,"assignee":"...","due_date":"..."}]}.
Only include items actually supported by the text. Assignee and due_date apply to action items only.`

// ExtractInsights asks the model for typed insight candidates for the given
// assembled context. Malformed output is reported as CodeInvalidOutput so the
// round can degrade to zero items instead of fabricating any.
func (c *Client) ExtractInsights(ctx context.Context, contextText string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: contextText},
		},
	})
	if err != nil {
		return nil, classify(err, "extraction call failed")
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidOutput, "extraction returned no choices")
	}

	var parsed struct {
		Insights []Candidate `json:"insights"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidOutput, "extraction returned malformed JSON")
	}

	out := parsed.Insights[:0]
	for _, cand := range parsed.Insights {
		if strings.TrimSpace(cand.Content) == "" {
			continue
		}
		if !insight.ValidKind(insight.Kind(cand.Kind)) {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

const answerSystemPrompt = `You answer a question raised in a live meeting using the provided context.
Return JSON: {"answer":"...","confidence":0.0-1.0}. If the context does not support an answer, use confidence 0.`

// GenerateAnswer produces a generated (not retrieved) answer for a question.
func (c *Client) GenerateAnswer(ctx context.Context, question, contextText string) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Question: " + question + "\n\nContext:\n" + contextText},
		},
	})
	if err != nil {
		return "", 0, classify(err, "answer generation failed")
	}
	if len(resp.Choices) == 0 {
		return "", 0, apperrors.New(apperrors.CodeInvalidOutput, "answer generation returned no choices")
	}

	var parsed struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.CodeInvalidOutput, "answer generation returned malformed JSON")
	}
	return parsed.Answer, parsed.Confidence, nil
}

// Embed returns one embedding per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.embedModel,
	})
	if err != nil {
		return nil, classify(err, "embedding call failed")
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.Newf(apperrors.CodeInvalidOutput, "embedding count mismatch: %d != %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, apperrors.New(apperrors.CodeInvalidOutput, "embedding index out of range")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// classify maps transport errors onto engine error codes.
func classify(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case isTimeout(err):
		return apperrors.Wrap(err, apperrors.CodeTimeout, msg)
	default:
		return apperrors.Wrap(err, apperrors.CodeUnavailable, msg)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline exceeded")
}
