// Package search wraps the vector/historical search collaborator. A circuit
// breaker guards every call so a degraded search backend cannot add latency
// to chunk processing.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/resilience"
)

// Passage is one ranked historical result with provenance.
type Passage struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// Embedder produces query embeddings. Satisfied by the llm client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client is the qdrant-backed search collaborator client.
type Client struct {
	qc         *qdrant.Client
	collection string
	embed      Embedder
	breaker    *resilience.Breaker
	timeout    time.Duration
}

// New creates a search client.
func New(cfg Config, embed Embedder) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "search url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	host, port, useTLS, err := parseAddr(cfg.URL)
	if err != nil {
		return nil, err
	}

	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to create search client")
	}

	return &Client{
		qc:         qc,
		collection: cfg.Collection,
		embed:      embed,
		breaker:    resilience.New(resilience.SearchConfig()),
		timeout:    cfg.Timeout,
	}, nil
}

// Search embeds the query and returns ranked passages. An empty result is a
// valid response, not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	embs, err := c.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return c.SearchByVector(ctx, embs[0], limit)
}

// SearchByVector runs a similarity query with an already-computed embedding.
func (c *Client) SearchByVector(ctx context.Context, vector []float32, limit int) ([]Passage, error) {
	return resilience.ExecuteWithResult(c.breaker, func() ([]Passage, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		limitUint64 := uint64(limit)
		points, err := c.qc.Query(ctx, &qdrant.QueryPoints{
			CollectionName: c.collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          &limitUint64,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "search query failed")
		}

		results := make([]Passage, 0, len(points))
		for _, point := range points {
			results = append(results, fromPoint(point))
		}
		return results, nil
	})
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.qc.Close()
}

func fromPoint(point *qdrant.ScoredPoint) Passage {
	p := Passage{Score: float64(point.Score)}

	if point.Id != nil {
		if id := point.Id.GetUuid(); id != "" {
			p.ID = id
		} else {
			p.ID = fmt.Sprintf("%d", point.Id.GetNum())
		}
	}

	for k, v := range point.Payload {
		switch k {
		case "content":
			p.Content = v.GetStringValue()
		case "document_id":
			p.DocumentID = v.GetStringValue()
		case "title":
			p.Title = v.GetStringValue()
		case "timestamp":
			if ts, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
				p.Timestamp = ts
			}
		}
	}
	return p
}

func parseAddr(raw string) (host string, port int, useTLS bool, err error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid search url")
	}

	port = 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid search port")
		}
		port = p
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
