// Package config handles engine configuration
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string

	// Language-model collaborator
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string
	LLMTimeout     time.Duration

	// Vector-search collaborator
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	SearchTimeout    time.Duration

	// Extraction
	MinInsightConfidence float64
	MaxRelatedPassages   int
	EnrichInterval       time.Duration
	QueryReuseSimilarity float64

	// Deduplication
	DuplicateThreshold float64
	UpdateThreshold    float64
	DedupCapacity      int

	// Question resolution
	KnowledgeTimeout     time.Duration
	TranscriptTimeout    time.Duration
	BackgroundWindow     time.Duration
	KnowledgeRelevance   float64
	FallbackConfidence   float64
	BackgroundConfidence float64

	// Session lifecycle
	SessionIdleTimeout time.Duration
	HistoryLimit       int
}

func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 20*time.Second),

		QdrantURL:        getEnv("QDRANT_URL", "localhost:6334"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "meeting-history"),
		SearchTimeout:    getEnvDuration("SEARCH_TIMEOUT", 2*time.Second),

		MinInsightConfidence: getEnvFloat("MIN_INSIGHT_CONFIDENCE", 0.6),
		MaxRelatedPassages:   getEnvInt("MAX_RELATED_PASSAGES", 5),
		EnrichInterval:       getEnvDuration("ENRICH_INTERVAL", 30*time.Second),
		QueryReuseSimilarity: getEnvFloat("QUERY_REUSE_SIMILARITY", 0.9),

		DuplicateThreshold: getEnvFloat("DUPLICATE_THRESHOLD", 0.85),
		UpdateThreshold:    getEnvFloat("UPDATE_THRESHOLD", 0.75),
		DedupCapacity:      getEnvInt("DEDUP_CAPACITY", 200),

		KnowledgeTimeout:     getEnvDuration("KNOWLEDGE_TIMEOUT", 2*time.Second),
		TranscriptTimeout:    getEnvDuration("TRANSCRIPT_TIMEOUT", 1500*time.Millisecond),
		BackgroundWindow:     getEnvDuration("BACKGROUND_WINDOW", 60*time.Second),
		KnowledgeRelevance:   getEnvFloat("KNOWLEDGE_RELEVANCE", 0.5),
		FallbackConfidence:   getEnvFloat("FALLBACK_CONFIDENCE", 0.7),
		BackgroundConfidence: getEnvFloat("BACKGROUND_CONFIDENCE", 0.65),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 500),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
