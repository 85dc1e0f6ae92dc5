// Meeting intelligence engine server: ingests live transcript chunks over
// WebSocket, extracts insights, and resolves questions against past meetings.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/meetsense/platform/internal/config"
	"github.com/meetsense/platform/internal/llm"
	"github.com/meetsense/platform/internal/search"
	"github.com/meetsense/platform/internal/server"
	"github.com/meetsense/platform/internal/session"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	var collab session.Collaborators

	if cfg.OpenAIAPIKey != "" {
		model := llm.New(llm.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.LLMTimeout,
		})
		collab.Extractor = model
		collab.Embedder = model
		collab.Generator = model

		searcher, err := search.New(search.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    cfg.SearchTimeout,
		}, model)
		if err != nil {
			slog.Warn("search collaborator unavailable, historical features disabled", "error", err)
		} else {
			collab.Vector = searcher
			collab.Knowledge = searcher
			defer func() { _ = searcher.Close() }()
		}
	} else {
		slog.Warn("OPENAI_API_KEY not set, extraction disabled")
	}

	manager := session.NewManager(cfg, collab)
	srv := server.New(manager)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
	}

	go func() {
		slog.Info("engine server starting", "http", cfg.HTTPAddr, "qdrant", cfg.QdrantURL)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.WriteTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	manager.Close()
	slog.Info("shutdown complete")
}
