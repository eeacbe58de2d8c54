// server is the mem0 memory service binary: it wires the vector store,
// embedding provider, LLM extractor, relationship graph, and durable
// auth/history stores into the Memory Service REST API and the MCP
// Gateway's dual transport, then serves all three listeners until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/snorlak1/mem0-server-mcp/internal/auth"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/embeddings"
	"github.com/snorlak1/mem0-server-mcp/internal/extraction"
	"github.com/snorlak1/mem0-server-mcp/internal/gateway"
	"github.com/snorlak1/mem0-server-mcp/internal/graph"
	"github.com/snorlak1/mem0-server-mcp/internal/history"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/memsvc"
	"github.com/snorlak1/mem0-server-mcp/internal/projection"
	"github.com/snorlak1/mem0-server-mcp/internal/vectorstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewLogger(config.ParseLogLevel(cfg.Logging.Level))

	emb := newEmbeddingService(cfg.Embedding)
	vs := newVectorStore(cfg, emb.Dimensions(), logger)

	extractor, err := extraction.NewExtractor(cfg.LLM, logger)
	if err != nil {
		log.Fatalf("extraction: %v", err)
	}

	graphStore, err := graph.NewStore(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("graph store: %v", err)
	}
	defer graphStore.Close()
	graphEngine := graph.NewEngine(graphStore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := graphEngine.Load(ctx); err != nil {
		log.Fatalf("graph: load cache: %v", err)
	}

	authStore, err := auth.NewStore(cfg.Postgres, cfg.Redis)
	if err != nil {
		log.Fatalf("auth store: %v", err)
	}
	defer authStore.Close()

	historyStore, err := history.NewStore(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("history store: %v", err)
	}
	defer historyStore.Close()

	pool := projection.New(graphEngine, cfg.Projection, logger)
	pool.Start(ctx, cfg.Projection.Workers)
	defer pool.Stop()

	svc := memsvc.New(vs, emb, extractor, graphEngine, pool, historyStore, logger, cfg.LLM.SimilarityThreshold)
	handlers := memsvc.NewHandlers(svc, authStore, logger, nil)

	client := gateway.NewClient("http://localhost"+cfg.Server.RESTAddress, cfg.Gateway.ConnectTimeout, cfg.Gateway.RequestTimeout)
	gw := gateway.New(authStore, client, cfg.Chunking, cfg.Gateway, logger)
	sse := gateway.NewSSETransport(gw)

	restServer := &http.Server{Addr: cfg.Server.RESTAddress, Handler: handlers.Routes(), ReadHeaderTimeout: 10 * time.Second}
	mcpMux := http.NewServeMux()
	mcpMux.Handle("/mcp/", gw.HTTPHandler())
	mcpServer := &http.Server{Addr: cfg.Server.MCPAddress, Handler: mcpMux, ReadHeaderTimeout: 10 * time.Second}
	sseMux := http.NewServeMux()
	sseMux.Handle("/sse/", sse.StreamHandler())
	sseMux.Handle("/sse/command", sse.CommandHandler())
	sseServer := &http.Server{Addr: cfg.Server.SSEAddress, Handler: sseMux, ReadHeaderTimeout: 10 * time.Second, WriteTimeout: 0}

	runServer(restServer, "memory service REST")
	runServer(mcpServer, "MCP gateway (HTTP-stream)")
	runServer(sseServer, "MCP gateway (SSE)")

	logger.Info("server: all listeners started",
		"rest_addr", cfg.Server.RESTAddress, "mcp_addr", cfg.Server.MCPAddress, "sse_addr", cfg.Server.SSEAddress)

	<-ctx.Done()
	logger.Info("server: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	for _, srv := range []*http.Server{restServer, mcpServer, sseServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server: shutdown error", "error", err)
		}
	}
}

func runServer(srv *http.Server, name string) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s: %v", name, err)
		}
	}()
}

func newEmbeddingService(cfg config.EmbeddingConfig) embeddings.Service {
	switch cfg.Provider {
	case "openai":
		return embeddings.NewOpenAIService(cfg)
	case "ollama":
		return embeddings.NewOllamaService(cfg)
	default:
		return embeddings.NewMockService(cfg.Dimensions)
	}
}

func newVectorStore(cfg *config.Config, dims int, log logging.Logger) vectorstore.Store {
	if cfg.Qdrant.Host == "" {
		return vectorstore.NewMemStore()
	}
	return vectorstore.NewQdrantStore(cfg.Qdrant, dims, log)
}
