// migrate applies every store's schema against a Postgres database. Each
// store applies its own schema idempotently in its constructor, so this
// binary's only job is to construct and immediately close all of them in
// one place, giving operators a single command to run before first boot
// or after a schema change instead of having to start the whole server.
package main

import (
	"log"

	"github.com/snorlak1/mem0-server-mcp/internal/auth"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/graph"
	"github.com/snorlak1/mem0-server-mcp/internal/history"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	graphStore, err := graph.NewStore(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("graph schema: %v", err)
	}
	defer graphStore.Close()
	log.Println("migrate: graph schema applied")

	historyStore, err := history.NewStore(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("history schema: %v", err)
	}
	defer historyStore.Close()
	log.Println("migrate: history schema applied")

	authStore, err := auth.NewStore(cfg.Postgres, cfg.Redis)
	if err != nil {
		log.Fatalf("auth schema: %v", err)
	}
	defer authStore.Close()
	log.Println("migrate: auth schema applied")

	log.Println("migrate: all schemas up to date")
}
