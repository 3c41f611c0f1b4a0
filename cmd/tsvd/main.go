// Package main implements tsvd, a daemon that serves a shared keyspace of
// named arrays over HTTP and runs asynchronous mutations on a thread pool.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                 tsvd                    │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health       - Health check         │
//	│    /info         - Runtime statistics   │
//	│    /tsv/*        - Array operations     │
//	│    /bind/*       - Persistent stores    │
//	│    /jobs/*       - Pool jobs            │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    Keyspace      - Shared arrays        │
//	│    Manager/Pool  - Job workers          │
//	│    Registry      - Worker threads       │
//	└─────────────────────────────────────────┘
//
// Configuration is read by package config: an optional YAML file named by
// TSVD_CONFIG plus TSVD_* overrides.
//
// Example usage:
//
//	TSVD_LISTEN=:8090 ./tsvd
//
//	curl -X PUT localhost:8090/tsv/users/alice -d '{"value":"admin"}'
//	curl localhost:8090/tsv/users/alice
//	curl -X POST localhost:8090/bind/users -d '{"store":"yaml:/tmp/users.yaml"}'
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/threadkit/internal/config"
	"github.com/dreamware/threadkit/internal/thread"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logFatal("tsvd: %v", err)
		return
	}

	srv, err := NewServer(cfg, thread.Default())
	if err != nil {
		logFatal("tsvd: %v", err)
		return
	}

	s := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("tsvd listening on %s (buckets=%d)", cfg.Listen, cfg.Buckets)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := srv.Close(); err != nil {
		log.Printf("tsvd: close: %v", err)
	}
	log.Println("tsvd stopped")
}
