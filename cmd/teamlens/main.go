package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/httpapi"
	"github.com/teamlens/teamlens/internal/library"
	"github.com/teamlens/teamlens/internal/providers"
	"github.com/teamlens/teamlens/internal/scheduler"
	"github.com/teamlens/teamlens/internal/session"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/synthesis"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.FromEnv()

	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	dbPath := flag.String("db", cfg.DBPath, "sqlite database path")
	contentDir := flag.String("content", cfg.ContentDir, "content image directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *addr, *dbPath, *contentDir); err != nil {
		log.Fatalf("teamlens: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, addr, dbPath, contentDir string) error {
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	lib := library.New(library.Config{
		Dir:       contentDir,
		URLPrefix: cfg.ContentURLPrefix,
		TTL:       cfg.CacheTTL,
	})

	watcher, err := library.NewWatcher(lib)
	if err != nil {
		log.Printf("warning: content watcher disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	client, providerName, err := providers.FromEnv()
	if err != nil {
		log.Printf("warning: synthesis disabled: %v", err)
	} else {
		log.Printf("synthesis provider: %s", providerName)
	}

	tasks := scheduler.NewBackground(cfg.TaskTimeout)
	defer tasks.Stop()

	orchestrator := synthesis.New(st, client)
	sessions := session.NewService(st, tasks, orchestrator)

	api := httpapi.New(st, sessions, lib, contentDir, cfg.ImagesPerPage, httpapi.NewDemoHandler(client))

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
