package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jacky-htg/ai-gateway/backend/internal/api"
	"github.com/jacky-htg/ai-gateway/backend/internal/factory"
	"github.com/jacky-htg/ai-gateway/libs/config"
	"github.com/jacky-htg/ai-gateway/libs/gateway"
	"github.com/jacky-htg/ai-gateway/libs/store"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	table, err := factory.BuildTable(cfg)
	if err != nil {
		log.Fatalf("build provider table: %v", err)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
	}
	journal, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open journal db: %v", err)
	}
	defer journal.Close()

	board := gateway.NewBoard()
	ctrl := gateway.NewController(table, board)

	handler := api.NewHandler(ctrl, board, journal)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
