package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reqtrack/api/internal/app"
	"reqtrack/api/internal/attachment"
	"reqtrack/api/internal/config"
	"reqtrack/api/internal/kvstore"
	"reqtrack/api/internal/search"
	"reqtrack/api/internal/store"
)

type medium interface {
	kvstore.Medium
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	var kvMedium medium
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		log.Printf("Using PostgreSQL key-value storage")
		pg, err := kvstore.OpenPostgresMedium(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		kvMedium = pg
	} else {
		log.Printf("Using Redis key-value storage")
		rd, err := kvstore.NewRedisMedium(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		kvMedium = rd
	}
	defer kvMedium.Close()

	repo := store.NewRepository(kvstore.New(kvMedium, cfg.KVNamespace))
	repo.Load(ctx)

	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, repo)
		searchService.ReindexAll(ctx)
	} else {
		searchService = search.NewService(nil, repo)
	}

	var attachments *attachment.Service
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		var err error
		attachments, err = attachment.New(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	}

	service := app.New(repo, searchService, attachments, nil, cfg.BatchMaxItems)
	service.SetPinger(kvMedium.Ping)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("ReqTrack API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
