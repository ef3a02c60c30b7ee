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

	"github.com/rohzyy/govai/internal/ai"
	"github.com/rohzyy/govai/internal/app"
	"github.com/rohzyy/govai/internal/attachments"
	"github.com/rohzyy/govai/internal/config"
	"github.com/rohzyy/govai/internal/email"
	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/search"
	"github.com/rohzyy/govai/internal/session"
	"github.com/rohzyy/govai/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	deps := app.Deps{}

	// Refresh sessions and the access token denylist live in Redis when it
	// is configured.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		log.Printf("Using Redis for refresh token storage")
		deps.Tokens = redisStore
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	go searchService.ReindexFromPG(ctx, pgfts.LoadAllRecords)
	deps.Search = searchService

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err := attachments.New(attachments.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("attachment storage: %v", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: attachment bucket unavailable: %v", err)
		}
		deps.Attachments = blobs
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured; officer notifications are disabled")
	}
	deps.Mailer = mailer

	if strings.TrimSpace(cfg.AIServiceURL) != "" {
		aiService := ai.NewHTTPService(cfg.AIServiceURL, 10*time.Second)
		deps.Analyzer = aiService
		deps.Transcriber = aiService
	} else {
		log.Printf("AI service not configured; grievances will be routed by keyword")
	}

	obs.Init()
	service := app.New(cfg, dataStore, deps)
	go service.RunSLASweeper(ctx, cfg.SLASweepInterval)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("GovAI API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
