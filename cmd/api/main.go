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

	"github.com/redis/go-redis/v9"

	"sitesmith/api/internal/app"
	"sitesmith/api/internal/assets"
	"sitesmith/api/internal/authpw"
	"sitesmith/api/internal/checkout"
	"sitesmith/api/internal/config"
	"sitesmith/api/internal/deploy"
	"sitesmith/api/internal/email"
	"sitesmith/api/internal/gemini"
	"sitesmith/api/internal/generate"
	"sitesmith/api/internal/history"
	"sitesmith/api/internal/live"
	"sitesmith/api/internal/payment"
	"sitesmith/api/internal/preview"
	"sitesmith/api/internal/search"
	"sitesmith/api/internal/session"
	"sitesmith/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	deps := app.Deps{
		Store:    dataStore,
		AuthPW:   authpw.NewService(dataStore),
		Checkout: checkout.NewService(dataStore, cfg.Currency),
		History:  history.New(cfg.HistoryDir),
		Deploy:   deploy.NewClient(cfg.DeployHookURL),
		Search:   searchService,
		Email:    email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}

	// Redis backs both refresh sessions and the live event fan-out. Without
	// it refresh tokens fall back to Postgres and SSE is disabled.
	var hub *live.Hub
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()

		log.Printf("Using Redis for refresh token storage")
		deps.Sessions = session.NewRedisStoreWithClient(redisClient)

		hub = live.NewHub(redisClient)
		hubCtx, hubCancel := context.WithCancel(ctx)
		defer hubCancel()
		go func() {
			if err := hub.Run(hubCtx); err != nil && hubCtx.Err() == nil {
				log.Fatalf("live hub failed: %v", err)
			}
		}()
		deps.Hub = hub
	} else {
		log.Printf("Using PostgreSQL for refresh token storage; live events disabled")
		deps.Sessions = app.NewPostgresRefreshStore(dataStore)
	}

	assetClient, err := assets.NewClient(assets.Config{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioAccessKey,
		SecretAccessKey: cfg.MinioSecretKey,
		Bucket:          cfg.MinioBucket,
		UseSSL:          cfg.MinioUseSSL,
		PublicURL:       cfg.MinioPublicURL,
	})
	if err != nil {
		log.Fatalf("asset storage failed: %v", err)
	}
	if assetClient.Enabled() {
		if err := assetClient.EnsureBucket(ctx); err != nil {
			log.Fatalf("asset bucket failed: %v", err)
		}
		deps.Assets = assetClient
	} else {
		log.Printf("Asset storage not configured; image uploads disabled")
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" && hub != nil {
		streamer := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel)
		deps.Generate = generate.NewService(streamer, dataStore, hub, cfg.GenerateTimeout)
	} else {
		log.Printf("Generation not configured; AI build endpoints disabled")
	}

	stripeGateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	if stripeGateway.IsConfigured() {
		deps.Payments = stripeGateway
	} else {
		log.Printf("Stripe not configured; payment endpoints disabled")
	}

	renderer := preview.NewRenderer()
	if renderer.Available() {
		deps.Preview = renderer
	} else {
		log.Printf("Headless Chrome not available; thumbnails disabled")
	}

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // SSE streams stay open indefinitely
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Sitesmith API listening on %s", cfg.Addr)
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
