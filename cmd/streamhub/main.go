package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"streamhub/internal/archive"
	"streamhub/internal/auth"
	"streamhub/internal/billing"
	"streamhub/internal/database"
	"streamhub/internal/email"
	"streamhub/internal/handler"
	"streamhub/internal/logging"
	"streamhub/internal/push"
	"streamhub/internal/server"
	"streamhub/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("STREAMHUB_LOG_LEVEL"))

	port := os.Getenv("STREAMHUB_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("STREAMHUB_DB_PATH")
	if dbPath == "" {
		dbPath = "streamhub.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tokenSecret := os.Getenv("STREAMHUB_TOKEN_SECRET")
	if tokenSecret == "" {
		log.Fatal("STREAMHUB_TOKEN_SECRET is required")
	}
	issuer := auth.NewTokenIssuer(tokenSecret)

	var stripeClient *billing.Client
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		stripeClient = billing.NewClient(billing.Config{
			SecretKey:            key,
			WebhookSecret:        os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PremiumPriceID:       os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
			PremiumAnnualPriceID: os.Getenv("STRIPE_PREMIUM_ANNUAL_PRICE_ID"),
			SuccessURL:           os.Getenv("STRIPE_SUCCESS_URL"),
			CancelURL:            os.Getenv("STRIPE_CANCEL_URL"),
		})
	}

	var mailer *email.Client
	if token := os.Getenv("POSTMARK_SERVER_TOKEN"); token != "" {
		from := os.Getenv("POSTMARK_FROM_EMAIL")
		if from == "" {
			from = "noreply@streamhub.live"
		}
		mailer = email.NewClient(token, from)
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("STREAMHUB_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("STREAMHUB_VAPID_PRIVATE_KEY"),
		Subscriber:      os.Getenv("STREAMHUB_VAPID_SUBSCRIBER"),
	}

	archiveMgr := archive.NewManager(archive.Config{
		S3: archive.S3Config{
			Endpoint:  os.Getenv("STREAMHUB_S3_ENDPOINT"),
			Bucket:    os.Getenv("STREAMHUB_S3_BUCKET"),
			Region:    os.Getenv("STREAMHUB_S3_REGION"),
			AccessKey: os.Getenv("STREAMHUB_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("STREAMHUB_S3_SECRET_KEY"),
		},
	}, store.NewMessageStore(db), store.NewArchiveStore(db), logger.With("component", "archive"), nil)

	srv := server.New(db, issuer, stripeClient, mailer, pushCfg, archiveMgr, server.Config{
		SecureCookies: os.Getenv("STREAMHUB_SECURE_COOKIES") == "true",
		Experiments: []handler.Experiment{
			{Name: "chat-reactions", Variant: "reactions", Rollout: 25},
			{Name: "new-player-controls", Variant: "v2", Rollout: 50},
		},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	archiveMgr.Start(ctx)
	defer archiveMgr.Stop()

	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// cleanupLoop prunes expired sessions and stale rate-limit buckets.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
