package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreybb/dropoff/api"
	"github.com/coreybb/dropoff/auth"
	"github.com/coreybb/dropoff/config"
	"github.com/coreybb/dropoff/confirmation"
	"github.com/coreybb/dropoff/datastore"
	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/metrics"
	"github.com/coreybb/dropoff/notify"
	"github.com/coreybb/dropoff/ratelimit"
	rh "github.com/coreybb/dropoff/route-handlers"
	"github.com/coreybb/dropoff/scheduler"
	"github.com/coreybb/dropoff/storage"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	dbPingTimeout     = 5 * time.Second
	redisPingTimeout  = 3 * time.Second
	shutdownTimeout   = 15 * time.Second
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 25
	dbConnMaxLifetime = 5 * time.Minute
	reconcileBatch    = 100
	testEmailScope    = "test-email"

	// Unsent email reservations older than this are released by reconcile.
	staleReservationTTL = 15 * time.Minute
)

// confirmationStore joins the two repositories the confirmation workflow writes to.
type confirmationStore struct {
	*datastore.PODRepository
	*datastore.OrderRepository
}

func main() {
	cfg := config.Load()

	db, err := setupDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	if err := datastore.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	orderRepo := datastore.NewOrderRepository(db)
	podRepo := datastore.NewPODRepository(db)
	receiptRepo := datastore.NewEmailReceiptRepository(db)

	sender := mailer.NewSendGridSender(
		cfg.SendGridAPIKey,
		cfg.DeliveryFromEmail,
		cfg.SendGridFromName,
		mailer.WithTimeout(cfg.EmailTimeout),
	)
	notifier := notify.NewService(orderRepo, podRepo, receiptRepo, sender)

	objects, files := setupObjectStore(cfg)
	store := confirmationStore{podRepo, orderRepo}

	confirmations := confirmation.NewService(store, objects, notifier, confirmation.Options{
		NotificationsEnabled: cfg.PODEmailEnabled,
	})
	reconciler := confirmation.NewReconciler(podRepo, store, reconcileBatch,
		confirmation.WithStaleReservations(receiptRepo, max(staleReservationTTL, 2*cfg.EmailTimeout)))

	authenticator := auth.NewSupabaseAuthenticator(cfg.SupabaseURL, cfg.SupabaseAnonKey)

	cooldown, closeCooldown := setupCooldown(cfg)
	defer closeCooldown()

	router := api.SetupRoutes(
		rh.NewDeliveryHandler(authenticator, confirmations),
		rh.NewPODEmailHandler(notifier),
		rh.NewTestEmailHandler(sender, cooldown),
		scheduler.New(reconciler),
		files,
	)

	startServer(cfg.Addr(), router)
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close unusable connection pool
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

// setupObjectStore picks the Blob store when a token is configured and falls
// back to local files. The returned handler serves local files and is nil
// for the Blob store.
func setupObjectStore(cfg *config.Config) (storage.ObjectStore, http.Handler) {
	if cfg.BlobToken != "" {
		log.Println("Uploads go to Vercel Blob")
		return storage.NewBlobStore(cfg.BlobAPIURL, cfg.BlobToken), nil
	}
	local := storage.NewLocalFileStore(cfg.LocalStorageDir, cfg.PublicBaseURL+"/files")
	log.Printf("Uploads go to local directory %s", local.Dir())
	return local, http.FileServer(http.Dir(local.Dir()))
}

func setupCooldown(cfg *config.Config) (ratelimit.Cooldown, func()) {
	if cfg.RedisAddr == "" {
		log.Println("WARNING: REDIS_ADDR not set, test email endpoint is not rate limited.")
		return ratelimit.Unlimited{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Redis at %s unreachable (%v), test email endpoint is not rate limited.", cfg.RedisAddr, err)
		rdb.Close()
		return ratelimit.Unlimited{}, func() {}
	}

	log.Printf("Redis connection successful (%s)", cfg.RedisAddr)
	return ratelimit.NewRedisCooldown(rdb, testEmailScope, cfg.TestEmailCooldown), func() { rdb.Close() }
}

func startServer(addr string, router http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal // Block until signal received
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
