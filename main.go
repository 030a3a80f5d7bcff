package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"meeting-reminder-go/internal/config"
	"meeting-reminder-go/internal/dispatcher"
	"meeting-reminder-go/internal/handlers"
	"meeting-reminder-go/internal/logger"
	"meeting-reminder-go/internal/push"
	"meeting-reminder-go/internal/scheduler"
	"meeting-reminder-go/internal/store"
	"meeting-reminder-go/internal/vapid"
)

func main() {
	genKeys := flag.Bool("genkeys", false, "generate a VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		pub, priv, err := vapid.GenerateKeys()
		if err != nil {
			log.Fatalf("Failed to generate VAPID keys: %v", err)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logg := logger.NewStructured(cfg.LogLevel, cfg.LogFormat)

	keys, err := vapid.ParseKeyPair(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if err != nil {
		log.Fatalf("Invalid VAPID keys: %v", err)
	}
	signer := vapid.NewSigner(keys, cfg.AdminContact)

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logg.Info("database migrations completed", nil)

	// Redis only shortcuts dedup lookups; the service runs fine without it.
	var cache *store.SentCache
	if cfg.RedisAddr != "" {
		cache = store.NewSentCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := cache.Ping(ctx); err != nil {
			logg.WithError(err).Warn("redis unreachable, dedup cache disabled", map[string]interface{}{
				"addr": cfg.RedisAddr,
			})
			cache = nil
		}
	}

	sender := push.NewClient(signer)
	disp := dispatcher.New(pgStore, cache, sender, logg)
	sched := scheduler.New(cfg.TZOffset)
	runner := scheduler.NewRunner(sched, pgStore, disp, cfg.TickInterval, logg)

	h := handlers.NewHandler(pgStore, runner, cfg.VAPIDPublicKey, logg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/push/vapid-key", h.GetVAPIDKeyHandler)
	mux.HandleFunc("/api/push/subscribe", h.SubscribePushHandler)
	mux.HandleFunc("/api/push/unsubscribe", h.UnsubscribePushHandler)
	mux.HandleFunc("/api/push/status", h.PushStatusHandler)
	mux.HandleFunc("/api/push/support", h.PushSupportHandler)
	mux.HandleFunc("/api/push/dispatch", h.DispatchHandler)
	mux.HandleFunc("/healthz", h.HealthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	// PWA assets; the service worker must be served from the site root scope.
	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("/sw.js", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/static/sw.js")
	})

	go runner.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logg.Info("listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.WithError(err).Warn("forced shutdown", nil)
	}
}
