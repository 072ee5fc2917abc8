// Package main runs the WolfChat API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/wolfchat/wolfchat/internal/app"
	"github.com/wolfchat/wolfchat/internal/app/httpapi"
	"github.com/wolfchat/wolfchat/internal/app/janitor"
	"github.com/wolfchat/wolfchat/internal/app/metrics"
	"github.com/wolfchat/wolfchat/internal/app/storage/postgres"
	"github.com/wolfchat/wolfchat/internal/config"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/middleware"
	"github.com/wolfchat/wolfchat/internal/platform/migrations"
	"github.com/wolfchat/wolfchat/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Missing .env is fine; environment may come from the deployment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewDefault("main").WithError(err).Error("configuration load failed")
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, "wolfchat")

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("store initialisation failed")
		os.Exit(1)
	}
	defer cleanup()

	application := app.New(stores, app.Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		SessionTTL: cfg.Auth.SessionTTL,
	}, log)

	if cfg.Uploads.Dir != "" {
		if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
			log.WithError(err).Error("could not create upload directory")
			os.Exit(1)
		}
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(int(cfg.RateLimit.RPS), cfg.RateLimit.Burst, log)
	}

	handler := httpapi.NewRouter(application, httpapi.Config{
		UploadDir:         cfg.Uploads.Dir,
		MaxUploadBytes:    cfg.Uploads.MaxBytes,
		SecureCookies:     os.Getenv("COOKIE_SECURE") == "true",
		SessionTTLSeconds: int(cfg.Auth.SessionTTL / time.Second),
		Limiter:           limiter,
	}, log)

	if origins := middleware.SplitOrigins(cfg.CORS.AllowedOrigins); len(origins) > 0 {
		handler = middleware.NewCORSMiddleware(origins).Handler(handler)
	}
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = metrics.InstrumentHandler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	jan := janitor.New(application.Notifications, application.Sessions, 0, log)
	if err := jan.Start(); err != nil {
		log.WithError(err).Error("janitor start failed")
		os.Exit(1)
	}
	defer jan.Stop()

	if limiter != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				limiter.Cleanup(30 * time.Minute)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}
}

// buildStores assembles persistence from configuration: Postgres when a DSN
// is set, otherwise in-memory; Redis for sessions when an address is set.
func buildStores(cfg config.Config, log *logging.Logger) (app.Stores, func(), error) {
	var stores app.Stores
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			return app.Stores{}, cleanup, err
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		closers = append(closers, func() { _ = db.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := migrations.Apply(ctx, db.DB); err != nil {
			return app.Stores{}, cleanup, err
		}
		log.WithField("statements", migrations.Count()).Info("migrations applied")

		pg := postgres.New(db)
		stores = app.Stores{Users: pg, Howls: pg, Notifications: pg, Sessions: pg}
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return app.Stores{}, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })
		stores.Sessions = session.NewRedisStore(client)
		log.WithField("addr", cfg.Redis.Addr).Info("redis session store connected")
	}

	return stores, cleanup, nil
}
