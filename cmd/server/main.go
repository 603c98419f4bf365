package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/breakshot/backend/internal/admin"
	"github.com/breakshot/backend/internal/api"
	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/database"
	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/migrations"
	"github.com/breakshot/backend/internal/redis"
	"github.com/breakshot/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database is optional: without it shots and results are not recorded
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		conn, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			if cfg.Environment == "production" {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			log.Printf("[DB] Database unavailable, records disabled: %v", err)
		} else {
			db = conn
			defer db.Close()
		}
	}

	if db != nil && os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("[MIGRATE] Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	if db != nil {
		if err := admin.LoadSettings(db, cfg); err != nil {
			log.Printf("[CONFIG] Runtime settings not loaded: %v", err)
		}
	}

	// Redis is optional: without it snapshots stay in memory and no idle reaper runs
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			if cfg.Environment == "production" {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			log.Printf("[REDIS] Redis unavailable, using in-memory snapshots: %v", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	tm := game.NewTableManager(db, rdb, cfg)
	tm.Start(ctx)

	hub := ws.NewHub(tm, cfg)
	go hub.Run(ctx)

	ws.StartTableEventSubscriber(ctx, rdb, hub)
	game.StartIdleWorker(ctx, rdb, cfg, tm)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg, tm, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting Breakshot server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	tm.Shutdown(shutdownCtx)
	log.Println("Server stopped")
}
