/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the charge engine API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment config
  2. Apply command-line flag overrides
  3. Initialize SQLite store
  4. Wrap the scheme store with Redis or in-memory cache
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -dev     Enable POST /api/reset

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cache warmer, close Redis and the database
  4. Exit

EXAMPLES:
  ./server -db="./data/charges.db"
  REDIS_ADDR=localhost:6379 CACHE_WARM_INTERVAL=5m ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/warp/charge-engine/api"
	"github.com/warp/charge-engine/cache"
	"github.com/warp/charge-engine/config"
	"github.com/warp/charge-engine/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env not loaded, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	dev := flag.Bool("dev", false, "Enable development endpoints")
	flag.Parse()

	log.SetLevel(cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Scheme cache
	var schemeCache cache.SchemeCache
	if cfg.Redis.Enabled() {
		rdb, err := cache.OpenRedis(cache.ConnectionInfo{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			DialTimeout: time.Duration(cfg.Redis.DialTimeout) * time.Second,
			Timeout:     time.Duration(cfg.Redis.Timeout) * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		schemeCache = cache.NewRedis(rdb, cfg.Redis.Prefix, cfg.Cache.TTL)
		log.WithField("addr", cfg.Redis.Addr).Info("Using Redis scheme cache")
	} else {
		schemeCache = cache.NewMemory(cfg.Cache.TTL)
		log.Info("Using in-memory scheme cache")
	}

	warmer := cache.NewWarmer(store, schemeCache, cfg.Cache.WarmInterval)
	warmer.Start()
	defer warmer.Stop()

	// Initialize handler
	handler := api.NewHandler(cache.NewCachedSchemes(store, schemeCache), store)
	handler.Ping = store.Ping
	if *dev {
		handler.Reset = store.Reset
		log.Warn("Development endpoints enabled")
	}

	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.AllowedOrigins})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", *port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
