package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/changeling/config"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/persistence"
	"github.com/wfunc/changeling/server"
	"github.com/wfunc/changeling/services"
	"github.com/wfunc/changeling/store"
)

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// Initialize logger
	logger.Init("info")

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer st.Close()

	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	if db != nil {
		defer db.Close()
		logger.Log.Info("Database connection successful.")
	}

	gameServer := server.NewGameServer(cfg, st, services.NewRecordService(db))
	if err := gameServer.Run(ctx); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
	logger.Log.Info("Server stopped")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Backend == "redis" {
		return store.NewRedisStore(ctx, store.RedisOptions{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return store.NewMemoryStore(), nil
}

// openDatabase returns nil when archiving to a database is disabled.
func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	pg := cfg.Postgres
	if cfg.Driver == "pq" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}
