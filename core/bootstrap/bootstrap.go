package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/flowbot/core/config"
	coredatabase "github.com/m3rciful/flowbot/core/database"
	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/store"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	// Database is used by the postgres and sqlite stores. Its driver follows store.driver.
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
	// Redis builds the client of the redis store; defaults to redis.NewClient.
	Redis func(coreconfig.RedisConfig) redis.UniversalClient
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil unless the store is SQL backed.
	DB    *sqlx.DB
	Store store.Backend
}

// Close releases the store and its connections.
func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Run initializes the logger and opens the configured context store. SQL stores are
// migrated before use.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	start := time.Now()
	res, err := openStore(opts)
	if err != nil {
		return nil, err
	}
	logger.Info(context.Background(), "app", "store.ready",
		slog.String("driver", opts.Config.Store.Driver),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

func openStore(opts Options) (*Result, error) {
	cfg := opts.Config
	switch cfg.Store.Driver {
	case coreconfig.StoreMemory, "":
		return &Result{Store: store.NewMemory(store.MemoryOptions{
			ContextTTL: time.Duration(cfg.Store.ContextTTLSeconds) * time.Second,
		})}, nil

	case coreconfig.StoreRedis:
		newClient := opts.Redis
		if newClient == nil {
			newClient = defaultRedis
		}
		client := newClient(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("bootstrap: redis unavailable: %w", err)
		}
		return &Result{Store: store.NewRedis(client, store.RedisOptions{
			Prefix:     cfg.Redis.Prefix,
			ContextTTL: time.Duration(cfg.Store.ContextTTLSeconds) * time.Second,
		})}, nil

	case coreconfig.StorePostgres, coreconfig.StoreSQLite:
		dbCfg := opts.Database
		dbCfg.Driver = cfg.Store.Driver

		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(dbCfg); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		return &Result{DB: db, Store: store.NewSQL(db)}, nil
	}
	return nil, fmt.Errorf("bootstrap: unsupported store driver %q", cfg.Store.Driver)
}

func defaultRedis(cfg coreconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
