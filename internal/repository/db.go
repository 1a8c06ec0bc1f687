package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
)

type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ConfigFrom maps the application registry settings.
func ConfigFrom(c common.RegistryConfig) Config {
	return Config{
		URL:             c.URL,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
		DialTimeout:     c.DialTimeout,
	}
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// DB is an opened registry together with the handles needed to check and close it.
type DB struct {
	Backend string
	Photos  PhotoRepository

	drv    *entsql.Driver
	pool   *pgxpool.Pool
	dynamo *dynamoRepository
}

// Open connects the backend named by cfg.URL and prepares its schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u := strings.TrimSpace(cfg.URL)
	switch {
	case u == "" || u == BackendMemory:
		logger.Info("using in-memory registry")
		return &DB{Backend: BackendMemory, Photos: NewMemoryRepository(logger)}, nil

	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return openPostgres(ctx, cfg, logger)

	case strings.HasPrefix(u, "sqlite:"), strings.HasPrefix(u, "file:"):
		return openSQLite(ctx, u, logger)

	case strings.HasPrefix(u, "dynamodb://"):
		table := strings.Trim(strings.TrimPrefix(u, "dynamodb://"), "/")
		if table == "" {
			return nil, fmt.Errorf("%w: dynamodb registry url needs a table name", common.ErrInvalidInput)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load aws configuration", "error", err)
			return nil, err
		}
		repo := NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), table, logger).(*dynamoRepository)
		logger.Info("using dynamodb registry", "table", table, "region", awsCfg.Region)
		return &DB{Backend: BackendDynamo, Photos: repo, dynamo: repo}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported REGISTRY_URL %q", common.ErrInvalidInput, u)
	}
}

// openPostgres creates a pgx pool and wraps it for ent's SQL driver.
func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "backend", BackendPostgres)
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "photo-receipts"

	dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	drv := entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool))
	if err := Migrate(ctx, drv, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return &DB{Backend: BackendPostgres, Photos: NewSQLRepository(drv, logger), drv: drv, pool: pool}, nil
}

func openSQLite(ctx context.Context, u string, logger *slog.Logger) (*DB, error) {
	dsn := u
	if strings.HasPrefix(u, "sqlite:") {
		dsn = strings.TrimPrefix(u, "sqlite:")
	}
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	logger.Info("opening sqlite registry", "dsn", dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite registry", "error", err)
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := Migrate(ctx, drv, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Backend: BackendSQLite, Photos: NewSQLRepository(drv, logger), drv: drv}, nil
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing registry connections", "backend", db.Backend)
	if db.drv != nil {
		if err := db.drv.Close(); err != nil {
			logger.Error("failed to close registry driver", "error", err)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("registry connections closed")
}

// HealthCheck pings the backend to catch connection issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug("pinging registry", "backend", db.Backend)
	var err error
	switch {
	case db.pool != nil:
		err = db.pool.Ping(ctx)
	case db.drv != nil:
		err = db.drv.DB().PingContext(ctx)
	case db.dynamo != nil:
		err = db.dynamo.ping(ctx)
	}
	if err != nil {
		logger.Error("registry ping failed", "backend", db.Backend, "error", err)
		return fmt.Errorf("%w: ping %s: %v", common.ErrDatabase, db.Backend, err)
	}
	logger.Debug("registry ping successful", "backend", db.Backend)
	return nil
}
