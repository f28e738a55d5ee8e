package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"log/slog"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/uptrace/bun"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const defaultConnTimeout = 5 * time.Second

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	SSLMode      string `toml:"ssl_mode"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &DB{pool: pool, bunDB: newBunDB(cfg)}, nil
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func newBunDB(cfg DBConfig) *bun.DB {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	if db.bunDB != nil {
		if err := db.bunDB.Close(); err != nil {
			slog.Error("Failed to close bun DB", slog.String("error", err.Error()))
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// InitializeSchema creates the auction tables and the indexes the engine
// relies on, most importantly the unique partial index that makes bid
// idempotency keys collide at insert time.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Auction)(nil),
		(*models.Bid)(nil),
		(*models.AuctionSettings)(nil),
	}
	for _, model := range tables {
		if _, err := db.bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := db.bunDB.NewCreateIndex().
		Model((*models.Auction)(nil)).
		Index("idx_auctions_status").
		Column("status").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	if _, err := db.bunDB.NewCreateIndex().
		Model((*models.Bid)(nil)).
		Index("idx_bids_auction_placed").
		Column("auction_id", "placed_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create bid lookup index: %w", err)
	}

	// Partial unique index: NULL idempotency keys never collide.
	if _, err := db.bunDB.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_idempotency
		 ON bids (auction_id, user_id, idempotency_key)
		 WHERE idempotency_key IS NOT NULL`); err != nil {
		return fmt.Errorf("failed to create idempotency index: %w", err)
	}

	return nil
}
