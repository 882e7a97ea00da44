package state

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ETAnderson/vendorsync/internal/db"
	"github.com/ETAnderson/vendorsync/internal/migrate"
)

type FactoryConfig struct {
	Backend     string
	MySQLDSN    string
	PostgresURL string
}

type FactoryResult struct {
	Store Store

	// DB and Dialect are set for the SQL backends so callers can run migrations.
	DB      *sql.DB
	Dialect migrate.Dialect

	// Memory is set for the memory backend so callers can seed fixtures.
	Memory *MemoryStore

	Close func()
}

func NewStore(ctx context.Context, cfg FactoryConfig) (FactoryResult, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		m := NewMemoryStore()
		return FactoryResult{Store: m, Memory: m, Close: func() {}}, nil

	case "mysql":
		if strings.TrimSpace(cfg.MySQLDSN) == "" {
			return FactoryResult{}, errors.New("DB_DSN is required when STATE_BACKEND=mysql")
		}

		sqlDB, err := db.Open(db.Config{DSN: cfg.MySQLDSN})
		if err != nil {
			return FactoryResult{}, err
		}

		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := sqlDB.PingContext(c); err != nil {
			_ = sqlDB.Close()
			return FactoryResult{}, err
		}

		return FactoryResult{
			Store:   NewMySQLStore(sqlDB),
			DB:      sqlDB,
			Dialect: migrate.MySQL,
			Close:   func() { _ = sqlDB.Close() },
		}, nil

	case "postgres":
		if strings.TrimSpace(cfg.PostgresURL) == "" {
			return FactoryResult{}, errors.New("DATABASE_URL is required when STATE_BACKEND=postgres")
		}

		pool, err := db.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return FactoryResult{}, err
		}
		sqlDB := stdlib.OpenDBFromPool(pool)

		return FactoryResult{
			Store:   NewPostgresStore(pool),
			DB:      sqlDB,
			Dialect: migrate.Postgres,
			Close: func() {
				_ = sqlDB.Close()
				pool.Close()
			},
		}, nil

	default:
		return FactoryResult{}, errors.New("unknown STATE_BACKEND (use memory, mysql or postgres)")
	}
}
