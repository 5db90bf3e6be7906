package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"dailysignal/pkg/faults"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// PostgresConf configures the pgx-backed store.
type PostgresConf struct {
	DSN             string `json:",optional,env=DATABASE_URL"`
	MaxOpen         int    `json:",default=4"`
	MaxIdle         int    `json:",default=2"`
	ConnMaxLifetime int    `json:",default=300"` // seconds
	EnsureSchema    bool   `json:",default=true"`
}

// Config selects and configures a backend.
type Config struct {
	Driver     string       `json:",default=sqlite,options=memory|postgres|sqlite"`
	Postgres   PostgresConf `json:",optional"`
	SQLitePath string       `json:",default=data/dailysignal.db"`
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			return faults.Wrap(faults.KindConfiguration, "store: postgres driver requires Postgres.DSN")
		}
		return nil
	case DriverSQLite, "":
		if strings.TrimSpace(c.SQLitePath) == "" {
			return faults.Wrap(faults.KindConfiguration, "store: sqlite driver requires SQLitePath")
		}
		return nil
	default:
		return faults.Wrap(faults.KindConfiguration, "store: unknown driver %q", c.Driver)
	}
}

// Open builds the Bundle for cfg.Driver.
func Open(ctx context.Context, cfg Config) (*Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		conn := sqlx.NewSqlConn("pgx", cfg.Postgres.DSN)
		raw, err := conn.RawDB()
		if err != nil {
			return nil, faults.Mark(faults.KindProviderUnavailable, fmt.Errorf("store: open postgres: %w", err))
		}
		if cfg.Postgres.MaxOpen > 0 {
			raw.SetMaxOpenConns(cfg.Postgres.MaxOpen)
		}
		if cfg.Postgres.MaxIdle > 0 {
			raw.SetMaxIdleConns(cfg.Postgres.MaxIdle)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			raw.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
		}
		if err := raw.PingContext(ctx); err != nil {
			return nil, faults.Mark(faults.KindProviderUnavailable, fmt.Errorf("store: ping postgres: %w", err))
		}
		if cfg.Postgres.EnsureSchema {
			if err := EnsureSchema(ctx, conn); err != nil {
				return nil, err
			}
		}
		return NewPostgres(conn), nil
	default:
		bundle, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, faults.Mark(faults.KindProviderUnavailable, err)
		}
		return bundle, nil
	}
}
