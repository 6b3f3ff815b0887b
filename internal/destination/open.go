package destination

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	go_ora "github.com/sijms/go-ora/v2"

	"FREDflow/internal/config"
)

// Open connects to a configured destination.
func Open(ctx context.Context, cfg config.Destination) (*SQLDestination, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(dialect.DriverName(), DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	dest, err := NewSQLDestination(ctx, cfg.Name, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return dest, nil
}

// OpenReadOnly connects without touching the schema. Bookmark, Count and Ping
// work; nothing is created or altered. An sqlite file is opened read-only
// and must already exist.
func OpenReadOnly(ctx context.Context, cfg config.Destination) (*SQLDestination, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := DSN(cfg)
	if cfg.Driver == "sqlite" {
		if _, err := os.Stat(cfg.Host); err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
		}
		dsn = "file:" + cfg.Host + "?mode=ro"
	}
	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	db.SetMaxIdleConns(0)
	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return &SQLDestination{name: cfg.Name, db: db, dialect: dialect}, nil
}

// DSN builds the driver connection string of a destination.
func DSN(cfg config.Destination) string {
	switch cfg.Driver {
	case "sqlite":
		return cfg.Host
	case "postgres", "pgx":
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.User, cfg.Password, cfg.SID)
	default:
		port := cfg.Port
		if port == 0 {
			port = 1521
		}
		return go_ora.BuildUrl(cfg.Host, port, cfg.SID, cfg.User, cfg.Password, nil)
	}
}
