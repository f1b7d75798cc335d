package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const DriverPostgres = "pgx"

// NewSQLXPostgresDB opens the optional postgres ledger. It returns a nil DB when
// DB_HOST or DB_NAME is unset; the sqlite ledger is used instead.
func NewSQLXPostgresDB(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DBHost) == "" || strings.TrimSpace(cfg.DBName) == "" {
		log.Infow("postgres_disabled", "reason", "missing DB_HOST/DB_NAME")
		return nil, nil
	}

	db, err := sqlx.Open(DriverPostgres, PostgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				_ = db.Close()
				return fmt.Errorf("postgres ping failed: %w", err)
			}
			log.Infow("postgres_connected", "host", cfg.DBHost, "db", cfg.DBName)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				log.Warnw("postgres_close_failed", "err", err)
			}
			return nil
		},
	})

	return db, nil
}

// PostgresDSN builds the pgx URL from the DB_* settings.
func PostgresDSN(cfg *config.Config) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:   cfg.DBName,
	}
	if strings.TrimSpace(cfg.DBUser) != "" {
		if cfg.DBPassword == "" {
			u.User = url.User(cfg.DBUser)
		} else {
			u.User = url.UserPassword(cfg.DBUser, cfg.DBPassword)
		}
	}
	return u.String()
}
