package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/db"
	appfx "catalog-feed-miner/internal/app/fx"
)

type MigrateCmd string

func main() {
	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		appfx.CoreAppOptions,
		fx.Supply(MigrateCmd(cmd)),
		fx.Invoke(registerMigrateHook),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type migrateHookParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *zap.SugaredLogger

	Cmd MigrateCmd
}

func registerMigrateHook(p migrateHookParams) {
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ledger, driverName, logFields, err := openLedger(p.Cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = ledger.Close()
			}()

			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			var one int
			if err := ledger.QueryRowContext(pingCtx, "select 1").Scan(&one); err != nil {
				return fmt.Errorf("ping ledger: %w", err)
			}
			p.Logger.Infow("ledger_connection_ok", append([]any{"driver", driverName}, logFields...)...)

			p.Logger.Infow("goose_run_start", "cmd", string(p.Cmd))
			if err := db.Migrate(ctx, ledger.DB, driverName, string(p.Cmd)); err != nil {
				return err
			}
			p.Logger.Infow("goose_run_done", "cmd", string(p.Cmd))
			return nil
		},
	})
}

// openLedger prefers postgres when DB_HOST/DB_NAME are set, else the sqlite ledger.
func openLedger(cfg *config.Config) (*sqlx.DB, string, []any, error) {
	if cfg.DBHost != "" && cfg.DBName != "" {
		pg, err := db.Open(db.DriverPostgres, db.PostgresDSN(cfg))
		if err != nil {
			return nil, "", nil, err
		}
		return pg, db.DriverPostgres, []any{"host", cfg.DBHost, "db", cfg.DBName}, nil
	}

	dsn := db.SQLiteDSN(cfg.Turso.DSN, cfg.Turso.Path, cfg.Turso.Token)
	if dsn == "" {
		return nil, "", nil, errors.New("ledger disabled: set TURSO_SQLITE_DSN, TURSO_SQLITE_PATH or DB_HOST/DB_NAME")
	}
	driverName := db.SQLiteDriver(dsn)
	sqliteDB, err := db.Open(driverName, dsn)
	if err != nil {
		return nil, "", nil, err
	}
	return sqliteDB, driverName, db.DSNLogFields(dsn), nil
}
