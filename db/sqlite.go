package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"

	// Turso "remote only" driver (no embedded replicas)
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	// local file ledger
	_ "modernc.org/sqlite"
)

var ErrSQLiteDisabled = errors.New("run ledger disabled: set TURSO_SQLITE_DSN or TURSO_SQLITE_PATH")

// --- disabled connection (keeps app booting, but fails fast when used) ---

type sqliteErrConnector struct{}

func (sqliteErrConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, ErrSQLiteDisabled
}
func (sqliteErrConnector) Driver() driver.Driver { return sqliteErrDriver{} }

type sqliteErrDriver struct{}

func (sqliteErrDriver) Open(string) (driver.Conn, error) { return nil, ErrSQLiteDisabled }

type disabledSQLiteConn struct {
	x *sqlx.DB
}

func newDisabledSQLiteConn() disabledSQLiteConn {
	return disabledSQLiteConn{x: sqlx.NewDb(sql.OpenDB(sqliteErrConnector{}), DriverSQLite)}
}

func (c disabledSQLiteConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrSQLiteDisabled
}
func (c disabledSQLiteConn) QueryxContext(context.Context, string, ...any) (*sqlx.Rows, error) {
	return nil, ErrSQLiteDisabled
}
func (c disabledSQLiteConn) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return c.x.QueryRowxContext(ctx, query, args...)
}
func (c disabledSQLiteConn) GetContext(context.Context, any, string, ...any) error {
	return ErrSQLiteDisabled
}
func (c disabledSQLiteConn) SelectContext(context.Context, any, string, ...any) error {
	return ErrSQLiteDisabled
}
func (c disabledSQLiteConn) BeginTxx(context.Context, *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, ErrSQLiteDisabled
}
func (c disabledSQLiteConn) PingContext(context.Context) error { return ErrSQLiteDisabled }
func (c disabledSQLiteConn) Rebind(query string) string        { return c.x.Rebind(query) }

// Disabled returns a Conn whose every call fails with ErrSQLiteDisabled.
func Disabled() Conn { return newDisabledSQLiteConn() }

// --- Fx output ---

type SQLiteSQLXOut struct {
	fx.Out

	DB   *sqlx.DB `name:"sqlite"`
	Conn Conn     `name:"sqlite"`
}

type NewSQLXSQLiteDBParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *zap.SugaredLogger
}

// NewSQLXSQLiteDB opens the run ledger: a remote Turso database (libsql://...)
// through libsql-client-go, or a local sqlite file through modernc.
func NewSQLXSQLiteDB(p NewSQLXSQLiteDBParams) (SQLiteSQLXOut, error) {
	dsn := SQLiteDSN(p.Cfg.Turso.DSN, p.Cfg.Turso.Path, p.Cfg.Turso.Token)
	if dsn == "" {
		p.Logger.Infow("turso_sqlite_disabled")
		return SQLiteSQLXOut{DB: nil, Conn: newDisabledSQLiteConn()}, nil
	}

	driverName := SQLiteDriver(dsn)
	db, err := Open(driverName, dsn)
	if err != nil {
		return SQLiteSQLXOut{}, err
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				_ = db.Close()
				return fmt.Errorf("ping ledger db: %w", err)
			}
			p.Logger.Infow("turso_sqlite_enabled", append([]any{"driver", driverName}, DSNLogFields(dsn)...)...)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	return SQLiteSQLXOut{DB: db, Conn: db}, nil
}

// Open opens a ledger database with pool settings for driverName.
func Open(driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driverName, err)
	}

	if driverName == DriverSQLite {
		// single writer for local files
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	db.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)
	return db, nil
}
