package db

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Conn is the query surface stores depend on. *sqlx.DB satisfies it; so does
// the disabled connection returned when no ledger database is configured.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Rebind(query string) string
}

var _ Conn = (*sqlx.DB)(nil)

const (
	DriverLibSQL = "libsql"
	DriverSQLite = "sqlite"
)

// SQLiteDSN picks the ledger DSN from config: TURSO_SQLITE_DSN, else TURSO_SQLITE_PATH.
func SQLiteDSN(dsn, path, token string) string {
	d := strings.TrimSpace(dsn)
	if d == "" {
		d = strings.TrimSpace(path)
	}
	if d == "" {
		return ""
	}
	return ensureAuthTokenQuery(d, strings.TrimSpace(token))
}

// SQLiteDriver returns the database/sql driver for dsn: remote libsql/Turso
// URLs go through libsql-client-go, anything else is a local modernc sqlite file.
func SQLiteDriver(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return DriverSQLite
	}
	switch strings.ToLower(u.Scheme) {
	case "libsql", "http", "https", "ws", "wss":
		return DriverLibSQL
	}
	return DriverSQLite
}

func ensureAuthTokenQuery(dsn, token string) string {
	if token == "" {
		return dsn
	}

	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}

	// Don’t add tokens to local sqlite/file DSNs.
	if strings.EqualFold(u.Scheme, "file") || strings.EqualFold(u.Scheme, "sqlite") {
		return dsn
	}

	q := u.Query()
	if q.Get("authToken") != "" {
		return dsn
	}

	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// DSNLogFields returns loggable fields for dsn without credentials.
func DSNLogFields(dsn string) []any {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return []any{"dsn", "local"}
	}
	return []any{"scheme", u.Scheme, "host", u.Host}
}
