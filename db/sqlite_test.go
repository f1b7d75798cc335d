package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
)

func TestSQLiteDisabledByDefault(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop().Sugar()

	out, err := NewSQLXSQLiteDB(NewSQLXSQLiteDBParams{
		Lc:     fxtest.NewLifecycle(t),
		Cfg:    &config.Config{},
		Logger: logger,
	})
	require.NoError(t, err)
	require.Nil(t, out.DB)

	_, err = out.Conn.ExecContext(context.Background(), "select 1")
	require.ErrorIs(t, err, ErrSQLiteDisabled)

	var one int
	err = out.Conn.QueryRowxContext(context.Background(), "select 1").Scan(&one)
	require.ErrorIs(t, err, ErrSQLiteDisabled)

	_, err = Tx(context.Background(), out.Conn, func(*sqlx.Tx) (int, error) { return 1, nil })
	require.ErrorIs(t, err, ErrSQLiteDisabled)
}

func TestSQLiteLocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	lc := fxtest.NewLifecycle(t)
	out, err := NewSQLXSQLiteDB(NewSQLXSQLiteDBParams{
		Lc:     lc,
		Cfg:    &config.Config{Turso: config.Turso{Path: path}},
		Logger: zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	require.NotNil(t, out.DB)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	ctx := context.Background()
	_, err = out.Conn.ExecContext(ctx, "create table t (n integer)")
	require.NoError(t, err)

	got, err := Tx(ctx, out.Conn, func(tx *sqlx.Tx) (int, error) {
		if _, err := tx.ExecContext(ctx, "insert into t (n) values (?)", 7); err != nil {
			return 0, err
		}
		var n int
		return n, tx.GetContext(ctx, &n, "select n from t")
	})
	require.NoError(t, err)
	require.Equal(t, 7, got)

	_, err = Tx(ctx, out.Conn, func(tx *sqlx.Tx) (int, error) {
		_, _ = tx.ExecContext(ctx, "insert into t (n) values (8)")
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, out.Conn.GetContext(ctx, &count, "select count(*) from t"))
	require.Equal(t, 1, count, "rolled back insert must not persist")
}

func TestSQLiteDriver(t *testing.T) {
	cases := map[string]string{
		"libsql://feeds-joyandco.turso.io": DriverLibSQL,
		"https://feeds.turso.io":           DriverLibSQL,
		"file:ledger.db":                   DriverSQLite,
		"/var/lib/feedminer/ledger.db":     DriverSQLite,
		"ledger.db":                        DriverSQLite,
	}
	for dsn, want := range cases {
		require.Equal(t, want, SQLiteDriver(dsn), dsn)
	}
}

func TestSQLiteDSN_AuthToken(t *testing.T) {
	require.Equal(t, "libsql://x.turso.io?authToken=tok", SQLiteDSN("libsql://x.turso.io", "", "tok"))
	require.Equal(t, "file:ledger.db", SQLiteDSN("", "file:ledger.db", "tok"))
	require.Equal(t, "", SQLiteDSN(" ", "", "tok"))
}
