package fx

import (
	"catalog-feed-miner/db"

	"go.uber.org/fx"
)

var SQLiteModule = fx.Module(
	"sqlx-sqlite-db",
	fx.Provide(db.NewSQLXSQLiteDB),
)
