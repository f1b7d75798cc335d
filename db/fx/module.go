package fx

import (
	"catalog-feed-miner/db"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"sqlx-postgres-db",
	fx.Provide(db.NewSQLXPostgresDB),
)
