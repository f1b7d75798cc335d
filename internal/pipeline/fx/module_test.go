package fx

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	dbfx "catalog-feed-miner/db/fx"
	appfx "catalog-feed-miner/internal/app/fx"
	"catalog-feed-miner/internal/pipeline"
)

func TestModuleWiresDriver(t *testing.T) {
	var driver *pipeline.Driver

	app := fxtest.New(t,
		appfx.CoreAppOptions,
		dbfx.SQLiteModule,
		Module,
		fx.Populate(&driver),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, driver)
}
