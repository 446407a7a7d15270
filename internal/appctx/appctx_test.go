package appctx

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/config"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func TestNew_WiresEveryComponent(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	db := store.WrapGORM(gormDB)
	cfg := config.Load()

	app := New(cfg, zerolog.Nop(), db, &cache.Client{})

	require.NotNil(t, app.Ledger)
	require.NotNil(t, app.Rates)
	require.NotNil(t, app.Gamify)
	require.NotNil(t, app.Attend)
	require.NotNil(t, app.Payout)
	require.NotNil(t, app.Escalator)
	require.NotNil(t, app.Alerts)
	require.NotNil(t, app.Emergency)
	require.NotNil(t, app.Telemetry)
	require.NotNil(t, app.Hub)
	require.NotNil(t, app.Pulse)
	require.NotNil(t, app.Registry)
}
