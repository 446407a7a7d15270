package emergency

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/config"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func newMockGate(t *testing.T) *Gate {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	mock.MatchExpectationsInOrder(false)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	db := store.WrapGORM(gormDB)

	// An unreachable Redis answers cache calls with a connection error
	// rather than panicking, exercising the same fall-through-to-DB
	// path Status() takes on a real cache miss.
	cfg := config.Load()
	cacheClient, err := cache.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { cacheClient.Close() })

	return New(db, cacheClient)
}

func TestStatus_FailsOpenOnStoreError(t *testing.T) {
	g := newMockGate(t)

	status, err := g.Status()
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestCheck_PassesWhenNoRowExists(t *testing.T) {
	g := newMockGate(t)

	err := g.Check()
	assert.NoError(t, err)
}
