package ledger

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return New(store.WrapGORM(gormDB)), mock
}

func TestLedger_Seal_Genesis(t *testing.T) {
	led, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	block, err := led.Seal(map[string]interface{}{"type": "RATE_CHANGE", "user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, GenesisPrevHash, block.PrevHash)
	assert.NotEmpty(t, block.Hash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Seal_ChainsToTail(t *testing.T) {
	led, mock := newMockLedger(t)

	rows := sqlmock.NewRows([]string{"id", "seq", "prev_hash", "data", "nonce", "hash", "timestamp"}).
		AddRow(identity.NewID().String(), 1, GenesisPrevHash, `{"a":1}`, 1, "deadbeef", time.Now())
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").
		WillReturnResult(sqlmock.NewResult(2, 1))

	block, err := led.Seal(map[string]interface{}{"type": "WITHDRAWAL"})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", block.PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	a, err := canonicalJSON(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := canonicalJSON(map[string]interface{}{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestComputeHash_Deterministic(t *testing.T) {
	id := identity.NewID()
	data, err := canonicalJSON(map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	h1 := computeHash(id, GenesisPrevHash, data, 7)
	h2 := computeHash(id, GenesisPrevHash, data, 7)
	assert.Equal(t, h1, h2)

	h3 := computeHash(id, GenesisPrevHash, data, 8)
	assert.NotEqual(t, h1, h3)
}

func TestVerifyChain_DetectsTamperedBlock(t *testing.T) {
	led, mock := newMockLedger(t)

	id1 := identity.NewID()
	goodData := `{"amount":100}`
	goodCanonical, err := canonicalJSON(map[string]interface{}{"amount": 100.0})
	require.NoError(t, err)
	goodHash := computeHash(id1, GenesisPrevHash, goodCanonical, 42)

	rows := sqlmock.NewRows([]string{"id", "seq", "prev_hash", "data", "nonce", "hash", "timestamp"}).
		AddRow(id1.String(), 1, GenesisPrevHash, goodData, 42, goodHash, time.Now()).
		AddRow(identity.NewID().String(), 2, goodHash, `{"amount":999}`, 43, "tamperedhash", time.Now())
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnRows(rows)

	ok, err := led.VerifyChain()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
