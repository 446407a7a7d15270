package gamification

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func TestRankFor(t *testing.T) {
	cases := []struct {
		xp   int64
		want Rank
	}{
		{0, RankNovice},
		{20_000, RankNovice},
		{20_001, RankRisingStar},
		{60_000, RankRisingStar},
		{60_001, RankElite},
		{150_000, RankElite},
		{150_001, RankQueen},
		{400_000, RankQueen},
		{400_001, RankGoddess},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RankFor(tc.xp), "xp=%d", tc.xp)
	}
}

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	db := store.WrapGORM(gormDB)
	led := ledger.New(db)
	return New(db, led, DefaultConfig()), mock
}

func TestEngine_Burn_FloorsAtZero(t *testing.T) {
	e, mock := newMockEngine(t)

	existing := sqlmock.NewRows([]string{"user_id", "xp", "total_earned", "updated_at"}).
		AddRow(identity.NewID().String(), 100, 100, nil)
	mock.ExpectQuery("SELECT \\* FROM `xp_balances`").WillReturnRows(existing)
	mock.ExpectExec("UPDATE `xp_balances`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").WillReturnResult(sqlmock.NewResult(1, 1))

	bal, err := e.Burn(identity.NewID(), ReasonStrike3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.XP)
}

func TestEngine_Burn_UnknownReason(t *testing.T) {
	e, _ := newMockEngine(t)
	_, err := e.Burn(identity.NewID(), BurnReason("NOT_A_REASON"))
	assert.Error(t, err)
}
