package payout

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/gamification"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/ratebook"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func TestWeekBounds_MondayToSunday(t *testing.T) {
	monday, sunday := weekBounds("2025-W07")
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, time.Sunday, sunday.Weekday())
	assert.Equal(t, 6, int(sunday.Sub(monday).Hours()/24))
}

func TestWeekBounds_FallsBackOnMalformedID(t *testing.T) {
	monday, sunday := weekBounds("not-a-week")
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.True(t, sunday.After(monday))
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
	rates := ratebook.New(db, led, decimal.NewFromInt(300))
	xp := gamification.New(db, led, gamification.DefaultConfig())

	cfg := Config{
		LowProductionThreshold:   decimal.NewFromInt(1500),
		LowProductionPenaltyCOP:  decimal.NewFromInt(50_000),
		DirtyRoomPenaltyCOP:      decimal.NewFromInt(500_000),
		GroupQuotaTokens:         decimal.NewFromInt(1500),
		GroupShortfallPenaltyCOP: decimal.NewFromInt(50_000),
		ModelShare:               decimal.NewFromFloat(0.60),
		DefaultTokenUSD:          decimal.NewFromFloat(0.05),
		GroupGoalBonusTokens:     decimal.NewFromInt(3000),
		GroupGoalBonusCOP:        decimal.NewFromInt(100_000),
	}
	return New(db, led, rates, xp, cfg), mock
}

func TestSubmitProductionReport_NoMembers(t *testing.T) {
	e, _ := newMockEngine(t)
	_, err := e.SubmitProductionReport(identity.NewID(), "S1", "2025-W07", decimal.NewFromInt(2000), false, nil)
	assert.Error(t, err)
}

func TestSubmitProductionReport_NoRateSet(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery("SELECT \\* FROM `rate_history_entries`").WillReturnError(gorm.ErrRecordNotFound)

	_, err := e.SubmitProductionReport(identity.NewID(), "S1", "2025-W07", decimal.NewFromInt(2000), false,
		[]MemberInput{{UserID: identity.NewID()}})
	assert.Error(t, err)
}

func TestDowngradePendingWeek_NoPendingEntries(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery("SELECT \\* FROM `payroll_entries`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "week_start", "week_end", "amount_cop", "amount_usdt", "payment_method", "status"}))

	err := e.DowngradePendingWeek(identity.NewID(), "2025-W07", 0.50)
	assert.NoError(t, err)
}

func TestApplyGroupGoalBonus_NoOpBelowGoal(t *testing.T) {
	e, mock := newMockEngine(t)
	err := e.ApplyGroupGoalBonus([]identity.ID{identity.NewID()}, "2025-W07",
		decimal.NewFromInt(3000), decimal.NewFromInt(100_000), decimal.NewFromInt(1000))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyGroupGoalBonus_AppliesBonusPerMemberAboveGoal(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)

	members := []identity.ID{identity.NewID(), identity.NewID()}
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnError(gorm.ErrRecordNotFound).Times(2)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").WillReturnResult(sqlmock.NewResult(1, 1)).Times(2)
	mock.ExpectExec("INSERT INTO `payroll_entries`").WillReturnResult(sqlmock.NewResult(1, 1)).Times(2)

	err := e.ApplyGroupGoalBonus(members, "2025-W07",
		decimal.NewFromInt(3000), decimal.NewFromInt(100_000), decimal.NewFromInt(5000))
	assert.NoError(t, err)
}

func TestApplyIndividualGoalBonus_NoBonusWhenBelowGoal(t *testing.T) {
	e, mock := newMockEngine(t)
	rows := sqlmock.NewRows([]string{"tokens_net"}).AddRow("100")
	mock.ExpectQuery("SELECT .* FROM `production_report_members`").WillReturnRows(rows)

	bonus, err := e.ApplyIndividualGoalBonus(identity.NewID(), gamification.RankElite, "2025-W07", decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.True(t, bonus.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIndividualGoalBonus_AppliesBonusWhenGoalCleared(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)

	rows := sqlmock.NewRows([]string{"tokens_net"}).AddRow("25000")
	mock.ExpectQuery("SELECT .* FROM `production_report_members`").WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO `payroll_entries`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").WillReturnResult(sqlmock.NewResult(1, 1))

	bonus, err := e.ApplyIndividualGoalBonus(identity.NewID(), gamification.RankElite, "2025-W07", decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.False(t, bonus.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyPayout_SharesCOPRegardlessOfDisbursementMethod(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)

	tokenRows := sqlmock.NewRows([]string{"tokens_net"}).AddRow("10000")
	mock.ExpectQuery("SELECT .* FROM `production_report_members`").WillReturnRows(tokenRows)
	rateRows := sqlmock.NewRows([]string{"id", "studio_rate_cop", "model_rate_cop", "actor_id", "set_at"}).
		AddRow(1, "1000", "700", identity.NewID().String(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM `rate_history_entries`").WillReturnRows(rateRows)

	result, err := e.WeeklyPayout(identity.NewID(), "2025-W07", identity.PaymentUSDT)
	require.NoError(t, err)
	assert.False(t, result.ShareCOP.IsZero())
	assert.False(t, result.PayoutUSDT.IsZero())
	assert.True(t, result.PayoutCOP.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableBalance_SumsApprovedAndPaidMinusOpenWithdrawals(t *testing.T) {
	e, mock := newMockEngine(t)

	earnings := sqlmock.NewRows([]string{"id", "user_id", "week_start", "week_end", "amount_cop", "amount_usdt", "payment_method", "status"}).
		AddRow(1, identity.NewID().String(), time.Now(), time.Now(), "0", "100.5", "USDT", "APPROVED").
		AddRow(2, identity.NewID().String(), time.Now(), time.Now(), "0", "50.0", "USDT", "PAID")
	mock.ExpectQuery("SELECT \\* FROM `payroll_entries`").WillReturnRows(earnings)

	withdrawals := sqlmock.NewRows([]string{"id", "user_id", "amount_usdt", "destination", "status"}).
		AddRow(identity.NewID().String(), identity.NewID().String(), "20.0", "dest", "PENDING")
	mock.ExpectQuery("SELECT \\* FROM `withdrawal_intents`").WillReturnRows(withdrawals)

	balance, err := e.AvailableBalance(identity.NewID())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(130.5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestWithdraw_RejectsWhenBalanceInsufficient(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery("SELECT \\* FROM `payroll_entries`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "week_start", "week_end", "amount_cop", "amount_usdt", "payment_method", "status"}))
	mock.ExpectQuery("SELECT \\* FROM `withdrawal_intents`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount_usdt", "destination", "status"}))

	_, err := e.RequestWithdraw(identity.NewID(), decimal.NewFromInt(10), "dest")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestWithdraw_SucceedsWhenBalanceCoversAmount(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)

	earnings := sqlmock.NewRows([]string{"id", "user_id", "week_start", "week_end", "amount_cop", "amount_usdt", "payment_method", "status"}).
		AddRow(1, identity.NewID().String(), time.Now(), time.Now(), "0", "100.0", "USDT", "APPROVED")
	mock.ExpectQuery("SELECT \\* FROM `payroll_entries`").WillReturnRows(earnings)
	mock.ExpectQuery("SELECT \\* FROM `withdrawal_intents`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount_usdt", "destination", "status"}))
	mock.ExpectExec("INSERT INTO `withdrawal_intents`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `ledger_blocks`").WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `ledger_blocks`").WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := e.RequestWithdraw(identity.NewID(), decimal.NewFromInt(50), "dest")
	require.NoError(t, err)
	assert.NotEqual(t, identity.ID{}, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleWeeklyPayout_COPMethod_AppendsPendingEntryAndSkipsUnmetBonus(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.MatchExpectationsInOrder(false)

	userRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "role", "payment_method", "account_number", "has_signed_terms"}).
			AddRow(identity.NewID().String(), "MODEL", "NEQUI", "acct-1", true)
	}
	// SettleWeeklyPayout looks up the user's payment method, then
	// appendPayrollEntry looks it up again for the COP disbursement line.
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(userRows())
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(userRows())

	tokenRows := sqlmock.NewRows([]string{"tokens_net"}).AddRow("100")
	mock.ExpectQuery("SELECT .* FROM `production_report_members`").WillReturnRows(tokenRows).Times(2)

	rateRows := sqlmock.NewRows([]string{"id", "studio_rate_cop", "model_rate_cop", "actor_id", "set_at"}).
		AddRow(1, "1000", "700", identity.NewID().String(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM `rate_history_entries`").WillReturnRows(rateRows)

	mock.ExpectExec("INSERT INTO `payroll_entries`").WillReturnResult(sqlmock.NewResult(1, 1))

	balRows := sqlmock.NewRows([]string{"user_id", "xp", "total_earned", "updated_at"}).
		AddRow(identity.NewID().String(), 100, 100, time.Now())
	mock.ExpectQuery("SELECT \\* FROM `xp_balances`").WillReturnRows(balRows)

	err := e.SettleWeeklyPayout(identity.NewID(), "2025-W07")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndividualGoalTables_CoverEveryRank(t *testing.T) {
	for _, rank := range []gamification.Rank{
		gamification.RankNovice, gamification.RankRisingStar, gamification.RankElite,
		gamification.RankQueen, gamification.RankGoddess,
	} {
		_, ok := individualGoalTokens[rank]
		assert.True(t, ok, "missing goal tokens for rank %s", rank)
		_, ok = individualGoalBonusPct[rank]
		assert.True(t, ok, "missing bonus pct for rank %s", rank)
	}
}
