// Package gamification implements C3: per-user XP balances, rank
// resolution, and XP award/burn with reason codes (spec §4.3).
package gamification

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/lock"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// Rank is a pure function of XP (spec §4.3).
type Rank string

const (
	RankNovice     Rank = "NOVICE"
	RankRisingStar Rank = "RISING_STAR"
	RankElite      Rank = "ELITE"
	RankQueen      Rank = "QUEEN"
	RankGoddess    Rank = "GODDESS"
)

// RankFor resolves the rank for a given XP total.
func RankFor(xp int64) Rank {
	switch {
	case xp <= 20_000:
		return RankNovice
	case xp <= 60_000:
		return RankRisingStar
	case xp <= 150_000:
		return RankElite
	case xp <= 400_000:
		return RankQueen
	default:
		return RankGoddess
	}
}

// BurnReason is a fragility-table reason code (spec §4.3).
type BurnReason string

const (
	ReasonStrike1       BurnReason = "STRIKE_1"
	ReasonStrike2       BurnReason = "STRIKE_2"
	ReasonStrike3       BurnReason = "STRIKE_3"
	ReasonDirtyRoom     BurnReason = "DIRTY_ROOM"
	ReasonLowProduction BurnReason = "LOW_PRODUCTION"
)

// Config holds the fragility-table burn rates, read from
// internal/config (spec §4.3/§4.4 burn table).
type Config struct {
	BurnRateStrike1       decimal.Decimal
	BurnRateStrike2       decimal.Decimal
	BurnRateStrike3       decimal.Decimal
	BurnRateDirtyRoom     decimal.Decimal
	BurnRateLowProduction decimal.Decimal
}

// DefaultConfig returns the fragility table's documented defaults (spec
// §4.3: strike-1 10%, strike-2 30%, strike-3 100%, dirty room 20%, low
// production 5%).
func DefaultConfig() Config {
	return Config{
		BurnRateStrike1:       decimal.NewFromFloat(0.10),
		BurnRateStrike2:       decimal.NewFromFloat(0.30),
		BurnRateStrike3:       decimal.NewFromFloat(1.00),
		BurnRateDirtyRoom:     decimal.NewFromFloat(0.20),
		BurnRateLowProduction: decimal.NewFromFloat(0.05),
	}
}

// Balance is the externally visible XP state (spec §4.3 balance()).
type Balance struct {
	UserID      identity.ID
	XP          int64
	TotalEarned int64
	AtRisk      int64
}

// Engine serializes award/burn per user (spec §5) via a KeyedMutex,
// satisfying the single-writer-per-user discipline the contract requires.
type Engine struct {
	db      *store.DB
	ledger  *ledger.Ledger
	locks   *lock.KeyedMutex
	burnPct map[BurnReason]decimal.Decimal
}

// New constructs a gamification Engine against cfg's burn rates.
func New(db *store.DB, led *ledger.Ledger, cfg Config) *Engine {
	return &Engine{
		db:     db,
		ledger: led,
		locks:  lock.New(),
		burnPct: map[BurnReason]decimal.Decimal{
			ReasonStrike1:       cfg.BurnRateStrike1,
			ReasonStrike2:       cfg.BurnRateStrike2,
			ReasonStrike3:       cfg.BurnRateStrike3,
			ReasonDirtyRoom:     cfg.BurnRateDirtyRoom,
			ReasonLowProduction: cfg.BurnRateLowProduction,
		},
	}
}

// Award atomically increases a user's xp and total_earned. amount must
// be non-negative.
func (e *Engine) Award(userID identity.ID, amount int64, reason string) (Balance, error) {
	if amount < 0 {
		return Balance{}, apperr.New(apperr.KindValidationFailed, "award amount must be non-negative")
	}

	unlock := e.locks.Lock(userID.String())
	defer unlock()

	row, err := e.loadOrInit(userID)
	if err != nil {
		return Balance{}, err
	}

	row.XP += amount
	row.TotalEarned += amount
	if err := e.db.GORM().Save(&row).Error; err != nil {
		return Balance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: save award", err)
	}

	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":    "XP_AWARD",
		"user_id": userID.String(),
		"amount":  amount,
		"reason":  reason,
	}); err != nil {
		return Balance{}, err
	}

	return toBalance(row), nil
}

// Burn reduces xp by a percentage determined by reason (the fragility
// table). total_earned is unchanged. xp is floored at zero.
func (e *Engine) Burn(userID identity.ID, reason BurnReason) (Balance, error) {
	pct, ok := e.burnPct[reason]
	if !ok {
		return Balance{}, apperr.New(apperr.KindValidationFailed, "unknown burn reason")
	}

	unlock := e.locks.Lock(userID.String())
	defer unlock()

	row, err := e.loadOrInit(userID)
	if err != nil {
		return Balance{}, err
	}

	loss := decimal.NewFromInt(row.XP).Mul(pct).Round(0).IntPart()
	row.XP -= loss
	if row.XP < 0 {
		row.XP = 0
	}
	if err := e.db.GORM().Save(&row).Error; err != nil {
		return Balance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: save burn", err)
	}

	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":    "XP_BURN",
		"user_id": userID.String(),
		"loss":    loss,
		"reason":  string(reason),
	}); err != nil {
		return Balance{}, err
	}

	return toBalance(row), nil
}

// Balance returns the current balance for a user.
func (e *Engine) Balance(userID identity.ID) (Balance, error) {
	row, err := e.loadOrInit(userID)
	if err != nil {
		return Balance{}, err
	}
	return toBalance(row), nil
}

// Leaderboard returns the top-N users by XP descending (supplemented
// from original_source/gamification/engine.rs's get_leaderboard()).
func (e *Engine) Leaderboard(limit int) ([]Balance, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []store.XPBalance
	if err := e.db.GORM().Order("xp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: leaderboard", err)
	}
	out := make([]Balance, 0, len(rows))
	for _, row := range rows {
		out = append(out, toBalance(row))
	}
	return out, nil
}

// AwardAchievement records an achievement unlock for a user
// (supplemented from original_source/gamification/engine.rs).
func (e *Engine) AwardAchievement(userID identity.ID, achievement string) error {
	row := store.Achievement{UserID: userID, Achievement: achievement}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: award achievement", err)
	}
	return nil
}

// Reward is one catalog entry a user may redeem against XP (spec §6
// catalog()/redeem(); no original_source analog — the catalog is a
// SPEC_FULL supplement, built directly from spec.md's §6 operation
// list rather than any Rust source).
type Reward struct {
	ID     string
	Name   string
	XPCost int64
}

// catalog is the fixed reward table.
var catalog = []Reward{
	{ID: "STUDIO_DAY_OFF", Name: "Studio day off", XPCost: 5_000},
	{ID: "PRIORITY_ROOM", Name: "Priority room booking for a week", XPCost: 15_000},
	{ID: "WARDROBE_BUDGET", Name: "Wardrobe budget voucher", XPCost: 30_000},
	{ID: "SPOTLIGHT_FEATURE", Name: "Front-page spotlight feature", XPCost: 60_000},
}

// Catalog returns the fixed reward catalog.
func Catalog() []Reward {
	out := make([]Reward, len(catalog))
	copy(out, catalog)
	return out
}

// Redeem spends XP against a catalog reward, per-user serialized
// alongside award/burn so a redemption can never race a burn into
// negative XP.
func (e *Engine) Redeem(userID identity.ID, rewardID string) (Balance, error) {
	var reward *Reward
	for i := range catalog {
		if catalog[i].ID == rewardID {
			reward = &catalog[i]
			break
		}
	}
	if reward == nil {
		return Balance{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeUnknownReward, "unknown reward id")
	}

	unlock := e.locks.Lock(userID.String())
	defer unlock()

	row, err := e.loadOrInit(userID)
	if err != nil {
		return Balance{}, err
	}
	if row.XP < reward.XPCost {
		return Balance{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeInsufficientBalance, "not enough xp for this reward")
	}

	row.XP -= reward.XPCost
	if err := e.db.GORM().Save(&row).Error; err != nil {
		return Balance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: save redemption", err)
	}

	redemption := store.RewardRedemption{UserID: userID, RewardID: reward.ID, XPCost: reward.XPCost}
	if err := e.db.GORM().Create(&redemption).Error; err != nil {
		return Balance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: record redemption", err)
	}

	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":      "REWARD_REDEEMED",
		"user_id":   userID.String(),
		"reward_id": reward.ID,
		"xp_cost":   reward.XPCost,
	}); err != nil {
		return Balance{}, err
	}

	return toBalance(row), nil
}

func (e *Engine) loadOrInit(userID identity.ID) (store.XPBalance, error) {
	var row store.XPBalance
	err := e.db.GORM().Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = store.XPBalance{UserID: userID, XP: 0, TotalEarned: 0}
		if err := e.db.GORM().Create(&row).Error; err != nil {
			return store.XPBalance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: init balance", err)
		}
		return row, nil
	}
	if err != nil {
		return store.XPBalance{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "gamification: load balance", err)
	}
	return row, nil
}

func toBalance(row store.XPBalance) Balance {
	return Balance{
		UserID:      row.UserID,
		XP:          row.XP,
		TotalEarned: row.TotalEarned,
		AtRisk:      row.TotalEarned - row.XP,
	}
}
