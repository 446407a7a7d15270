// Package payout implements C5: per-shift production processing, weekly
// payout calculation, payroll bucketing, and withdrawal intents (spec
// §4.5). Grounded on
// original_source/.../engine/core.rs (per-shift split/burn/penalty
// math) and .../finance/calculate_payout.rs + penalties.rs (weekly
// payout, group/dirty-room penalties).
package payout

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/gamification"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/moneydecimal"
	"github.com/SweetModels/sweet-models-enterprise/internal/ratebook"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// Constants (spec §4.5, §9 constants section).
const (
	StudioShare = "0.40"
	GroupShare  = "0.60"
)

// MemberInput is one member's state at shift close (spec §4.5.1).
type MemberInput struct {
	UserID         identity.ID
	StrikesAtClose int
}

// MemberResult is one member's computed payout line (spec §4.5.1).
type MemberResult struct {
	UserID       identity.ID
	TokensNet    decimal.Decimal
	MoneyCOP     decimal.Decimal
	XPGained     int64
	XPAfterBurn  int64
	PenaltiesCOP decimal.Decimal
	NetMoneyCOP  decimal.Decimal
}

// ReportResult is the computed outcome of submit_production_report
// (spec §4.5.1, §6).
type ReportResult struct {
	RoomID            identity.ID
	ShiftID           string
	WeekID            string
	GrossTokens       decimal.Decimal
	StudioTokens      decimal.Decimal
	GroupPoolTokens   decimal.Decimal
	StudioRevenueCOP  decimal.Decimal
	Members           []MemberResult
	LowProductionFlag bool
	RoomDirtyFlag     bool
	TotalPenaltiesCOP decimal.Decimal
}

// Config holds the tunable constants this engine reads from
// internal/config (kept here as plain fields rather than importing
// config directly, so the engine stays independently testable).
type Config struct {
	LowProductionThreshold   decimal.Decimal
	LowProductionPenaltyCOP  decimal.Decimal
	DirtyRoomPenaltyCOP      decimal.Decimal
	GroupQuotaTokens         decimal.Decimal
	GroupShortfallPenaltyCOP decimal.Decimal
	ModelShare               decimal.Decimal
	DefaultTokenUSD          decimal.Decimal

	// GroupGoalBonusTokens/GroupGoalBonusCOP drive the group weekly goal
	// bonus applied at shift close (spec §4.5.3): every member of a room
	// that clears GroupGoalBonusTokens for the week is paid a flat
	// GroupGoalBonusCOP bonus.
	GroupGoalBonusTokens decimal.Decimal
	GroupGoalBonusCOP    decimal.Decimal
}

// Engine is the production & payout engine.
type Engine struct {
	db     *store.DB
	ledger *ledger.Ledger
	rates  *ratebook.RateBook
	xp     *gamification.Engine
	cfg    Config
}

// New constructs a payout Engine.
func New(db *store.DB, led *ledger.Ledger, rates *ratebook.RateBook, xp *gamification.Engine, cfg Config) *Engine {
	return &Engine{db: db, ledger: led, rates: rates, xp: xp, cfg: cfg}
}

var (
	studioShareDec = mustDecimal(StudioShare)
	groupShareDec  = mustDecimal(GroupShare)
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SubmitProductionReport computes and seals one shift's production
// report (spec §4.5.1).
func (e *Engine) SubmitProductionReport(roomID identity.ID, shiftID, weekID string, grossTokens decimal.Decimal, roomDirty bool, members []MemberInput) (ReportResult, error) {
	if len(members) == 0 {
		return ReportResult{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeNoMembers, "production report has no members")
	}

	rates, err := e.rates.GetRates()
	if err != nil {
		return ReportResult{}, err
	}
	modelRate := rates.ModelRateCOP

	studioTokens := grossTokens.Mul(studioShareDec)
	groupPool := grossTokens.Mul(groupShareDec)
	perMember := groupPool.Div(decimal.NewFromInt(int64(len(members))))

	lowProduction := grossTokens.LessThan(e.cfg.LowProductionThreshold)

	results := make([]MemberResult, 0, len(members))
	totalPenalties := moneydecimal.Zero

	weekStart, weekEnd := weekBounds(weekID)

	for _, m := range members {
		tokensNet := perMember
		moneyCOP := moneydecimal.RoundCOP(tokensNet.Mul(modelRate))
		xpGained := tokensNet.Round(0).IntPart()

		bal, err := e.xp.Award(m.UserID, xpGained, "PRODUCTION")
		if err != nil {
			return ReportResult{}, err
		}
		switch {
		case m.StrikesAtClose == 1:
			bal, err = e.xp.Burn(m.UserID, gamification.ReasonStrike1)
		case m.StrikesAtClose == 2:
			bal, err = e.xp.Burn(m.UserID, gamification.ReasonStrike2)
		case m.StrikesAtClose >= 3:
			bal, err = e.xp.Burn(m.UserID, gamification.ReasonStrike3)
		}
		if err != nil {
			return ReportResult{}, err
		}
		if roomDirty {
			bal, err = e.xp.Burn(m.UserID, gamification.ReasonDirtyRoom)
			if err != nil {
				return ReportResult{}, err
			}
		}

		penaltiesCOP := moneydecimal.Zero
		if lowProduction {
			penaltiesCOP = penaltiesCOP.Add(e.cfg.LowProductionPenaltyCOP)
		}
		if roomDirty {
			penaltiesCOP = penaltiesCOP.Add(e.cfg.DirtyRoomPenaltyCOP)
		}
		totalPenalties = totalPenalties.Add(penaltiesCOP)

		netMoneyCOP := moneyCOP.Sub(penaltiesCOP)

		results = append(results, MemberResult{
			UserID:       m.UserID,
			TokensNet:    tokensNet,
			MoneyCOP:     moneyCOP,
			XPGained:     xpGained,
			XPAfterBurn:  bal.XP,
			PenaltiesCOP: penaltiesCOP,
			NetMoneyCOP:  netMoneyCOP,
		})

		if err := e.appendPayrollEntry(m.UserID, weekStart, weekEnd, netMoneyCOP); err != nil {
			return ReportResult{}, err
		}
	}

	studioRevenueCOP := moneydecimal.RoundCOP(studioTokens.Mul(modelRate))

	// An open ProductionReport may already exist for this (room, shift,
	// week) from telemetry_ingest appends (spec §3 lifecycle); seal it
	// in place rather than creating a duplicate row.
	var report store.ProductionReport
	err = e.db.GORM().Where("room_id = ? AND shift_id = ? AND week_id = ? AND closed = ?", roomID, shiftID, weekID, false).
		First(&report).Error
	if err != nil {
		report = store.ProductionReport{RoomID: roomID, ShiftID: shiftID, WeekID: weekID}
	}
	report.GrossTokens = grossTokens.String()
	report.RoomDirty = roomDirty
	report.Closed = true
	if err := e.db.GORM().Save(&report).Error; err != nil {
		return ReportResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: persist production report", err)
	}
	strikesByUser := make(map[identity.ID]int, len(members))
	for _, m := range members {
		strikesByUser[m.UserID] = m.StrikesAtClose
	}
	for _, r := range results {
		row := store.ProductionReportMember{
			ProductionReportID: report.ID,
			UserID:             r.UserID,
			StrikesAtClose:     strikesByUser[r.UserID],
			TokensNet:          r.TokensNet.String(),
			MoneyCOP:           r.MoneyCOP.String(),
			PenaltiesCOP:       r.PenaltiesCOP.String(),
			NetMoneyCOP:        r.NetMoneyCOP.String(),
			XPGained:           r.XPGained,
		}
		if err := e.db.GORM().Create(&row).Error; err != nil {
			return ReportResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: persist member row", err)
		}
	}

	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":               "PRODUCTION_REPORT",
		"room_id":            roomID.String(),
		"week_id":            weekID,
		"shift_id":           shiftID,
		"gross_tokens":       grossTokens.String(),
		"studio_revenue_cop": studioRevenueCOP.String(),
	}); err != nil {
		return ReportResult{}, err
	}

	return ReportResult{
		RoomID:            roomID,
		ShiftID:           shiftID,
		WeekID:            weekID,
		GrossTokens:       grossTokens,
		StudioTokens:      studioTokens,
		GroupPoolTokens:   groupPool,
		StudioRevenueCOP:  studioRevenueCOP,
		Members:           results,
		LowProductionFlag: lowProduction,
		RoomDirtyFlag:     roomDirty,
		TotalPenaltiesCOP: totalPenalties,
	}, nil
}

// CloseShift applies room-level group-shortfall and dirty-room
// penalties at operator-triggered shift close (spec §4.4 close-of-shift
// paragraph; grounded on penalties.rs's apply_group_shortfall_penalty /
// apply_dirty_room_penalty), then settles each member's weekly payout
// and the room's group goal bonus (spec §4.5.2, §4.5.3) — shift close is
// the disbursement trigger the weekly/bonus calculators were missing.
func (e *Engine) CloseShift(roomID identity.ID, weekID string, members []identity.ID, totalTokens decimal.Decimal, dirty bool) error {
	weekStart, weekEnd := weekBounds(weekID)

	if totalTokens.LessThan(e.cfg.GroupQuotaTokens) {
		for _, userID := range members {
			if err := e.appendPenaltyEntry(userID, weekStart, weekEnd, e.cfg.GroupShortfallPenaltyCOP.Neg(), "group quota not met"); err != nil {
				return err
			}
		}
	}
	if dirty {
		for _, userID := range members {
			if err := e.appendPenaltyEntry(userID, weekStart, weekEnd, e.cfg.DirtyRoomPenaltyCOP.Neg(), "room left dirty"); err != nil {
				return err
			}
			if _, err := e.xp.Burn(userID, gamification.ReasonDirtyRoom); err != nil {
				return err
			}
		}
	}

	for _, userID := range members {
		if err := e.SettleWeeklyPayout(userID, weekID); err != nil {
			return err
		}
	}
	var weekRows []store.ProductionReportMember
	if err := e.db.GORM().
		Joins("JOIN production_reports ON production_reports.id = production_report_members.production_report_id").
		Where("production_reports.room_id = ? AND production_reports.week_id = ?", roomID, weekID).
		Find(&weekRows).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load room weekly tokens", err)
	}
	roomWeekTokens := moneydecimal.Zero
	for _, row := range weekRows {
		if tokens, perr := decimal.NewFromString(row.TokensNet); perr == nil {
			roomWeekTokens = roomWeekTokens.Add(tokens)
		}
	}
	if err := e.ApplyGroupGoalBonus(members, weekID, e.cfg.GroupGoalBonusTokens, e.cfg.GroupGoalBonusCOP, roomWeekTokens); err != nil {
		return err
	}
	return nil
}

// DowngradePendingWeek multiplies amount_cop/amount_usdt by factor on
// every PENDING entry for (user, week) and, when any entry was changed,
// seals the downgrade to the ledger — satisfies escalation.PayrollSink
// (spec §4.4 strike-2 action, penalties.rs's downgrade_user_week).
func (e *Engine) DowngradePendingWeek(userID identity.ID, weekID string, factor float64) error {
	weekStart, _ := weekBounds(weekID)
	var entries []store.PayrollEntry
	if err := e.db.GORM().Where("user_id = ? AND week_start = ? AND status = ?", userID, weekStart, "PENDING").Find(&entries).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load pending entries", err)
	}
	factorDec := decimal.NewFromFloat(factor)
	for _, entry := range entries {
		cop, _ := decimal.NewFromString(entry.AmountCOP)
		usdt, _ := decimal.NewFromString(entry.AmountUSDT)
		entry.AmountCOP = moneydecimal.RoundCOP(cop.Mul(factorDec)).String()
		entry.AmountUSDT = moneydecimal.RoundUSDT(usdt.Mul(factorDec)).String()
		entry.Notes = entry.Notes + " downgraded by strike-2"
		if err := e.db.GORM().Save(&entry).Error; err != nil {
			return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: save downgraded entry", err)
		}
	}
	if len(entries) > 0 {
		if _, err := e.ledger.Seal(map[string]interface{}{
			"type":    "PAYROLL_DOWNGRADE",
			"user_id": userID.String(),
			"week_id": weekID,
			"factor":  factorDec.String(),
			"entries": len(entries),
		}); err != nil {
			return err
		}
	}
	return nil
}

// CreatePenalty appends a PENALTY payroll entry (spec §4.4 strike-3
// action, penalties.rs's create_penalty).
func (e *Engine) CreatePenalty(userID identity.ID, weekID string, amountCOP string, reason string) error {
	weekStart, weekEnd := weekBounds(weekID)
	amount, err := decimal.NewFromString(amountCOP)
	if err != nil {
		return apperr.Wrap(apperr.KindValidationFailed, "payout: invalid penalty amount", err)
	}
	row := store.PayrollEntry{
		UserID:    userID,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		AmountCOP: moneydecimal.RoundCOP(amount).String(),
		AmountUSDT: "0",
		PaymentMethod: string(identity.PaymentEfectivo),
		Status:    "PENALTY",
		Notes:     reason,
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: create penalty", err)
	}
	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":    "PENALTY",
		"user_id": userID.String(),
		"amount":  row.AmountCOP,
		"reason":  reason,
	}); err != nil {
		return err
	}
	return nil
}

func (e *Engine) appendPenaltyEntry(userID identity.ID, weekStart, weekEnd time.Time, amountCOP decimal.Decimal, reason string) error {
	row := store.PayrollEntry{
		UserID:        userID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		AmountCOP:     amountCOP.String(),
		AmountUSDT:    "0",
		PaymentMethod: string(identity.PaymentEfectivo),
		Status:        "PENALTY",
		Notes:         reason,
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: append penalty entry", err)
	}
	return nil
}

func (e *Engine) appendPayrollEntry(userID identity.ID, weekStart, weekEnd time.Time, amountCOP decimal.Decimal) error {
	var user store.User
	paymentMethod := string(identity.PaymentEfectivo)
	accountNumber := ""
	if err := e.db.GORM().Where("id = ?", userID).First(&user).Error; err == nil {
		paymentMethod = user.PaymentMethod
		accountNumber = user.AccountNumber
	}

	row := store.PayrollEntry{
		UserID:        userID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		AmountCOP:     amountCOP.String(),
		AmountUSDT:    "0",
		PaymentMethod: paymentMethod,
		AccountNumber: accountNumber,
		Status:        "PENDING",
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: append payroll entry", err)
	}
	return nil
}

// PayrollBucket groups pending/approved totals by payment method (spec
// §4.5.2, §6 pending_payroll()).
type PayrollBucket struct {
	PaymentMethod string
	TotalCOP      decimal.Decimal
	TotalUSDT     decimal.Decimal
	Entries       []store.PayrollEntry
}

// PendingPayroll buckets every PENDING/APPROVED entry by payment method.
func (e *Engine) PendingPayroll() ([]PayrollBucket, error) {
	var entries []store.PayrollEntry
	if err := e.db.GORM().Where("status IN ?", []string{"PENDING", "APPROVED"}).Find(&entries).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load pending payroll", err)
	}

	buckets := map[string]*PayrollBucket{}
	order := []string{}
	for _, entry := range entries {
		b, ok := buckets[entry.PaymentMethod]
		if !ok {
			b = &PayrollBucket{PaymentMethod: entry.PaymentMethod}
			buckets[entry.PaymentMethod] = b
			order = append(order, entry.PaymentMethod)
		}
		cop, _ := decimal.NewFromString(entry.AmountCOP)
		usdt, _ := decimal.NewFromString(entry.AmountUSDT)
		b.TotalCOP = b.TotalCOP.Add(cop)
		b.TotalUSDT = b.TotalUSDT.Add(usdt)
		b.Entries = append(b.Entries, entry)
	}

	out := make([]PayrollBucket, 0, len(order))
	for _, pm := range order {
		out = append(out, *buckets[pm])
	}
	return out, nil
}

// MarkPaid transitions PENDING/APPROVED entries for a user's concluded
// week to PAID, idempotently (spec §8 idempotent mark-paid property).
func (e *Engine) MarkPaid(userID identity.ID, weekID, reference string) error {
	weekStart, _ := weekBounds(weekID)
	now := time.Now().UTC()
	result := e.db.GORM().Model(&store.PayrollEntry{}).
		Where("user_id = ? AND week_start = ? AND status IN ?", userID, weekStart, []string{"PENDING", "APPROVED"}).
		Updates(map[string]interface{}{
			"status":            "PAID",
			"paid_at":           now,
			"payment_reference": reference,
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: mark paid", result.Error)
	}
	return nil
}

// AvailableBalance returns Σ earnings − Σ withdrawals in {PENDING, SENT,
// CONFIRMED} (spec §4.5.4).
func (e *Engine) AvailableBalance(userID identity.ID) (decimal.Decimal, error) {
	var entries []store.PayrollEntry
	if err := e.db.GORM().Where("user_id = ? AND status IN ?", userID, []string{"APPROVED", "PAID"}).Find(&entries).Error; err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load earnings", err)
	}
	earnings := moneydecimal.Zero
	for _, e2 := range entries {
		usdt, _ := decimal.NewFromString(e2.AmountUSDT)
		earnings = earnings.Add(usdt)
	}

	var withdrawals []store.WithdrawalIntent
	if err := e.db.GORM().Where("user_id = ? AND status IN ?", userID, []string{"PENDING", "SENT", "CONFIRMED"}).Find(&withdrawals).Error; err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load withdrawals", err)
	}
	for _, w := range withdrawals {
		amt, _ := decimal.NewFromString(w.AmountUSDT)
		earnings = earnings.Sub(amt)
	}
	return earnings, nil
}

// RequestWithdraw creates a PENDING withdrawal intent after verifying
// available balance (spec §4.5.4, §8 withdraw-over-balance property).
func (e *Engine) RequestWithdraw(userID identity.ID, amountUSDT decimal.Decimal, destination string) (identity.ID, error) {
	available, err := e.AvailableBalance(userID)
	if err != nil {
		return identity.ID{}, err
	}
	if available.LessThan(amountUSDT) {
		return identity.ID{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeInsufficientBalance, "available balance is less than requested withdrawal")
	}

	id := identity.NewID()
	row := store.WithdrawalIntent{
		ID:          id,
		UserID:      userID,
		AmountUSDT:  amountUSDT.String(),
		Destination: destination,
		Status:      "PENDING",
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return identity.ID{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: create withdrawal intent", err)
	}

	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":        "WITHDRAWAL",
		"user_id":     userID.String(),
		"amount_usdt": amountUSDT.Neg().String(),
		"intent_id":   id.String(),
	}); err != nil {
		return identity.ID{}, err
	}

	return id, nil
}

// TransitionWithdrawal moves a withdrawal intent to SENT/CONFIRMED/FAILED
// on external-signer callback (spec §4.5.4).
func (e *Engine) TransitionWithdrawal(intentID identity.ID, status string, externalTx string) error {
	var intent store.WithdrawalIntent
	if err := e.db.GORM().Where("id = ?", intentID).First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperr.New(apperr.KindNotFound, "withdrawal intent not found")
		}
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load withdrawal intent", err)
	}
	intent.Status = status
	intent.ExternalTx = externalTx
	if err := e.db.GORM().Save(&intent).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: save withdrawal transition", err)
	}
	_, err := e.ledger.Seal(map[string]interface{}{
		"type":      "WITHDRAWAL_STATUS",
		"user_id":   intent.UserID.String(),
		"intent_id": intentID.String(),
		"status":    status,
	})
	return err
}

// WeeklyPayoutResult is the computed weekly disbursement for one user
// (spec §4.5.2).
type WeeklyPayoutResult struct {
	UserID          identity.ID
	WeekID          string
	TotalTokensWeek decimal.Decimal
	TasaModelo      decimal.Decimal
	// ShareCOP is share_usd converted to COP regardless of disbursement
	// method — the rank goal bonus (spec §4.5.3) is always a percentage
	// of this figure, even for models paid out in USDT.
	ShareCOP   decimal.Decimal
	PayoutCOP  decimal.Decimal
	PayoutUSDT decimal.Decimal
}

// WeeklyPayout computes the weekly disbursement for a user, following
// calculate_payout.rs's tasa_modelo/total_usd/share_usd formula:
// tasa_modelo = max(0, model_rate), total_usd = tokens*token_usd_value,
// share_usd = total_usd*MODEL_SHARE, then COP or USDT depending on the
// user's preferred payment method.
func (e *Engine) WeeklyPayout(userID identity.ID, weekID string, method identity.PaymentMethod) (WeeklyPayoutResult, error) {
	var rows []store.ProductionReportMember
	err := e.db.GORM().
		Joins("JOIN production_reports ON production_reports.id = production_report_members.production_report_id").
		Where("production_report_members.user_id = ? AND production_reports.week_id = ?", userID, weekID).
		Find(&rows).Error
	if err != nil {
		return WeeklyPayoutResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load weekly tokens", err)
	}

	totalTokens := moneydecimal.Zero
	for _, row := range rows {
		tokens, perr := decimal.NewFromString(row.TokensNet)
		if perr != nil {
			continue
		}
		totalTokens = totalTokens.Add(tokens)
	}
	totalTokens = moneydecimal.NonNegative(totalTokens)

	rates, err := e.rates.GetRates()
	if err != nil {
		return WeeklyPayoutResult{}, err
	}
	tasaModelo := moneydecimal.NonNegative(rates.ModelRateCOP)

	totalUSD := totalTokens.Mul(e.cfg.DefaultTokenUSD)
	shareUSD := totalUSD.Mul(e.cfg.ModelShare)
	shareCOP := moneydecimal.RoundCOP(shareUSD.Mul(tasaModelo))

	result := WeeklyPayoutResult{
		UserID:          userID,
		WeekID:          weekID,
		TotalTokensWeek: totalTokens,
		TasaModelo:      tasaModelo,
		ShareCOP:        shareCOP,
	}
	if method.PrefersUSDT() {
		result.PayoutUSDT = moneydecimal.RoundUSDT(shareUSD)
	} else {
		result.PayoutCOP = shareCOP
	}
	return result, nil
}

// SettleWeeklyPayout computes a member's weekly disbursement (spec
// §4.5.2) and persists it as a payroll entry in the disbursement channel
// their account prefers, then applies their rank's individual goal bonus
// on top (spec §4.5.3). This is the executed counterpart of WeeklyPayout/
// ApplyIndividualGoalBonus — invoked from CloseShift and from the
// operator-triggered /payout/weekly-payout endpoint.
func (e *Engine) SettleWeeklyPayout(userID identity.ID, weekID string) error {
	var user store.User
	method := identity.PaymentEfectivo
	if err := e.db.GORM().Where("id = ?", userID).First(&user).Error; err == nil && user.PaymentMethod != "" {
		method = identity.PaymentMethod(user.PaymentMethod)
	}

	result, err := e.WeeklyPayout(userID, weekID, method)
	if err != nil {
		return err
	}

	weekStart, weekEnd := weekBounds(weekID)
	if method.PrefersUSDT() {
		if err := e.appendApprovedUSDTEntry(userID, weekStart, weekEnd, result.PayoutUSDT, method); err != nil {
			return err
		}
	} else if !result.PayoutCOP.IsZero() {
		if err := e.appendPayrollEntry(userID, weekStart, weekEnd, result.PayoutCOP); err != nil {
			return err
		}
	}

	bal, err := e.xp.Balance(userID)
	if err != nil {
		return err
	}
	rank := gamification.RankFor(bal.XP)
	if _, err := e.ApplyIndividualGoalBonus(userID, rank, weekID, result.ShareCOP); err != nil {
		return err
	}
	return nil
}

// appendApprovedUSDTEntry persists the weekly USDT disbursement as an
// already-APPROVED payroll entry — USDT weekly payouts are not routed
// through the COP pending/mark-paid cycle, they become immediately
// available for AvailableBalance/RequestWithdraw (spec §4.5.4).
func (e *Engine) appendApprovedUSDTEntry(userID identity.ID, weekStart, weekEnd time.Time, amountUSDT decimal.Decimal, method identity.PaymentMethod) error {
	if amountUSDT.IsZero() {
		return nil
	}
	row := store.PayrollEntry{
		UserID:        userID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		AmountCOP:     "0",
		AmountUSDT:    amountUSDT.String(),
		PaymentMethod: string(method),
		Status:        "APPROVED",
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: append approved usdt entry", err)
	}
	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":        "WEEKLY_PAYOUT_USDT",
		"user_id":     userID.String(),
		"amount_usdt": row.AmountUSDT,
	}); err != nil {
		return err
	}
	return nil
}

// individualGoalTokens and individualGoalBonusPct implement the rank
// weekly token goals and bonus percentages (spec §4.5.3).
var individualGoalTokens = map[gamification.Rank]decimal.Decimal{
	gamification.RankNovice:     decimal.NewFromInt(5_000),
	gamification.RankRisingStar: decimal.NewFromInt(10_000),
	gamification.RankElite:      decimal.NewFromInt(20_000),
	gamification.RankQueen:      decimal.NewFromInt(40_000),
	gamification.RankGoddess:    decimal.NewFromInt(80_000),
}

var individualGoalBonusPct = map[gamification.Rank]decimal.Decimal{
	gamification.RankNovice:     decimal.Zero,
	gamification.RankRisingStar: decimal.Zero,
	gamification.RankElite:      decimal.NewFromFloat(0.02),
	gamification.RankQueen:      decimal.NewFromFloat(0.05),
	gamification.RankGoddess:    decimal.NewFromFloat(0.10),
}

// ApplyIndividualGoalBonus seals a bonus PayrollEntry when a user's
// weekly token total clears the goal for their current rank (spec
// §4.5.3).
func (e *Engine) ApplyIndividualGoalBonus(userID identity.ID, rank gamification.Rank, weekID string, weeklyPayoutCOP decimal.Decimal) (decimal.Decimal, error) {
	goal, ok := individualGoalTokens[rank]
	if !ok {
		return moneydecimal.Zero, nil
	}
	var rows []store.ProductionReportMember
	err := e.db.GORM().
		Joins("JOIN production_reports ON production_reports.id = production_report_members.production_report_id").
		Where("production_report_members.user_id = ? AND production_reports.week_id = ?", userID, weekID).
		Find(&rows).Error
	if err != nil {
		return moneydecimal.Zero, apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: load weekly tokens for goal bonus", err)
	}
	total := moneydecimal.Zero
	for _, row := range rows {
		tokens, perr := decimal.NewFromString(row.TokensNet)
		if perr != nil {
			continue
		}
		total = total.Add(tokens)
	}
	if total.LessThan(goal) {
		return moneydecimal.Zero, nil
	}

	pct := individualGoalBonusPct[rank]
	if pct.IsZero() {
		return moneydecimal.Zero, nil
	}
	bonus := moneydecimal.RoundCOP(weeklyPayoutCOP.Mul(pct))
	if bonus.IsZero() {
		return moneydecimal.Zero, nil
	}

	weekStart, weekEnd := weekBounds(weekID)
	if err := e.appendBonusEntry(userID, weekStart, weekEnd, bonus, "individual goal bonus"); err != nil {
		return moneydecimal.Zero, err
	}
	return bonus, nil
}

// ApplyGroupGoalBonus seals a fixed-COP bonus payroll entry per member
// when the group clears its weekly token goal (spec §4.5.3).
func (e *Engine) ApplyGroupGoalBonus(members []identity.ID, weekID string, groupGoalTokens, bonusCOP, totalTokensWeek decimal.Decimal) error {
	if totalTokensWeek.LessThan(groupGoalTokens) {
		return nil
	}
	weekStart, weekEnd := weekBounds(weekID)
	for _, userID := range members {
		if err := e.appendBonusEntry(userID, weekStart, weekEnd, bonusCOP, "group goal bonus"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) appendBonusEntry(userID identity.ID, weekStart, weekEnd time.Time, amountCOP decimal.Decimal, reason string) error {
	row := store.PayrollEntry{
		UserID:        userID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		AmountCOP:     amountCOP.String(),
		AmountUSDT:    "0",
		PaymentMethod: string(identity.PaymentEfectivo),
		Status:        "PENDING",
		Notes:         reason,
	}
	if err := e.db.GORM().Create(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "payout: append bonus entry", err)
	}
	if _, err := e.ledger.Seal(map[string]interface{}{
		"type":    "GOAL_BONUS",
		"user_id": userID.String(),
		"amount":  row.AmountCOP,
		"reason":  reason,
	}); err != nil {
		return err
	}
	return nil
}

// weekBounds parses an ISO year-week id ("2025-W07") into its Monday
// start and Sunday end instants (UTC midnight).
func weekBounds(weekID string) (time.Time, time.Time) {
	var year, week int
	if n, err := fmt.Sscanf(weekID, "%d-W%d", &year, &week); err != nil || n != 2 {
		now := time.Now().UTC()
		year, week = now.ISOWeek()
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	isoWeekday := int(jan4.Weekday())
	if isoWeekday == 0 {
		isoWeekday = 7
	}
	weekOneMonday := jan4.AddDate(0, 0, -(isoWeekday - 1))
	monday := weekOneMonday.AddDate(0, 0, (week-1)*7)
	sunday := monday.AddDate(0, 0, 6)
	return monday, sunday
}
