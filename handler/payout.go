package handler

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/payout"
)

// PayoutHandler exposes production reports, payroll, and withdrawals
// (spec §4.5).
type PayoutHandler struct {
	engine *payout.Engine
	logger zerolog.Logger
}

// NewPayoutHandler creates a new payout handler.
func NewPayoutHandler(engine *payout.Engine, logger zerolog.Logger) *PayoutHandler {
	return &PayoutHandler{engine: engine, logger: logger}
}

type memberInputDTO struct {
	UserID         string `json:"user_id"`
	StrikesAtClose int    `json:"strikes_at_close"`
}

type submitProductionReportRequest struct {
	RoomID      string           `json:"room_id"`
	ShiftID     string           `json:"shift_id"`
	WeekID      string           `json:"week_id"`
	GrossTokens string           `json:"gross_tokens"`
	RoomDirty   bool             `json:"room_dirty"`
	Members     []memberInputDTO `json:"members"`
}

// SubmitProductionReport seals an open production report and computes
// splits (spec §4.5.1).
func (h *PayoutHandler) SubmitProductionReport(w http.ResponseWriter, r *http.Request) {
	var req submitProductionReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	roomID, err := identity.ParseID(req.RoomID)
	if err != nil {
		writeError(w, invalidQueryParam("room_id"))
		return
	}
	gross, err := decimal.NewFromString(req.GrossTokens)
	if err != nil {
		writeError(w, invalidQueryParam("gross_tokens"))
		return
	}
	members := make([]payout.MemberInput, 0, len(req.Members))
	for _, m := range req.Members {
		memberID, err := identity.ParseID(m.UserID)
		if err != nil {
			writeError(w, invalidQueryParam("members[].user_id"))
			return
		}
		members = append(members, payout.MemberInput{UserID: memberID, StrikesAtClose: m.StrikesAtClose})
	}

	result, err := h.engine.SubmitProductionReport(roomID, req.ShiftID, req.WeekID, gross, req.RoomDirty, members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

type closeShiftRequest struct {
	RoomID      string   `json:"room_id"`
	WeekID      string   `json:"week_id"`
	MemberIDs   []string `json:"member_ids"`
	TotalTokens string   `json:"total_tokens"`
	Dirty       bool     `json:"dirty"`
}

// CloseShift finalizes a room's shift.
func (h *PayoutHandler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req closeShiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	roomID, err := identity.ParseID(req.RoomID)
	if err != nil {
		writeError(w, invalidQueryParam("room_id"))
		return
	}
	total, err := decimal.NewFromString(req.TotalTokens)
	if err != nil {
		writeError(w, invalidQueryParam("total_tokens"))
		return
	}
	members := make([]identity.ID, 0, len(req.MemberIDs))
	for _, m := range req.MemberIDs {
		id, err := identity.ParseID(m)
		if err != nil {
			writeError(w, invalidQueryParam("member_ids"))
			return
		}
		members = append(members, id)
	}

	if err := h.engine.CloseShift(roomID, req.WeekID, members, total, req.Dirty); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"closed": true})
}

// PendingPayroll lists payroll entries awaiting payment, bucketed by
// payment method.
func (h *PayoutHandler) PendingPayroll(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.engine.PendingPayroll()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"buckets": buckets})
}

type markPaidRequest struct {
	UserID    string `json:"user_id"`
	WeekID    string `json:"week_id"`
	Reference string `json:"reference"`
}

// MarkPaid marks a payroll entry as paid.
func (h *PayoutHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, err := identity.ParseID(req.UserID)
	if err != nil {
		writeError(w, invalidQueryParam("user_id"))
		return
	}

	if err := h.engine.MarkPaid(userID, req.WeekID, req.Reference); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"paid": true})
}

// GetBalance returns the caller's available balance.
func (h *PayoutHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	var userID identity.ID
	var err error
	if q := r.URL.Query().Get("user_id"); q != "" {
		userID, err = identity.ParseID(q)
		if err != nil {
			writeError(w, invalidQueryParam("user_id"))
			return
		}
	} else {
		userID, err = actorIDFromContext(r)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	balance, err := h.engine.AvailableBalance(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"available_balance_usdt": balance})
}

type weeklyPayoutRequest struct {
	UserID string `json:"user_id"`
	WeekID string `json:"week_id"`
}

// WeeklyPayout triggers the weekly USDT/COP disbursement computation and
// settlement for one member, including their rank goal bonus (spec
// §4.5.2, §4.5.3). CloseShift already settles every room member
// automatically; this endpoint lets an operator re-run settlement for a
// single member (e.g. after a payment-method correction).
func (h *PayoutHandler) WeeklyPayout(w http.ResponseWriter, r *http.Request) {
	var req weeklyPayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, err := identity.ParseID(req.UserID)
	if err != nil {
		writeError(w, invalidQueryParam("user_id"))
		return
	}

	if err := h.engine.SettleWeeklyPayout(userID, req.WeekID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"settled": true})
}

type requestWithdrawRequest struct {
	AmountUSDT  string `json:"amount_usdt"`
	Destination string `json:"destination"`
}

// RequestWithdraw submits a withdrawal intent against the caller's
// available balance.
func (h *PayoutHandler) RequestWithdraw(w http.ResponseWriter, r *http.Request) {
	var req requestWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.AmountUSDT)
	if err != nil {
		writeError(w, invalidQueryParam("amount_usdt"))
		return
	}
	userID, err := actorIDFromContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	intentID, err := h.engine.RequestWithdraw(userID, amount, req.Destination)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"withdrawal_intent_id": intentID})
}
