// Package ratebook implements C2: the operator-set dual-rate currency
// book (spec §4.2). Every downstream money calculation reads the model
// rate through this component — no caller reads a raw stored value.
package ratebook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/moneydecimal"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// Rates is the current studio/model rate pair.
type Rates struct {
	StudioRateCOP decimal.Decimal
	ModelRateCOP  decimal.Decimal
}

// RateChange is one sealed rate-change record (C2 supplement, SPEC_FULL).
type RateChange struct {
	StudioRateCOP decimal.Decimal
	ModelRateCOP  decimal.Decimal
	ActorID       identity.ID
	SetAt         time.Time
}

// RateBook holds the operator-set studio rate and derives the model rate.
type RateBook struct {
	db       *store.DB
	ledger   *ledger.Ledger
	spreadCOP decimal.Decimal

	mu  sync.RWMutex
}

// New constructs a RateBook. spreadCOP is SPREAD_COP (300 by default,
// config-driven).
func New(db *store.DB, led *ledger.Ledger, spreadCOP decimal.Decimal) *RateBook {
	return &RateBook{db: db, ledger: led, spreadCOP: spreadCOP}
}

// GetRates returns the current studio/model rate pair. Reads the most
// recently sealed rate-change entry; if none exists, rates are invalid
// and callers must set_rates first.
func (rb *RateBook) GetRates() (Rates, error) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var row store.RateHistoryEntry
	err := rb.db.GORM().Order("id DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return Rates{}, apperr.WithCode(apperr.KindNotFound, apperr.CodeInvalidRate, "no rate has been set")
	}
	if err != nil {
		return Rates{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "ratebook: read rates", err)
	}

	studio, err := decimal.NewFromString(row.StudioRateCOP)
	if err != nil {
		return Rates{}, apperr.Wrap(apperr.KindInternal, "ratebook: parse studio rate", err)
	}
	model, err := decimal.NewFromString(row.ModelRateCOP)
	if err != nil {
		return Rates{}, apperr.Wrap(apperr.KindInternal, "ratebook: parse model rate", err)
	}
	return Rates{StudioRateCOP: studio, ModelRateCOP: model}, nil
}

// SetRates sets a new studio rate, derives the model rate, persists the
// change, and seals it into the ledger (spec §4.2).
func (rb *RateBook) SetRates(studioRateCOP decimal.Decimal, actorID identity.ID) (Rates, error) {
	if !studioRateCOP.IsPositive() {
		return Rates{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeInvalidRate, "studio_rate must be > 0")
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	modelRate := moneydecimal.NonNegative(studioRateCOP.Sub(rb.spreadCOP))

	now := time.Now().UTC()
	row := store.RateHistoryEntry{
		StudioRateCOP: studioRateCOP.String(),
		ModelRateCOP:  modelRate.String(),
		ActorID:       actorID,
		SetAt:         now,
	}
	if err := rb.db.GORM().Create(&row).Error; err != nil {
		return Rates{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "ratebook: persist rate change", err)
	}

	if _, err := rb.ledger.Seal(map[string]interface{}{
		"type":            "RATE_CHANGE",
		"user_id":         actorID.String(),
		"studio_rate_cop": studioRateCOP.String(),
		"model_rate_cop":  modelRate.String(),
	}); err != nil {
		return Rates{}, err
	}

	return Rates{StudioRateCOP: studioRateCOP, ModelRateCOP: modelRate}, nil
}

// History returns every rate change in chronological order (SPEC_FULL C2
// supplement — natural pairing with the write path already sealing to
// the ledger).
func (rb *RateBook) History() ([]RateChange, error) {
	var rows []store.RateHistoryEntry
	if err := rb.db.GORM().Order("id ASC").Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindDownstreamUnavailable, "ratebook: history", err)
	}

	out := make([]RateChange, 0, len(rows))
	for _, row := range rows {
		studio, err := decimal.NewFromString(row.StudioRateCOP)
		if err != nil {
			continue
		}
		model, err := decimal.NewFromString(row.ModelRateCOP)
		if err != nil {
			continue
		}
		out = append(out, RateChange{
			StudioRateCOP: studio,
			ModelRateCOP:  model,
			ActorID:       row.ActorID,
			SetAt:         row.SetAt,
		})
	}
	return out, nil
}
