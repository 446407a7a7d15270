package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
)

// LedgerHandler exposes the hash-chained audit journal (spec §4.1).
type LedgerHandler struct {
	ledger *ledger.Ledger
	logger zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(led *ledger.Ledger, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: led, logger: logger}
}

// VerifyChain walks the chain and reports whether every link is intact.
func (h *LedgerHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	ok, err := h.ledger.VerifyChain()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"valid": ok})
}

// History returns the sealed entries for the user_id in the query string,
// in insertion order (oldest first).
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.ParseID(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, invalidQueryParam("user_id"))
		return
	}
	blocks, err := h.ledger.History(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"entries": blocks})
}
