// Package emergency implements the EmergencyFlag singleton gate (spec
// §3 EmergencyFlag, §5 "read on every non-exempt request via a small
// cache; writers invalidate"). Grounded on
// original_source/.../emergency.rs's system:emergency_stop cache key
// and freeze/status handler shape, backed here by a durable row in
// internal/store so the flag survives a cache eviction or restart.
package emergency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

const cacheKey = "system:emergency_stop"
const cacheTTL = 30 * time.Second

// Status is the externally visible emergency state (spec §3
// EmergencyFlag).
type Status struct {
	Active      bool       `json:"active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ActivatedBy string     `json:"activated_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Gate reads and flips the singleton emergency flag.
type Gate struct {
	db    *store.DB
	cache *cache.Client
}

// New constructs a Gate.
func New(db *store.DB, c *cache.Client) *Gate {
	return &Gate{db: db, cache: c}
}

// Freeze activates the emergency stop (spec §6 emergency_freeze).
func (g *Gate) Freeze(actorID identity.ID, reason string) (Status, error) {
	now := time.Now().UTC()
	status := Status{Active: true, ActivatedAt: &now, ActivatedBy: actorID.String(), Reason: reason}
	if err := g.persist(status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Clear deactivates the emergency stop.
func (g *Gate) Clear() (Status, error) {
	status := Status{Active: false}
	if err := g.persist(status); err != nil {
		return Status{}, err
	}
	return status, nil
}

func (g *Gate) persist(status Status) error {
	row := store.EmergencyFlagRecord{
		Active:      status.Active,
		ActivatedAt: status.ActivatedAt,
		Reason:      status.Reason,
	}
	if status.ActivatedBy != "" {
		if id, err := identity.ParseID(status.ActivatedBy); err == nil {
			row.ActivatedBy = id
		}
	}
	// The singleton row always has ID 1.
	row.ID = 1
	if err := g.db.GORM().Save(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "emergency: persist status", err)
	}

	body, err := json.Marshal(status)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "emergency: marshal status", err)
	}
	// Cache write failure must not block the state transition — the
	// durable row is authoritative; the cache only accelerates reads.
	_ = g.cache.Set(context.Background(), cacheKey, string(body), cacheTTL)
	return nil
}

// Status returns the current emergency status, preferring the cache
// and falling back to the durable store on a miss (spec §5: "a brief
// staleness window (seconds) is tolerable").
func (g *Gate) Status() (Status, error) {
	if raw, ok, err := g.cache.Get(context.Background(), cacheKey); err == nil && ok {
		var status Status
		if jerr := json.Unmarshal([]byte(raw), &status); jerr == nil {
			return status, nil
		}
	}

	var row store.EmergencyFlagRecord
	err := g.db.GORM().Where("id = ?", 1).First(&row).Error
	if err != nil {
		return Status{}, nil
	}

	status := Status{Active: row.Active, ActivatedAt: row.ActivatedAt, Reason: row.Reason}
	if row.ActivatedBy != (identity.ID{}) {
		status.ActivatedBy = row.ActivatedBy.String()
	}
	body, merr := json.Marshal(status)
	if merr == nil {
		_ = g.cache.Set(context.Background(), cacheKey, string(body), cacheTTL)
	}
	return status, nil
}

// Check returns apperr.CodeEmergencyStop if the gate is active. Callers
// invoke this at the top of every non-exempt operation (spec §8
// emergency-gate property).
func (g *Gate) Check() error {
	status, err := g.Status()
	if err != nil {
		return err
	}
	if status.Active {
		return apperr.WithCode(apperr.KindStateConflict, apperr.CodeEmergencyStop, "emergency stop is active: "+status.Reason)
	}
	return nil
}
