// Package identity defines the opaque identifiers and enumerations shared
// by every component of the core.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identity shared by users, rooms, reports, blocks
// and every other entity in the data model.
type ID = uuid.UUID

// NewID generates a fresh opaque identity.
func NewID() ID {
	return uuid.New()
}

// ParseID parses a string-form ID. When err is non-nil the returned ID
// carries no meaning.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// Role is a user's access level.
type Role string

const (
	RoleModel      Role = "MODEL"
	RoleModerator  Role = "MODERATOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleModel, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// PaymentMethod enumerates the disbursement channels a model may be paid
// through. Grounded on original_source/finance/calculate_payout.rs's
// PaymentMethod enum.
type PaymentMethod string

const (
	PaymentNequi       PaymentMethod = "NEQUI"
	PaymentBancolombia PaymentMethod = "BANCOLOMBIA"
	PaymentDaviplata   PaymentMethod = "DAVIPLATA"
	PaymentEfectivo    PaymentMethod = "EFECTIVO"
	PaymentUSDT        PaymentMethod = "USDT"
)

// PrefersUSDT reports whether the method denominates payouts in USDT
// rather than COP.
func (m PaymentMethod) PrefersUSDT() bool {
	return m == PaymentUSDT
}

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentNequi, PaymentBancolombia, PaymentDaviplata, PaymentEfectivo, PaymentUSDT:
		return true
	}
	return false
}

// Shift is one of the four fixed daily studio windows.
type Shift string

const (
	Shift1 Shift = "S1" // 02:00-08:00
	Shift2 Shift = "S2" // 08:00-14:00
	Shift3 Shift = "S3" // 14:00-20:00
	Shift4 Shift = "S4" // 20:00-02:00, crosses midnight
)

// StartHour returns the shift's scheduled start hour in studio local time.
func (s Shift) StartHour() (int, error) {
	switch s {
	case Shift1:
		return 2, nil
	case Shift2:
		return 8, nil
	case Shift3:
		return 14, nil
	case Shift4:
		return 20, nil
	default:
		return 0, fmt.Errorf("identity: unknown shift %q", s)
	}
}
