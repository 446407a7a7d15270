// Package store holds the gorm-backed relational models for every
// persisted entity in the data model (spec §3) and the connection/
// migration bootstrap, grounded on
// ChoSanghyuk-blackholedex/internal/db/transaction_recorder.go's
// struct-tagged-model + AutoMigrate + NewXRecorder(dsn) pattern.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

// User is an account in the core (spec §3 User entity).
type User struct {
	ID             identity.ID `gorm:"type:char(36);primaryKey"`
	Role           string      `gorm:"type:varchar(32);not null"`
	PaymentMethod  string      `gorm:"type:varchar(32);not null"`
	AccountNumber  string      `gorm:"type:varchar(128)"`
	HasSignedTerms bool        `gorm:"not null;default:false"`
	CreatedAt      time.Time   `gorm:"autoCreateTime"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// WeeklyShiftAssignment assigns a user to a room/shift for an ISO week.
type WeeklyShiftAssignment struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"`
	UserID    identity.ID `gorm:"type:char(36);not null;uniqueIndex:uniq_user_week"`
	WeekID    string      `gorm:"type:varchar(16);not null;uniqueIndex:uniq_user_week"`
	RoomID    identity.ID `gorm:"type:char(36);not null;index"`
	Shift     string      `gorm:"type:varchar(4);not null"`
	CreatedAt time.Time   `gorm:"autoCreateTime"`
}

func (WeeklyShiftAssignment) TableName() string { return "weekly_shift_assignments" }

// AttendanceEvent is an append-only check-in record.
type AttendanceEvent struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"`
	UserID    identity.ID `gorm:"type:char(36);not null;index"`
	CheckInAt time.Time   `gorm:"not null;index"`
	IsLate    bool        `gorm:"not null"`
	PhotoRef  string      `gorm:"type:varchar(256)"`
	Lat       float64     `gorm:"not null"`
	Lon       float64     `gorm:"not null"`
	WeekID    string      `gorm:"type:varchar(16);not null;index"`
}

func (AttendanceEvent) TableName() string { return "attendance_events" }

// ProductionReport is one sealed (room, shift, day) production record.
type ProductionReport struct {
	ID              uint        `gorm:"primaryKey;autoIncrement"`
	RoomID          identity.ID `gorm:"type:char(36);not null;uniqueIndex:uniq_room_shift_week"`
	ShiftID         string      `gorm:"type:varchar(4);not null;uniqueIndex:uniq_room_shift_week"`
	WeekID          string      `gorm:"type:varchar(16);not null;uniqueIndex:uniq_room_shift_week"`
	GrossTokens     string      `gorm:"type:varchar(64);not null"`
	TipsTotal       string      `gorm:"type:varchar(64);not null;default:'0'"`
	LastViewerCount int         `gorm:"not null;default:0"`
	RoomDirty       bool        `gorm:"not null;default:false"`
	RateOverride    string      `gorm:"type:varchar(64)"`
	Closed          bool        `gorm:"not null;default:false"`
	CreatedAt       time.Time   `gorm:"autoCreateTime"`
}

func (ProductionReport) TableName() string { return "production_reports" }

// ProductionReportMember is a per-member line of a ProductionReport.
type ProductionReportMember struct {
	ID                 uint        `gorm:"primaryKey;autoIncrement"`
	ProductionReportID uint        `gorm:"not null;index"`
	UserID             identity.ID `gorm:"type:char(36);not null;index"`
	StrikesAtClose     int         `gorm:"not null;default:0"`
	XPAtOpen           int64       `gorm:"not null;default:0"`
	TokensNet          string      `gorm:"type:varchar(64)"`
	MoneyCOP           string      `gorm:"type:varchar(64)"`
	PenaltiesCOP       string      `gorm:"type:varchar(64)"`
	NetMoneyCOP        string      `gorm:"type:varchar(64)"`
	XPGained           int64       `gorm:"not null;default:0"`
}

func (ProductionReportMember) TableName() string { return "production_report_members" }

// LedgerBlock is one append-only hash-chained block (spec §4.1).
type LedgerBlock struct {
	ID        identity.ID `gorm:"type:char(36);primaryKey"`
	Seq       uint64      `gorm:"not null;uniqueIndex;autoIncrement:false"`
	PrevHash  string      `gorm:"type:char(128);not null"`
	Data      string      `gorm:"type:longtext;not null"`
	Nonce     uint64      `gorm:"not null"`
	Hash      string      `gorm:"type:char(128);not null;index"`
	Timestamp time.Time   `gorm:"not null"`
}

func (LedgerBlock) TableName() string { return "ledger_blocks" }

// PayrollEntry is one payroll line for a user/week (spec §3 PayrollEntry).
type PayrollEntry struct {
	ID               uint        `gorm:"primaryKey;autoIncrement"`
	UserID           identity.ID `gorm:"type:char(36);not null;index"`
	WeekStart        time.Time   `gorm:"not null;index"`
	WeekEnd          time.Time   `gorm:"not null"`
	AmountCOP        string      `gorm:"type:varchar(64);not null"`
	AmountUSDT       string      `gorm:"type:varchar(64);not null"`
	PaymentMethod    string      `gorm:"type:varchar(32);not null"`
	AccountNumber    string      `gorm:"type:varchar(128)"`
	Status           string      `gorm:"type:varchar(16);not null;index"`
	PaidAt           *time.Time
	PaymentReference string `gorm:"type:varchar(128)"`
	Notes            string `gorm:"type:varchar(256)"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (PayrollEntry) TableName() string { return "payroll_entries" }

// XPBalance is the per-user XP ledger (spec §3 XPBalance).
type XPBalance struct {
	UserID      identity.ID `gorm:"type:char(36);primaryKey"`
	XP          int64       `gorm:"not null;default:0"`
	TotalEarned int64       `gorm:"not null;default:0"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime"`
}

func (XPBalance) TableName() string { return "xp_balances" }

// Achievement is an awarded gamification achievement (supplemented from
// original_source/gamification/engine.rs).
type Achievement struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"`
	UserID      identity.ID `gorm:"type:char(36);not null;index"`
	Achievement string      `gorm:"type:varchar(128);not null"`
	AwardedAt   time.Time   `gorm:"autoCreateTime"`
}

func (Achievement) TableName() string { return "achievements" }

// WithdrawalIntent is a pending/confirmed withdrawal request.
type WithdrawalIntent struct {
	ID           identity.ID `gorm:"type:char(36);primaryKey"`
	UserID       identity.ID `gorm:"type:char(36);not null;index"`
	AmountUSDT   string      `gorm:"type:varchar(64);not null"`
	Destination  string      `gorm:"type:varchar(256);not null"`
	Status       string      `gorm:"type:varchar(16);not null;index"`
	ExternalTx   string      `gorm:"type:varchar(128)"`
	CreatedAt    time.Time   `gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime"`
}

func (WithdrawalIntent) TableName() string { return "withdrawal_intents" }

// EmergencyFlagRecord is the singleton emergency-stop durable record.
type EmergencyFlagRecord struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"`
	Active      bool        `gorm:"not null;default:false"`
	ActivatedAt *time.Time
	ActivatedBy identity.ID `gorm:"type:char(36)"`
	Reason      string      `gorm:"type:varchar(256)"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime"`
}

func (EmergencyFlagRecord) TableName() string { return "emergency_flags" }

// RateHistoryEntry records an operator rate change (C2 supplement).
type RateHistoryEntry struct {
	ID            uint        `gorm:"primaryKey;autoIncrement"`
	StudioRateCOP string      `gorm:"type:varchar(64);not null"`
	ModelRateCOP  string      `gorm:"type:varchar(64);not null"`
	ActorID       identity.ID `gorm:"type:char(36);not null"`
	SetAt         time.Time   `gorm:"autoCreateTime"`
}

func (RateHistoryEntry) TableName() string { return "rate_history_entries" }

// RewardRedemption records a catalog reward claimed against XP (C3
// supplement, spec §6 redeem()/catalog()).
type RewardRedemption struct {
	ID         uint        `gorm:"primaryKey;autoIncrement"`
	UserID     identity.ID `gorm:"type:char(36);not null;index"`
	RewardID   string      `gorm:"type:varchar(64);not null"`
	XPCost     int64       `gorm:"not null"`
	RedeemedAt time.Time   `gorm:"autoCreateTime"`
}

func (RewardRedemption) TableName() string { return "reward_redemptions" }

// DB wraps the gorm handle every component store is constructed from.
type DB struct {
	gorm *gorm.DB
}

// Open connects to MySQL and migrates every model, following
// transaction_recorder.go's NewMySQLRecorder(dsn) constructor shape.
func Open(dsn string) (*DB, error) {
	g, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := g.AutoMigrate(
		&User{},
		&WeeklyShiftAssignment{},
		&AttendanceEvent{},
		&ProductionReport{},
		&ProductionReportMember{},
		&LedgerBlock{},
		&PayrollEntry{},
		&XPBalance{},
		&Achievement{},
		&WithdrawalIntent{},
		&EmergencyFlagRecord{},
		&RateHistoryEntry{},
		&RewardRedemption{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &DB{gorm: g}, nil
}

// OpenWithGormDB wraps an already-open gorm.DB, migrating as needed.
// Mirrors transaction_recorder.go's NewMySQLRecorderWithDB.
func OpenWithGormDB(g *gorm.DB) (*DB, error) {
	if err := g.AutoMigrate(
		&User{},
		&WeeklyShiftAssignment{},
		&AttendanceEvent{},
		&ProductionReport{},
		&ProductionReportMember{},
		&LedgerBlock{},
		&PayrollEntry{},
		&XPBalance{},
		&Achievement{},
		&WithdrawalIntent{},
		&EmergencyFlagRecord{},
		&RateHistoryEntry{},
		&RewardRedemption{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &DB{gorm: g}, nil
}

// GORM returns the underlying gorm.DB for component-specific queries.
func (d *DB) GORM() *gorm.DB { return d.gorm }

// WrapGORM wraps an already-open gorm.DB without running AutoMigrate,
// for tests that drive a sqlmock-backed connection with explicit query
// expectations (grounded on transaction_recorder_test.go's
// &MySQLRecorder{db: gormDB} pattern).
func WrapGORM(g *gorm.DB) *DB {
	return &DB{gorm: g}
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("store: underlying db: %w", err)
	}
	return sqlDB.Close()
}
