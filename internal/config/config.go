// Package config holds environment-driven configuration for the core
// server, following the teacher gateway's getEnv/getEnvInt/getEnvBool
// pattern and extending it with studio-specific constants.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable the core server needs at boot.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Database
	DatabaseDSN string

	// Redis
	RedisURL string

	// Logging
	LogLevel string

	// Body limits
	MaxBodyBytes int64

	// Auth / rate limiting
	APIKeyHeader     string
	RateLimitEnabled bool
	RateLimitRPM     int

	// Studio geofence (spec §4.4), grounded on original_source's
	// attendance.rs constants.
	StudioLat         float64
	StudioLon         float64
	StudioRadiusMeters float64
	GraceMinutes      int

	// Production/payout constants (spec §4.5), grounded on
	// original_source's calculate_payout.rs / engine/core.rs.
	SpreadCOP         decimal.Decimal
	ModelShare        decimal.Decimal
	DefaultTokenUSD   decimal.Decimal
	GroupQuotaTokens  decimal.Decimal

	// Weekly group goal bonus (spec §4.5.3), grounded on
	// original_source's finance/calculate_payout.rs group-bonus tier.
	GroupGoalBonusTokens decimal.Decimal
	GroupGoalBonusCOP    decimal.Decimal

	// Penalty amounts (spec §4.4/§4.5), grounded on
	// original_source's finance/penalties.rs.
	Strike3PenaltyCOP        decimal.Decimal
	DirtyRoomPenaltyCOP      decimal.Decimal
	GroupShortfallPenaltyCOP decimal.Decimal
	LowProductionPenaltyCOP  decimal.Decimal
	LowProductionThreshold   decimal.Decimal

	// Gamification burn rates (spec §4.3/§4.4)
	BurnRateStrike1      decimal.Decimal
	BurnRateStrike2      decimal.Decimal
	BurnRateStrike3      decimal.Decimal
	BurnRateDirtyRoom    decimal.Decimal
	BurnRateLowProduction decimal.Decimal

	// Escalation pipeline
	EscalationQueueSize int
	EscalationRetries   int

	// Realtime hub
	HubBroadcastBuffer int

	// Telemetry ingest trust boundary (spec §7 "Telemetry trust
	// boundary")
	TelemetryAllowedPlatforms  []string
	TelemetryDedupeWindow      time.Duration
	TelemetryRateLimitPerMin   int
}

// Load reads configuration from environment variables and an optional
// .env file, filling in the spec's defaults where unset.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("CORE_GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Addr:            getEnv("CORE_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		DatabaseDSN:     getEnv("DATABASE_DSN", "core:core@tcp(127.0.0.1:3306)/core?parseTime=true"),
		RedisURL:        getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MaxBodyBytes:    int64(getEnvInt("CORE_MAX_BODY_BYTES", 1*1024*1024)),

		APIKeyHeader:     getEnv("CORE_AUTH_HEADER", "Authorization"),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPM:     getEnvInt("RATE_LIMIT_RPM", 300),

		StudioLat:          getEnvFloat("STUDIO_LAT", 4.7010),
		StudioLon:          getEnvFloat("STUDIO_LON", -74.0420),
		StudioRadiusMeters: getEnvFloat("STUDIO_RADIUS_METERS", 50.0),
		GraceMinutes:       getEnvInt("STUDIO_GRACE_MINUTES", 15),

		SpreadCOP:        getEnvDecimal("SPREAD_COP", "300"),
		ModelShare:       getEnvDecimal("MODEL_SHARE", "0.60"),
		DefaultTokenUSD:  getEnvDecimal("DEFAULT_TOKEN_USD_VALUE", "0.05"),
		GroupQuotaTokens: getEnvDecimal("GROUP_QUOTA_TOKENS", "1500"),

		GroupGoalBonusTokens: getEnvDecimal("GROUP_GOAL_BONUS_TOKENS", "3000"),
		GroupGoalBonusCOP:    getEnvDecimal("GROUP_GOAL_BONUS_COP", "100000"),

		Strike3PenaltyCOP:        getEnvDecimal("STRIKE3_PENALTY_COP", "1000000"),
		DirtyRoomPenaltyCOP:      getEnvDecimal("DIRTY_ROOM_PENALTY_COP", "500000"),
		GroupShortfallPenaltyCOP: getEnvDecimal("GROUP_SHORTFALL_PENALTY_COP", "50000"),
		LowProductionPenaltyCOP:  getEnvDecimal("LOW_PRODUCTION_PENALTY_COP", "50000"),
		LowProductionThreshold:   getEnvDecimal("LOW_PRODUCTION_THRESHOLD_TOKENS", "1500"),

		BurnRateStrike1:       getEnvDecimal("BURN_RATE_STRIKE1", "0.10"),
		BurnRateStrike2:       getEnvDecimal("BURN_RATE_STRIKE2", "0.30"),
		BurnRateStrike3:       getEnvDecimal("BURN_RATE_STRIKE3", "1.00"),
		BurnRateDirtyRoom:     getEnvDecimal("BURN_RATE_DIRTY_ROOM", "0.20"),
		BurnRateLowProduction: getEnvDecimal("BURN_RATE_LOW_PRODUCTION", "0.05"),

		EscalationQueueSize: getEnvInt("ESCALATION_QUEUE_SIZE", 256),
		EscalationRetries:   getEnvInt("ESCALATION_MAX_RETRIES", 3),

		HubBroadcastBuffer: getEnvInt("HUB_BROADCAST_BUFFER", 128),

		TelemetryAllowedPlatforms: getEnvList("TELEMETRY_ALLOWED_PLATFORMS", []string{"CAM4", "STRIPCHAT", "CHATURBATE", "BONGACAMS"}),
		TelemetryDedupeWindow:     time.Duration(getEnvInt("TELEMETRY_DEDUPE_WINDOW_SEC", 30)) * time.Second,
		TelemetryRateLimitPerMin:  getEnvInt("TELEMETRY_RATE_LIMIT_PER_MIN", 120),
	}
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}
