// Package alerting sends operator-facing incident alerts via the
// PagerDuty Events API v2, redomained from
// observability/pagerduty.go's provider-failure severities to the
// core's own incident classes: escalation failures, chain-verification
// failures, and emergency-freeze activations.
package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds PagerDuty Events API v2 configuration.
type Config struct {
	RoutingKey  string
	Enabled     bool
	SourceName  string
	HTTPTimeout time.Duration
}

// DefaultConfig returns conservative defaults (disabled until a routing
// key is configured).
func DefaultConfig() Config {
	return Config{
		RoutingKey:  "",
		Enabled:     false,
		SourceName:  "sweet-models-core",
		HTTPTimeout: 10 * time.Second,
	}
}

// Severity maps to a PagerDuty alert severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Incident classes the core raises.
const (
	IncidentEscalationFailed       = "escalation_failed"
	IncidentChainVerificationFailed = "chain_verification_failed"
	IncidentEmergencyFreezeActivated = "emergency_freeze_activated"
)

// Client sends incidents to PagerDuty's Events API v2.
type Client struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

const eventsURL = "https://events.pagerduty.com/v2/enqueue"

// New creates an alerting Client.
func New(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger.With().Str("component", "alerting").Logger(),
	}
}

// Trigger fires an incident. When alerting is disabled (no routing
// key configured), the incident is logged locally and the call
// succeeds — alerting is a best-effort operator notification, never a
// reason to fail the business operation that triggered it (spec §7).
func (c *Client) Trigger(severity Severity, incidentClass, summary, dedupKey string, details map[string]interface{}) error {
	if !c.cfg.Enabled || c.cfg.RoutingKey == "" {
		c.logger.Warn().Str("class", incidentClass).Str("summary", summary).Msg("alerting disabled — incident logged only")
		return nil
	}

	payload := map[string]interface{}{
		"routing_key":  c.cfg.RoutingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]interface{}{
			"summary":        summary,
			"severity":       string(severity),
			"source":         c.cfg.SourceName,
			"component":      "core",
			"group":          "back-office",
			"class":          incidentClass,
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"custom_details": details,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerting: marshal: %w", err)
	}

	resp, err := c.client.Post(eventsURL, "application/json", bytes.NewReader(body))
	if err != nil {
		c.logger.Error().Err(err).Str("dedup_key", dedupKey).Msg("incident API call failed")
		return fmt.Errorf("alerting: API call failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		c.logger.Error().Int("status", resp.StatusCode).Str("dedup_key", dedupKey).Msg("incident API error")
		return fmt.Errorf("alerting: HTTP %d", resp.StatusCode)
	}

	c.logger.Info().Str("dedup_key", dedupKey).Str("severity", string(severity)).Msg("incident triggered")
	return nil
}
