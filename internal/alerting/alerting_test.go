package alerting

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_DisabledUntilRoutingKeySet(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.RoutingKey)
}

func TestTrigger_DisabledClientSucceedsWithoutCallingOut(t *testing.T) {
	c := New(Config{Enabled: false}, zerolog.New(io.Discard))

	err := c.Trigger(SeverityWarning, IncidentEscalationFailed, "test summary", "dedup-1", map[string]interface{}{
		"user_id": "abc",
	})
	assert.NoError(t, err)
}

func TestTrigger_EnabledWithoutRoutingKeyStillSucceeds(t *testing.T) {
	c := New(Config{Enabled: true, RoutingKey: ""}, zerolog.New(io.Discard))

	err := c.Trigger(SeverityCritical, IncidentChainVerificationFailed, "chain broke", "dedup-2", nil)
	assert.NoError(t, err)
}
