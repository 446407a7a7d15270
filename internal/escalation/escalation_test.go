package escalation

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 256, cfg.BufferSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "-1000000", cfg.Strike3PenaltyCOP)
}

func TestHalfPayKey_IncludesUserID(t *testing.T) {
	id := identity.NewID()
	key := halfPayKey(id)
	assert.Contains(t, key, "penalty:half_today:")
	assert.Contains(t, key, id.String())
}

func TestErrString(t *testing.T) {
	assert.Equal(t, "", errString(nil))
	assert.Equal(t, "boom", errString(errors.New("boom")))
}

func TestEnqueue_DropsTaskWhenBufferFull(t *testing.T) {
	log := zerolog.New(io.Discard)
	p := New(log, nil, nil, nil, nil, Config{BufferSize: 1, MaxRetries: 0, Workers: 1})

	p.Enqueue(Task{UserID: identity.NewID(), WeekID: "2025-W07", Strikes: 1})
	p.Enqueue(Task{UserID: identity.NewID(), WeekID: "2025-W07", Strikes: 1})

	assert.Equal(t, int64(2), p.received)
	assert.Len(t, p.taskCh, 1)
}
