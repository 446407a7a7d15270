// Package escalation runs the async, best-effort strike-escalation task
// pipeline C4 hands off after a late check-in (spec §4.4, §9's
// decoupling redesign note: "escalation is a downstream task with its
// own retry policy... decoupled from the check-in response").
//
// Grounded on analytics/ingestion.go's bounded-channel, backpressure,
// retry, graceful-shutdown pipeline, redomained from flushing analytics
// batches to ClickHouse to applying attendance strike side-effects.
package escalation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/alerting"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/gamification"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

// Task is one strike-escalation unit of work.
type Task struct {
	UserID  identity.ID
	WeekID  string
	Strikes int64
	At      time.Time
}

// PayrollSink is the subset of the payout engine escalation needs —
// downgrading the week's pending entries and inserting the strike-3
// penalty (spec §4.4 escalation table).
type PayrollSink interface {
	DowngradePendingWeek(userID identity.ID, weekID string, factor float64) error
	CreatePenalty(userID identity.ID, weekID string, amountCOP string, reason string) error
}

// Config controls buffering and retry behavior.
type Config struct {
	BufferSize        int
	MaxRetries        int
	RetryDelay        time.Duration
	Workers           int
	Strike3PenaltyCOP string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:        256,
		MaxRetries:        3,
		RetryDelay:        500 * time.Millisecond,
		Workers:           2,
		Strike3PenaltyCOP: "-1000000",
	}
}

// Pipeline is the async escalation engine.
type Pipeline struct {
	logger  zerolog.Logger
	config  Config
	xp      *gamification.Engine
	payroll PayrollSink
	cache   *cache.Client
	alerts  *alerting.Client

	taskCh chan Task
	wg     sync.WaitGroup
	cancel context.CancelFunc

	received int64
	applied  int64
	failed   int64
}

// New constructs an escalation Pipeline.
func New(logger zerolog.Logger, xp *gamification.Engine, payroll PayrollSink, c *cache.Client, alerts *alerting.Client, config ...Config) *Pipeline {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Pipeline{
		logger:  logger.With().Str("component", "escalation-pipeline").Logger(),
		config:  cfg,
		xp:      xp,
		payroll: payroll,
		cache:   c,
		alerts:  alerts,
		taskCh:  make(chan Task, cfg.BufferSize),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info().Int("workers", p.config.Workers).Int("buffer_size", p.config.BufferSize).Msg("escalation pipeline started")
}

// Stop gracefully drains and stops the pipeline.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.taskCh)
	p.wg.Wait()
	p.logger.Info().
		Int64("received", atomic.LoadInt64(&p.received)).
		Int64("applied", atomic.LoadInt64(&p.applied)).
		Int64("failed", atomic.LoadInt64(&p.failed)).
		Msg("escalation pipeline stopped")
}

// Enqueue submits a task non-blocking; if the buffer is full the task
// is dropped and a warning is logged (spec §4.4: "If any downstream
// step fails... still succeeds... reported via a warning").
func (p *Pipeline) Enqueue(t Task) {
	atomic.AddInt64(&p.received, 1)
	select {
	case p.taskCh <- t:
	default:
		p.logger.Warn().Str("user_id", t.UserID.String()).Msg("escalation queue full — task dropped")
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.taskCh {
		p.processWithRetry(ctx, task)
	}
}

func (p *Pipeline) processWithRetry(ctx context.Context, task Task) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := p.apply(task); err != nil {
			lastErr = err
			continue
		}
		atomic.AddInt64(&p.applied, 1)
		return
	}

	atomic.AddInt64(&p.failed, 1)
	p.logger.Warn().Err(lastErr).Str("user_id", task.UserID.String()).Int64("strikes", task.Strikes).Msg("escalation exhausted retries")
	if p.alerts != nil {
		_ = p.alerts.Trigger(alerting.SeverityWarning, alerting.IncidentEscalationFailed,
			"strike escalation failed after retries", "escalation:"+task.UserID.String()+":"+task.WeekID,
			map[string]interface{}{"user_id": task.UserID.String(), "strikes": task.Strikes, "error": errString(lastErr)})
	}
}

// apply performs the escalation action for the task's strike count
// (spec §4.4's escalation table).
func (p *Pipeline) apply(task Task) error {
	switch {
	case task.Strikes == 1:
		if err := p.cache.Set(context.Background(), halfPayKey(task.UserID), "1", 24*time.Hour); err != nil {
			return err
		}
		_, err := p.xp.Burn(task.UserID, gamification.ReasonStrike1)
		return err
	case task.Strikes == 2:
		if _, err := p.xp.Burn(task.UserID, gamification.ReasonStrike2); err != nil {
			return err
		}
		return p.payroll.DowngradePendingWeek(task.UserID, task.WeekID, 0.50)
	default:
		if _, err := p.xp.Burn(task.UserID, gamification.ReasonStrike3); err != nil {
			return err
		}
		return p.payroll.CreatePenalty(task.UserID, task.WeekID, p.config.Strike3PenaltyCOP, "STRIKE_3")
	}
}

func halfPayKey(userID identity.ID) string {
	return "penalty:half_today:" + userID.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
