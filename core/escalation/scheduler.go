package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

var (
	ErrAlreadyStarted  = errors.New("escalation scheduler already started")
	ErrInvalidInterval = errors.New("escalation interval must be positive")
)

type (
	// Sweeper escalates the doubts that stayed open for too long.
	Sweeper interface {
		EscalateStale(ctx context.Context) (escalated, failed int, err error)
	}

	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	Options struct {
		Interval time.Duration
		// RunOnStart sweeps once as soon as the scheduler starts.
		RunOnStart bool
		// NewTicker defaults to a time.Ticker.
		NewTicker func(d time.Duration) Ticker
	}

	// Scheduler runs the escalation sweep periodically, from Start until Stop.
	Scheduler struct {
		sweeper   Sweeper
		clock     core.Clock
		logger    core.Logger
		metrics   core.Metrics
		interval  time.Duration
		runOnBoot bool
		newTicker func(d time.Duration) Ticker

		mu     sync.Mutex
		cancel context.CancelFunc
		done   chan struct{}
	}
)

type timeTicker struct{ t *time.Ticker }

func (tt timeTicker) C() <-chan time.Time { return tt.t.C }
func (tt timeTicker) Stop()               { tt.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

func NewScheduler(sweeper Sweeper, clock core.Clock, logger core.Logger, metrics core.Metrics, opts Options) *Scheduler {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	return &Scheduler{
		sweeper:   sweeper,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		interval:  opts.Interval,
		runOnBoot: opts.RunOnStart,
		newTicker: opts.NewTicker,
	}
}

// Start launches the background loop. It returns immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrAlreadyStarted
	}
	if s.interval <= 0 {
		return ErrInvalidInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.newTicker(s.interval)

	go s.loop(ctx, ticker, s.done)
	s.logger.Info(fmt.Sprintf("escalation scheduler started (every %s)", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	if s.runOnBoot {
		_, _ = s.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			_, _ = s.RunOnce(ctx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight sweep to return.
// Stopping a scheduler that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("escalation scheduler stopped")
}

// RunOnce performs a single sweep and returns the number of escalated doubts.
// A failed sweep is logged; the next tick retries it.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := s.clock.Now()
	escalated, failed, err := s.sweeper.EscalateStale(ctx)
	s.metrics.SweepCompleted(escalated, failed, s.clock.Now().Sub(start))

	if err != nil {
		s.logger.Error(fmt.Sprintf("escalation sweep failed: %v", err), err)
		return escalated, err
	}
	if escalated > 0 || failed > 0 {
		s.logger.Info(fmt.Sprintf("escalation sweep: %d doubt(s) escalated, %d failed", escalated, failed))
	}
	return escalated, nil
}
