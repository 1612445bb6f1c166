package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/service"
)

var (
	// ErrSchedulerRunning is returned by Start on an already started scheduler.
	ErrSchedulerRunning = errors.New("escalation scheduler already running")
	// ErrStopTimeout reports that the in-flight sweep outlived the grace
	// period and was cancelled.
	ErrStopTimeout = errors.New("escalation sweep cancelled after grace period")
)

// DefaultLeaseKey is the Redis key replicas compete for before sweeping.
const DefaultLeaseKey = "ticket-engine:escalation-sweep"

// Escalator runs one sweep.
type Escalator interface {
	EscalateOverdue(ctx context.Context, threshold time.Duration) (*service.EscalationResult, error)
}

// LeaseProvider hands out a cross-replica lease. A nil lease with a nil error
// means another holder owns it.
type LeaseProvider interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (*persistence.Lease, error)
}

// SweepRecorder receives run outcomes.
type SweepRecorder interface {
	RecordSweep(touched int, duration time.Duration, err error)
	RecordSweepSkipped()
}

// EscalationSchedulerOptions configures the scheduler. Lease and Metrics are
// optional.
type EscalationSchedulerOptions struct {
	Escalator Escalator
	Lease     LeaseProvider
	LeaseKey  string
	LeaseTTL  time.Duration
	Metrics   SweepRecorder
	Logger    *zap.Logger
	StopGrace time.Duration
}

// EscalationScheduler runs the escalation sweep once on Start and then every
// interval, from a single goroutine so runs never overlap.
type EscalationScheduler struct {
	escalator Escalator
	lease     LeaseProvider
	leaseKey  string
	leaseTTL  time.Duration
	metrics   SweepRecorder
	logger    *zap.Logger
	stopGrace time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewEscalationScheduler builds a stopped scheduler.
func NewEscalationScheduler(opts EscalationSchedulerOptions) *EscalationScheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	key := opts.LeaseKey
	if key == "" {
		key = DefaultLeaseKey
	}
	return &EscalationScheduler{
		escalator: opts.Escalator,
		lease:     opts.Lease,
		leaseKey:  key,
		leaseTTL:  opts.LeaseTTL,
		metrics:   opts.Metrics,
		logger:    logger.Named("escalation"),
		stopGrace: opts.StopGrace,
	}
}

// Start launches the loop. Cancelling ctx stops scheduling further runs but
// does not interrupt one in flight; use Stop for a bounded shutdown. Once the
// loop has exited the scheduler can be started again.
func (s *EscalationScheduler) Start(ctx context.Context, interval, threshold time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("escalation interval must be positive, got %s", interval)
	}
	if s.escalator == nil {
		return errors.New("escalation scheduler has no escalator")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.cancel = cancel

	s.logger.Info("escalation scheduler started",
		zap.Duration("interval", interval),
		zap.Duration("threshold", threshold))
	go s.loop(ctx, runCtx, interval, threshold, s.stopCh, s.done)
	return nil
}

// Stop requests shutdown and waits up to the grace period for the in-flight
// sweep. Past the grace period (or when ctx ends) the sweep's context is
// cancelled, which rolls its transaction back, and ErrStopTimeout is returned.
func (s *EscalationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done, cancel := s.done, s.cancel
	s.mu.Unlock()

	var grace <-chan time.Time
	if s.stopGrace > 0 {
		timer := time.NewTimer(s.stopGrace)
		defer timer.Stop()
		grace = timer.C
	}

	select {
	case <-done:
		cancel()
		s.logger.Info("escalation scheduler stopped")
		return nil
	case <-grace:
	case <-ctx.Done():
	}

	s.logger.Warn("escalation sweep still running; cancelling", zap.Duration("grace", s.stopGrace))
	cancel()
	select {
	case <-done:
		return ErrStopTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}
}

func (s *EscalationScheduler) loop(parent, runCtx context.Context, interval, threshold time.Duration, stop <-chan struct{}, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		// parent cancellation ends the loop without Stop; allow a restart
		if s.running && s.done == done {
			s.running = false
			s.cancel()
			s.logger.Info("escalation scheduler stopped", zap.Error(parent.Err()))
		}
		s.mu.Unlock()
		close(done)
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(runCtx, threshold)
	for {
		select {
		case <-stop:
			return
		case <-parent.Done():
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.runOnce(runCtx, threshold)
		}
	}
}

func (s *EscalationScheduler) runOnce(ctx context.Context, threshold time.Duration) {
	sweepErr := errors.New("escalation sweep did not finish")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("escalation sweep panicked", zap.Any("panic", r))
			if s.metrics != nil {
				s.metrics.RecordSweep(0, 0, fmt.Errorf("panic: %v", r))
			}
		}
	}()

	if s.lease != nil {
		lease, err := s.lease.AcquireLease(ctx, s.leaseKey, s.leaseTTL)
		switch {
		case err != nil:
			// the sweep is idempotent, so a duplicate run is harmless
			s.logger.Warn("escalation lease unavailable; sweeping without it", zap.Error(err))
		case lease == nil:
			s.logger.Debug("escalation sweep skipped; lease held elsewhere")
			if s.metrics != nil {
				s.metrics.RecordSweepSkipped()
			}
			return
		default:
			// a successful sweep keeps the lease until its TTL so the other
			// replicas skip this period; a failed one hands it back for a retry
			defer func() {
				if sweepErr == nil {
					return
				}
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("release escalation lease", zap.Error(err))
				}
			}()
		}
	}

	started := time.Now()
	result, err := s.escalator.EscalateOverdue(ctx, threshold)
	elapsed := time.Since(started)
	sweepErr = err

	touched := 0
	if result != nil {
		touched = len(result.Tickets)
	}
	if s.metrics != nil {
		s.metrics.RecordSweep(touched, elapsed, err)
	}
	if err != nil {
		s.logger.Error("escalation sweep failed", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	s.logger.Info("escalation sweep finished", zap.Int("escalated", touched), zap.Duration("duration", elapsed))
}
