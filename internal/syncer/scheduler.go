package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/neurothrive/thrive/internal/logging"
)

const (
	DefaultInterval   = 15 * time.Minute
	DefaultMinBackoff = 30 * time.Second
	DefaultMaxBackoff = time.Hour
)

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Scheduler runs Job every Interval while the probe reports connectivity.
// Failed runs back off exponentially from MinBackoff up to MaxBackoff, then
// the schedule returns to Interval after a success.
type Scheduler struct {
	Interval   time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Probe      func(ctx context.Context) error
	Job        func(ctx context.Context, trigger string) error
	Logger     *slog.Logger

	triggers chan struct{}

	mu        sync.Mutex
	cancelRun context.CancelFunc
}

func NewScheduler(job func(ctx context.Context, trigger string) error) *Scheduler {
	return &Scheduler{
		Interval:   DefaultInterval,
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
		Job:        job,
		triggers:   make(chan struct{}, 1),
	}
}

// Trigger asks for an immediate run. Any run in flight is cancelled and any
// pending one is replaced.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()
	select {
	case s.triggers <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. The first scheduled run starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := logging.OrDiscard(s.Logger)
	timer := time.NewTimer(0)
	defer timer.Stop()

	var backoff time.Duration
	for {
		trigger := TriggerScheduled
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.triggers:
			trigger = TriggerManual
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if trigger == TriggerScheduled && s.Probe != nil {
			if err := s.Probe(ctx); err != nil {
				logger.Info("sync_skipped_offline", "error", err.Error())
				timer.Reset(s.minBackoff())
				continue
			}
		}

		err := s.runOnce(ctx, trigger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err == nil:
			backoff = 0
			timer.Reset(s.interval())
		case errors.Is(err, context.Canceled):
			// Superseded by Trigger; the queued trigger runs next.
			logger.Info("sync_superseded", "trigger", trigger)
			timer.Reset(s.interval())
		default:
			backoff = nextBackoff(backoff, s.minBackoff(), s.maxBackoff())
			logger.Warn("sync_failed", "trigger", trigger, "retry_in", backoff.String(), "error", err.Error())
			timer.Reset(backoff)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelRun = nil
		s.mu.Unlock()
		cancel()
	}()
	return s.Job(runCtx, trigger)
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Scheduler) minBackoff() time.Duration {
	if s.MinBackoff > 0 {
		return s.MinBackoff
	}
	return DefaultMinBackoff
}

func (s *Scheduler) maxBackoff() time.Duration {
	if s.MaxBackoff > 0 {
		return s.MaxBackoff
	}
	return DefaultMaxBackoff
}

func nextBackoff(prev, floor, ceiling time.Duration) time.Duration {
	if prev <= 0 {
		return floor
	}
	next := prev * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

// TCPProbe reports connectivity by dialing the API host.
func TCPProbe(baseURL string, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		u, err := url.Parse(baseURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid base URL %q", baseURL)
		}
		port := u.Port()
		if port == "" {
			port = "443"
			if u.Scheme == "http" {
				port = "80"
			}
		}
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
		if err != nil {
			return fmt.Errorf("dial %s: %w", u.Hostname(), err)
		}
		return conn.Close()
	}
}
