package syncer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNextBackoffDoublesUpToCeiling(t *testing.T) {
	t.Parallel()

	want := []time.Duration{
		30 * time.Second, time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute,
		16 * time.Minute, 32 * time.Minute, time.Hour, time.Hour,
	}
	var got time.Duration
	for i, w := range want {
		got = nextBackoff(got, DefaultMinBackoff, DefaultMaxBackoff)
		if got != w {
			t.Fatalf("step %d: expected %s, got %s", i, w, got)
		}
	}
}

type jobCall struct {
	trigger string
	err     error
}

func TestTriggerSupersedesInFlightRun(t *testing.T) {
	t.Parallel()

	calls := make(chan jobCall, 4)
	first := true
	s := NewScheduler(func(ctx context.Context, trigger string) error {
		if first {
			first = false
			calls <- jobCall{trigger: trigger}
			<-ctx.Done()
			calls <- jobCall{trigger: trigger, err: ctx.Err()}
			return ctx.Err()
		}
		calls <- jobCall{trigger: trigger}
		return nil
	})
	s.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	started := <-calls
	if started.trigger != TriggerScheduled {
		t.Fatalf("expected the first run to be scheduled, got %q", started.trigger)
	}
	s.Trigger()

	cancelled := <-calls
	if !errors.Is(cancelled.err, context.Canceled) {
		t.Fatalf("expected in-flight run to be cancelled, got %v", cancelled.err)
	}
	manual := <-calls
	if manual.trigger != TriggerManual {
		t.Fatalf("expected manual run next, got %q", manual.trigger)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Run to stop with context.Canceled, got %v", err)
	}
}

func TestOfflineProbeSkipsScheduledRunsOnly(t *testing.T) {
	t.Parallel()

	calls := make(chan string, 4)
	probed := make(chan struct{}, 4)
	s := NewScheduler(func(ctx context.Context, trigger string) error {
		calls <- trigger
		return nil
	})
	s.Interval = time.Hour
	s.MinBackoff = time.Hour
	s.Probe = func(context.Context) error {
		probed <- struct{}{}
		return errors.New("offline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-probed
	s.Trigger()
	if got := <-calls; got != TriggerManual {
		t.Fatalf("expected only the manual run, got %q", got)
	}
	cancel()
	<-done
	select {
	case extra := <-calls:
		t.Fatalf("unexpected extra run %q", extra)
	default:
	}
}

func TestFailedRunBacksOff(t *testing.T) {
	t.Parallel()

	calls := make(chan time.Time, 8)
	s := NewScheduler(func(ctx context.Context, trigger string) error {
		calls <- time.Now()
		return errors.New("remote unavailable")
	})
	s.Interval = time.Hour
	s.MinBackoff = 20 * time.Millisecond
	s.MaxBackoff = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var stamps []time.Time
	for len(stamps) < 3 {
		select {
		case ts := <-calls:
			stamps = append(stamps, ts)
		case <-time.After(5 * time.Second):
			t.Fatalf("expected retries after failure, got %d runs", len(stamps))
		}
	}
	cancel()
	<-done
	if gap := stamps[1].Sub(stamps[0]); gap < 20*time.Millisecond {
		t.Fatalf("retry came too early: %s", gap)
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 40*time.Millisecond {
		t.Fatalf("second retry must wait longer: %s", gap)
	}
}

func TestTCPProbe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if err := TCPProbe(srv.URL, time.Second)(context.Background()); err != nil {
		t.Fatalf("expected reachable server, got %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	if err := TCPProbe("http://"+addr, time.Second)(context.Background()); err == nil {
		t.Fatalf("expected closed port to fail")
	}
}
