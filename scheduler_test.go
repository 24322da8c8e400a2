package formstate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSchedulerCoalescesRequests(t *testing.T) {
	var runs atomic.Int32
	s := newScheduler(20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	defer s.stop()

	for i := 0; i < 5; i++ {
		s.request(context.Background())
	}
	waitFor(t, func() bool { return runs.Load() == 1 })

	time.Sleep(60 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected a single coalesced run, got %d", got)
	}
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending {
		t.Fatalf("expected nothing pending after the run")
	}
}

func TestSchedulerFlushRunsPendingNow(t *testing.T) {
	var runs atomic.Int32
	s := newScheduler(time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	defer s.stop()

	if ran, _ := s.flush(context.Background()); ran {
		t.Fatalf("expected no run without a pending request")
	}
	s.request(context.Background())
	ran, err := s.flush(context.Background())
	if !ran || err != nil {
		t.Fatalf("expected flush to run, ran=%v err=%v", ran, err)
	}
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
}

func TestSchedulerDetachesRequestContext(t *testing.T) {
	done := make(chan error, 1)
	s := newScheduler(10*time.Millisecond, func(ctx context.Context) error {
		done <- ctx.Err()
		return nil
	}, nil)
	defer s.stop()

	ctx, cancel := context.WithCancel(context.Background())
	s.request(ctx)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected detached context, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced run never happened")
	}
}

func TestSchedulerReportsErrors(t *testing.T) {
	boom := errors.New("quota")
	reported := make(chan error, 1)
	s := newScheduler(10*time.Millisecond, func(context.Context) error {
		return boom
	}, func(err error) { reported <- err })
	defer s.stop()

	s.request(context.Background())
	select {
	case err := <-reported:
		if !errors.Is(err, boom) {
			t.Fatalf("expected reported error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("error was not reported")
	}
}

func TestSchedulerCancelAndStop(t *testing.T) {
	var runs atomic.Int32
	s := newScheduler(20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)

	s.request(context.Background())
	s.cancel()
	s.stop()
	s.request(context.Background())

	time.Sleep(60 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected no runs after cancel and stop, got %d", got)
	}
}

func TestSchedulerStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var runs atomic.Int32
	s := newScheduler(5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	s.request(context.Background())
	waitFor(t, func() bool { return runs.Load() == 1 })

	s.request(context.Background())
	s.stop()
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected stop to drop the pending run, got %d runs", got)
	}
}
