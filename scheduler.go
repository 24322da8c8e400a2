package formstate

import (
	"context"
	"sync"
	"time"
)

// scheduler coalesces save requests for one form. A new request cancels the
// pending one and re-arms the timer; flush runs whatever is pending now.
type scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	pending bool
	closed  bool

	run     func(ctx context.Context) error
	onError func(error)
}

func newScheduler(delay time.Duration, run func(context.Context) error, onError func(error)) *scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &scheduler{delay: delay, run: run, onError: onError}
}

// request arms the debounce timer. The save runs on the timer goroutine with
// ctx detached from cancellation.
func (s *scheduler) request(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = true
	detached := context.WithoutCancel(ctx)
	s.timer = time.AfterFunc(s.delay, func() {
		if !s.claim(gen) {
			return
		}
		s.execute(detached)
	})
}

// claim reports whether gen is still the latest request and marks it taken.
func (s *scheduler) claim(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || !s.pending {
		return false
	}
	s.pending = false
	s.timer = nil
	return true
}

func (s *scheduler) execute(ctx context.Context) {
	if err := s.run(ctx); err != nil && s.onError != nil {
		s.onError(err)
	}
}

// flush runs the pending save synchronously. It reports whether one ran.
func (s *scheduler) flush(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed || !s.pending {
		s.mu.Unlock()
		return false, nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = false
	s.mu.Unlock()
	return true, s.run(ctx)
}

// cancel drops the pending save without running it.
func (s *scheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// stop cancels the pending save and rejects further requests.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
