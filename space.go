package qsim

import (
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

// Outcome is a finished job as held by the result space.
type Outcome struct {
	Result    *JobResult
	Error     error
	CreatedAt time.Time
	TTL       time.Duration
}

// ResultSpace holds finished job results until they expire and hands them to
// whoever awaits them, before or after they arrive.
type ResultSpace struct {
	mu      sync.Mutex
	values  map[string]Outcome
	waiting map[string][]chan Outcome
	closed  bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func newResultSpace(interval time.Duration) *ResultSpace {
	rs := &ResultSpace{
		values:  make(map[string]Outcome),
		waiting: make(map[string][]chan Outcome),
		quit:    make(chan struct{}),
	}

	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		rs.cleanup(interval)
	}()

	return rs
}

// Store records the outcome of job id and wakes every waiter.
func (rs *ResultSpace) Store(id string, result *JobResult, err error, ttl time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.closed {
		return
	}

	outcome := Outcome{
		Result:    result,
		Error:     err,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	rs.values[id] = outcome

	channels := rs.waiting[id]
	errnie.Info("storing result for job %s, %d waiting", id, len(channels))

	for _, ch := range channels {
		ch <- outcome
		close(ch)
	}
	delete(rs.waiting, id)
}

// Await returns a channel that receives the outcome of job id exactly once.
func (rs *ResultSpace) Await(id string) chan Outcome {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan Outcome, 1)

	if outcome, ok := rs.values[id]; ok {
		ch <- outcome
		close(ch)
		return ch
	}

	if rs.closed {
		ch <- Outcome{Error: ErrPoolClosed, CreatedAt: time.Now()}
		close(ch)
		return ch
	}

	rs.waiting[id] = append(rs.waiting[id], ch)
	return ch
}

func (rs *ResultSpace) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.quit:
			return
		case <-ticker.C:
			rs.mu.Lock()
			rs.cleanupExpiredValues(time.Now())
			rs.mu.Unlock()
		}
	}
}

func (rs *ResultSpace) cleanupExpiredValues(now time.Time) {
	for id, outcome := range rs.values {
		if outcome.TTL > 0 && now.Sub(outcome.CreatedAt) > outcome.TTL {
			delete(rs.values, id)
		}
	}
}

// Close stops the cleanup loop and fails every outstanding waiter with
// ErrPoolClosed.
func (rs *ResultSpace) Close() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true

	for id, channels := range rs.waiting {
		for _, ch := range channels {
			ch <- Outcome{Error: ErrPoolClosed, CreatedAt: time.Now()}
			close(ch)
		}
		delete(rs.waiting, id)
	}
	rs.mu.Unlock()

	close(rs.quit)
	rs.wg.Wait()
}
