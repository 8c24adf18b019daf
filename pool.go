package qsim

import (
	"context"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

// task is one job waiting for a worker.
type task struct {
	id  string
	fn  func(ctx context.Context) (*JobResult, error)
	ttl time.Duration
}

/*
Pool runs jobs asynchronously on a fixed set of workers. Idle workers park
their task channel on the pool; the manager hands each queued task to the next
idle worker, however long that takes. Only a full queue fails a job, with
ErrSchedulingTimeout once SchedulingTimeout passes. Finished jobs land in a
ResultSpace keyed by job ID.
*/
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan task
	tasks      chan task
	space      *ResultSpace
	metrics    *Metrics
	config     *Config
	workerMu   sync.Mutex
	workerList []*Worker
	closeOnce  sync.Once
}

// NewPool starts config.Workers workers. A nil metrics gets a private one.
func NewPool(ctx context.Context, config *Config, metrics *Metrics) *Pool {
	if config == nil {
		config = NewConfig()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:        ctx,
		cancel:     cancel,
		workers:    make(chan chan task, config.Workers),
		tasks:      make(chan task, config.Workers*10),
		space:      newResultSpace(time.Minute),
		metrics:    metrics,
		config:     config,
		workerList: make([]*Worker, 0, config.Workers),
	}

	for i := 0; i < config.Workers; i++ {
		p.startWorker()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.collectMetrics()
	}()

	return p
}

func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.tasks:
			select {
			case <-p.ctx.Done():
				return
			case worker := <-p.workers:
				select {
				case worker <- t:
				case <-p.ctx.Done():
					return
				}
			}
		}
	}
}

func (p *Pool) collectMetrics() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.metrics.mu.Lock()
			p.metrics.JobQueueSize = len(p.tasks)
			p.metrics.ActiveWorkers = p.metrics.WorkerCount - len(p.workers)
			p.metrics.mu.Unlock()
		}
	}
}

/*
Schedule queues fn under id and returns a channel that receives its outcome.

Parameters:
  - id: the job ID results are stored under
  - fn: the work, given the pool's context
  - ttl: how long the result is kept once stored

Returns:
  - chan Outcome: receives exactly one Outcome
*/
func (p *Pool) Schedule(id string, fn func(ctx context.Context) (*JobResult, error), ttl time.Duration) chan Outcome {
	if p.ctx.Err() != nil {
		return failed(ErrPoolClosed)
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.config.schedulingTimeout())
	defer cancel()

	// Register the waiter first so a fast worker cannot store before it.
	result := p.space.Await(id)

	select {
	case p.tasks <- task{id: id, fn: fn, ttl: ttl}:
		return result
	case <-ctx.Done():
		if p.ctx.Err() != nil {
			return failed(ErrPoolClosed)
		}
		errnie.Info("job queue full, dropping job %s", id)
		p.metrics.recordSchedulingFailure()
		p.space.Store(id, nil, ErrSchedulingTimeout, ttl)
		return result
	}
}

func failed(err error) chan Outcome {
	ch := make(chan Outcome, 1)
	ch <- Outcome{Error: err, CreatedAt: time.Now()}
	close(ch)
	return ch
}

func (p *Pool) startWorker() {
	worker := &Worker{
		pool:  p,
		tasks: make(chan task),
	}

	p.workerMu.Lock()
	p.workerList = append(p.workerList, worker)
	p.workerMu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	count := p.metrics.WorkerCount
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		worker.run(p.ctx)
	}()

	errnie.Info("started worker, total workers: %d", count)
}

// Close stops every worker, waits for running jobs to observe cancellation
// and fails any job still awaited with ErrPoolClosed.
func (p *Pool) Close() {
	if p == nil {
		return
	}

	p.closeOnce.Do(func() {
		errnie.Info("closing worker pool")

		p.cancel()
		p.wg.Wait()
		p.space.Close()

		p.workerMu.Lock()
		p.workerList = nil
		p.workerMu.Unlock()
	})
}
