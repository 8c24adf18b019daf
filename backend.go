package qsim

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

// Configuration describes a backend. Field tags name the selectors usable in
// Provider.Backends filters.
type Configuration struct {
	Name        string   `bexpr:"name" json:"backend_name"`
	Version     string   `bexpr:"version" json:"backend_version"`
	Description string   `bexpr:"description" json:"description"`
	Mode        string   `bexpr:"mode" json:"mode"`
	BasisGates  []string `bexpr:"basis_gates" json:"basis_gates"`
	NQubits     int      `bexpr:"n_qubits" json:"n_qubits"`
	MaxShots    int      `bexpr:"max_shots" json:"max_shots"`
	Simulator   bool     `bexpr:"simulator" json:"simulator"`
	Local       bool     `bexpr:"local" json:"local"`
	Conditional bool     `bexpr:"conditional" json:"conditional"`
	Memory      bool     `bexpr:"memory" json:"memory"`
}

/*
Backend executes jobs in one readout mode. Execute runs a job on the calling
goroutine; Run queues it on the shared worker pool and returns a handle.
*/
type Backend struct {
	configuration Configuration
	aggregator    *Aggregator
	pool          *Pool
	metrics       *Metrics
	config        *Config
}

func newBackend(
	configuration Configuration,
	executor *Executor,
	pool *Pool,
	metrics *Metrics,
	config *Config,
) *Backend {
	return &Backend{
		configuration: configuration,
		aggregator:    NewAggregator(executor, config, metrics),
		pool:          pool,
		metrics:       metrics,
		config:        config,
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return b.configuration.Name
}

// Configuration returns a copy of the backend description.
func (b *Backend) Configuration() Configuration {
	configuration := b.configuration
	configuration.BasisGates = append([]string(nil), b.configuration.BasisGates...)
	return configuration
}

// Metrics returns the provider-wide counters the backend records into.
func (b *Backend) Metrics() *Metrics {
	return b.metrics
}

// Execute runs job synchronously. A job without an ID is given one.
func (b *Backend) Execute(ctx context.Context, job *Job) (*JobResult, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return b.aggregator.Run(ctx, b.configuration.Name, job)
}

/*
Run queues job on the worker pool.

Parameters:
  - ctx: bounds only the enqueue; the job itself runs under the pool's context
  - job: the job, owned by the backend until its handle resolves

Returns:
  - *JobHandle: tracks the queued job
  - error: ErrPoolClosed when the provider has been closed
*/
func (b *Backend) Run(ctx context.Context, job *Job) (*JobHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.pool.ctx.Err() != nil {
		return nil, ErrPoolClosed
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	handle := &JobHandle{
		ID:      job.ID,
		Backend: b.configuration.Name,
		done:    make(chan struct{}),
	}
	handle.status.Store(int32(JobQueued))

	handle.outcome = b.pool.Schedule(job.ID, func(ctx context.Context) (*JobResult, error) {
		handle.status.Store(int32(JobRunning))
		return b.aggregator.Run(ctx, b.configuration.Name, job)
	}, b.config.ResultTTL)
	go handle.wait()

	errnie.Info("queued job %s on %s", job.ID, b.configuration.Name)
	return handle, nil
}

// JobStatus is the lifecycle state of an asynchronous job.
type JobStatus int32

const (
	JobQueued JobStatus = iota
	JobRunning
	JobDone
	JobError
)

func (s JobStatus) String() string {
	switch s {
	case JobQueued:
		return "QUEUED"
	case JobRunning:
		return "RUNNING"
	case JobDone:
		return "DONE"
	default:
		return "ERROR"
	}
}

// JobHandle tracks a job submitted with Backend.Run.
type JobHandle struct {
	ID      string
	Backend string

	status  atomic.Int32
	outcome chan Outcome

	done   chan struct{}
	mu     sync.Mutex
	result *JobResult
	err    error
}

// Status reports where the job is.
func (h *JobHandle) Status() JobStatus {
	return JobStatus(h.status.Load())
}

// Result blocks until the job finishes or ctx ends. Later calls return the
// same result.
func (h *JobHandle) Result(ctx context.Context) (*JobResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

func (h *JobHandle) wait() {
	outcome := <-h.outcome

	h.mu.Lock()
	h.result, h.err = outcome.Result, outcome.Error
	h.mu.Unlock()

	if outcome.Error != nil {
		h.status.Store(int32(JobError))
	} else {
		h.status.Store(int32(JobDone))
	}

	close(h.done)
}
