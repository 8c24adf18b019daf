package qsim

import (
	"context"
	"time"

	"github.com/theapemachine/errnie"
	"golang.org/x/sync/errgroup"
)

/*
Aggregator runs every experiment of a job through an Executor and wraps the
results with job-level metadata. Results keep the order of the input
experiments whether they ran sequentially or in parallel.
*/
type Aggregator struct {
	executor *Executor
	config   *Config
	metrics  *Metrics
}

// NewAggregator returns an aggregator. metrics may be nil.
func NewAggregator(executor *Executor, config *Config, metrics *Metrics) *Aggregator {
	if config == nil {
		config = NewConfig()
	}

	return &Aggregator{
		executor: executor,
		config:   config,
		metrics:  metrics,
	}
}

/*
Run executes the job and assembles its result.

Under FailAbort the first failed experiment stops the job: Run returns that
error and no partial result. Under FailContinue every experiment runs, failed
ones are recorded with status ERROR, and the job's Success is the logical AND
of its experiments' Success.

Parameters:
  - ctx: cancels the remaining experiments
  - backend: name stamped into the result
  - job: the experiments and their shared defaults

Returns:
  - *JobResult: the assembled result, nil on abort
  - error: the aborting experiment's error
*/
func (a *Aggregator) Run(ctx context.Context, backend string, job *Job) (*JobResult, error) {
	start := time.Now()
	errnie.Info("job %s: running %d experiments on %s", job.ID, len(job.Experiments), backend)

	results := make([]ExperimentResult, len(job.Experiments))

	var err error
	if a.config.Parallelism > 1 && len(job.Experiments) > 1 {
		err = a.runParallel(ctx, job, results)
	} else {
		err = a.runSequential(ctx, job, results)
	}

	elapsed := time.Since(start)

	if err != nil {
		a.recordJob(elapsed, false)
		return nil, err
	}

	success := true
	for _, result := range results {
		success = success && result.Success
	}

	a.recordJob(elapsed, success)
	errnie.Info("job %s: finished in %s, success=%t", job.ID, elapsed, success)

	return &JobResult{
		JobID:     job.ID,
		Backend:   backend,
		Status:    StatusCompleted,
		Success:   success,
		TimeTaken: elapsed.Seconds(),
		Results:   results,
	}, nil
}

func (a *Aggregator) runSequential(ctx context.Context, job *Job, results []ExperimentResult) error {
	for i := range job.Experiments {
		if err := a.runOne(ctx, job, i, results); err != nil {
			return err
		}
	}
	return nil
}

// runParallel holds at most Parallelism states at a time.
func (a *Aggregator) runParallel(ctx context.Context, job *Job, results []ExperimentResult) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Parallelism)

	for i := range job.Experiments {
		g.Go(func() error {
			return a.runOne(ctx, job, i, results)
		})
	}

	return g.Wait()
}

// runOne stores the i-th result and returns an error only when the policy
// says the job should stop.
func (a *Aggregator) runOne(ctx context.Context, job *Job, i int, results []ExperimentResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := a.executor.Run(ctx, &job.Experiments[i], job.Config)
	results[i] = result

	if a.metrics != nil {
		a.metrics.recordExperiment(result)
	}

	if err != nil && a.config.FailurePolicy != FailContinue {
		return err
	}

	return nil
}

func (a *Aggregator) recordJob(elapsed time.Duration, success bool) {
	if a.metrics != nil {
		a.metrics.recordJob(elapsed, success)
	}
}
