package qsim

import (
	"context"

	"github.com/theapemachine/errnie"
)

// Worker runs one job at a time for its pool.
type Worker struct {
	pool  *Pool
	tasks chan task
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.pool.workers <- w.tasks:
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			w.process(ctx, t)
		}
	}
}

func (w *Worker) process(ctx context.Context, t task) {
	errnie.Info("worker picked up job %s", t.id)

	result, err := t.fn(ctx)
	if err != nil {
		errnie.Info("job %s failed: %v", t.id, err)
	}

	w.pool.space.Store(t.id, result, err, t.ttl)
}
