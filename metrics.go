package qsim

import (
	"sort"
	"sync"
	"time"
)

// latencyWindow keeps the most recent durations for percentile estimates.
type latencyWindow struct {
	samples []time.Duration
	size    int
	total   time.Duration
	count   int64
	average time.Duration
	p95     time.Duration
	p99     time.Duration
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{
		samples: make([]time.Duration, 0, size),
		size:    size,
	}
}

func (w *latencyWindow) record(duration time.Duration) {
	w.total += duration
	w.count++
	w.average = w.total / time.Duration(w.count)

	w.samples = append(w.samples, duration)
	if len(w.samples) > w.size {
		w.samples = w.samples[1:]
	}

	sorted := make([]time.Duration, len(w.samples))
	copy(sorted, w.samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	w.p95 = sorted[percentileIndex(len(sorted), 0.95)]
	w.p99 = sorted[percentileIndex(len(sorted), 0.99)]
}

func percentileIndex(n int, p float64) int {
	i := int(float64(n) * p)
	if i >= n {
		i = n - 1
	}
	return i
}

// Metrics tracks worker pool load and job and experiment throughput.
type Metrics struct {
	mu sync.RWMutex

	WorkerCount   int
	JobQueueSize  int
	ActiveWorkers int

	JobCount           int64
	FailedJobs         int64
	ExperimentCount    int64
	FailedExperiments  int64
	TotalShots         int64
	SchedulingFailures int64

	jobs        *latencyWindow
	experiments *latencyWindow
}

func NewMetrics() *Metrics {
	return &Metrics{
		jobs:        newLatencyWindow(1000),
		experiments: newLatencyWindow(1000),
	}
}

func (m *Metrics) recordJob(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.JobCount++
	if !success {
		m.FailedJobs++
	}
	m.jobs.record(duration)
}

func (m *Metrics) recordExperiment(result ExperimentResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExperimentCount++
	if !result.Success {
		m.FailedExperiments++
		return
	}

	m.TotalShots += int64(result.Shots)
	m.experiments.record(time.Duration(result.TimeTaken * float64(time.Second)))
}

func (m *Metrics) recordSchedulingFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SchedulingFailures++
}

// JobSuccessRate is the fraction of jobs that succeeded, or 1 before any ran.
func (m *Metrics) JobSuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.JobCount == 0 {
		return 1
	}
	return float64(m.JobCount-m.FailedJobs) / float64(m.JobCount)
}

// ExportMetrics returns a snapshot keyed for logs and the CLI. Latencies are
// in milliseconds.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	rate := m.JobSuccessRate()

	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"worker_count":           m.WorkerCount,
		"queue_size":             m.JobQueueSize,
		"jobs":                   m.JobCount,
		"failed_jobs":            m.FailedJobs,
		"success_rate":           rate,
		"experiments":            m.ExperimentCount,
		"failed_experiments":     m.FailedExperiments,
		"shots":                  m.TotalShots,
		"scheduling_failures":    m.SchedulingFailures,
		"avg_job_latency":        m.jobs.average.Milliseconds(),
		"p95_job_latency":        m.jobs.p95.Milliseconds(),
		"p99_job_latency":        m.jobs.p99.Milliseconds(),
		"avg_experiment_latency": m.experiments.average.Milliseconds(),
		"p95_experiment_latency": m.experiments.p95.Milliseconds(),
		"p99_experiment_latency": m.experiments.p99.Milliseconds(),
	}
}
