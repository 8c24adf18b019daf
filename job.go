package qsim

import "github.com/google/uuid"

// DefaultShots is used when neither the job nor an experiment sets shots.
const DefaultShots = 1024

// JobOption is a function type for configuring jobs
type JobOption func(*Job)

// NewJob builds a job over experiments with a fresh ID.
func NewJob(experiments []Experiment, opts ...JobOption) *Job {
	job := &Job{
		ID:          uuid.NewString(),
		Config:      JobConfig{Shots: DefaultShots},
		Experiments: experiments,
	}

	for _, opt := range opts {
		opt(job)
	}

	return job
}

// WithJobID overrides the generated job ID.
func WithJobID(id string) JobOption {
	return func(j *Job) {
		j.ID = id
	}
}

// WithShots sets the job-level shot count.
func WithShots(shots int) JobOption {
	return func(j *Job) {
		j.Config.Shots = shots
	}
}

// WithSeed sets the job-level seed.
func WithSeed(seed uint32) JobOption {
	return func(j *Job) {
		j.Config.Seed = &seed
	}
}

// WithMemory requests per-shot memory for every experiment.
func WithMemory(memory bool) JobOption {
	return func(j *Job) {
		j.Config.Memory = memory
	}
}
