package qsim

import (
	"encoding/json"
	"sort"
)

// MaxClassicalBits is the width of the classical register accumulator.
const MaxClassicalBits = 64

// Register is one named classical register, as a span of classical bits.
type Register struct {
	Name  string
	Start int
	Width int
}

// Experiment is one circuit together with its execution settings.
type Experiment struct {
	Name         string
	NumQubits    int
	NumClbits    int
	Instructions []Instruction
	Registers    []Register

	// Zero values defer to the job configuration.
	Shots  int
	Memory bool
	Seed   *uint32

	// AllowsMeasureSampling overrides the sampling planner when set.
	AllowsMeasureSampling *bool
}

// JobConfig carries the job-level defaults for every experiment.
type JobConfig struct {
	Shots  int
	Seed   *uint32
	Memory bool
}

// Job is the unit submitted to a backend.
type Job struct {
	ID          string
	Config      JobConfig
	Experiments []Experiment
}

/*
validate checks the structural invariants of an experiment: every operand is
in range, and the classical register is wide enough for every measurement
target and conditional mask.
*/
func (e *Experiment) validate() error {
	if e.NumQubits < 0 {
		return InvalidExperiment("negative qubit count %d", e.NumQubits)
	}

	if e.NumClbits < 0 || e.NumClbits > MaxClassicalBits {
		return InvalidExperiment("classical bit count %d outside 0..%d", e.NumClbits, MaxClassicalBits)
	}

	for _, in := range e.Instructions {
		if err := in.checkArity(); err != nil {
			return err
		}

		for _, q := range in.Qubits {
			if q < 0 || q >= e.NumQubits {
				return MalformedInstruction(in.Op.String(), "qubit %d outside register of %d", q, e.NumQubits)
			}
		}

		for _, c := range in.Clbits {
			if c < 0 || c >= e.NumClbits {
				return InvalidExperiment(
					"%s targets classical bit %d but only %d exist", in.Op, c, e.NumClbits,
				)
			}
		}

		if in.Conditional != nil && e.NumClbits < MaxClassicalBits && in.Conditional.Mask>>e.NumClbits != 0 {
			return InvalidExperiment("conditional mask %#x wider than %d classical bits", in.Conditional.Mask, e.NumClbits)
		}
	}

	for _, reg := range e.Registers {
		if reg.Start < 0 || reg.Width < 0 || reg.Start+reg.Width > e.NumClbits {
			return InvalidExperiment("register %q spans bits outside 0..%d", reg.Name, e.NumClbits)
		}
	}

	return e.validateLayout()
}

// validateLayout requires two or more registers to tile the classical bits
// exactly, so grouping neither drops nor repeats a bit.
func (e *Experiment) validateLayout() error {
	if len(e.Registers) < 2 {
		return nil
	}

	layout := append([]Register(nil), e.Registers...)
	sort.Slice(layout, func(i, j int) bool {
		return layout[i].Start < layout[j].Start
	})

	next := 0
	for _, reg := range layout {
		switch {
		case reg.Width == 0:
			return InvalidExperiment("register %q is empty", reg.Name)
		case reg.Start < next:
			return InvalidExperiment("register %q overlaps bit %d", reg.Name, reg.Start)
		case reg.Start > next:
			return InvalidExperiment("classical bits %d..%d belong to no register", next, reg.Start-1)
		}
		next = reg.Start + reg.Width
	}

	if next != e.NumClbits {
		return InvalidExperiment("classical bits %d..%d belong to no register", next, e.NumClbits-1)
	}

	return nil
}

func (e *Experiment) has(op Op) bool {
	for _, in := range e.Instructions {
		if in.Op == op {
			return true
		}
	}
	return false
}

// Status is the terminal state of an experiment or job.
type Status string

const (
	StatusDone      Status = "DONE"
	StatusError     Status = "ERROR"
	StatusCompleted Status = "COMPLETED"
)

// Statevector is an amplitude vector that marshals as [[re, im], ...].
type Statevector []complex128

// MarshalJSON implements json.Marshaler.
func (sv Statevector) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(sv))
	for i, a := range sv {
		pairs[i] = [2]float64{real(a), imag(a)}
	}
	return json.Marshal(pairs)
}

// ExperimentResult is the outcome of one experiment. TimeTaken is in seconds.
type ExperimentResult struct {
	Name        string                   `json:"name"`
	Shots       int                      `json:"shots"`
	Seed        uint32                   `json:"seed"`
	Counts      map[string]int           `json:"counts"`
	Memory      []string                 `json:"memory,omitempty"`
	Statevector Statevector              `json:"statevector,omitempty"`
	Snapshots   map[string][]Statevector `json:"snapshots,omitempty"`
	Status      Status                   `json:"status"`
	Success     bool                     `json:"success"`
	Error       string                   `json:"error,omitempty"`
	Notes       []string                 `json:"notes,omitempty"`
	TimeTaken   float64                  `json:"time_taken"`
}

// JobResult is the outcome of a whole job.
type JobResult struct {
	JobID     string             `json:"job_id"`
	Backend   string             `json:"backend"`
	Status    Status             `json:"status"`
	Success   bool               `json:"success"`
	TimeTaken float64            `json:"time_taken"`
	Results   []ExperimentResult `json:"results"`
}
