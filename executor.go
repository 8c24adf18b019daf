package qsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/theapemachine/errnie"
)

// Mode selects what an executor reads out of the final state.
type Mode int

const (
	// ModeQASM samples classical registers from measured qubits.
	ModeQASM Mode = iota
	// ModeStatevector returns the final amplitude vector and forbids
	// measurement.
	ModeStatevector
)

func (m Mode) String() string {
	if m == ModeStatevector {
		return "statevector"
	}
	return "qasm"
}

// Phase is a step of the per-experiment state machine.
type Phase string

const (
	PhaseValidating  Phase = "validating"
	PhaseDispatching Phase = "dispatching"
	PhaseSampling    Phase = "sampling"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

/*
Executor runs one experiment end to end:

	Validating -> Dispatching -> Sampling -> Done

with Error reachable from every step. Each call allocates its own state and
random source and releases both before returning, so one Executor may serve
concurrent experiments.
*/
type Executor struct {
	mode       Mode
	allocator  Allocator
	dispatcher *Dispatcher
	config     *Config
}

// NewExecutor returns an executor reading states from allocator.
func NewExecutor(mode Mode, allocator Allocator, config *Config) *Executor {
	if config == nil {
		config = NewConfig()
	}

	return &Executor{
		mode:       mode,
		allocator:  allocator,
		dispatcher: NewDispatcher(),
		config:     config,
	}
}

// Mode returns the executor's readout mode.
func (ex *Executor) Mode() Mode {
	return ex.mode
}

// execution is the exclusively owned state of one Run call.
type execution struct {
	ex       *Executor
	exp      *Experiment
	job      JobConfig
	phase    Phase
	shots    int
	memory   bool
	seed     uint32
	sampled  bool
	notes    []string
	result   ExperimentResult
	snapshot map[string][]Statevector
}

/*
Run executes exp with job supplying the defaults exp leaves unset.

Parameters:
  - ctx: checked between phases and between replayed shots
  - exp: the experiment, read but never modified
  - job: job-level shots, seed and memory defaults

Returns:
  - ExperimentResult: always populated; Status is ERROR on failure
  - error: a *Error scoped to the experiment, or a context error
*/
func (ex *Executor) Run(ctx context.Context, exp *Experiment, job JobConfig) (ExperimentResult, error) {
	run := &execution{
		ex:     ex,
		exp:    exp,
		job:    job,
		phase:  PhaseValidating,
		result: ExperimentResult{Name: exp.Name},
	}

	if err := run.execute(ctx); err != nil {
		return run.fail(err)
	}

	return run.result, nil
}

func (run *execution) execute(ctx context.Context) error {
	if err := run.validate(run.exp, run.job, run.ex.config); err != nil {
		return err
	}

	run.resolve()

	if err := ctx.Err(); err != nil {
		return err
	}

	run.enter(PhaseDispatching)
	start := time.Now()
	rng := newRNG(run.seed)

	var err error
	switch {
	case run.ex.mode == ModeStatevector:
		err = run.readAmplitudes()
	case run.sampled:
		err = run.sample(rng)
	default:
		err = run.replay(ctx, rng)
	}

	if err != nil {
		return err
	}

	run.enter(PhaseDone)
	run.result.Shots = run.shots
	run.result.Seed = run.seed
	run.result.Status = StatusDone
	run.result.Success = true
	run.result.Notes = run.notes
	run.result.Snapshots = run.snapshot
	run.result.TimeTaken = time.Since(start).Seconds()

	return nil
}

func (run *execution) enter(phase Phase) {
	errnie.Info("experiment %s: %s -> %s", run.exp.Name, run.phase, phase)
	run.phase = phase
}

func (run *execution) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	run.notes = append(run.notes, msg)
	errnie.Info("experiment %s: %s", run.exp.Name, msg)
}

func (run *execution) fail(err error) (ExperimentResult, error) {
	errnie.Info("experiment %s failed while %s: %v", run.exp.Name, run.phase, err)
	run.phase = PhaseError

	var scoped *Error
	if errors.As(err, &scoped) {
		err = scoped.inExperiment(run.exp.Name)
	}

	run.result.Shots = run.shots
	run.result.Seed = run.seed
	run.result.Status = StatusError
	run.result.Success = false
	run.result.Error = err.Error()
	run.result.Notes = run.notes

	return run.result, err
}

func (run *execution) validate(exp *Experiment, job JobConfig, config *Config) error {
	run.shots = exp.Shots
	if run.shots == 0 {
		run.shots = job.Shots
	}
	run.memory = exp.Memory || job.Memory

	if err := exp.validate(); err != nil {
		return err
	}

	if run.ex.mode == ModeStatevector {
		for _, in := range exp.Instructions {
			switch {
			case in.Op == OpMeasure || in.Op == OpReset:
				return UnsupportedMeasurement(in.Op.String())
			case in.Conditional != nil:
				return UnsupportedOperation("conditional")
			}
		}

		if run.shots != 1 {
			if run.shots != 0 {
				run.note("statevector mode runs a single shot, %d requested", run.shots)
			}
			run.shots = 1
		}

		return nil
	}

	if run.shots <= 0 {
		return InvalidExperiment("shots must be positive, got %d", run.shots)
	}

	if run.shots > config.MaxShots {
		return InvalidExperiment("%d shots exceed the limit of %d", run.shots, config.MaxShots)
	}

	if exp.NumClbits > 0 && !exp.has(OpMeasure) {
		run.note("no measurements, classical register stays all zeros")
	}

	run.sampled = CanSample(exp)
	if !run.sampled && !config.ShotReplay {
		return UnsampleableCircuit("measurements cannot be deferred to the end of the circuit")
	}

	return nil
}

// resolve fills in the job-level defaults: experiment seed, then job seed,
// then a fresh random one.
func (run *execution) resolve() {
	switch {
	case run.exp.Seed != nil:
		run.seed = *run.exp.Seed
	case run.job.Seed != nil:
		run.seed = *run.job.Seed
	default:
		run.seed = rand.Uint32()
	}
}

// dispatch applies one gate, logging the instruction when it fails.
func (run *execution) dispatch(state QuantumState, in Instruction, register uint64) error {
	if _, err := run.ex.dispatcher.Apply(state, in, register); err != nil {
		errnie.Info("dispatch failed:\n%s", spew.Sdump(in))
		return err
	}
	return nil
}

func (run *execution) record(label string, state QuantumState) {
	if run.snapshot == nil {
		run.snapshot = make(map[string][]Statevector)
	}
	run.snapshot[label] = append(run.snapshot[label], Statevector(state.Amplitudes()))
}

func (run *execution) allocate() (QuantumState, func(), error) {
	state, err := run.ex.allocator.Allocate(run.exp.NumQubits)
	if err != nil {
		return nil, nil, err
	}
	return state, func() { run.ex.allocator.Release(state) }, nil
}

// readAmplitudes applies every gate and returns the rounded final vector.
func (run *execution) readAmplitudes() error {
	state, release, err := run.allocate()
	if err != nil {
		return err
	}
	defer release()

	ignored := 0
	for _, in := range run.exp.Instructions {
		switch in.Op {
		case OpID, OpBarrier:
			ignored++
			continue
		case OpSnapshot:
			run.record(in.Label, state)
			continue
		}

		if err := run.dispatch(state, in, 0); err != nil {
			return err
		}
	}

	if ignored > 0 {
		errnie.Info("experiment %s: ignored %d id/barrier instructions", run.exp.Name, ignored)
	}

	run.enter(PhaseSampling)
	run.result.Statevector = roundAmplitudes(state.Amplitudes(), run.ex.config.Precision)
	run.result.Counts = map[string]int{}

	return nil
}

/*
sample applies every gate once with the measurements deferred, then draws
all shots from the final distribution in a single pass.
*/
func (run *execution) sample(rng *rand.Rand) error {
	state, release, err := run.allocate()
	if err != nil {
		return err
	}
	defer release()

	var pairs []MeasurePair

	for _, in := range run.exp.Instructions {
		switch in.Op {
		case OpMeasure:
			if in.Conditional.Holds(0) {
				pairs = append(pairs, MeasurePair{Qubit: in.Qubits[0], Clbit: in.Clbits[0]})
			}
			continue
		case OpSnapshot:
			run.record(in.Label, state)
			continue
		}

		if err := run.dispatch(state, in, 0); err != nil {
			return err
		}
	}

	run.enter(PhaseSampling)

	if run.exp.NumClbits == 0 {
		run.result.Counts = map[string]int{}
		return nil
	}

	values := SampleMeasurements(state.Probabilities(), pairs, run.shots, rng, 0)
	run.collect(values)

	return nil
}

/*
replay re-runs the circuit once per shot on a fresh state, collapsing the
state at every measure and reset. It serves circuits the planner rejects and
requires a state that implements Collapser.
*/
func (run *execution) replay(ctx context.Context, rng *rand.Rand) error {
	errnie.Info("experiment %s: replaying %d shots", run.exp.Name, run.shots)

	values := make([]uint64, run.shots)

	for shot := range values {
		if err := ctx.Err(); err != nil {
			return err
		}

		register, err := run.replayShot(rng, shot == 0)
		if err != nil {
			return err
		}
		values[shot] = register
	}

	run.enter(PhaseSampling)

	if run.exp.NumClbits == 0 {
		run.result.Counts = map[string]int{}
		return nil
	}

	run.collect(values)
	return nil
}

func (run *execution) replayShot(rng *rand.Rand, first bool) (uint64, error) {
	state, release, err := run.allocate()
	if err != nil {
		return 0, err
	}
	defer release()

	collapser, ok := state.(Collapser)
	if !ok {
		return 0, UnsupportedOperation("measure")
	}

	var register uint64

	for _, in := range run.exp.Instructions {
		switch in.Op {
		case OpMeasure:
			if !in.Conditional.Holds(register) {
				continue
			}
			bit := uint64(collapser.Collapse(in.Qubits[0], rng.Float64()))
			clbit := uint(in.Clbits[0])
			register = register&^(1<<clbit) | bit<<clbit
		case OpReset:
			if !in.Conditional.Holds(register) {
				continue
			}
			if collapser.Collapse(in.Qubits[0], rng.Float64()) == 1 {
				run.ex.dispatcher.applyFixed(state, OpX, in.Qubits[0])
			}
		case OpSnapshot:
			if first {
				run.record(in.Label, state)
			}
		default:
			if err := run.dispatch(state, in, register); err != nil {
				return 0, err
			}
		}
	}

	return register, nil
}

// collect renders sampled register values into counts and, when requested,
// the per-shot memory.
func (run *execution) collect(values []uint64) {
	formatter := Formatter{
		Format:    run.ex.config.MemoryFormat,
		Width:     run.exp.NumClbits,
		Registers: run.exp.Registers,
	}

	memory := formatter.RenderAll(values)
	run.result.Counts = Histogram(memory)

	if run.memory {
		run.result.Memory = memory
	}
}

// roundAmplitudes rounds both parts of every amplitude to precision
// decimals. A negative precision leaves the vector untouched.
func roundAmplitudes(amplitudes []complex128, precision int) Statevector {
	if precision < 0 {
		return Statevector(amplitudes)
	}

	scale := math.Pow(10, float64(precision))
	out := make(Statevector, len(amplitudes))

	for i, a := range amplitudes {
		re := math.Round(real(a)*scale) / scale
		im := math.Round(imag(a)*scale) / scale
		// No negative zeros in the output.
		if re == 0 {
			re = 0
		}
		if im == 0 {
			im = 0
		}
		out[i] = complex(re, im)
	}

	return out
}
