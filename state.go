package qsim

import (
	"errors"

	"github.com/theapemachine/qsim/statevector"
)

/*
QuantumState is the narrow capability the engine executes circuits against.
The amplitude arithmetic lives behind it, so a CPU, GPU or remote backing can
be swapped in without touching the dispatcher, planner or sampler.

Index bit i of Amplitudes and Probabilities is qubit i.
*/
type QuantumState interface {
	NumQubits() int
	U(target int, theta, phi, lambda float64)
	CX(control, target int)
	Amplitudes() []complex128
	Probabilities() []float64
}

// FixedGates is implemented by states with native fixed single-qubit gates.
// States without it get the equivalent U decomposition.
type FixedGates interface {
	H(target int)
	X(target int)
	Y(target int)
	Z(target int)
	S(target int)
	T(target int)
}

// Collapser is implemented by states that support projective measurement.
// Only per-shot replay needs it.
type Collapser interface {
	Collapse(qubit int, r float64) int
}

// Allocator hands out states and takes them back when an experiment ends.
type Allocator interface {
	Allocate(numQubits int) (QuantumState, error)
	Release(QuantumState)
	MaxQubits() int
}

// LocalAllocator allocates CPU state vectors from a statevector.Device,
// bounded by what the governor says the host can hold.
type LocalAllocator struct {
	device   *statevector.Device
	governor *ResourceGovernor
}

// NewLocalAllocator opens a device sized by the governor.
func NewLocalAllocator(governor *ResourceGovernor) *LocalAllocator {
	return &LocalAllocator{
		device:   statevector.Open(governor.MaxQubits()),
		governor: governor,
	}
}

// MaxQubits returns the allocation limit.
func (a *LocalAllocator) MaxQubits() int {
	return a.device.MaxQubits()
}

// Allocate returns a fresh |0...0> state or CapacityExceeded.
func (a *LocalAllocator) Allocate(numQubits int) (QuantumState, error) {
	if err := a.governor.Admit(numQubits); err != nil {
		return nil, err
	}

	state, err := a.device.NewState(numQubits)
	if errors.Is(err, statevector.ErrTooManyQubits) {
		return nil, CapacityExceeded(numQubits, a.device.MaxQubits())
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Release returns the state's buffer to the device.
func (a *LocalAllocator) Release(state QuantumState) {
	if sv, ok := state.(*statevector.State); ok {
		a.device.Release(sv)
	}
}

// Close releases the device.
func (a *LocalAllocator) Close() {
	a.device.Close()
}
