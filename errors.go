package qsim

import (
	"fmt"
	"strings"
)

// Kind categorizes a simulator error.
type Kind string

const (
	KindUnsupportedOperation   Kind = "unsupported_operation"
	KindUnsupportedMeasurement Kind = "unsupported_measurement"
	KindUnsampleableCircuit    Kind = "unsampleable_circuit"
	KindCapacityExceeded       Kind = "capacity_exceeded"
	KindMalformedInstruction   Kind = "malformed_instruction"
	KindInvalidExperiment      Kind = "invalid_experiment"
	KindPoolClosed             Kind = "pool_closed"
	KindSchedulingTimeout      Kind = "scheduling_timeout"
)

/*
Error is the structured error raised by every stage of experiment execution.
All members of the taxonomy are experiment-scoped and deterministic, so none
of them is ever retried.
*/
type Error struct {
	Kind       Kind
	Op         string
	Experiment string
	Detail     string
	Cause      error
}

var (
	ErrUnsupportedOperation   = &Error{Kind: KindUnsupportedOperation}
	ErrUnsupportedMeasurement = &Error{Kind: KindUnsupportedMeasurement}
	ErrUnsampleableCircuit    = &Error{Kind: KindUnsampleableCircuit}
	ErrCapacityExceeded       = &Error{Kind: KindCapacityExceeded}
	ErrMalformedInstruction   = &Error{Kind: KindMalformedInstruction}
	ErrInvalidExperiment      = &Error{Kind: KindInvalidExperiment}
	ErrPoolClosed             = &Error{Kind: KindPoolClosed}
	ErrSchedulingTimeout      = &Error{Kind: KindSchedulingTimeout}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))

	if e.Experiment != "" {
		b.WriteString(" in experiment ")
		b.WriteString(e.Experiment)
	}

	if e.Op != "" {
		b.WriteString(" (op ")
		b.WriteString(e.Op)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// inExperiment returns a copy of e scoped to the named experiment.
func (e *Error) inExperiment(name string) *Error {
	scoped := *e
	scoped.Experiment = name
	return &scoped
}

func newError(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// UnsupportedOperation reports an instruction name outside the gate vocabulary.
func UnsupportedOperation(name string) *Error {
	return newError(KindUnsupportedOperation, name, "encountered unrecognized operation %q", name)
}

// UnsupportedMeasurement reports a measure or reset where the mode forbids it.
func UnsupportedMeasurement(op string) *Error {
	return newError(KindUnsupportedMeasurement, op, "statevector mode does not support measure or reset")
}

// UnsampleableCircuit reports a circuit the sampling planner rejected.
func UnsampleableCircuit(reason string) *Error {
	return newError(KindUnsampleableCircuit, "", "%s", reason)
}

// CapacityExceeded reports a qubit count beyond what the engine can allocate.
func CapacityExceeded(requested, limit int) *Error {
	return newError(KindCapacityExceeded, "", "cannot simulate %d qubits, limit is %d", requested, limit)
}

// MalformedInstruction reports missing or out-of-range operands.
func MalformedInstruction(op string, format string, args ...any) *Error {
	return newError(KindMalformedInstruction, op, format, args...)
}

// InvalidExperiment reports a structural violation of an experiment.
func InvalidExperiment(format string, args ...any) *Error {
	return newError(KindInvalidExperiment, "", format, args...)
}
