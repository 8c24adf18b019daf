package qsim

import (
	mapset "github.com/deckarep/golang-set/v2"
)

/*
CanSample decides whether an experiment's measurements can be deferred to one
end-of-circuit probability readout instead of re-running the circuit per
shot. An explicit AllowsMeasureSampling override is honoured as-is.

Otherwise the instructions are scanned once, in order, failing fast on:
  - any reset, since it needs a genuine mid-circuit collapse
  - any instruction other than measure, barrier or id touching a qubit that
    was already measured
  - a conditional on any instruction, measure included, whose mask reads a
    classical bit written by an earlier measure, since the deferred register
    is still all zeros at that point
*/
func CanSample(e *Experiment) bool {
	if e.AllowsMeasureSampling != nil {
		return *e.AllowsMeasureSampling
	}

	measured := mapset.NewThreadUnsafeSet[int]()
	var written uint64

	for _, in := range e.Instructions {
		if in.Conditional != nil && in.Conditional.Mask&written != 0 {
			return false
		}

		switch in.Op {
		case OpReset:
			return false
		case OpMeasure:
			measured.Add(in.Qubits[0])
			written |= 1 << uint(in.Clbits[0])
			continue
		case OpBarrier, OpID:
			continue
		}

		for _, q := range in.Qubits {
			if measured.Contains(q) {
				return false
			}
		}
	}

	return true
}
