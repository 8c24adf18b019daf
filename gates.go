package qsim

import (
	"math"
)

/*
Dispatcher applies one typed instruction to a QuantumState. The fixed gates
(h, x, y, z, s, t) use the state's native kernels when it implements
FixedGates, and otherwise fall back to their U decompositions:

	h = U(π/2, 0, π)   x = U(π, 0, π)   y = U(π, π/2, π/2)
	z = U(0, 0, π)     s = U(0, 0, π/2) t = U(0, 0, π/4)

Both paths produce the same state up to floating point rounding.
*/
type Dispatcher struct {
	decompose bool
}

// NewDispatcher returns a dispatcher that prefers native fixed gates.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// NewDecomposingDispatcher returns a dispatcher that always uses U.
func NewDecomposingDispatcher() *Dispatcher {
	return &Dispatcher{decompose: true}
}

/*
Apply mutates state with the instruction. Conditionals are tested against
register first; when the test fails the instruction is skipped, the state is
left untouched and Apply returns false.

Measure, reset and snapshot are not unitaries and are handled by the
executor; handing one to Apply is an UnsupportedOperation.
*/
func (d *Dispatcher) Apply(state QuantumState, in Instruction, register uint64) (bool, error) {
	if !in.Conditional.Holds(register) {
		return false, nil
	}

	switch in.Op {
	case OpID, OpBarrier:
		return true, nil
	case OpU3:
		state.U(in.Qubits[0], in.Params[0], in.Params[1], in.Params[2])
	case OpU2:
		state.U(in.Qubits[0], math.Pi/2, in.Params[0], in.Params[1])
	case OpU1:
		state.U(in.Qubits[0], 0, 0, in.Params[0])
	case OpCX:
		state.CX(in.Qubits[0], in.Qubits[1])
	case OpH, OpX, OpY, OpZ, OpS, OpT:
		d.applyFixed(state, in.Op, in.Qubits[0])
	default:
		return false, UnsupportedOperation(in.Op.String())
	}

	return true, nil
}

func (d *Dispatcher) applyFixed(state QuantumState, op Op, target int) {
	if fixed, ok := state.(FixedGates); ok && !d.decompose {
		switch op {
		case OpH:
			fixed.H(target)
		case OpX:
			fixed.X(target)
		case OpY:
			fixed.Y(target)
		case OpZ:
			fixed.Z(target)
		case OpS:
			fixed.S(target)
		case OpT:
			fixed.T(target)
		}
		return
	}

	switch op {
	case OpH:
		state.U(target, math.Pi/2, 0, math.Pi)
	case OpX:
		state.U(target, math.Pi, 0, math.Pi)
	case OpY:
		state.U(target, math.Pi, math.Pi/2, math.Pi/2)
	case OpZ:
		state.U(target, 0, 0, math.Pi)
	case OpS:
		state.U(target, 0, 0, math.Pi/2)
	case OpT:
		state.U(target, 0, 0, math.Pi/4)
	}
}

// BasisGates lists the gate names the dispatcher accepts.
func BasisGates() []string {
	return []string{"u", "u1", "u2", "u3", "cx", "id", "h", "x", "y", "z", "s", "t"}
}
