// Package statevector is a CPU state-vector simulator.
//
// Amplitudes are stored little-endian: bit i of an amplitude's index is the
// value of qubit i.
package statevector

import (
	"math"
	"math/cmplx"
)

// State holds the 2^n complex amplitudes of an n-qubit register.
type State struct {
	numQubits int
	vector    []complex128
}

// NumQubits returns the register width.
func (s *State) NumQubits() int {
	return s.numQubits
}

// Amplitudes returns a copy of the amplitude vector.
func (s *State) Amplitudes() []complex128 {
	out := make([]complex128, len(s.vector))
	copy(out, s.vector)
	return out
}

// Probabilities returns |a_i|^2 for every basis state.
func (s *State) Probabilities() []float64 {
	probs := make([]float64, len(s.vector))
	for i, amplitude := range s.vector {
		prob := cmplx.Abs(amplitude)
		probs[i] = prob * prob
	}
	return probs
}

// apply multiplies the 2x2 matrix m onto the target qubit.
func (s *State) apply(target int, m [2][2]complex128) {
	bit := 1 << target
	for i := range s.vector {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a, b := s.vector[i], s.vector[j]
		s.vector[i] = m[0][0]*a + m[0][1]*b
		s.vector[j] = m[1][0]*a + m[1][1]*b
	}
}

// phase multiplies the |1> component of the target qubit by factor.
func (s *State) phase(target int, factor complex128) {
	bit := 1 << target
	for i := range s.vector {
		if i&bit != 0 {
			s.vector[i] *= factor
		}
	}
}

/*
U applies the general single-qubit rotation

	U(θ,φ,λ) = [[cos(θ/2),        -e^{iλ} sin(θ/2)],
	            [e^{iφ} sin(θ/2),  e^{i(φ+λ)} cos(θ/2)]]
*/
func (s *State) U(target int, theta, phi, lambda float64) {
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)

	s.apply(target, [2][2]complex128{
		{c, -cmplx.Exp(complex(0, lambda)) * sn},
		{cmplx.Exp(complex(0, phi)) * sn, cmplx.Exp(complex(0, phi+lambda)) * c},
	})
}

// CX flips target on every basis state where control is set.
func (s *State) CX(control, target int) {
	cbit := 1 << control
	tbit := 1 << target
	for i := range s.vector {
		if i&cbit != 0 && i&tbit == 0 {
			j := i | tbit
			s.vector[i], s.vector[j] = s.vector[j], s.vector[i]
		}
	}
}

// H applies the Hadamard gate.
func (s *State) H(target int) {
	// H = 1/√2 * [1  1]
	//           [1 -1]
	f := complex(1/math.Sqrt2, 0)
	s.apply(target, [2][2]complex128{{f, f}, {f, -f}})
}

// X applies the Pauli-X gate.
func (s *State) X(target int) {
	bit := 1 << target
	for i := range s.vector {
		if i&bit == 0 {
			j := i | bit
			s.vector[i], s.vector[j] = s.vector[j], s.vector[i]
		}
	}
}

// Y applies the Pauli-Y gate.
func (s *State) Y(target int) {
	bit := 1 << target
	for i := range s.vector {
		if i&bit == 0 {
			j := i | bit
			s.vector[i], s.vector[j] = -1i*s.vector[j], 1i*s.vector[i]
		}
	}
}

// Z applies the Pauli-Z gate.
func (s *State) Z(target int) {
	s.phase(target, -1)
}

// S applies the phase gate.
func (s *State) S(target int) {
	s.phase(target, 1i)
}

// T applies the π/4 phase gate.
func (s *State) T(target int) {
	s.phase(target, cmplx.Exp(complex(0, math.Pi/4)))
}

/*
Collapse measures qubit q using r, a uniform draw in [0,1), projects the state
onto the observed outcome and renormalises. It returns the observed bit.
*/
func (s *State) Collapse(q int, r float64) int {
	bit := 1 << q

	var one float64
	for i, amplitude := range s.vector {
		if i&bit != 0 {
			p := cmplx.Abs(amplitude)
			one += p * p
		}
	}

	outcome := 0
	keep := 1 - one
	if r < one {
		outcome = 1
		keep = one
	}

	norm := complex(1/math.Sqrt(keep), 0)
	for i := range s.vector {
		if (i&bit != 0) == (outcome == 1) {
			s.vector[i] *= norm
		} else {
			s.vector[i] = 0
		}
	}

	return outcome
}
