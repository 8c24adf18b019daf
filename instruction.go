package qsim

import (
	"math/bits"
	"strconv"
	"strings"
)

// Op is the closed set of instruction kinds the engine executes.
type Op int

const (
	OpInvalid Op = iota
	OpID
	OpBarrier
	OpU1
	OpU2
	OpU3
	OpCX
	OpH
	OpX
	OpY
	OpZ
	OpS
	OpT
	OpMeasure
	OpReset
	OpSnapshot
)

var opNames = map[Op]string{
	OpID:       "id",
	OpBarrier:  "barrier",
	OpU1:       "u1",
	OpU2:       "u2",
	OpU3:       "u3",
	OpCX:       "cx",
	OpH:        "h",
	OpX:        "x",
	OpY:        "y",
	OpZ:        "z",
	OpS:        "s",
	OpT:        "t",
	OpMeasure:  "measure",
	OpReset:    "reset",
	OpSnapshot: "snapshot",
}

// opAliases maps every accepted textual name onto its Op.
var opAliases = map[string]Op{
	"id":       OpID,
	"u0":       OpID,
	"barrier":  OpBarrier,
	"u1":       OpU1,
	"u2":       OpU2,
	"u":        OpU3,
	"U":        OpU3,
	"u3":       OpU3,
	"cx":       OpCX,
	"CX":       OpCX,
	"h":        OpH,
	"x":        OpX,
	"y":        OpY,
	"z":        OpZ,
	"s":        OpS,
	"t":        OpT,
	"measure":  OpMeasure,
	"reset":    OpReset,
	"snapshot": OpSnapshot,
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "invalid"
}

// ParseOp converts a textual instruction name into its Op.
func ParseOp(name string) (Op, error) {
	if op, ok := opAliases[name]; ok {
		return op, nil
	}
	return OpInvalid, UnsupportedOperation(name)
}

// arity is the number of qubits and params an op requires.
type arity struct {
	qubits int
	clbits int
	params int
}

var opArity = map[Op]arity{
	OpID:       {qubits: 0},
	OpBarrier:  {qubits: 0},
	OpU1:       {qubits: 1, params: 1},
	OpU2:       {qubits: 1, params: 2},
	OpU3:       {qubits: 1, params: 3},
	OpCX:       {qubits: 2},
	OpH:        {qubits: 1},
	OpX:        {qubits: 1},
	OpY:        {qubits: 1},
	OpZ:        {qubits: 1},
	OpS:        {qubits: 1},
	OpT:        {qubits: 1},
	OpMeasure:  {qubits: 1, clbits: 1},
	OpReset:    {qubits: 1},
	OpSnapshot: {qubits: 0},
}

/*
Conditional gates an instruction on the classical register. The register is
masked, then mask and value are shifted right together until the mask's
lowest set bit sits at position 0, and the result is compared with Value.
*/
type Conditional struct {
	Mask  uint64
	Value uint64
}

// Holds reports whether the condition passes against the register.
func (c *Conditional) Holds(register uint64) bool {
	if c == nil || c.Mask == 0 {
		return true
	}

	shift := bits.TrailingZeros64(c.Mask)
	return (register&c.Mask)>>shift == c.Value
}

// Instruction is one immutable, typed circuit step.
type Instruction struct {
	Op          Op
	Qubits      []int
	Clbits      []int
	Params      []float64
	Label       string
	Conditional *Conditional
}

/*
NewInstruction is the parse boundary between textual circuits and the typed
instruction variant. It rejects unknown names with UnsupportedOperation and
operand shortfalls with MalformedInstruction, so the dispatch loop never has
to.
*/
func NewInstruction(
	name string,
	qubits []int,
	clbits []int,
	params []float64,
	conditional *Conditional,
) (Instruction, error) {
	op, err := ParseOp(strings.TrimSpace(name))
	if err != nil {
		return Instruction{}, err
	}

	in := Instruction{
		Op:          op,
		Qubits:      append([]int(nil), qubits...),
		Clbits:      append([]int(nil), clbits...),
		Params:      append([]float64(nil), params...),
		Conditional: conditional,
	}

	if err := in.checkArity(); err != nil {
		return Instruction{}, err
	}

	if in.Op == OpSnapshot && len(in.Params) > 0 {
		in.Label = strconv.Itoa(int(in.Params[0]))
	}

	return in, nil
}

func (in Instruction) checkArity() error {
	want, ok := opArity[in.Op]
	if !ok {
		return UnsupportedOperation(in.Op.String())
	}

	if len(in.Qubits) < want.qubits {
		return MalformedInstruction(in.Op.String(), "needs %d qubit(s), got %d", want.qubits, len(in.Qubits))
	}

	if len(in.Clbits) < want.clbits {
		return MalformedInstruction(in.Op.String(), "needs %d classical bit(s), got %d", want.clbits, len(in.Clbits))
	}

	if len(in.Params) < want.params {
		return MalformedInstruction(in.Op.String(), "needs %d param(s), got %d", want.params, len(in.Params))
	}

	if in.Op == OpCX && in.Qubits[0] == in.Qubits[1] {
		return MalformedInstruction(in.Op.String(), "control and target must differ")
	}

	return nil
}
