// Package qobj reads job descriptors from HCL, YAML or JSON and converts them
// into typed qsim jobs. Textual instruction names become qsim.Op values here,
// so unknown names fail at load time rather than during execution.
package qobj

// Descriptor is a job as written in a descriptor file.
type Descriptor struct {
	ID          string       `hcl:"id,optional" yaml:"id,omitempty" json:"id,omitempty"`
	Shots       int          `hcl:"shots,optional" yaml:"shots,omitempty" json:"shots,omitempty"`
	Seed        *uint32      `hcl:"seed,optional" yaml:"seed,omitempty" json:"seed,omitempty"`
	Memory      bool         `hcl:"memory,optional" yaml:"memory,omitempty" json:"memory,omitempty"`
	Experiments []Experiment `hcl:"experiment,block" yaml:"experiments" json:"experiments"`
}

// Experiment is one circuit block.
type Experiment struct {
	Name                  string        `hcl:"name,label" yaml:"name" json:"name"`
	Qubits                int           `hcl:"qubits" yaml:"qubits" json:"qubits"`
	Clbits                int           `hcl:"clbits,optional" yaml:"clbits,omitempty" json:"clbits,omitempty"`
	Shots                 int           `hcl:"shots,optional" yaml:"shots,omitempty" json:"shots,omitempty"`
	Seed                  *uint32       `hcl:"seed,optional" yaml:"seed,omitempty" json:"seed,omitempty"`
	Memory                bool          `hcl:"memory,optional" yaml:"memory,omitempty" json:"memory,omitempty"`
	AllowsMeasureSampling *bool         `hcl:"allows_measure_sampling,optional" yaml:"allows_measure_sampling,omitempty" json:"allows_measure_sampling,omitempty"`
	Registers             []Register    `hcl:"register,block" yaml:"registers,omitempty" json:"registers,omitempty"`
	Instructions          []Instruction `hcl:"instruction,block" yaml:"instructions" json:"instructions"`
}

// Register is a named classical register. Registers are laid out in the
// order given, the first starting at classical bit 0.
type Register struct {
	Name string `hcl:"name,label" yaml:"name" json:"name"`
	Size int    `hcl:"size" yaml:"size" json:"size"`
}

// Instruction is one textual circuit step.
type Instruction struct {
	Name        string       `hcl:"name,label" yaml:"name" json:"name"`
	Qubits      []int        `hcl:"qubits,optional" yaml:"qubits,omitempty" json:"qubits,omitempty"`
	Clbits      []int        `hcl:"clbits,optional" yaml:"clbits,omitempty" json:"clbits,omitempty"`
	Params      []float64    `hcl:"params,optional" yaml:"params,omitempty" json:"params,omitempty"`
	Label       string       `hcl:"label,optional" yaml:"label,omitempty" json:"label,omitempty"`
	Conditional *Conditional `hcl:"conditional,block" yaml:"conditional,omitempty" json:"conditional,omitempty"`
}

// Conditional holds mask and value as integer literals, usually hex ("0x3").
type Conditional struct {
	Mask  string `hcl:"mask" yaml:"mask" json:"mask"`
	Value string `hcl:"value" yaml:"value" json:"value"`
}
