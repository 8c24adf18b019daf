package qobj

import (
	"fmt"
	"strconv"

	"github.com/theapemachine/qsim"
)

/*
Build converts a descriptor into a job. Instruction names are parsed into
qsim.Op values and operand counts are checked, so a job returned without
error only fails later on range or planning problems.

Parameters:
  - desc: the decoded descriptor
  - opts: applied after the descriptor's own job settings

Returns:
  - *qsim.Job: the typed job
  - error: the first conversion failure, naming its experiment and position
*/
func Build(desc *Descriptor, opts ...qsim.JobOption) (*qsim.Job, error) {
	experiments := make([]qsim.Experiment, 0, len(desc.Experiments))

	for i := range desc.Experiments {
		exp, err := buildExperiment(&desc.Experiments[i])
		if err != nil {
			return nil, fmt.Errorf("experiment %q: %w", desc.Experiments[i].Name, err)
		}
		experiments = append(experiments, exp)
	}

	var jobOpts []qsim.JobOption
	if desc.ID != "" {
		jobOpts = append(jobOpts, qsim.WithJobID(desc.ID))
	}
	if desc.Shots > 0 {
		jobOpts = append(jobOpts, qsim.WithShots(desc.Shots))
	}
	if desc.Seed != nil {
		jobOpts = append(jobOpts, qsim.WithSeed(*desc.Seed))
	}
	if desc.Memory {
		jobOpts = append(jobOpts, qsim.WithMemory(true))
	}

	return qsim.NewJob(experiments, append(jobOpts, opts...)...), nil
}

func buildExperiment(desc *Experiment) (qsim.Experiment, error) {
	exp := qsim.Experiment{
		Name:                  desc.Name,
		NumQubits:             desc.Qubits,
		NumClbits:             desc.Clbits,
		Shots:                 desc.Shots,
		Memory:                desc.Memory,
		Seed:                  desc.Seed,
		AllowsMeasureSampling: desc.AllowsMeasureSampling,
		Instructions:          make([]qsim.Instruction, 0, len(desc.Instructions)),
	}

	start := 0
	for _, reg := range desc.Registers {
		exp.Registers = append(exp.Registers, qsim.Register{Name: reg.Name, Start: start, Width: reg.Size})
		start += reg.Size
	}

	if exp.NumClbits == 0 {
		exp.NumClbits = start
	} else if len(desc.Registers) > 0 && start != exp.NumClbits {
		return qsim.Experiment{}, fmt.Errorf("registers cover %d classical bits, clbits is %d", start, exp.NumClbits)
	}

	for i, in := range desc.Instructions {
		instruction, err := buildInstruction(in)
		if err != nil {
			return qsim.Experiment{}, fmt.Errorf("instruction %d (%s): %w", i, in.Name, err)
		}
		exp.Instructions = append(exp.Instructions, instruction)
	}

	return exp, nil
}

func buildInstruction(desc Instruction) (qsim.Instruction, error) {
	var conditional *qsim.Conditional

	if desc.Conditional != nil {
		mask, err := strconv.ParseUint(desc.Conditional.Mask, 0, 64)
		if err != nil {
			return qsim.Instruction{}, fmt.Errorf("conditional mask: %w", err)
		}

		value, err := strconv.ParseUint(desc.Conditional.Value, 0, 64)
		if err != nil {
			return qsim.Instruction{}, fmt.Errorf("conditional value: %w", err)
		}

		conditional = &qsim.Conditional{Mask: mask, Value: value}
	}

	in, err := qsim.NewInstruction(desc.Name, desc.Qubits, desc.Clbits, desc.Params, conditional)
	if err != nil {
		return qsim.Instruction{}, err
	}

	if desc.Label != "" {
		in.Label = desc.Label
	}

	return in, nil
}
