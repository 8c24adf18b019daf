package qsim

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func bell() *Experiment {
	return &Experiment{
		Name:      "bell",
		NumQubits: 2,
		NumClbits: 2,
		Instructions: []Instruction{
			mustInstruction("h", q(0), nil),
			mustInstruction("cx", q(0, 1), nil),
			mustInstruction("measure", q(0), q(0)),
			mustInstruction("measure", q(1), q(1)),
		},
	}
}

func seed(s uint32) *uint32 { return &s }

func TestQASMExecutor(t *testing.T) {
	Convey("Given a qasm executor", t, func() {
		ctx := context.Background()
		alloc := testAllocator(8)
		config := NewConfig()
		executor := NewExecutor(ModeQASM, alloc, config)

		Reset(func() {
			alloc.Close()
		})

		Convey("A Bell pair should only produce 00 and 11", func() {
			result, err := executor.Run(ctx, bell(), JobConfig{Shots: 1000, Seed: seed(42)})
			So(err, ShouldBeNil)
			So(result.Status, ShouldEqual, StatusDone)
			So(result.Success, ShouldBeTrue)
			So(result.Seed, ShouldEqual, uint32(42))
			So(result.Counts["01"], ShouldEqual, 0)
			So(result.Counts["10"], ShouldEqual, 0)
			So(result.Counts["00"]+result.Counts["11"], ShouldEqual, 1000)

			sigma := math.Sqrt(1000 * 0.25)
			So(math.Abs(float64(result.Counts["00"])-500), ShouldBeLessThan, 5*sigma)
			So(result.Memory, ShouldBeNil)
		})

		Convey("A π rotation should flip the qubit deterministically", func() {
			exp := &Experiment{
				Name:      "rotation",
				NumQubits: 1,
				NumClbits: 1,
				Instructions: []Instruction{
					mustInstruction("u3", q(0), nil, math.Pi, 0, math.Pi),
					mustInstruction("measure", q(0), q(0)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldResemble, map[string]int{"1": 1})
		})

		Convey("Seeds should resolve experiment first, then job", func() {
			exp := bell()
			exp.Seed = seed(7)

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 10, Seed: seed(9)})
			So(err, ShouldBeNil)
			So(result.Seed, ShouldEqual, uint32(7))

			result, err = executor.Run(ctx, bell(), JobConfig{Shots: 10, Seed: seed(9)})
			So(err, ShouldBeNil)
			So(result.Seed, ShouldEqual, uint32(9))
		})

		Convey("Memory should be returned in shot order and reproduce", func() {
			job := JobConfig{Shots: 50, Seed: seed(3), Memory: true}

			first, err := executor.Run(ctx, bell(), job)
			So(err, ShouldBeNil)
			So(first.Memory, ShouldHaveLength, 50)

			second, err := executor.Run(ctx, bell(), job)
			So(err, ShouldBeNil)
			So(second.Memory, ShouldResemble, first.Memory)
		})

		Convey("Experiment shots should win over job shots", func() {
			exp := bell()
			exp.Shots = 3

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 100})
			So(err, ShouldBeNil)
			So(result.Shots, ShouldEqual, 3)
		})

		Convey("Zero shots everywhere should be invalid", func() {
			_, err := executor.Run(ctx, bell(), JobConfig{})
			So(errors.Is(err, ErrInvalidExperiment), ShouldBeTrue)
		})

		Convey("Shots beyond the configured limit should be invalid", func() {
			config.MaxShots = 100

			_, err := executor.Run(ctx, bell(), JobConfig{Shots: 101})
			So(errors.Is(err, ErrInvalidExperiment), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "101 shots exceed the limit of 100")

			result, err := executor.Run(ctx, bell(), JobConfig{Shots: 100, Seed: seed(1)})
			So(err, ShouldBeNil)
			So(result.Shots, ShouldEqual, 100)
		})

		Convey("An experiment without classical bits should return empty counts", func() {
			exp := &Experiment{
				Name:         "silent",
				NumQubits:    1,
				Instructions: []Instruction{mustInstruction("h", q(0), nil)},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 5})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldBeEmpty)
		})

		Convey("Classical bits without a measure should stay zero and be noted", func() {
			exp := &Experiment{
				Name:         "unmeasured",
				NumQubits:    1,
				NumClbits:    2,
				Instructions: []Instruction{mustInstruction("x", q(0), nil)},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 4})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldResemble, map[string]int{"00": 4})
			So(result.Notes, ShouldHaveLength, 1)
		})

		Convey("Registers should group the bitstrings", func() {
			exp := &Experiment{
				Name:      "grouped",
				NumQubits: 2,
				NumClbits: 2,
				Registers: []Register{{Name: "a", Start: 0, Width: 1}, {Name: "b", Start: 1, Width: 1}},
				Instructions: []Instruction{
					mustInstruction("x", q(0), nil),
					mustInstruction("measure", q(0), q(0)),
					mustInstruction("measure", q(1), q(1)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 2})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldResemble, map[string]int{"0 1": 2})
		})

		Convey("Registers that do not tile the classical bits should be invalid", func() {
			exp := &Experiment{
				Name:         "layout",
				NumQubits:    1,
				NumClbits:    3,
				Instructions: []Instruction{mustInstruction("measure", q(0), q(0))},
			}

			layouts := map[string][]Register{
				"gap":     {{Name: "a", Start: 0, Width: 1}, {Name: "b", Start: 2, Width: 1}},
				"overlap": {{Name: "a", Start: 0, Width: 2}, {Name: "b", Start: 1, Width: 2}},
				"short":   {{Name: "a", Start: 0, Width: 1}, {Name: "b", Start: 1, Width: 1}},
				"empty":   {{Name: "a", Start: 0, Width: 3}, {Name: "b", Start: 3, Width: 0}},
			}

			for _, registers := range layouts {
				exp.Registers = registers
				_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
				So(errors.Is(err, ErrInvalidExperiment), ShouldBeTrue)
			}

			Convey("Out-of-order registers that tile them should be accepted", func() {
				exp.Registers = []Register{{Name: "b", Start: 1, Width: 2}, {Name: "a", Start: 0, Width: 1}}
				result, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
				So(err, ShouldBeNil)
				So(result.Counts, ShouldResemble, map[string]int{"00 0": 1})
			})
		})

		Convey("A skipped conditional should leave the measured qubit at 0", func() {
			flip := mustInstruction("x", q(0), nil)
			flip.Conditional = &Conditional{Mask: 0b1, Value: 0b1}

			exp := &Experiment{
				Name:         "conditional",
				NumQubits:    1,
				NumClbits:    1,
				Instructions: []Instruction{flip, mustInstruction("measure", q(0), q(0))},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 10})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldResemble, map[string]int{"0": 10})
		})

		Convey("Snapshots should record the state at their position", func() {
			snap, err := NewInstruction("snapshot", nil, nil, []float64{1}, nil)
			So(err, ShouldBeNil)

			exp := &Experiment{
				Name:      "snap",
				NumQubits: 1,
				NumClbits: 1,
				Instructions: []Instruction{
					mustInstruction("x", q(0), nil),
					snap,
					mustInstruction("h", q(0), nil),
					mustInstruction("measure", q(0), q(0)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(err, ShouldBeNil)
			So(result.Snapshots["1"], ShouldHaveLength, 1)
			So(cmplx.Abs(result.Snapshots["1"][0][1]), ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("Too many qubits should exceed capacity", func() {
			exp := &Experiment{Name: "huge", NumQubits: 9, NumClbits: 0}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrCapacityExceeded), ShouldBeTrue)
			So(result.Status, ShouldEqual, StatusError)
			So(result.Success, ShouldBeFalse)

			var scoped *Error
			So(errors.As(err, &scoped), ShouldBeTrue)
			So(scoped.Experiment, ShouldEqual, "huge")
		})

		Convey("Out-of-range qubits should be malformed", func() {
			exp := &Experiment{
				Name:         "range",
				NumQubits:    1,
				Instructions: []Instruction{mustInstruction("x", q(3), nil)},
			}

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrMalformedInstruction), ShouldBeTrue)
		})

		Convey("A measure beyond the classical register should be invalid", func() {
			exp := &Experiment{
				Name:         "clbits",
				NumQubits:    1,
				NumClbits:    1,
				Instructions: []Instruction{mustInstruction("measure", q(0), q(1))},
			}

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrInvalidExperiment), ShouldBeTrue)
		})

		Convey("Mid-circuit measurement should be unsampleable without replay", func() {
			exp := &Experiment{
				Name:      "midcircuit",
				NumQubits: 1,
				NumClbits: 1,
				Instructions: []Instruction{
					mustInstruction("measure", q(0), q(0)),
					mustInstruction("x", q(0), nil),
				},
			}

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrUnsampleableCircuit), ShouldBeTrue)
		})

		Convey("A measure gated on an earlier measure should be unsampleable without replay", func() {
			_, err := executor.Run(ctx, gatedMeasure(), JobConfig{Shots: 10, Seed: seed(42)})
			So(errors.Is(err, ErrUnsampleableCircuit), ShouldBeTrue)
		})

		Convey("A cancelled context should stop the run", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := executor.Run(cancelled, bell(), JobConfig{Shots: 1})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

// gatedMeasure reads q1 (always 1) into c1 only when c0, a fair coin, is 1.
func gatedMeasure() *Experiment {
	gated := mustInstruction("measure", q(1), q(1))
	gated.Conditional = &Conditional{Mask: 0b1, Value: 1}

	return &Experiment{
		Name:      "gated-measure",
		NumQubits: 2,
		NumClbits: 2,
		Instructions: []Instruction{
			mustInstruction("h", q(0), nil),
			mustInstruction("x", q(1), nil),
			mustInstruction("measure", q(0), q(0)),
			gated,
		},
	}
}

func TestShotReplay(t *testing.T) {
	Convey("Given an executor with shot replay enabled", t, func() {
		ctx := context.Background()
		alloc := testAllocator(4)
		config := NewConfig()
		config.ShotReplay = true
		executor := NewExecutor(ModeQASM, alloc, config)

		Reset(func() {
			alloc.Close()
		})

		Convey("A gate after a measure should act on the collapsed state", func() {
			exp := &Experiment{
				Name:      "measure-then-flip",
				NumQubits: 1,
				NumClbits: 2,
				Instructions: []Instruction{
					mustInstruction("h", q(0), nil),
					mustInstruction("measure", q(0), q(0)),
					mustInstruction("x", q(0), nil),
					mustInstruction("measure", q(0), q(1)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 200, Seed: seed(5)})
			So(err, ShouldBeNil)

			// The second read is always the inverse of the first.
			So(result.Counts["00"], ShouldEqual, 0)
			So(result.Counts["11"], ShouldEqual, 0)
			So(result.Counts["10"]+result.Counts["01"], ShouldEqual, 200)
		})

		Convey("Reset should return the qubit to 0", func() {
			exp := &Experiment{
				Name:      "reset",
				NumQubits: 1,
				NumClbits: 1,
				Instructions: []Instruction{
					mustInstruction("h", q(0), nil),
					mustInstruction("reset", q(0), nil),
					mustInstruction("measure", q(0), q(0)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 50, Seed: seed(11)})
			So(err, ShouldBeNil)
			So(result.Counts, ShouldResemble, map[string]int{"0": 50})
		})

		Convey("Conditionals should read bits measured earlier in the shot", func() {
			fix := mustInstruction("x", q(0), nil)
			fix.Conditional = &Conditional{Mask: 0b1, Value: 1}

			exp := &Experiment{
				Name:      "feed-forward",
				NumQubits: 1,
				NumClbits: 2,
				Instructions: []Instruction{
					mustInstruction("h", q(0), nil),
					mustInstruction("measure", q(0), q(0)),
					fix,
					mustInstruction("measure", q(0), q(1)),
				},
			}

			result, err := executor.Run(ctx, exp, JobConfig{Shots: 100, Seed: seed(8)})
			So(err, ShouldBeNil)

			// Bit 1 is always 0 because a 1 on bit 0 was corrected.
			So(result.Counts["10"], ShouldEqual, 0)
			So(result.Counts["11"], ShouldEqual, 0)
		})

		Convey("A measure gated on an earlier measure should only fire after a 1", func() {
			result, err := executor.Run(ctx, gatedMeasure(), JobConfig{Shots: 1000, Seed: seed(42)})
			So(err, ShouldBeNil)

			So(result.Counts["01"], ShouldEqual, 0)
			So(result.Counts["10"], ShouldEqual, 0)
			So(result.Counts["00"]+result.Counts["11"], ShouldEqual, 1000)
			So(result.Counts["00"], ShouldBeGreaterThan, 0)
			So(result.Counts["11"], ShouldBeGreaterThan, 0)
		})
	})
}

func TestStatevectorExecutor(t *testing.T) {
	Convey("Given a statevector executor", t, func() {
		ctx := context.Background()
		alloc := testAllocator(6)
		executor := NewExecutor(ModeStatevector, alloc, NewConfig())

		Reset(func() {
			alloc.Close()
		})

		unmeasured := func() *Experiment {
			return &Experiment{
				Name:      "ghz",
				NumQubits: 3,
				Instructions: []Instruction{
					mustInstruction("h", q(0), nil),
					mustInstruction("barrier", q(0, 1, 2), nil),
					mustInstruction("cx", q(0, 1), nil),
					mustInstruction("cx", q(1, 2), nil),
					mustInstruction("id", q(2), nil),
				},
			}
		}

		Convey("It should coerce shots to 1 and return a normalised vector", func() {
			result, err := executor.Run(ctx, unmeasured(), JobConfig{Shots: 1024})
			So(err, ShouldBeNil)
			So(result.Shots, ShouldEqual, 1)
			So(result.Notes, ShouldHaveLength, 1)
			So(result.Counts, ShouldBeEmpty)
			So(result.Statevector, ShouldHaveLength, 8)

			var norm float64
			for _, a := range result.Statevector {
				norm += real(a)*real(a) + imag(a)*imag(a)
			}
			So(math.Abs(norm-1), ShouldBeLessThan, 1e-6)

			So(real(result.Statevector[0]), ShouldAlmostEqual, 0.70710678, 1e-9)
			So(real(result.Statevector[7]), ShouldAlmostEqual, 0.70710678, 1e-9)
		})

		Convey("A single requested shot should not be noted", func() {
			result, err := executor.Run(ctx, unmeasured(), JobConfig{Shots: 1})
			So(err, ShouldBeNil)
			So(result.Notes, ShouldBeEmpty)
		})

		Convey("Measurements should be rejected", func() {
			exp := unmeasured()
			exp.NumClbits = 1
			exp.Instructions = append(exp.Instructions, mustInstruction("measure", q(0), q(0)))

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrUnsupportedMeasurement), ShouldBeTrue)
		})

		Convey("Resets should be rejected", func() {
			exp := unmeasured()
			exp.Instructions = append(exp.Instructions, mustInstruction("reset", q(0), nil))

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrUnsupportedMeasurement), ShouldBeTrue)
		})

		Convey("Conditionals should be rejected", func() {
			exp := unmeasured()
			exp.NumClbits = 1
			flip := mustInstruction("x", q(0), nil)
			flip.Conditional = &Conditional{Mask: 1, Value: 1}
			exp.Instructions = append(exp.Instructions, flip)

			_, err := executor.Run(ctx, exp, JobConfig{Shots: 1})
			So(errors.Is(err, ErrUnsupportedOperation), ShouldBeTrue)
		})
	})
}

func TestRoundAmplitudes(t *testing.T) {
	Convey("Given amplitudes with representation noise", t, func() {
		amps := []complex128{complex(0.70710678118, -1e-17), complex(-1e-17, 0.5)}

		Convey("They should round without negative zeros", func() {
			out := roundAmplitudes(amps, 4)
			So(real(out[0]), ShouldEqual, 0.7071)
			So(math.Signbit(imag(out[0])), ShouldBeFalse)
			So(math.Signbit(real(out[1])), ShouldBeFalse)
		})

		Convey("A negative precision should leave them alone", func() {
			So(roundAmplitudes(amps, -1), ShouldResemble, Statevector(amps))
		})
	})
}
