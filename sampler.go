package qsim

import (
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// MeasurePair is one measure instruction: qubit read into classical bit.
type MeasurePair struct {
	Qubit int
	Clbit int
}

const (
	// Vectors up to this length are reduced on the calling goroutine.
	marginalSerialLimit = 1 << 14
	// The reduction splits into a fixed number of chunks so the summation
	// order, and therefore the result, does not depend on the host.
	marginalChunks = 64
	// Wider marginals would make the per-chunk partials too large.
	marginalParallelWidth = 12
)

// newRNG returns the pseudo-random source for a resolved seed.
func newRNG(seed uint32) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// MeasuredQubits returns the distinct measured qubits in ascending order.
// Bit k of a marginal index is the k-th qubit of this list.
func MeasuredQubits(pairs []MeasurePair) []int {
	seen := make(map[int]struct{}, len(pairs))
	qubits := make([]int, 0, len(pairs))

	for _, p := range pairs {
		if _, ok := seen[p.Qubit]; ok {
			continue
		}
		seen[p.Qubit] = struct{}{}
		qubits = append(qubits, p.Qubit)
	}

	sort.Ints(qubits)
	return qubits
}

/*
Marginalize sums a full probability vector over every qubit not listed,
producing a vector of length 2^len(qubits). Index bit q of probs is qubit q,
and index bit k of the result is qubits[k].
*/
func Marginalize(probs []float64, qubits []int) []float64 {
	width := len(qubits)
	out := make([]float64, 1<<width)

	if len(probs) <= marginalSerialLimit || width > marginalParallelWidth {
		accumulate(probs, 0, qubits, out)
		return out
	}

	size := (len(probs) + marginalChunks - 1) / marginalChunks
	partials := make([][]float64, marginalChunks)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for c := 0; c < marginalChunks; c++ {
		lo := c * size
		hi := min(lo+size, len(probs))
		if lo >= hi {
			continue
		}

		g.Go(func() error {
			part := make([]float64, len(out))
			accumulate(probs[lo:hi], lo, qubits, part)
			partials[c] = part
			return nil
		})
	}

	// The workers cannot fail.
	_ = g.Wait()

	for _, part := range partials {
		for k, p := range part {
			out[k] += p
		}
	}

	return out
}

func accumulate(probs []float64, offset int, qubits []int, out []float64) {
	for i, p := range probs {
		if p == 0 {
			continue
		}

		index := offset + i
		k := 0
		for pos, q := range qubits {
			k |= ((index >> q) & 1) << pos
		}
		out[k] += p
	}
}

/*
SampleMeasurements draws shots independent outcomes from the marginal
distribution of the measured qubits and maps each into a classical register
value. Every register starts from base; for each (qubit, clbit) pair the
qubit's sampled bit is written into clbit.

Identical probs, pairs, shots and rng state give identical output.
*/
func SampleMeasurements(
	probs []float64,
	pairs []MeasurePair,
	shots int,
	rng *rand.Rand,
	base uint64,
) []uint64 {
	out := make([]uint64, shots)
	if len(pairs) == 0 {
		for i := range out {
			out[i] = base
		}
		return out
	}

	qubits := MeasuredQubits(pairs)
	position := make(map[int]int, len(qubits))
	for k, q := range qubits {
		position[q] = k
	}

	marginal := Marginalize(probs, qubits)
	cdf := make([]float64, len(marginal))
	var total float64
	for i, p := range marginal {
		total += p
		cdf[i] = total
	}

	for shot := range out {
		r := rng.Float64() * total
		outcome := sort.Search(len(cdf), func(i int) bool { return cdf[i] > r })
		if outcome == len(cdf) {
			outcome = len(cdf) - 1
		}

		register := base
		for _, p := range pairs {
			bit := uint64(outcome>>position[p.Qubit]) & 1
			register = register&^(1<<uint(p.Clbit)) | bit<<uint(p.Clbit)
		}
		out[shot] = register
	}

	return out
}
