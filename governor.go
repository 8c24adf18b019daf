package qsim

import (
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/shirou/gopsutil/mem"
	"github.com/theapemachine/errnie"
)

// bytesPerAmplitude is the size of one complex128 amplitude.
const bytesPerAmplitude = 16

/*
ResourceGovernor bounds how large a state vector the engine will allocate.
A state of n qubits needs 16·2ⁿ bytes, so the limit is derived from the
host's available memory scaled by MemoryFraction, and never exceeds the hard
cap from the configuration.

Key features:
  - Host memory probing (cached for checkInterval)
  - Hard qubit cap
  - Admission check before every allocation
*/
type ResourceGovernor struct {
	mu sync.Mutex

	hardCap        int
	memoryFraction float64
	checkInterval  time.Duration
	probe          func() (uint64, error)

	lastCheck time.Time
	available uint64
}

/*
NewResourceGovernor creates a governor.

Parameters:
  - hardCap: Maximum qubits regardless of memory
  - memoryFraction: Share of available memory one state may use (0.0-1.0)
  - checkInterval: How long a memory reading stays valid
*/
func NewResourceGovernor(hardCap int, memoryFraction float64, checkInterval time.Duration) *ResourceGovernor {
	return &ResourceGovernor{
		hardCap:        hardCap,
		memoryFraction: memoryFraction,
		checkInterval:  checkInterval,
		probe:          availableMemory,
	}
}

func availableMemory() (uint64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.Available, nil
}

// MaxQubits returns the largest qubit count that currently fits.
func (rg *ResourceGovernor) MaxQubits() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.refresh()

	if rg.available == 0 {
		return rg.hardCap
	}

	budget := uint64(float64(rg.available) * rg.memoryFraction)
	amplitudes := budget / bytesPerAmplitude
	if amplitudes == 0 {
		return 0
	}

	// floor(log2(amplitudes))
	fits := bits.Len64(amplitudes) - 1
	return int(math.Min(float64(fits), float64(rg.hardCap)))
}

// Admit returns CapacityExceeded if numQubits does not fit.
func (rg *ResourceGovernor) Admit(numQubits int) error {
	if limit := rg.MaxQubits(); numQubits > limit {
		return CapacityExceeded(numQubits, limit)
	}
	return nil
}

// refresh re-probes host memory when the cached reading is stale.
func (rg *ResourceGovernor) refresh() {
	if rg.probe == nil || (!rg.lastCheck.IsZero() && time.Since(rg.lastCheck) < rg.checkInterval) {
		return
	}

	available, err := rg.probe()
	if err != nil {
		// Without a reading only the hard cap applies.
		errnie.Info("memory probe failed, falling back to hard cap %d: %v", rg.hardCap, err)
		available = 0
	}

	rg.available = available
	rg.lastCheck = time.Now()
}
