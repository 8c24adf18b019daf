package statevector

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrTooManyQubits = errors.New("too many qubits for device")
	ErrDeviceClosed  = errors.New("device closed")
)

/*
Device is the explicit handle every State is allocated from. It bounds the
number of qubits, and recycles amplitude buffers between experiments so a
job of same-sized circuits does not churn the allocator.

A Device is safe for concurrent use. States allocated from it are not.
*/
type Device struct {
	mu        sync.Mutex
	maxQubits int
	buffers   map[int]*sync.Pool
	closed    bool
}

// Open creates a device able to hold at most maxQubits qubits.
func Open(maxQubits int) *Device {
	return &Device{
		maxQubits: maxQubits,
		buffers:   make(map[int]*sync.Pool),
	}
}

// MaxQubits returns the largest state this device allocates.
func (d *Device) MaxQubits() int {
	return d.maxQubits
}

// NewState allocates a state of n qubits initialised to |0...0>.
func (d *Device) NewState(n int) (*State, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative qubit count %d", n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDeviceClosed
	}

	if n > d.maxQubits {
		return nil, fmt.Errorf("%w: requested %d, limit %d", ErrTooManyQubits, n, d.maxQubits)
	}

	pool, ok := d.buffers[n]
	if !ok {
		size := 1 << n
		pool = &sync.Pool{New: func() any {
			buf := make([]complex128, size)
			return &buf
		}}
		d.buffers[n] = pool
	}

	buf := pool.Get().(*[]complex128)
	vector := *buf
	clear(vector)
	vector[0] = 1

	return &State{numQubits: n, vector: vector}, nil
}

// Release hands the state's buffer back to the device. The state must not be
// used afterwards.
func (d *Device) Release(s *State) {
	if s == nil || s.vector == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if pool, ok := d.buffers[s.numQubits]; ok && !d.closed {
		buf := s.vector
		pool.Put(&buf)
	}
	s.vector = nil
}

// Close drops every pooled buffer and refuses further allocations.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.buffers = nil
}
