package qsim

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-bexpr"
	"github.com/theapemachine/errnie"
)

const (
	QASMSimulator        = "qasm_simulator"
	StatevectorSimulator = "statevector_simulator"
)

/*
Provider owns the backends of one process and everything they share: the
resource governor, the state allocator, the worker pool and the metrics. Backends are
registered once, at construction, under fixed names.
*/
type Provider struct {
	config    *Config
	governor  *ResourceGovernor
	allocator *LocalAllocator
	pool      *Pool
	metrics   *Metrics
	backends  map[string]*Backend
}

/*
NewProvider builds the qasm and statevector simulators over one allocator and
pool.

Parameters:
  - ctx: parent of the worker pool's context
  - config: nil selects NewConfig()

Returns:
  - *Provider: ready to serve jobs until Close
*/
func NewProvider(ctx context.Context, config *Config) *Provider {
	if config == nil {
		config = NewConfig()
	}

	governor := NewResourceGovernor(config.MaxQubits, config.MemoryFraction, 5*time.Second)
	allocator := NewLocalAllocator(governor)
	metrics := NewMetrics()
	pool := NewPool(ctx, config, metrics)

	p := &Provider{
		config:    config,
		governor:  governor,
		allocator: allocator,
		pool:      pool,
		metrics:   metrics,
		backends:  make(map[string]*Backend),
	}

	p.register(Configuration{
		Name:        QASMSimulator,
		Version:     "0.1.0",
		Description: "state-vector simulator sampling measured qubits",
		Mode:        ModeQASM.String(),
		BasisGates:  BasisGates(),
		NQubits:     allocator.MaxQubits(),
		MaxShots:    config.MaxShots,
		Simulator:   true,
		Local:       true,
		Conditional: true,
		Memory:      true,
	}, NewExecutor(ModeQASM, allocator, config))

	p.register(Configuration{
		Name:        StatevectorSimulator,
		Version:     "0.1.0",
		Description: "state-vector simulator returning final amplitudes",
		Mode:        ModeStatevector.String(),
		BasisGates:  BasisGates(),
		NQubits:     allocator.MaxQubits(),
		MaxShots:    1,
		Simulator:   true,
		Local:       true,
	}, NewExecutor(ModeStatevector, allocator, config))

	errnie.Info("provider ready, %d backends, %d qubits max", len(p.backends), allocator.MaxQubits())
	return p
}

func (p *Provider) register(configuration Configuration, executor *Executor) {
	p.backends[configuration.Name] = newBackend(configuration, executor, p.pool, p.metrics, p.config)
}

// Metrics returns the counters shared by the pool and every backend.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Get returns the named backend.
func (p *Provider) Get(name string) (*Backend, error) {
	backend, ok := p.backends[name]
	if !ok {
		return nil, fmt.Errorf("no backend named %q", name)
	}
	return backend, nil
}

/*
Backends returns the backends whose Configuration matches filter, sorted by
name. An empty filter matches every backend. Filters are boolean expressions
over the Configuration's bexpr selectors, for example

	simulator == true and mode != "statevector"
	"cx" in basis_gates
*/
func (p *Provider) Backends(filter string) ([]*Backend, error) {
	var evaluator *bexpr.Evaluator

	if filter != "" {
		var err error
		if evaluator, err = bexpr.CreateEvaluator(filter); err != nil {
			return nil, fmt.Errorf("invalid backend filter: %w", err)
		}
	}

	out := make([]*Backend, 0, len(p.backends))

	for _, backend := range p.backends {
		if evaluator != nil {
			match, err := evaluator.Evaluate(backend.Configuration())
			if err != nil {
				return nil, fmt.Errorf("evaluating filter on %s: %w", backend.Name(), err)
			}
			if !match {
				continue
			}
		}
		out = append(out, backend)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})

	return out, nil
}

// Close stops the worker pool and releases the device.
func (p *Provider) Close() {
	p.pool.Close()
	p.allocator.Close()
}
