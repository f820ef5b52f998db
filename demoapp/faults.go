package demoapp

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Decision is one fault-injection verdict. A zero Status lets the handler
// respond normally; 500/503 short-circuit it. Delay is applied either way.
type Decision struct {
	Delay  time.Duration
	Status int
}

// FaultInjector decides the fault behavior for each incoming request.
// Implementations must be safe for concurrent use.
type FaultInjector interface {
	Next() Decision
}

// RandomFaults draws independent outage/error/latency decisions from a
// seeded random source according to the configured rates.
type RandomFaults struct {
	cfg Config
	rng *rand.Rand
	mu  sync.Mutex
}

func NewRandomFaults(cfg Config, seed int64) *RandomFaults {
	return &RandomFaults{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (f *RandomFaults) Next() Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	var d Decision
	if f.cfg.LatencyMax > 0 {
		d.Delay = f.cfg.LatencyMin
		if span := f.cfg.LatencyMax - f.cfg.LatencyMin; span > 0 {
			d.Delay += time.Duration(f.rng.Int63n(int64(span)))
		}
	}

	switch {
	case f.cfg.OutageRate > 0 && f.rng.Float64() < f.cfg.OutageRate:
		d.Status = http.StatusServiceUnavailable
	case f.cfg.ErrorRate > 0 && f.rng.Float64() < f.cfg.ErrorRate:
		d.Status = http.StatusInternalServerError
	}
	return d
}

// ScriptedFaults replays a fixed decision sequence, then passes everything
// through. Lets tests pin exact fault timelines.
type ScriptedFaults struct {
	decisions []Decision
	next      int
	mu        sync.Mutex
}

func NewScriptedFaults(decisions ...Decision) *ScriptedFaults {
	return &ScriptedFaults{decisions: decisions}
}

func (f *ScriptedFaults) Next() Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next >= len(f.decisions) {
		return Decision{}
	}
	d := f.decisions[f.next]
	f.next++
	return d
}

// NoFaults passes every request through untouched.
type NoFaults struct{}

func (NoFaults) Next() Decision { return Decision{} }
