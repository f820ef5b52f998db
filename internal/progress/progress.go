// Package progress prints a live per-scenario status line while probes run.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Progress reports probe counts for the scenario currently running. The
// probe loop bumps atomic counters; a ticker goroutine renders them once a
// second. A nil or quiet Progress swallows everything.
type Progress struct {
	startTime time.Time
	requests  atomic.Int64
	errors    atomic.Int64
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
	scenario  string
}

func NewProgress(quiet bool) *Progress {
	return &Progress{
		quiet:  quiet,
		output: os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// StartScenario resets the counters and begins rendering for one scenario.
func (p *Progress) StartScenario(name string) {
	if p == nil || p.quiet {
		return
	}
	p.mu.Lock()
	p.scenario = name
	p.mu.Unlock()
	p.requests.Store(0)
	p.errors.Store(0)
	p.startTime = time.Now()
	p.stopped.Store(false)
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(1 * time.Second)
	go p.run()
}

// Record counts one completed probe.
func (p *Progress) Record(success bool) {
	if p == nil {
		return
	}
	p.requests.Add(1)
	if !success {
		p.errors.Add(1)
	}
}

// Requests returns the number of probes counted so far.
func (p *Progress) Requests() int64 {
	if p == nil {
		return 0
	}
	return p.requests.Load()
}

// Errors returns the number of failed probes counted so far.
func (p *Progress) Errors() int64 {
	if p == nil {
		return 0
	}
	return p.errors.Load()
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	requests := p.requests.Load()
	errors := p.errors.Load()
	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] %s | Requests: %d | Errors: %d (%.1f%%)",
		mins, secs, p.scenario, requests, errors, errorRate)
	p.mu.Unlock()
}

// StopScenario ends rendering for the current scenario.
func (p *Progress) StopScenario() {
	if p == nil || p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p == nil || p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p == nil || p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
