// Package scenario defines the operational scenarios the generator drives
// against the target service.
package scenario

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Descriptor describes one scenario: how long to probe and at what rate.
// Immutable once loaded.
type Descriptor struct {
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description"`
	DurationMinutes   int      `yaml:"duration_minutes" json:"duration_minutes"`
	RequestsPerMinute int      `yaml:"requests_per_minute" json:"requests_per_minute"`
	Tags              []string `yaml:"tags" json:"tags"`
}

// Duration returns the scenario's target run time.
func (d Descriptor) Duration() time.Duration {
	return time.Duration(d.DurationMinutes) * time.Minute
}

// Validate checks the fields a runnable descriptor must have.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if d.DurationMinutes <= 0 {
		return fmt.Errorf("scenario %q: duration_minutes must be positive, got %d", d.Name, d.DurationMinutes)
	}
	if d.RequestsPerMinute <= 0 {
		return fmt.Errorf("scenario %q: requests_per_minute must be positive, got %d", d.Name, d.RequestsPerMinute)
	}
	return nil
}

// BuiltIn returns the default scenario set.
func BuiltIn() []Descriptor {
	return []Descriptor{
		{
			Name:              "baseline_operations",
			Description:       "Normal operation patterns",
			DurationMinutes:   10,
			RequestsPerMinute: 12,
			Tags:              []string{"baseline", "normal", "steady-state"},
		},
		{
			Name:              "performance_degradation",
			Description:       "Gradual performance decline",
			DurationMinutes:   15,
			RequestsPerMinute: 15,
			Tags:              []string{"performance", "degradation", "slow"},
		},
		{
			Name:              "intermittent_failures",
			Description:       "Sporadic service failures",
			DurationMinutes:   20,
			RequestsPerMinute: 10,
			Tags:              []string{"failures", "intermittent", "errors"},
		},
		{
			Name:              "high_load_scenario",
			Description:       "High traffic load testing",
			DurationMinutes:   12,
			RequestsPerMinute: 30,
			Tags:              []string{"load", "traffic", "stress"},
		},
		{
			Name:              "partial_outage",
			Description:       "Selective service unavailability",
			DurationMinutes:   18,
			RequestsPerMinute: 8,
			Tags:              []string{"outage", "partial", "selective"},
		},
	}
}

// Find looks up a descriptor by name.
func Find(name string, descriptors []Descriptor) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Load reads and validates a scenario list from a YAML file.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var file struct {
		Scenarios []Descriptor `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file %s defines no scenarios", path)
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for _, d := range file.Scenarios {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate scenario name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return file.Scenarios, nil
}

// Context is the run-scoped scenario context embedded in scenario_start and
// scenario_metrics records.
type Context struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	OperationalContext string   `json:"operational_context,omitempty"`
	Tags               []string `json:"tags"`
	StartTime          string   `json:"start_time,omitempty"`
	DurationMinutes    int      `json:"duration_minutes,omitempty"`
}

// contextPatterns are the operational narratives attached to each run.
var contextPatterns = map[string][]string{
	"baseline_operations": {
		"Regular system monitoring",
		"Scheduled health checks",
		"Normal user traffic patterns",
	},
	"performance_degradation": {
		"System performance declining over time",
		"Response times increasing gradually",
		"Resource utilization trending upward",
	},
	"intermittent_failures": {
		"Sporadic error responses",
		"Connection timeouts occurring",
		"Service availability fluctuating",
	},
	"high_load_scenario": {
		"Traffic volume significantly elevated",
		"System under load testing",
		"Concurrent user activity high",
	},
	"partial_outage": {
		"Some endpoints not responding",
		"Mixed success/failure patterns",
		"Service degradation in progress",
	},
}

const defaultContext = "Standard operational context"

// NewContext builds the run context for one scenario execution. The
// operational narrative is picked from the per-scenario pattern list via rng.
func NewContext(d Descriptor, start time.Time, rng *rand.Rand) Context {
	narrative := defaultContext
	if patterns, ok := contextPatterns[d.Name]; ok {
		narrative = patterns[rng.Intn(len(patterns))]
	}
	return Context{
		Name:               d.Name,
		Description:        d.Description,
		OperationalContext: narrative,
		Tags:               d.Tags,
		StartTime:          start.UTC().Format(time.RFC3339Nano),
		DurationMinutes:    d.DurationMinutes,
	}
}
