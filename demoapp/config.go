package demoapp

import "time"

// Config is the immutable fault-injection and identity configuration for the
// demo service. Handlers receive it at construction; there is no ambient
// mutable state.
type Config struct {
	// ErrorRate is the probability [0,1] that a request fails with 500.
	ErrorRate float64
	// OutageRate is the probability [0,1] that a request fails with 503.
	// Checked before ErrorRate.
	OutageRate float64
	// LatencyMin and LatencyMax bound the artificial delay added to each
	// request. Zero max disables the delay.
	LatencyMin time.Duration
	LatencyMax time.Duration
	// Version and Label are surfaced by the /version endpoint.
	Version string
	Label   string
}

// DefaultConfig returns a healthy service with no fault injection.
func DefaultConfig() Config {
	return Config{
		Version: "1.0.0",
		Label:   "baseline",
	}
}
