// Package aggregate computes per-scenario summary statistics from the
// telemetry records collected during a run.
package aggregate

import (
	"math"
	"sort"
	"time"

	"sonde/internal/scenario"
	"sonde/internal/telemetry"
)

// slowThresholdSeconds marks a request as slow in the summary counts.
const slowThresholdSeconds = 2.0

// Summary is the scenario_metrics record written after a scenario completes.
// Append-only: computed once over the full record set, never recomputed.
type Summary struct {
	Timestamp          string             `json:"timestamp"`
	LogLevel           string             `json:"log_level"`
	EventType          string             `json:"event_type"`
	Scenario           scenario.Context   `json:"scenario"`
	Metrics            SummaryMetrics     `json:"metrics"`
	OperationalSummary OperationalSummary `json:"operational_summary"`
}

// SummaryMetrics holds the aggregate counts, rates and percentiles.
type SummaryMetrics struct {
	TotalRequests              int         `json:"total_requests"`
	ErrorCount                 int         `json:"error_count"`
	ErrorRate                  float64     `json:"error_rate"`
	SlowRequests               int         `json:"slow_requests"`
	SlowRate                   float64     `json:"slow_rate"`
	AverageResponseTimeSeconds float64     `json:"average_response_time_seconds"`
	AverageHealthScore         float64     `json:"average_health_score"`
	ResponseTimePercentiles    Percentiles `json:"response_time_percentiles"`
}

// Percentiles holds the nearest-rank response time percentiles in seconds.
type Percentiles struct {
	P50Seconds float64 `json:"p50_seconds"`
	P95Seconds float64 `json:"p95_seconds"`
	P99Seconds float64 `json:"p99_seconds"`
}

// OperationalSummary is the categorical judgment over the whole scenario.
type OperationalSummary struct {
	ScenarioHealth      string  `json:"scenario_health"`
	PerformanceCategory string  `json:"performance_category"`
	ReliabilityScore    float64 `json:"reliability_score"`
}

// Summarize computes the summary record for one scenario run. Pure function:
// the record set is complete by the time it is called. Empty input yields
// zero counts, rates and percentiles without dividing by zero.
func Summarize(records []telemetry.Record, sc scenario.Context, now time.Time) Summary {
	total := len(records)
	errorCount := 0
	slowCount := 0
	var sumSeconds, sumHealth float64
	times := make([]float64, 0, total)

	for _, rec := range records {
		if !rec.Metrics.Success {
			errorCount++
		}
		if rec.Metrics.ResponseTimeSeconds > slowThresholdSeconds {
			slowCount++
		}
		sumSeconds += rec.Metrics.ResponseTimeSeconds
		sumHealth += float64(rec.Metrics.HealthScore)
		times = append(times, rec.Metrics.ResponseTimeSeconds)
	}

	divisor := float64(total)
	if divisor == 0 {
		divisor = 1
	}
	errorRate := float64(errorCount) / divisor
	avgSeconds := sumSeconds / divisor
	avgHealth := sumHealth / divisor

	sort.Float64s(times)

	return Summary{
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		LogLevel:  telemetry.LevelInfo,
		EventType: telemetry.EventScenarioMetrics,
		Scenario:  sc,
		Metrics: SummaryMetrics{
			TotalRequests:              total,
			ErrorCount:                 errorCount,
			ErrorRate:                  round4(errorRate),
			SlowRequests:               slowCount,
			SlowRate:                   round4(float64(slowCount) / divisor),
			AverageResponseTimeSeconds: round4(avgSeconds),
			AverageHealthScore:         round2(avgHealth),
			ResponseTimePercentiles: Percentiles{
				P50Seconds: round4(Percentile(times, 0.5)),
				P95Seconds: round4(Percentile(times, 0.95)),
				P99Seconds: round4(Percentile(times, 0.99)),
			},
		},
		OperationalSummary: OperationalSummary{
			ScenarioHealth:      healthJudgment(avgHealth),
			PerformanceCategory: telemetry.CategorizeResponseTime(avgSeconds),
			ReliabilityScore:    round2((1 - errorRate) * 100),
		},
	}
}

// Percentile returns the nearest-rank percentile of a sorted slice: index =
// floor(p * len), clamped to the last element. With p just under 1 on small
// inputs the index rounds to the list length; the clamp keeps the historical
// last-element result. Empty input returns 0.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * p)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// healthJudgment buckets the mean health score into the categorical verdict.
func healthJudgment(avgHealth float64) string {
	switch {
	case avgHealth > 80:
		return "healthy"
	case avgHealth > 50:
		return "degraded"
	default:
		return "unhealthy"
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
