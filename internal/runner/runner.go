// Package runner drives the fixed-rate probe loop for one scenario.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"sonde/internal/aggregate"
	"sonde/internal/core"
	"sonde/internal/pacing"
	"sonde/internal/progress"
	"sonde/internal/scenario"
	"sonde/internal/telemetry"
)

const (
	// RequestTimeout bounds each individual probe. There is no deadline on
	// the scenario as a whole.
	RequestTimeout = 10 * time.Second
	// maxBodyBytes limits how much of a response body is read.
	maxBodyBytes = 10 * 1024 * 1024
)

// NewHTTPClient returns the probe client with the fixed per-request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: RequestTimeout}
}

// Runner executes scenarios against the target service: one request in
// flight at a time, paced to the descriptor's per-minute rate, every record
// persisted the moment it is built.
type Runner struct {
	BaseURL    string
	Client     *http.Client
	Sink       telemetry.Sink
	Builder    *telemetry.Builder
	Clock      core.Clock
	Endpoints  *EndpointSet
	Logger     *slog.Logger
	Progress   *progress.Progress
	Rand       *rand.Rand
	PacingMode string
}

// Run probes the target for the descriptor's duration and returns every
// record built. Transport failures become ERROR records and never abort the
// loop; only sink write failures are fatal. The inner batch always runs its
// full per-minute quota even when it crosses the end boundary.
func (r *Runner) Run(ctx context.Context, d scenario.Descriptor) ([]telemetry.Record, error) {
	start := r.Clock.Now()
	sc := scenario.NewContext(d, start, r.rng())

	r.logger().Info("starting scenario",
		"scenario", d.Name,
		"duration_minutes", d.DurationMinutes,
		"requests_per_minute", d.RequestsPerMinute)

	startRecord := telemetry.ScenarioStart{
		Timestamp: start.UTC().Format(time.RFC3339Nano),
		LogLevel:  telemetry.LevelInfo,
		EventType: telemetry.EventScenarioStart,
		Scenario:  sc,
		Message:   fmt.Sprintf("Starting telemetry collection: %s", d.Name),
	}
	if err := r.Sink.Write(startRecord); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}

	mode := r.PacingMode
	if mode == "" {
		mode = pacing.ModeFixed
	}
	pacer, err := pacing.New(mode, d.RequestsPerMinute, r.Clock)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", d.Name, err)
	}

	r.Progress.StartScenario(d.Name)
	defer r.Progress.StopScenario()

	end := start.Add(d.Duration())
	var records []telemetry.Record
	cancelled := false

loop:
	for r.Clock.Now().Before(end) {
		for i := 0; i < d.RequestsPerMinute; i++ {
			rec := r.probe(ctx, r.Endpoints.Pick(), sc)
			records = append(records, rec)
			if err := r.Sink.Write(rec); err != nil {
				return records, fmt.Errorf("scenario %s: %w", d.Name, err)
			}
			r.Progress.Record(rec.Metrics.Success)

			if err := pacer.Wait(ctx); err != nil {
				cancelled = true
				break loop
			}
		}
	}

	summary := aggregate.Summarize(records, sc, r.Clock.Now())
	if err := r.Sink.Write(summary); err != nil {
		return records, fmt.Errorf("scenario %s: %w", d.Name, err)
	}

	r.logger().Info("completed scenario",
		"scenario", d.Name,
		"requests", summary.Metrics.TotalRequests,
		"errors", summary.Metrics.ErrorCount,
		"health", summary.OperationalSummary.ScenarioHealth)

	if cancelled {
		return records, ctx.Err()
	}
	return records, nil
}

// probe issues one GET and builds its record. Never returns an error: every
// failure mode ends up inside the record.
func (r *Runner) probe(ctx context.Context, endpoint string, sc scenario.Context) telemetry.Record {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+endpoint, nil)
	if err != nil {
		return r.Builder.Build(endpoint, sc, telemetry.Outcome{
			Start: start, Elapsed: time.Since(start), Err: err,
		})
	}
	req.Header.Set("User-Agent", "sonde/1.0")

	r.logger().Debug("probing", "endpoint", endpoint)

	resp, err := r.Client.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		r.logger().Debug("probe failed", "endpoint", endpoint, "elapsed", elapsed, "error", err)
		return r.Builder.Build(endpoint, sc, telemetry.Outcome{
			Start: start, Elapsed: elapsed, Err: err,
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		return r.Builder.Build(endpoint, sc, telemetry.Outcome{
			Start: start, Elapsed: elapsed, Err: err,
		})
	}

	r.logger().Debug("probe completed",
		"endpoint", endpoint, "status", resp.StatusCode, "elapsed", elapsed)

	return r.Builder.Build(endpoint, sc, telemetry.Outcome{
		Start:       start,
		Elapsed:     elapsed,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	})
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) rng() *rand.Rand {
	if r.Rand != nil {
		return r.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
