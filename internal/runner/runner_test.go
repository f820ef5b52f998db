package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sonde/internal/aggregate"
	"sonde/internal/core"
	"sonde/internal/scenario"
	"sonde/internal/telemetry"
)

// memorySink records every value written in order.
type memorySink struct {
	writes []any
}

func (s *memorySink) Write(v any) error {
	s.writes = append(s.writes, v)
	return nil
}

// failingSink fails once failAfter writes have succeeded.
type failingSink struct {
	failAfter int
	writes    int
}

func (s *failingSink) Write(v any) error {
	if s.writes >= s.failAfter {
		return errors.New("disk full")
	}
	s.writes++
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testRunner(baseURL string, sink telemetry.Sink, clock core.Clock) *Runner {
	return &Runner{
		BaseURL:   baseURL,
		Client:    NewHTTPClient(),
		Sink:      sink,
		Builder:   telemetry.NewBuilder(clock, baseURL),
		Clock:     clock,
		Endpoints: NewSequentialEndpointSet(defaultEndpoints),
		Logger:    quietLogger(),
	}
}

func oneMinuteScenario(rpm int) scenario.Descriptor {
	return scenario.Descriptor{
		Name:              "baseline_operations",
		Description:       "Normal operation patterns",
		DurationMinutes:   1,
		RequestsPerMinute: rpm,
		Tags:              []string{"baseline"},
	}
}

func TestRun_FixedRateLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	r := testRunner(server.URL, sink, clock)

	records, err := r.Run(context.Background(), oneMinuteScenario(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 rpm for 1 virtual minute: one batch of 5 probes.
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}

	// scenario_start, 5 requests, scenario_metrics.
	if len(sink.writes) != 7 {
		t.Fatalf("expected 7 sink writes, got %d", len(sink.writes))
	}
	start, ok := sink.writes[0].(telemetry.ScenarioStart)
	if !ok {
		t.Fatalf("expected first write to be ScenarioStart, got %T", sink.writes[0])
	}
	if start.EventType != telemetry.EventScenarioStart {
		t.Errorf("expected scenario_start, got %q", start.EventType)
	}
	if start.Scenario.Name != "baseline_operations" {
		t.Errorf("unexpected scenario context %+v", start.Scenario)
	}
	summary, ok := sink.writes[len(sink.writes)-1].(aggregate.Summary)
	if !ok {
		t.Fatalf("expected last write to be Summary, got %T", sink.writes[len(sink.writes)-1])
	}
	if summary.Metrics.TotalRequests != 5 || summary.Metrics.ErrorCount != 0 {
		t.Errorf("unexpected summary metrics %+v", summary.Metrics)
	}

	for i, w := range sink.writes[1:6] {
		rec, ok := w.(telemetry.Record)
		if !ok {
			t.Fatalf("write %d: expected Record, got %T", i+1, w)
		}
		if rec.EventType != telemetry.EventHTTPRequest {
			t.Errorf("write %d: expected http_request, got %q", i+1, rec.EventType)
		}
		if !rec.Metrics.Success {
			t.Errorf("write %d: expected success", i+1)
		}
	}
}

// The per-minute batch runs to completion even when the last pacing interval
// undershoots the boundary by a few nanoseconds, so the loop overshoots
// rather than cutting a batch short.
func TestRun_BatchOvershootsEndBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := testRunner(server.URL, &memorySink{}, clock)

	// 60s/7 truncates to 8.571428571s, so 7 waits cover 3ns less than a
	// minute and a second full batch runs.
	records, err := r.Run(context.Background(), oneMinuteScenario(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 14 {
		t.Errorf("expected 14 records (two full batches), got %d", len(records))
	}
}

func TestRun_SequentialEndpointsCycle(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := testRunner(server.URL, &memorySink{}, clock)

	if _, err := r.Run(context.Background(), oneMinuteScenario(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"/", "/health", "/users", "/version", "/slo-config"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(paths))
	}
	for i, p := range paths {
		if p != want[i] {
			t.Errorf("request %d: expected %q, got %q", i, want[i], p)
		}
	}
}

// HTTP error statuses are recorded and the loop keeps going.
func TestRun_ServerErrorsDoNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "simulated failure", http.StatusInternalServerError)
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	r := testRunner(server.URL, sink, clock)

	records, err := r.Run(context.Background(), oneMinuteScenario(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Metrics.Success {
			t.Error("expected success = false for 500 responses")
		}
		if rec.EventType != telemetry.EventHTTPRequest {
			t.Errorf("HTTP 500 is still an http_request event, got %q", rec.EventType)
		}
	}

	summary := sink.writes[len(sink.writes)-1].(aggregate.Summary)
	if summary.Metrics.ErrorCount != 5 {
		t.Errorf("expected 5 errors in summary, got %d", summary.Metrics.ErrorCount)
	}
	if summary.Metrics.ErrorRate != 1 {
		t.Errorf("expected error rate 1, got %v", summary.Metrics.ErrorRate)
	}
}

// Transport failures are recorded as ERROR records and the loop keeps going.
func TestRun_TransportFailuresDoNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse every connection

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	r := testRunner(server.URL, sink, clock)

	records, err := r.Run(context.Background(), oneMinuteScenario(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.EventType != telemetry.EventHTTPRequestError {
			t.Errorf("expected http_request_error, got %q", rec.EventType)
		}
		if rec.LogLevel != telemetry.LevelError {
			t.Errorf("expected ERROR level, got %q", rec.LogLevel)
		}
		if rec.Metrics.HealthScore != 0 {
			t.Errorf("expected health score 0, got %d", rec.Metrics.HealthScore)
		}
	}

	summary := sink.writes[len(sink.writes)-1].(aggregate.Summary)
	if summary.Metrics.ErrorCount != 5 {
		t.Errorf("expected 5 errors in summary, got %d", summary.Metrics.ErrorCount)
	}
}

// A sink that cannot accept the scenario_start record fails the run before
// any probe is issued.
func TestRun_SinkFailureOnStartIsFatal(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := testRunner(server.URL, &failingSink{failAfter: 0}, clock)

	if _, err := r.Run(context.Background(), oneMinuteScenario(5)); err == nil {
		t.Fatal("expected error from failing sink")
	}
	if requests != 0 {
		t.Errorf("expected no probes after failed start write, got %d", requests)
	}
}

func TestRun_SinkFailureMidRunIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	// scenario_start plus two records succeed, the third write fails.
	r := testRunner(server.URL, &failingSink{failAfter: 3}, clock)

	records, err := r.Run(context.Background(), oneMinuteScenario(5))
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records collected before abort, got %d", len(records))
	}
}

// Cancellation stops the loop between waits; the summary over the records
// collected so far is still persisted.
func TestRun_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	r := testRunner(server.URL, sink, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, oneMinuteScenario(5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, ok := sink.writes[len(sink.writes)-1].(aggregate.Summary); !ok {
		t.Errorf("expected summary persisted on cancellation, got %T", sink.writes[len(sink.writes)-1])
	}
}

func TestRun_UnknownPacingMode(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := testRunner("http://localhost:0", &memorySink{}, clock)
	r.PacingMode = "adaptive"

	if _, err := r.Run(context.Background(), oneMinuteScenario(5)); err == nil {
		t.Fatal("expected error for unknown pacing mode")
	}
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	client := NewHTTPClient()
	if client.Timeout != 10*time.Second {
		t.Errorf("expected fixed 10s timeout, got %v", client.Timeout)
	}
}

func TestEndpointSet_Sequential(t *testing.T) {
	s := NewSequentialEndpointSet([]string{"/a", "/b"})

	got := []string{s.Pick(), s.Pick(), s.Pick()}
	want := []string{"/a", "/b", "/a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pick %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEndpointSet_RandomStaysInSet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewEndpointSet(rng)

	members := make(map[string]bool)
	for _, e := range s.Endpoints() {
		members[e] = true
	}
	for i := 0; i < 100; i++ {
		if e := s.Pick(); !members[e] {
			t.Fatalf("picked %q, not in endpoint set", e)
		}
	}
}
