// Package telemetry builds and persists the structured JSON Lines records
// emitted for every probe against the target service.
package telemetry

import (
	"encoding/json"

	"sonde/internal/scenario"
)

// Event kinds appearing in the output stream. Every line in the output file
// carries exactly one of these in its event_type field.
const (
	EventSessionStart     = "session_start"
	EventScenarioStart    = "scenario_start"
	EventHTTPRequest      = "http_request"
	EventHTTPRequestError = "http_request_error"
	EventScenarioMetrics  = "scenario_metrics"
	EventSessionComplete  = "session_complete"
)

// Log levels carried on the wire.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

// ServiceName identifies the probed service in every record.
const ServiceName = "observability-demo-app"

// Record is one per-request telemetry record. Immutable after construction;
// appended once to the sink and never mutated.
type Record struct {
	Timestamp string          `json:"timestamp"`
	LogLevel  string          `json:"log_level"`
	EventType string          `json:"event_type"`
	RequestID string          `json:"request_id"`
	Scenario  ScenarioRef     `json:"scenario"`
	HTTP      HTTPFacts       `json:"http"`
	Metrics   RequestMetrics  `json:"metrics"`
	Service   ServiceIdentity `json:"service"`

	// Exactly one of these is set for successful responses: the decoded
	// body when it is valid JSON, otherwise a truncated text preview.
	ResponseData    json.RawMessage `json:"response_data,omitempty"`
	ResponsePreview string          `json:"response_preview,omitempty"`
}

// ScenarioRef is the scenario identity embedded in per-request records.
type ScenarioRef struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// HTTPFacts holds the raw HTTP outcome. Status fields are set for responses,
// error fields for transport failures; the two sets never overlap.
type HTTPFacts struct {
	Method            string  `json:"method"`
	URL               string  `json:"url"`
	Endpoint          string  `json:"endpoint"`
	StatusCode        *int    `json:"status_code,omitempty"`
	ErrorType         string  `json:"error_type,omitempty"`
	ErrorMessage      string  `json:"error_message,omitempty"`
	ResponseTimeMs    float64 `json:"response_time_ms"`
	ResponseSizeBytes *int    `json:"response_size_bytes,omitempty"`
	UserAgent         string  `json:"user_agent,omitempty"`
}

// RequestMetrics holds the derived per-request metrics. Classification flags
// are pointers so that success records carry no timeout/connection_error keys
// and error records carry no client_error/server_error keys.
type RequestMetrics struct {
	ResponseTimeSeconds  float64 `json:"response_time_seconds"`
	ResponseTimeCategory string  `json:"response_time_category,omitempty"`
	Success              bool    `json:"success"`
	ClientError          *bool   `json:"client_error,omitempty"`
	ServerError          *bool   `json:"server_error,omitempty"`
	Timeout              *bool   `json:"timeout,omitempty"`
	ConnectionError      *bool   `json:"connection_error,omitempty"`
	HealthScore          int     `json:"health_score"`
}

// ServiceIdentity names the probed service. Version and label are refreshed
// from response bodies that carry them.
type ServiceIdentity struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Label       string `json:"label,omitempty"`
}

// ScenarioStart is the bookkeeping record written before a scenario's first
// probe.
type ScenarioStart struct {
	Timestamp string           `json:"timestamp"`
	LogLevel  string           `json:"log_level"`
	EventType string           `json:"event_type"`
	Scenario  scenario.Context `json:"scenario"`
	Message   string           `json:"message"`
}

// SessionConfig describes the session in the session_start record.
type SessionConfig struct {
	TotalScenarios int    `json:"total_scenarios"`
	BaseURL        string `json:"base_url"`
	OutputFile     string `json:"output_file"`
}

// SessionStart is the first record of a full session.
type SessionStart struct {
	Timestamp     string        `json:"timestamp"`
	LogLevel      string        `json:"log_level"`
	EventType     string        `json:"event_type"`
	SessionID     string        `json:"session_id"`
	Message       string        `json:"message"`
	SessionConfig SessionConfig `json:"session_config"`
}

// SessionComplete is the last record of a full session.
type SessionComplete struct {
	Timestamp  string `json:"timestamp"`
	LogLevel   string `json:"log_level"`
	EventType  string `json:"event_type"`
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	OutputFile string `json:"output_file"`
}
