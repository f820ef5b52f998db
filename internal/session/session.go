// Package session sequences scenarios into a full telemetry collection
// session with start/end bookkeeping records.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sonde/internal/core"
	"sonde/internal/runner"
	"sonde/internal/scenario"
	"sonde/internal/telemetry"
)

// ErrScenarioNotFound reports an unknown scenario name in single-scenario
// mode. Not fatal to the process: the operator is told and nothing runs.
var ErrScenarioNotFound = errors.New("scenario not found")

// DefaultPause separates consecutive scenarios.
const DefaultPause = 30 * time.Second

// Orchestrator runs scenarios in order, one at a time.
type Orchestrator struct {
	Runner     *runner.Runner
	Sink       telemetry.Sink
	Clock      core.Clock
	BaseURL    string
	OutputPath string
	Pause      time.Duration
	Logger     *slog.Logger
}

// RunAll truncates the sink, emits session_start, runs every descriptor in
// order with a pause between consecutive scenarios, and emits
// session_complete after the last.
func (o *Orchestrator) RunAll(ctx context.Context, descriptors []scenario.Descriptor) error {
	if t, ok := o.Sink.(telemetry.Truncator); ok {
		if err := t.Truncate(); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
	}

	sessionID := uuid.NewString()
	o.logger().Info("starting session",
		"session_id", sessionID,
		"scenarios", len(descriptors),
		"base_url", o.BaseURL)

	start := telemetry.SessionStart{
		Timestamp: o.Clock.Now().UTC().Format(time.RFC3339Nano),
		LogLevel:  telemetry.LevelInfo,
		EventType: telemetry.EventSessionStart,
		SessionID: sessionID,
		Message:   "Starting structured telemetry data collection session",
		SessionConfig: telemetry.SessionConfig{
			TotalScenarios: len(descriptors),
			BaseURL:        o.BaseURL,
			OutputFile:     o.OutputPath,
		},
	}
	if err := o.Sink.Write(start); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	for i, d := range descriptors {
		if _, err := o.Runner.Run(ctx, d); err != nil {
			return err
		}
		if i < len(descriptors)-1 {
			if err := o.Clock.Sleep(ctx, o.pause()); err != nil {
				return err
			}
		}
	}

	complete := telemetry.SessionComplete{
		Timestamp:  o.Clock.Now().UTC().Format(time.RFC3339Nano),
		LogLevel:   telemetry.LevelInfo,
		EventType:  telemetry.EventSessionComplete,
		SessionID:  sessionID,
		Message:    "Structured telemetry data collection session completed",
		OutputFile: o.OutputPath,
	}
	if err := o.Sink.Write(complete); err != nil {
		return fmt.Errorf("completing session: %w", err)
	}

	o.logger().Info("session complete", "session_id", sessionID, "output", o.OutputPath)
	return nil
}

// RunOne looks up a descriptor by name and runs just that scenario, without
// session bookkeeping and without truncating earlier output.
func (o *Orchestrator) RunOne(ctx context.Context, name string, descriptors []scenario.Descriptor) error {
	d, ok := scenario.Find(name, descriptors)
	if !ok {
		return fmt.Errorf("%w: %q", ErrScenarioNotFound, name)
	}
	_, err := o.Runner.Run(ctx, d)
	return err
}

func (o *Orchestrator) pause() time.Duration {
	if o.Pause > 0 {
		return o.Pause
	}
	return DefaultPause
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
