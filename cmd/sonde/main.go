package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sonde/internal/core"
	"sonde/internal/logging"
	"sonde/internal/pacing"
	"sonde/internal/progress"
	"sonde/internal/runner"
	"sonde/internal/scenario"
	"sonde/internal/session"
	"sonde/internal/telemetry"
)

const (
	ExitSuccess = 0
	ExitError   = 2
)

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the target service")
	output := flag.String("output", "telemetry_data.jsonl", "output file for telemetry records")
	scenarioName := flag.String("scenario", "", "run a single scenario by name instead of the full session")
	scenarioFile := flag.String("scenarios", "", "YAML file with scenario definitions (default: built-in set)")
	pacingMode := flag.String("pacing", pacing.ModeFixed, "request pacing: fixed, smooth")
	logFile := flag.String("log-file", "", "duplicate operator logs to this file")
	verbose := flag.Bool("verbose", false, "enable per-request debug logging")
	quiet := flag.Bool("quiet", false, "suppress progress output during runs")
	flag.Parse()

	logOut := io.Writer(os.Stderr)
	if *logFile != "" {
		w, closeLog, err := logging.TeeFile(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
		defer closeLog()
		logOut = w
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := logging.New("sonde", level, logOut)

	descriptors := scenario.BuiltIn()
	if *scenarioFile != "" {
		var err error
		descriptors, err = scenario.Load(*scenarioFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
	}

	sink, err := telemetry.NewFileSink(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		}
		cancel()
	}()

	clock := core.RealClock{}
	prog := progress.NewProgress(*quiet)

	run := &runner.Runner{
		BaseURL:    *baseURL,
		Client:     runner.NewHTTPClient(),
		Sink:       sink,
		Builder:    telemetry.NewBuilder(clock, *baseURL),
		Clock:      clock,
		Endpoints:  runner.NewEndpointSet(nil),
		Logger:     log,
		Progress:   prog,
		PacingMode: *pacingMode,
	}

	orch := &session.Orchestrator{
		Runner:     run,
		Sink:       sink,
		Clock:      clock,
		BaseURL:    *baseURL,
		OutputPath: *output,
		Logger:     log,
	}

	if *scenarioName != "" {
		err = orch.RunOne(ctx, *scenarioName, descriptors)
		if errors.Is(err, session.ErrScenarioNotFound) {
			fmt.Fprintf(os.Stderr, "scenario %q not found\n", *scenarioName)
			os.Exit(ExitSuccess)
		}
	} else {
		err = orch.RunAll(ctx, descriptors)
	}

	if errors.Is(err, context.Canceled) {
		os.Exit(ExitSuccess)
	}
	if err != nil {
		log.Error("run failed", "error", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
