// Command demoapp runs the fault-injecting demo service the telemetry
// generator probes.
//
// Usage:
//
//	demoapp [flags]
//
// Flags take precedence over their environment-variable fallbacks:
//
//	-addr         Address to listen on (PORT, default: :5000)
//	-error-rate   Probability a request fails with 500 (ERROR_RATE)
//	-outage-rate  Probability a request fails with 503 (OUTAGE_RATE)
//	-latency-min  Minimum injected latency (LATENCY_MIN)
//	-latency-max  Maximum injected latency, 0 disables (LATENCY_MAX)
//	-version      Version reported by /version (APP_VERSION)
//	-label        Label reported by /version (APP_LABEL)
//	-seed         Fault injection random seed (0 = time-based)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sonde/demoapp"
	"sonde/internal/logging"
)

const (
	ExitSuccess = 0
	ExitError   = 2
)

func main() {
	addr := flag.String("addr", envOr("PORT", ":5000"), "address to listen on")
	errorRate := flag.Float64("error-rate", envFloat("ERROR_RATE", 0), "probability [0,1] a request fails with 500")
	outageRate := flag.Float64("outage-rate", envFloat("OUTAGE_RATE", 0), "probability [0,1] a request fails with 503")
	latencyMin := flag.Duration("latency-min", envDuration("LATENCY_MIN", 0), "minimum injected latency")
	latencyMax := flag.Duration("latency-max", envDuration("LATENCY_MAX", 0), "maximum injected latency (0 disables)")
	version := flag.String("version", envOr("APP_VERSION", "1.0.0"), "version reported by /version")
	label := flag.String("label", envOr("APP_LABEL", "baseline"), "label reported by /version")
	seed := flag.Int64("seed", 0, "fault injection random seed (0 = time-based)")
	flag.Parse()

	if *errorRate < 0 || *errorRate > 1 || *outageRate < 0 || *outageRate > 1 {
		fmt.Fprintln(os.Stderr, "error: rates must be within [0,1]")
		os.Exit(ExitError)
	}
	if *latencyMax > 0 && *latencyMin > *latencyMax {
		fmt.Fprintln(os.Stderr, "error: -latency-min must not exceed -latency-max")
		os.Exit(ExitError)
	}

	cfg := demoapp.Config{
		ErrorRate:  *errorRate,
		OutageRate: *outageRate,
		LatencyMin: *latencyMin,
		LatencyMax: *latencyMax,
		Version:    *version,
		Label:      *label,
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	log := logging.New("demoapp", slog.LevelInfo, os.Stderr)
	server := demoapp.NewServer(cfg, demoapp.NewRandomFaults(cfg, *seed), log)

	listenAddr := *addr
	if _, err := strconv.Atoi(listenAddr); err == nil {
		// A bare port number from PORT becomes ":<port>".
		listenAddr = ":" + listenAddr
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("listening",
		"addr", listenAddr,
		"error_rate", cfg.ErrorRate,
		"outage_rate", cfg.OutageRate,
		"latency_min", cfg.LatencyMin,
		"latency_max", cfg.LatencyMax,
		"version", cfg.Version,
		"label", cfg.Label)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
