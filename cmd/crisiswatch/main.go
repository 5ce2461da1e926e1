// Command crisiswatch polls a running crisissim API, logs a triage of each
// observation and can stop the run once it turns critical.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crisis-grid/internal/hospital"
	"github.com/talgya/crisis-grid/internal/watch"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := flag.String("api", envOrDefault("CRISIS_API_URL", "http://localhost:8080"), "crisissim API base URL")
	interval := flag.Duration("interval", 5*time.Second, "time between observations")
	threshold := flag.Int("overflow", hospital.DefaultOverflowThreshold, "queue length counted as overflow")
	stopOnCritical := flag.Bool("stop-on-critical", false, "stop the run when triage turns critical (needs CRISIS_ADMIN_KEY)")
	flag.Parse()

	adminKey := os.Getenv("CRISIS_ADMIN_KEY")
	if *stopOnCritical && adminKey == "" {
		slog.Error("CRISIS_ADMIN_KEY is required with -stop-on-critical")
		os.Exit(1)
	}

	observer := watch.NewObserver(*apiURL)
	actor := watch.NewActor(*apiURL, adminKey)

	slog.Info("crisiswatch starting", "api_url", *apiURL, "interval", *interval)
	waitForAPI(observer)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var prev *watch.Snapshot
	for {
		cur, done := runCycle(observer, actor, prev, *threshold, *stopOnCritical)
		if done {
			return
		}
		if cur != nil {
			prev = cur
		}

		select {
		case <-ticker.C:
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			return
		}
	}
}

// runCycle executes one observe, triage, act cycle. It reports done once the
// run is resolved or has been stopped.
func runCycle(observer *watch.Observer, actor *watch.Actor, prev *watch.Snapshot, threshold int, stopOnCritical bool) (*watch.Snapshot, bool) {
	snap, err := observer.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return nil, false
	}
	h := watch.Triage(prev, snap, threshold)

	c := snap.Status.Census
	slog.Info("observation",
		"run_id", snap.Status.RunID,
		"tick", humanize.Comma(int64(snap.Status.Tick)),
		"level", h.Level,
		"rescued", c.Rescued,
		"deaths", c.Deaths,
		"active", c.Active,
		"enqueued", c.Enqueued,
		"max_queue", h.MaxQueue,
		"ticks_per_sec", fmt.Sprintf("%.1f", h.TicksPerSec),
	)
	if len(h.Overflowing) > 0 {
		slog.Warn("hospitals overflowing", "hospitals", h.Overflowing)
	}

	if h.Resolved {
		slog.Info("all survivors resolved", "rescued", c.Rescued, "deaths", c.Deaths)
		return snap, true
	}
	if stopOnCritical && h.Level == watch.LevelCritical {
		res, err := actor.Stop()
		if err != nil {
			slog.Error("stop failed", "error", err)
			return snap, false
		}
		slog.Warn("run stopped on critical triage", "tick", res.Tick)
		return snap, true
	}
	return snap, false
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 2 minutes if the API never becomes ready.
func waitForAPI(observer *watch.Observer) {
	backoff := time.Second
	maxBackoff := 15 * time.Second
	deadline := time.Now().Add(2 * time.Minute)

	for !observer.Ready() {
		if time.Now().After(deadline) {
			slog.Error("crisissim API did not become ready within 2 minutes")
			os.Exit(1)
		}
		slog.Info("crisissim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	slog.Info("crisissim API is ready")
}
