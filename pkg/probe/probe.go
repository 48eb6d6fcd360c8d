// Package probe runs dependency checks at start-up and for the health endpoint.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 5 * time.Second

// CheckFunc performs a health check and returns nil when it passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single dependency check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool          // a failure prevents start-up
	Timeout  time.Duration // zero means 5s
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Pinger is anything with a context-aware liveness check (database, LLM chain).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database returns a critical probe for the store.
func Database(p Pinger) Probe {
	return Probe{Name: "Database", Check: p.Ping, Critical: true}
}

// HealthChecker matches llm.Provider's health check.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LLM returns a non-critical probe for the language model chain; the API can
// serve routes and verdicts without it.
func LLM(h HealthChecker, timeout time.Duration) Probe {
	return Probe{Name: "LLM", Check: h.HealthCheck, Timeout: timeout}
}

// Run executes the probes concurrently. Results keep the input order.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(pctx)
			results[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// AnalyzeResults logs a summary and returns the joined errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")
	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-12s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	return errors.Join(criticalErrors...)
}

// Check is the JSON form of one result.
type Check struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Critical   bool   `json:"critical"`
}

// Report summarises results for the health endpoint.
type Report struct {
	Status string           `json:"status"` // ok, degraded or down
	Checks map[string]Check `json:"checks"`
}

// NewReport builds a Report. Any failed critical probe marks the report down,
// other failures mark it degraded.
func NewReport(results []Result) Report {
	rep := Report{Status: "ok", Checks: make(map[string]Check, len(results))}
	for _, r := range results {
		c := Check{Status: "ok", DurationMs: r.Duration.Milliseconds(), Critical: r.Probe.Critical}
		if r.Error != nil {
			c.Status = "fail"
			c.Error = r.Error.Error()
			switch {
			case r.Probe.Critical:
				rep.Status = "down"
			case rep.Status == "ok":
				rep.Status = "degraded"
			}
		}
		rep.Checks[r.Probe.Name] = c
	}
	return rep
}
