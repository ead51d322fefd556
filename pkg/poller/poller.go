// Package poller confirms package installations after the install
// command itself has returned. apt exiting is not the same as the
// package being registered, so the poller probes dpkg on a fixed
// schedule until the package shows up or the attempt budget runs out.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/automateyournetwork/netagent/pkg/logger"
)

// Outcome of a completed poll.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed-out"
)

// PollState is the final record of one install confirmation run.
type PollState struct {
	Package           string
	AttemptsRemaining int
	Interval          time.Duration
	Outcome           Outcome
}

// Runner executes one command on an already-open device session.
type Runner interface {
	RunTimeout(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// DetectInstall reports whether command is a package install and, if so,
// which package it installs. Only apt and apt-get installs are
// recognized; anything else is not polled.
func DetectInstall(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) > 0 && fields[0] == "sudo" {
		fields = fields[1:]
	}
	if len(fields) < 3 {
		return "", false
	}
	if fields[0] != "apt" && fields[0] != "apt-get" {
		return "", false
	}
	if fields[1] != "install" {
		return "", false
	}
	for _, f := range fields[2:] {
		if strings.HasPrefix(f, "-") {
			continue
		}
		return f, true
	}
	return "", false
}

// Poller probes for a package registration on a fixed schedule.
type Poller struct {
	attempts     int
	interval     time.Duration
	probeTimeout time.Duration
	clock        Clock
}

// New builds a poller. attempts is the total probe budget, interval the
// delay between probes, and probeTimeout bounds each individual probe.
func New(attempts int, interval, probeTimeout time.Duration, clock Clock) *Poller {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Poller{attempts: attempts, interval: interval, probeTimeout: probeTimeout, clock: clock}
}

// Await probes until the package is registered with dpkg or the attempt
// budget is exhausted. Exhaustion is not an error: the install may still
// be settling, so the outcome is logged at warn level and reported as
// timed-out. The returned error is non-nil only when the context is
// cancelled or a probe itself fails.
func (p *Poller) Await(ctx context.Context, runner Runner, pkg string) (PollState, error) {
	state := PollState{
		Package:           pkg,
		AttemptsRemaining: p.attempts,
		Interval:          p.interval,
		Outcome:           OutcomePending,
	}
	probe := fmt.Sprintf("dpkg -l | grep %s", pkg)

	for state.AttemptsRemaining > 0 {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("install confirmation for %s interrupted: %w", pkg, err)
		}

		state.AttemptsRemaining--
		output, err := runner.RunTimeout(ctx, probe, p.probeTimeout)
		if err != nil {
			return state, fmt.Errorf("install probe for %s failed: %w", pkg, err)
		}
		if strings.Contains(output, pkg) {
			state.Outcome = OutcomeConfirmed
			logger.Info("Package installation confirmed", "package", pkg, "attempts_remaining", state.AttemptsRemaining)
			return state, nil
		}

		if state.AttemptsRemaining == 0 {
			break
		}
		ticker := p.clock.NewTicker(p.interval)
		select {
		case <-ticker.Chan():
			ticker.Stop()
		case <-ctx.Done():
			ticker.Stop()
			return state, fmt.Errorf("install confirmation for %s interrupted: %w", pkg, ctx.Err())
		}
	}

	state.Outcome = OutcomeTimedOut
	logger.Warn("Package installation not confirmed within budget", "package", pkg, "attempts", p.attempts, "interval", p.interval)
	return state, nil
}
