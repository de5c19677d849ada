package loggen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Modes accepted by Runner.
const (
	ModeDemo       = "demo"
	ModeRapid      = "rapid"
	ModeAPT        = "apt"
	ModeContinuous = "continuous"
	ModeNormal     = "normal"
	ModeOnce       = "once"
)

// ErrUnknownMode is returned by Run for an unrecognized mode.
var ErrUnknownMode = errors.New("loggen: unknown mode")

// Config controls pacing. Zero durations fall back to defaults.
type Config struct {
	Mode string
	Seed uint64
	// Speed scales every pause. 1 is real time, 0 disables pauses entirely.
	Speed float64

	NormalMinGap time.Duration
	NormalMaxGap time.Duration
	AttackMinGap time.Duration
	AttackMaxGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeDemo
	}
	if c.Speed < 0 {
		c.Speed = 0
	}
	if c.NormalMinGap <= 0 {
		c.NormalMinGap = 2 * time.Second
	}
	if c.NormalMaxGap < c.NormalMinGap {
		c.NormalMaxGap = max(5*time.Second, c.NormalMinGap)
	}
	if c.AttackMinGap <= 0 {
		c.AttackMinGap = 10 * time.Second
	}
	if c.AttackMaxGap < c.AttackMinGap {
		c.AttackMaxGap = max(20*time.Second, c.AttackMinGap)
	}
	return c
}

// Runner drives a generator into a sink according to a mode.
type Runner struct {
	cfg    Config
	sink   Sink
	attack *Generator
	normal *Generator
}

// NewRunner returns a runner writing to sink.
func NewRunner(sink Sink, cfg Config) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:    cfg,
		sink:   sink,
		attack: NewGenerator(cfg.Seed, nil),
		normal: NewGenerator(cfg.Seed+1, nil),
	}
}

// Run blocks until ctx is cancelled or, for ModeOnce, the showcase completes.
// Cancellation is not reported as an error.
func (r *Runner) Run(ctx context.Context) error {
	var err error
	switch strings.ToLower(r.cfg.Mode) {
	case ModeOnce:
		err = r.showcase(ctx)
	case ModeNormal:
		err = r.normalTraffic(ctx)
	case ModeDemo:
		err = r.withBackground(ctx, func(ctx context.Context) error {
			if err := r.showcase(ctx); err != nil {
				return err
			}
			return r.frequentAttacks(ctx)
		})
	case ModeContinuous:
		err = r.withBackground(ctx, r.frequentAttacks)
	case ModeRapid:
		err = r.withBackground(ctx, r.rapidFire)
	case ModeAPT:
		err = r.withBackground(ctx, r.aptLoop)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, r.cfg.Mode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// RunScenario plays one named scenario and returns.
func (r *Runner) RunScenario(ctx context.Context, name string) error {
	s, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("loggen: unknown scenario %q", name)
	}
	_, err := r.play(ctx, s)
	return err
}

func (r *Runner) withBackground(ctx context.Context, attacks func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.normalTraffic(ctx) })
	g.Go(func() error { return attacks(ctx) })
	return g.Wait()
}

func (r *Runner) normalTraffic(ctx context.Context) error {
	for {
		if err := r.sleep(ctx, r.gap(r.normal, r.cfg.NormalMinGap, r.cfg.NormalMaxGap)); err != nil {
			return err
		}
		if err := r.sink.Write(r.normal.Normal()); err != nil {
			return err
		}
	}
}

// showcase plays every scenario once, from MEDIUM up to CRITICAL.
func (r *Runner) showcase(ctx context.Context) error {
	for _, severity := range []string{SeverityMedium, SeverityHigh, SeverityCritical} {
		log.Printf("loggen: === %s severity scenarios ===", severity)
		for _, s := range bySeverity(severity) {
			if _, err := r.play(ctx, s); err != nil {
				return err
			}
			if err := r.sleep(ctx, 2*time.Second); err != nil {
				return err
			}
		}
	}
	return nil
}

// frequentAttacks picks a severity 20/40/40 CRITICAL/HIGH/MEDIUM, then a scenario.
func (r *Runner) frequentAttacks(ctx context.Context) error {
	if err := r.sleep(ctx, 5*time.Second); err != nil {
		return err
	}
	for {
		var severity string
		switch roll := r.attack.rng.IntN(100); {
		case roll < 20:
			severity = SeverityCritical
		case roll < 60:
			severity = SeverityHigh
		default:
			severity = SeverityMedium
		}
		pool := bySeverity(severity)
		if _, err := r.play(ctx, pool[r.attack.rng.IntN(len(pool))]); err != nil {
			return err
		}
		if err := r.sleep(ctx, r.gap(r.attack, r.cfg.AttackMinGap, r.cfg.AttackMaxGap)); err != nil {
			return err
		}
	}
}

func (r *Runner) rapidFire(ctx context.Context) error {
	names := []string{"port_scan", "brute_force", "sql_injection", "after_hours", "failed_sudo", "privilege_escalation", "log_tampering", "system_compromise"}
	for {
		for _, name := range names {
			s, _ := Lookup(name)
			if _, err := r.play(ctx, s); err != nil {
				return err
			}
			if err := r.sleep(ctx, 1500*time.Millisecond); err != nil {
				return err
			}
		}
		if err := r.sleep(ctx, 30*time.Second); err != nil {
			return err
		}
	}
}

func (r *Runner) aptLoop(ctx context.Context) error {
	for {
		if err := r.aptCampaign(ctx); err != nil {
			return err
		}
		if err := r.sleep(ctx, 60*time.Second); err != nil {
			return err
		}
	}
}

// aptCampaign runs recon and initial access. The remaining stages only follow
// a brute force that ends in an accepted login.
func (r *Runner) aptCampaign(ctx context.Context) error {
	recon, _ := Lookup("port_scan")
	if _, err := r.play(ctx, recon); err != nil {
		return err
	}
	if err := r.sleep(ctx, 3*time.Second); err != nil {
		return err
	}

	access, _ := Lookup("brute_force")
	events, err := r.play(ctx, access)
	if err != nil {
		return err
	}
	if len(events) == 0 || !strings.Contains(events[len(events)-1].Line, "Accepted password") {
		log.Printf("loggen: apt initial access failed, campaign ends")
		return nil
	}

	for _, name := range []string{"privilege_escalation", "log_tampering", "suspicious_network", "data_exfiltration", "ransomware"} {
		if err := r.sleep(ctx, 3*time.Second); err != nil {
			return err
		}
		s, _ := Lookup(name)
		if _, err := r.play(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) play(ctx context.Context, s Scenario) ([]Event, error) {
	events := r.attack.Events(s)
	log.Printf("loggen: %s scenario %s (%d lines)", s.Severity, s.Name, len(events))
	for _, e := range events {
		if err := r.sink.Write(e); err != nil {
			return events, err
		}
		if err := r.sleep(ctx, e.Pause); err != nil {
			return events, err
		}
	}
	return events, nil
}

func (r *Runner) gap(g *Generator, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rng.Int64N(int64(hi-lo)+1))
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	scaled := time.Duration(float64(d) * r.cfg.Speed)
	if scaled <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(scaled)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
