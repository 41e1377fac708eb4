package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Annad25/gpu-monitor/internal/domain"
	"github.com/Annad25/gpu-monitor/internal/notify"
	"github.com/Annad25/gpu-monitor/internal/store"
)

// Config carries the identity, target set and timing knobs of one monitor
// instance. Zero values fall back to the policy defaults.
type Config struct {
	ServerID   string
	HealthPort int
	Targets    []domain.Target

	TickInterval      time.Duration
	Warmup            time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	ConfirmationDelay time.Duration
	ReminderInterval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Warmup == 0 {
		c.Warmup = DefaultWarmup
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.ConfirmationDelay == 0 {
		c.ConfirmationDelay = DefaultConfirmationDelay
	}
	if c.ReminderInterval == 0 {
		c.ReminderInterval = DefaultReminderInterval
	}
}

// Loop is the scheduler: one goroutine that runs the safety gates, the
// isolation scan and the per-peer crash engine in strict order every tick.
// Everything inside a tick is sequential; only alert dispatch leaves the
// tick (fire and forget).
type Loop struct {
	log      *zap.Logger
	store    store.IncidentStore
	prober   Prober
	notifier notify.Notifier
	engine   *Engine
	detector Detector
	clock    clock.Clock
	cfg      Config
}

func New(log *zap.Logger, st store.IncidentStore, p Prober, n notify.Notifier, clk clock.Clock, cfg Config) *Loop {
	cfg.applyDefaults()
	if clk == nil {
		clk = clock.New()
	}
	l := &Loop{
		log:      log,
		store:    st,
		prober:   p,
		notifier: n,
		clock:    clk,
		cfg:      cfg,
	}
	l.engine = NewEngine(log, st, p, l.dispatch, clk, cfg)
	return l
}

// Run blocks until ctx is cancelled. The loop never returns on a fault:
// store outages and connectivity loss degrade to waiting for next tick.
func (l *Loop) Run(ctx context.Context) {
	if !l.sleep(ctx, l.cfg.Warmup) {
		return
	}

	names := make([]string, len(l.cfg.Targets))
	for i, t := range l.cfg.Targets {
		names[i] = t.Name
	}
	l.log.Info("monitoring_started",
		zap.String("server", l.cfg.ServerID),
		zap.Strings("watching", names),
	)

	for {
		l.runTick(ctx)
		if ctx.Err() != nil {
			l.log.Info("monitor_stopped")
			return
		}
		if !l.sleep(ctx, l.cfg.TickInterval) {
			l.log.Info("monitor_stopped")
			return
		}
	}
}

func (l *Loop) runTick(ctx context.Context) {
	// Safety gates come first: no peer conclusions while the store is
	// away or we are offline ourselves.
	if err := l.store.Ping(ctx); err != nil {
		l.log.Warn("waiting_for_store", zap.Error(err))
		return
	}
	if !l.prober.CheckConnectivity(ctx) {
		l.log.Warn("local_connectivity_down")
		return
	}

	// One scan of every peer; the engine reuses these outcomes instead of
	// re-probing.
	alive := 0
	results := make(map[string]bool, len(l.cfg.Targets))
	for _, t := range l.cfg.Targets {
		up := l.prober.PingPeer(ctx, peerURL(t.IP, l.cfg.HealthPort))
		results[t.IP] = up
		if up {
			alive++
		}
	}

	switch l.detector.Observe(len(l.cfg.Targets), alive) {
	case EnterIsolation:
		l.log.Warn("isolation_detected", zap.String("server", l.cfg.ServerID))
		l.dispatch(fmt.Sprintf(
			"*MONITOR ISOLATED:* *%s* cannot reach ANY peers.\nPlease verify manually.",
			l.cfg.ServerID,
		))
		return
	case StayIsolated:
		l.log.Info("still_isolated")
		return
	case ExitIsolation:
		l.log.Info("isolation_recovered", zap.String("server", l.cfg.ServerID))
		l.dispatch(fmt.Sprintf(
			"*MONITOR RECONNECTED:* *%s* has rejoined the mesh.",
			l.cfg.ServerID,
		))
	}

	// Peers in configuration order; a peer's retry sequence completes
	// before the next peer starts.
	for _, t := range l.cfg.Targets {
		if ctx.Err() != nil {
			return
		}
		l.engine.ProcessPeer(ctx, t, results[t.IP])
	}
}

// dispatch sends an alert without awaiting delivery. Channel failures are
// logged here and nowhere else; there are no retries.
func (l *Loop) dispatch(text string) {
	if l.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := l.notifier.Send(ctx, text); err != nil {
			l.log.Error("alert_send_failed", zap.Error(err))
		}
	}()
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	t := l.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
