package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Annad25/gpu-monitor/internal/domain"
	"github.com/Annad25/gpu-monitor/internal/store"
)

// Prober is what the monitor needs from the network layer.
type Prober interface {
	CheckConnectivity(ctx context.Context) bool
	PingPeer(ctx context.Context, url string) bool
}

// Engine runs the per-peer crash/recovery decision: confirmation retries,
// incident upsert, alert timing and resolution with archival. It is the
// only writer of active incidents and the only creator of history records.
type Engine struct {
	log    *zap.Logger
	store  store.IncidentStore
	prober Prober
	notify func(text string)
	clock  clock.Clock
	cfg    Config
}

func NewEngine(log *zap.Logger, st store.IncidentStore, p Prober, notify func(string), clk clock.Clock, cfg Config) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{log: log, store: st, prober: p, notify: notify, clock: clk, cfg: cfg}
}

// ProcessPeer handles one peer using its outcome from the tick's isolation
// scan. Failed peers get a confirmation pass first; store errors are
// logged and abandon only this peer, never the tick.
func (e *Engine) ProcessPeer(ctx context.Context, t domain.Target, alive bool) {
	if !alive {
		confirmed, ok := e.confirmDown(ctx, t)
		if !ok {
			return
		}
		alive = confirmed
	}
	if alive {
		e.handleAlive(ctx, t)
	} else {
		e.handleDown(ctx, t)
	}
}

// confirmDown re-checks a peer that failed the scan before we blame it.
// ok=false means our own connectivity vanished (or we were cancelled)
// mid-tick and the peer must not be penalized.
func (e *Engine) confirmDown(ctx context.Context, t domain.Target) (alive, ok bool) {
	if !e.prober.CheckConnectivity(ctx) {
		e.log.Warn("connectivity_lost_mid_tick", zap.String("peer", t.Name))
		return false, false
	}

	e.log.Info("peer_failed_check_retrying",
		zap.String("peer", t.Name),
		zap.String("ip", t.IP),
	)
	url := peerURL(t.IP, e.cfg.HealthPort)
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if !e.sleep(ctx, e.cfg.RetryBackoff) {
			return false, false
		}
		if e.prober.PingPeer(ctx, url) {
			e.log.Info("peer_recovered_on_retry",
				zap.String("peer", t.Name),
				zap.Int("attempt", attempt),
			)
			return true, true
		}
	}
	return false, true
}

func (e *Engine) handleAlive(ctx context.Context, t domain.Target) {
	inc, err := e.store.Find(ctx, t.IP)
	if err != nil {
		e.log.Error("incident_lookup_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}
	if inc == nil {
		return // was already considered up
	}

	recoveredAt := e.clock.Now().UTC()
	downFor := recoveredAt.Sub(inc.DownSince)

	if err := e.store.Delete(ctx, t.IP); err != nil {
		e.log.Error("incident_delete_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}

	if downFor < NoiseFloor {
		e.log.Info("blip_resolved",
			zap.String("peer", t.Name),
			zap.Duration("down_for", downFor),
		)
		return
	}

	if err := e.store.Archive(ctx, inc.Resolve(recoveredAt)); err != nil {
		e.log.Error("archive_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}

	mins := int(downFor.Minutes())
	e.log.Info("recovery_detected",
		zap.String("peer", t.Name),
		zap.Int("mins_down", mins),
	)
	e.notify(fmt.Sprintf(
		"*RECOVERY:* Server *%s* (%s) is back online.\nWas down for: %d mins",
		t.Name, t.IP, mins,
	))
}

func (e *Engine) handleDown(ctx context.Context, t domain.Target) {
	now := e.clock.Now().UTC()

	if err := e.store.MarkDown(ctx, t.IP, t.Name, now, e.cfg.ServerID); err != nil {
		e.log.Error("incident_upsert_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}
	inc, err := e.store.Find(ctx, t.IP)
	if err != nil {
		e.log.Error("incident_lookup_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}
	if inc == nil {
		// raced with another instance resolving it; next tick settles it
		return
	}

	fire, reminder := alertDecision(inc.DownSince, inc.LastAlertSentAt, now,
		e.cfg.ConfirmationDelay, e.cfg.ReminderInterval)
	if !fire {
		return
	}

	mins := int(now.Sub(inc.DownSince).Minutes())
	msg := fmt.Sprintf(
		"*CRASH ALERT:* *%s* (%s) is DOWN.\nDown for: %d mins\nConfirmed by: %s",
		t.Name, t.IP, mins, strings.Join(inc.Witnesses, ", "),
	)
	if reminder {
		msg = "*REMINDER:* " + msg
	}

	e.log.Warn("sending_crash_alert",
		zap.String("peer", t.Name),
		zap.Int("mins_down", mins),
		zap.Bool("reminder", reminder),
		zap.Strings("witnesses", inc.Witnesses),
	)

	// Record the send time before dispatching so a concurrent tick can't
	// double-fire on the same record.
	if err := e.store.SetLastAlert(ctx, t.IP, now); err != nil {
		e.log.Error("alert_timestamp_update_failed", zap.String("peer", t.Name), zap.Error(err))
		return
	}
	e.notify(msg)
}

// sleep waits d on the engine's clock; false means ctx was cancelled
// first. Keeping retries on the clock makes a shutdown mid-backoff
// return promptly.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func peerURL(ip string, port int) string {
	return fmt.Sprintf("http://%s:%d/health", ip, port)
}
