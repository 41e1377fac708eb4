package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Annad25/gpu-monitor/internal/domain"
	"github.com/Annad25/gpu-monitor/internal/store"
	"github.com/Annad25/gpu-monitor/internal/store/memory"
)

// fakeProber scripts probe outcomes for one peer.
type fakeProber struct {
	connectivity bool
	pings        []bool
	i            int
	lastURL      string
}

func (f *fakeProber) CheckConnectivity(ctx context.Context) bool { return f.connectivity }

func (f *fakeProber) PingPeer(ctx context.Context, url string) bool {
	f.lastURL = url
	if f.i < len(f.pings) {
		r := f.pings[f.i]
		f.i++
		return r
	}
	return false
}

func testConfig() Config {
	return Config{
		ServerID:          "server-a",
		HealthPort:        8051,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		ConfirmationDelay: 3 * time.Minute,
		ReminderInterval:  2 * time.Hour,
	}
}

func newTestEngine(st store.IncidentStore, p Prober, clk clock.Clock, sent *[]string) *Engine {
	notify := func(text string) { *sent = append(*sent, text) }
	return NewEngine(zap.NewNop(), st, p, notify, clk, testConfig())
}

var nodeB = domain.Target{IP: "10.0.0.2", Name: "node-b"}

func TestEngine_DownCreatesIncident_NoEarlyAlert(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := &fakeProber{connectivity: true} // retries all fail
	var sent []string
	e := newTestEngine(st, p, clock.New(), &sent)

	// same down outcome several ticks in a row, all inside the delay
	for i := 0; i < 3; i++ {
		e.ProcessPeer(ctx, nodeB, false)
	}

	inc, err := st.Find(ctx, nodeB.IP)
	if err != nil || inc == nil {
		t.Fatalf("expected an active incident, got %v %v", inc, err)
	}
	if inc.Status != domain.StatusDown || inc.TargetName != "node-b" {
		t.Fatalf("incident fields wrong: %+v", inc)
	}
	if len(inc.Witnesses) != 1 || inc.Witnesses[0] != "server-a" {
		t.Fatalf("witness list wrong: %+v", inc.Witnesses)
	}
	if len(sent) != 0 {
		t.Fatalf("no alert may fire inside the confirmation delay, got %v", sent)
	}
	if p.lastURL != "http://10.0.0.2:8051/health" {
		t.Fatalf("retry probed wrong URL: %q", p.lastURL)
	}
}

func TestEngine_DownSinceSurvivesRepeatedTicks(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t0 := time.Now().UTC().Add(-90 * time.Second)
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, t0, "server-b")

	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: true}, clock.New(), &sent)
	e.ProcessPeer(ctx, nodeB, false)

	inc, _ := st.Find(ctx, nodeB.IP)
	if !inc.DownSince.Equal(t0) {
		t.Fatalf("down_since must not move on repeated down ticks: %v", inc.DownSince)
	}
	if len(inc.Witnesses) != 2 {
		t.Fatalf("expected the local witness to join the set: %+v", inc.Witnesses)
	}
}

func TestEngine_FirstAlertAfterConfirmationDelay(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, time.Now().UTC().Add(-4*time.Minute), "server-b")

	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: true}, clock.New(), &sent)
	e.ProcessPeer(ctx, nodeB, false)

	if len(sent) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(sent))
	}
	msg := sent[0]
	if !strings.Contains(msg, "CRASH ALERT") || !strings.Contains(msg, "node-b") {
		t.Fatalf("alert text wrong: %q", msg)
	}
	if strings.Contains(msg, "REMINDER") {
		t.Fatalf("first alert must not be marked as a reminder: %q", msg)
	}
	if !strings.Contains(msg, "server-a") || !strings.Contains(msg, "server-b") {
		t.Fatalf("alert should carry the full witness set: %q", msg)
	}

	inc, _ := st.Find(ctx, nodeB.IP)
	if inc.LastAlertSentAt == nil {
		t.Fatal("last_alert_sent_at must be recorded")
	}
	if inc.LastAlertSentAt.Before(inc.DownSince) {
		t.Fatalf("last alert %v before down_since %v", inc.LastAlertSentAt, inc.DownSince)
	}

	// the very next tick is inside the reminder interval
	e.ProcessPeer(ctx, nodeB, false)
	if len(sent) != 1 {
		t.Fatalf("reminder interval should suppress, got %d alerts", len(sent))
	}
}

func TestEngine_ReminderAfterInterval(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, time.Now().UTC().Add(-5*time.Hour), "server-a")
	_ = st.SetLastAlert(ctx, nodeB.IP, time.Now().UTC().Add(-3*time.Hour))

	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: true}, clock.New(), &sent)
	e.ProcessPeer(ctx, nodeB, false)

	if len(sent) != 1 {
		t.Fatalf("expected one reminder, got %d", len(sent))
	}
	if !strings.HasPrefix(sent[0], "*REMINDER:*") {
		t.Fatalf("reminder must carry the marker: %q", sent[0])
	}
}

func TestEngine_NoiseFilterOnRecovery(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	mock := clock.NewMock()
	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: true}, mock, &sent)

	// 40 seconds of downtime: silently cleared
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, mock.Now().UTC().Add(-40*time.Second), "server-a")
	e.ProcessPeer(ctx, nodeB, true)

	if inc, _ := st.Find(ctx, nodeB.IP); inc != nil {
		t.Fatal("blip incident should be deleted")
	}
	if len(sent) != 0 || len(st.History()) != 0 {
		t.Fatalf("sub-minute blip must produce no alert and no history: %v %v", sent, st.History())
	}

	// 90 seconds of downtime: alert plus archive
	t0 := mock.Now().UTC().Add(-90 * time.Second)
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, t0, "server-a")
	e.ProcessPeer(ctx, nodeB, true)

	if len(sent) != 1 || !strings.Contains(sent[0], "RECOVERY") {
		t.Fatalf("expected one recovery alert, got %v", sent)
	}
	if !strings.Contains(sent[0], "1 mins") {
		t.Fatalf("expected downtime in whole minutes: %q", sent[0])
	}
	hist := st.History()
	if len(hist) != 1 {
		t.Fatalf("expected one history record, got %d", len(hist))
	}
	if hist[0].Status != domain.StatusResolved || !hist[0].DownSince.Equal(t0) {
		t.Fatalf("archive snapshot wrong: %+v", hist[0])
	}
	if inc, _ := st.Find(ctx, nodeB.IP); inc != nil {
		t.Fatal("resolved incident must leave active storage")
	}
}

func TestEngine_AliveWithoutIncidentIsNoop(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: true}, clock.New(), &sent)

	e.ProcessPeer(ctx, nodeB, true)
	if len(sent) != 0 || len(st.History()) != 0 {
		t.Fatalf("healthy peer must be a no-op: %v", sent)
	}
}

func TestEngine_ConnectivityLossAbortsPeer(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	var sent []string
	e := newTestEngine(st, &fakeProber{connectivity: false}, clock.New(), &sent)

	e.ProcessPeer(ctx, nodeB, false)

	if inc, _ := st.Find(ctx, nodeB.IP); inc != nil {
		t.Fatal("peer must not be penalized for our own outage")
	}
	if len(sent) != 0 {
		t.Fatalf("no alert on self outage: %v", sent)
	}
}

func TestEngine_RetrySuccessResolvesIncident(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t0 := time.Now().UTC().Add(-5 * time.Minute)
	_ = st.MarkDown(ctx, nodeB.IP, nodeB.Name, t0, "server-a")

	// first retry fails, second answers
	p := &fakeProber{connectivity: true, pings: []bool{false, true}}
	var sent []string
	e := newTestEngine(st, p, clock.New(), &sent)

	e.ProcessPeer(ctx, nodeB, false)

	if inc, _ := st.Find(ctx, nodeB.IP); inc != nil {
		t.Fatal("peer that recovered on retry must resolve")
	}
	if len(sent) != 1 || !strings.Contains(sent[0], "RECOVERY") {
		t.Fatalf("expected the recovery alert, got %v", sent)
	}
}

func TestEngine_CancelledDuringBackoff(t *testing.T) {
	st := memory.New()
	cfg := testConfig()
	cfg.RetryBackoff = time.Hour // long enough that only cancellation can end it
	var sent []string
	e := NewEngine(zap.NewNop(), st, &fakeProber{connectivity: true},
		func(text string) { sent = append(sent, text) }, clock.New(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.ProcessPeer(ctx, nodeB, false)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown must interrupt the backoff wait promptly")
	}
	if len(sent) != 0 {
		t.Fatalf("cancelled processing must not alert: %v", sent)
	}
	if inc, _ := st.Find(context.Background(), nodeB.IP); inc != nil {
		t.Fatal("cancelled processing must not record the peer as down")
	}
}

// errStore fails every operation; the engine must log and move on.
type errStore struct{}

func (errStore) Ping(ctx context.Context) error { return errors.New("store offline") }
func (errStore) Find(ctx context.Context, ip string) (*domain.Incident, error) {
	return nil, errors.New("store offline")
}
func (errStore) MarkDown(ctx context.Context, ip, name string, observedAt time.Time, witness string) error {
	return errors.New("store offline")
}
func (errStore) SetLastAlert(ctx context.Context, ip string, at time.Time) error {
	return errors.New("store offline")
}
func (errStore) Delete(ctx context.Context, ip string) error { return errors.New("store offline") }
func (errStore) Archive(ctx context.Context, rec *domain.HistoryRecord) error {
	return errors.New("store offline")
}

func TestEngine_StoreErrorsAreContained(t *testing.T) {
	ctx := context.Background()
	var sent []string
	e := newTestEngine(errStore{}, &fakeProber{connectivity: true}, clock.New(), &sent)

	// neither path may panic or alert when the store is failing
	e.ProcessPeer(ctx, nodeB, true)
	e.ProcessPeer(ctx, nodeB, false)

	if len(sent) != 0 {
		t.Fatalf("store failures must suppress alerts: %v", sent)
	}
}
