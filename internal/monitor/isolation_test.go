package monitor

import "testing"

func TestDetector_EdgeSequence(t *testing.T) {
	d := &Detector{}
	steps := []struct {
		peers, alive int
		want         Event
	}{
		{2, 2, StayConnected},
		{2, 1, StayConnected}, // one dead peer is never isolation
		{2, 0, EnterIsolation},
		{2, 0, StayIsolated},
		{2, 0, StayIsolated},
		{2, 1, ExitIsolation},
		{2, 2, StayConnected},
		{2, 0, EnterIsolation}, // a second outage is a fresh edge
	}
	for i, s := range steps {
		if got := d.Observe(s.peers, s.alive); got != s.want {
			t.Fatalf("step %d: Observe(%d,%d)=%v want %v", i, s.peers, s.alive, got, s.want)
		}
	}
}

func TestDetector_EmptyMeshNeverIsolates(t *testing.T) {
	d := &Detector{}
	for i := 0; i < 3; i++ {
		if got := d.Observe(0, 0); got != StayConnected {
			t.Fatalf("empty mesh must stay connected, got %v", got)
		}
	}
	if d.Isolated() {
		t.Fatal("detector should not be isolated")
	}
}

func TestDetector_StartsConnected(t *testing.T) {
	d := &Detector{}
	if d.Isolated() {
		t.Fatal("fresh detector must start connected")
	}
	// straight into a dead mesh on the very first tick is an edge
	if got := d.Observe(1, 0); got != EnterIsolation {
		t.Fatalf("got %v want EnterIsolation", got)
	}
}
