package monitor

// Event is what the isolation detector concluded from one tick's scan.
type Event int

const (
	// StayConnected: normal tick, per-peer processing proceeds.
	StayConnected Event = iota
	// EnterIsolation: we just lost the whole mesh; alert about ourselves
	// and skip per-peer processing.
	EnterIsolation
	// StayIsolated: still cut off; log only, skip per-peer processing.
	StayIsolated
	// ExitIsolation: mesh is back; alert reconnection, then process peers
	// in the same tick.
	ExitIsolation
)

// Detector is the two-state (connected/isolated) machine deciding whether
// this instance has lost the entire mesh rather than one peer having
// crashed. State lives for the process lifetime and is never persisted;
// every restart begins connected.
type Detector struct {
	isolated bool
}

// Observe folds one tick's scan into the machine. Isolation requires a
// non-empty peer set with zero answers; a single unreachable peer is never
// isolation.
func (d *Detector) Observe(peerCount, aliveCount int) Event {
	isolated := peerCount > 0 && aliveCount == 0
	switch {
	case isolated && !d.isolated:
		d.isolated = true
		return EnterIsolation
	case isolated:
		return StayIsolated
	case d.isolated:
		d.isolated = false
		return ExitIsolation
	default:
		return StayConnected
	}
}

// Isolated reports the current state.
func (d *Detector) Isolated() bool { return d.isolated }
