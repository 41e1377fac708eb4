package monitor

import "time"

// Defaults for the alert-throttling policy and loop cadence. All of them
// are overridable through Config.
const (
	DefaultTickInterval      = 30 * time.Second
	DefaultWarmup            = 5 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 10 * time.Second
	DefaultConfirmationDelay = 3 * time.Minute
	DefaultReminderInterval  = 2 * time.Hour

	// NoiseFloor: recoveries shorter than this are cleared silently, with
	// no alert and no history entry.
	NoiseFloor = time.Minute
)

// alertDecision says whether a crash alert should fire for an incident
// down since downSince, and whether it is a reminder of one already sent.
// Nothing fires inside the confirmation delay; after that the first alert
// fires exactly once (lastAlert still nil), and reminders follow whenever
// the reminder interval has elapsed since the previous send.
func alertDecision(downSince time.Time, lastAlert *time.Time, now time.Time, confirmationDelay, reminderInterval time.Duration) (fire, reminder bool) {
	if now.Sub(downSince) < confirmationDelay {
		return false, false
	}
	if lastAlert == nil {
		return true, false
	}
	if now.Sub(*lastAlert) > reminderInterval {
		return true, true
	}
	return false, false
}
