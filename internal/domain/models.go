package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTargetName is used for TARGETS entries that carry no display label.
const DefaultTargetName = "Unknown-GPU"

// Incident status values as stored in the document store.
const (
	StatusDown     = "down"
	StatusResolved = "resolved"
)

// Target is one monitored peer. Identity is the IP; Name is only a display
// label. The target set is loaded once at startup and never changes.
type Target struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// ParseTargets parses the "ip|name,ip2|name2" target-list format. Entries
// without a "|name" part get DefaultTargetName; empty entries are skipped.
func ParseTargets(raw string) []Target {
	var out []Target
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ip, name, ok := strings.Cut(item, "|")
		if !ok {
			name = DefaultTargetName
		}
		ip = strings.TrimSpace(ip)
		name = strings.TrimSpace(name)
		if ip == "" {
			continue
		}
		out = append(out, Target{IP: ip, Name: name})
	}
	return out
}

// Incident is the active crash record for one peer, keyed by IP. At most one
// exists per peer at any time. DownSince is set when the record is created
// and never mutated afterwards; LastAlertSentAt stays nil until the first
// crash alert goes out. Witnesses accumulates every monitor instance that
// has independently observed the peer down.
type Incident struct {
	IP              string     `bson:"_id" json:"ip"`
	Status          string     `bson:"status" json:"status"`
	TargetName      string     `bson:"target_name" json:"target_name"`
	DownSince       time.Time  `bson:"down_since" json:"down_since"`
	LastAlertSentAt *time.Time `bson:"last_alert_sent_at" json:"last_alert_sent_at"`
	Witnesses       []string   `bson:"witnesses" json:"witnesses"`
}

// HistoryRecord is the write-once archive entry created when an incident
// resolves. Repeated down/up cycles for one peer each get a distinct record
// because the key includes the resolution timestamp.
type HistoryRecord struct {
	ID          string    `bson:"_id" json:"id"`
	IP          string    `bson:"ip" json:"ip"`
	Status      string    `bson:"status" json:"status"`
	TargetName  string    `bson:"target_name" json:"target_name"`
	DownSince   time.Time `bson:"down_since" json:"down_since"`
	RecoveredAt time.Time `bson:"recovered_at" json:"recovered_at"`
	Witnesses   []string  `bson:"witnesses" json:"witnesses"`
}

// HistoryID builds the archive key for a resolution at the given instant.
func HistoryID(ip string, recoveredAt time.Time) string {
	return fmt.Sprintf("%s_%s", ip, recoveredAt.UTC().Format("20060102_150405"))
}

// Resolve snapshots the incident into its archival form.
func (i *Incident) Resolve(recoveredAt time.Time) *HistoryRecord {
	return &HistoryRecord{
		ID:          HistoryID(i.IP, recoveredAt),
		IP:          i.IP,
		Status:      StatusResolved,
		TargetName:  i.TargetName,
		DownSince:   i.DownSince,
		RecoveredAt: recoveredAt,
		Witnesses:   append([]string(nil), i.Witnesses...),
	}
}
