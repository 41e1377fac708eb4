package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Annad25/gpu-monitor/internal/domain"
	"github.com/Annad25/gpu-monitor/internal/store"
)

var _ store.IncidentStore = (*Store)(nil)

// Store keeps incidents in process memory. Used by tests and as the
// degraded no-persistence mode when no store URI is configured.
type Store struct {
	mu      sync.RWMutex
	active  map[string]*domain.Incident
	history []*domain.HistoryRecord
}

func New() *Store {
	return &Store{active: make(map[string]*domain.Incident)}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Find(ctx context.Context, ip string) (*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.active[ip]
	if !ok {
		return nil, nil
	}
	cp := *inc
	cp.Witnesses = append([]string(nil), inc.Witnesses...)
	if inc.LastAlertSentAt != nil {
		at := *inc.LastAlertSentAt
		cp.LastAlertSentAt = &at
	}
	return &cp, nil
}

func (s *Store) MarkDown(ctx context.Context, ip, name string, observedAt time.Time, witness string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.active[ip]
	if !ok {
		inc = &domain.Incident{
			IP:        ip,
			DownSince: observedAt,
		}
		s.active[ip] = inc
	}
	inc.Status = domain.StatusDown
	inc.TargetName = name
	if !contains(inc.Witnesses, witness) {
		inc.Witnesses = append(inc.Witnesses, witness)
	}
	return nil
}

func (s *Store) SetLastAlert(ctx context.Context, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inc, ok := s.active[ip]; ok {
		inc.LastAlertSentAt = &at
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ip)
	return nil
}

func (s *Store) Archive(ctx context.Context, rec *domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

// History returns the archived records in insertion order.
func (s *Store) History() []*domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.HistoryRecord(nil), s.history...)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
