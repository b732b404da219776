package alerts

import (
	"context"
	"sync"
)

// Store persists alerts. Create must be safe against concurrent writers: at most one open
// alert per (organization, fingerprint).
type Store interface {
	ExistsOpen(ctx context.Context, organizationID, fingerprint string, statuses []string) (bool, error)
	Create(ctx context.Context, alert *Alert) error
}

// MemoryStore keeps alerts in process. It is used by tests and single-instance setups.
type MemoryStore struct {
	mu           sync.Mutex
	alerts       []Alert
	openStatuses map[Status]struct{}
}

func NewMemoryStore(openStatuses []string) *MemoryStore {
	open := make(map[Status]struct{}, len(openStatuses))
	for _, s := range openStatuses {
		open[Status(s)] = struct{}{}
	}
	return &MemoryStore{openStatuses: open}
}

func (s *MemoryStore) ExistsOpen(_ context.Context, organizationID, fingerprint string, statuses []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.alerts {
		if a.OrganizationID != organizationID || a.Fingerprint != fingerprint {
			continue
		}
		for _, st := range statuses {
			if string(a.Status) == st {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) Create(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.openStatuses[alert.Status]; open {
		for _, a := range s.alerts {
			if a.OrganizationID != alert.OrganizationID || a.Fingerprint != alert.Fingerprint {
				continue
			}
			if _, ok := s.openStatuses[a.Status]; ok {
				return ErrDuplicateAlert
			}
		}
	}

	s.alerts = append(s.alerts, *alert)
	return nil
}

// Resolve marks every open alert with fingerprint as resolved.
func (s *MemoryStore) Resolve(organizationID, fingerprint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.OrganizationID != organizationID || a.Fingerprint != fingerprint {
			continue
		}
		if _, ok := s.openStatuses[a.Status]; ok {
			a.Status = StatusResolved
			n++
		}
	}
	return n
}

func (s *MemoryStore) List() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
