package catalog

import (
	"context"
	"sync"
	"time"
)

// StudentLister loads the full roster.
type StudentLister interface {
	ListStudents(ctx context.Context) ([]Student, error)
}

// Roster caches the student roster behind a badge-id index so that scan
// processing resolves identity in O(1) instead of scanning the roster per
// scan. The cache is rebuilt once it is older than the refresh interval.
type Roster struct {
	source  StudentLister
	refresh time.Duration

	mu       sync.RWMutex
	byBadge  map[string]Student
	loadedAt time.Time
}

// NewRoster creates a roster index over the given source.
func NewRoster(source StudentLister, refresh time.Duration) *Roster {
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	return &Roster{source: source, refresh: refresh}
}

// ByBadge returns the student owning a badge, refreshing the index first
// when stale. The second return is false for unknown badges.
func (r *Roster) ByBadge(ctx context.Context, badgeID string) (Student, bool, error) {
	r.mu.RLock()
	fresh := r.byBadge != nil && time.Since(r.loadedAt) < r.refresh
	if fresh {
		s, ok := r.byBadge[badgeID]
		r.mu.RUnlock()
		return s, ok, nil
	}
	r.mu.RUnlock()

	if err := r.Reload(ctx); err != nil {
		// Serve the stale index if we have one; the scan is better
		// attributed late than dropped.
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.byBadge == nil {
			return Student{}, false, err
		}
		s, ok := r.byBadge[badgeID]
		return s, ok, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byBadge[badgeID]
	return s, ok, nil
}

// Reload rebuilds the badge index from the source immediately.
func (r *Roster) Reload(ctx context.Context) error {
	students, err := r.source.ListStudents(ctx)
	if err != nil {
		return err
	}
	byBadge := make(map[string]Student, len(students))
	for _, s := range students {
		if s.BadgeID == "" {
			continue
		}
		byBadge[s.BadgeID] = s
	}
	r.mu.Lock()
	r.byBadge = byBadge
	r.loadedAt = time.Now()
	r.mu.Unlock()
	return nil
}
