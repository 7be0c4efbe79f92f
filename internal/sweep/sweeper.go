package sweep

import (
	"context"
	"log"
	"time"

	"badgetrack/internal/attendance"
	"badgetrack/internal/catalog"
	"badgetrack/internal/metrics"
)

// Catalog is the slice of the catalog repository the sweeper needs.
type Catalog interface {
	ListEvents(ctx context.Context) ([]catalog.Event, error)
	ListStudents(ctx context.Context) ([]catalog.Student, error)
}

// RecordStore writes gap-fill absent records.
type RecordStore interface {
	MarkAbsent(ctx context.Context, key attendance.Key, windowStart, windowEnd time.Time) (bool, error)
}

// Sweeper guarantees an attendance record exists for every enrolled
// student on every session that concluded today, filling explicit absent
// records where no valid in-window check-in was recorded. Students who
// attended are untouched: the guarded write underneath is a no-op for
// records with an in-window check-in.
type Sweeper struct {
	catalog Catalog
	records RecordStore
	loc     *time.Location
	now     func() time.Time
}

// New creates a sweeper evaluating "today" in the given location.
func New(cat Catalog, records RecordStore, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{catalog: cat, records: records, loc: loc, now: time.Now}
}

// Run executes one sweep. Per-entry failures are logged and the sweep
// continues; only a failure to load the catalog aborts.
func (s *Sweeper) Run(ctx context.Context) error {
	events, err := s.catalog.ListEvents(ctx)
	if err != nil {
		return err
	}
	students, err := s.catalog.ListStudents(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]catalog.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	now := s.now().In(s.loc)
	year, month, day := now.Date()
	filled := 0

	for _, student := range students {
		for eventID := range student.EnrolledEvents {
			event, ok := byID[eventID]
			if !ok {
				log.Printf("sweep: student %s enrolled in unknown event %s, skipping", student.ID, eventID)
				continue
			}
			for _, session := range event.Sessions {
				if session.StartTime.IsZero() || session.EndTime.IsZero() {
					log.Printf("sweep: session %s of event %s missing times, skipping", session.ID, eventID)
					continue
				}
				sy, sm, sd := session.StartTime.In(s.loc).Date()
				if sy != year || sm != month || sd != day {
					continue
				}
				if now.Before(session.EndTime) {
					// Session still running; absences are not final yet.
					continue
				}

				key := attendance.Key{EventID: eventID, SessionID: session.ID, StudentID: student.ID}
				applied, err := s.records.MarkAbsent(ctx, key, session.StartTime, session.EndTime)
				if err != nil {
					log.Printf("sweep: marking %s/%s/%s absent failed: %v", eventID, session.ID, student.ID, err)
					continue
				}
				if applied {
					filled++
					metrics.SweeperFills.Inc()
					log.Printf("sweep: marked student %s absent for event %s session %s", student.ID, eventID, session.ID)
				}
			}
		}
	}

	log.Printf("sweep: completed, %d absent record(s) filled", filled)
	return nil
}
