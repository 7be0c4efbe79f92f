package classify

import (
	"context"
	"log"
	"time"

	"badgetrack/internal/attendance"
	"badgetrack/internal/catalog"
	"badgetrack/internal/metrics"
)

// SessionSource fetches session timing from the catalog.
type SessionSource interface {
	GetSession(ctx context.Context, eventID, sessionID string) (*catalog.Session, error)
}

// RecordStore is the slice of the attendance repository the classifier needs.
type RecordStore interface {
	Get(ctx context.Context, key attendance.Key) (*attendance.Record, error)
	SetStatus(ctx context.Context, key attendance.Key, status string) (bool, error)
	Finalize(ctx context.Context, key attendance.Key, actualStatus string, durationMinutes, percentage float64, forceAbsent bool) (bool, error)
}

// Classifier derives attendance quality from recorded check times. The
// check-in stage labels timeliness against the session start plus a grace
// window; the check-out stage derives duration, attendance percentage and
// the final present/absent verdict. Both stages are guarded no-ops when
// their output fields are already set, so redelivered messages are safe.
type Classifier struct {
	sessions  SessionSource
	records   RecordStore
	grace     time.Duration
	threshold float64
}

// New creates a classifier. The grace window defaults to 5 minutes and the
// presence threshold to 70 percent.
func New(sessions SessionSource, records RecordStore, grace time.Duration, threshold float64) *Classifier {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 70
	}
	return &Classifier{sessions: sessions, records: records, grace: grace, threshold: threshold}
}

// HandleCheckIn labels a freshly recorded check-in as onTime or late.
func (c *Classifier) HandleCheckIn(ctx context.Context, key attendance.Key) error {
	rec, err := c.records.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || rec.CheckInTime == nil {
		log.Printf("classify: no check-in time for %s/%s/%s, skipping", key.EventID, key.SessionID, key.StudentID)
		return nil
	}
	if rec.Status != "" || rec.ActualStatus != "" {
		// Already classified; redelivery or a sweeper write got here first.
		return nil
	}

	session, err := c.sessions.GetSession(ctx, key.EventID, key.SessionID)
	if err != nil {
		return err
	}
	if session == nil || session.StartTime.IsZero() {
		log.Printf("classify: session start time not found for event %s session %s", key.EventID, key.SessionID)
		return nil
	}

	deadline := session.StartTime.Add(c.grace)
	status := attendance.StatusOnTime
	if rec.CheckInTime.After(deadline) {
		status = attendance.StatusLate
	}

	applied, err := c.records.SetStatus(ctx, key, status)
	if err != nil {
		return err
	}
	if applied {
		metrics.Classifications.WithLabelValues("checkin", status).Inc()
		log.Printf("classify: student %s %s for session %s (check-in %s, deadline %s)",
			key.StudentID, status, key.SessionID, rec.CheckInTime, deadline)
	}
	return nil
}

// HandleCheckOut derives the final classification once a check-out exists.
func (c *Classifier) HandleCheckOut(ctx context.Context, key attendance.Key) error {
	rec, err := c.records.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || rec.CheckOutTime == nil {
		log.Printf("classify: no check-out time for %s/%s/%s, skipping", key.EventID, key.SessionID, key.StudentID)
		return nil
	}
	if rec.CheckInTime == nil {
		// Should be unreachable given the engine's ordering, but a record
		// without a check-in cannot be scored.
		log.Printf("classify: check-out without check-in for %s/%s/%s, aborting", key.EventID, key.SessionID, key.StudentID)
		return nil
	}
	if rec.ActualStatus != "" {
		return nil
	}

	session, err := c.sessions.GetSession(ctx, key.EventID, key.SessionID)
	if err != nil {
		return err
	}
	if session == nil || session.StartTime.IsZero() || session.EndTime.IsZero() {
		log.Printf("classify: session times not found for event %s session %s", key.EventID, key.SessionID)
		return nil
	}

	sessionMinutes := session.EndTime.Sub(session.StartTime).Minutes()
	if sessionMinutes <= 0 {
		log.Printf("classify: session %s of event %s has non-positive duration, aborting", key.SessionID, key.EventID)
		return nil
	}

	durationMinutes := rec.CheckOutTime.Sub(*rec.CheckInTime).Minutes()
	percentage := durationMinutes / sessionMinutes * 100

	actual := attendance.ActualPresent
	forceAbsent := false
	if percentage < c.threshold {
		// An absence from insufficient duration zeroes the percentage and
		// replaces any stale onTime/late label.
		actual = attendance.ActualAbsent
		percentage = 0
		forceAbsent = true
	}

	applied, err := c.records.Finalize(ctx, key, actual, durationMinutes, percentage, forceAbsent)
	if err != nil {
		return err
	}
	if applied {
		metrics.Classifications.WithLabelValues("checkout", actual).Inc()
		log.Printf("classify: student %s %s for session %s (%.1f min, %.1f%%)",
			key.StudentID, actual, key.SessionID, durationMinutes, percentage)
	}
	return nil
}
