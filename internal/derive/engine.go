package derive

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"badgetrack/internal/attendance"
	"badgetrack/internal/catalog"
	"badgetrack/internal/liveness"
	"badgetrack/internal/metrics"
	"badgetrack/internal/queue"
	"badgetrack/internal/scanlog"
)

// BadgeResolver resolves a badge id to a roster entry.
type BadgeResolver interface {
	ByBadge(ctx context.Context, badgeID string) (catalog.Student, bool, error)
}

// ProjectionSource loads the current active-session snapshot.
type ProjectionSource interface {
	Load(ctx context.Context) (liveness.Projection, error)
}

// RecordStore is the slice of the attendance repository the engine needs.
type RecordStore interface {
	Get(ctx context.Context, key attendance.Key) (*attendance.Record, error)
	RecordCheckIn(ctx context.Context, key attendance.Key, ts time.Time) (bool, error)
	RecordCheckOut(ctx context.Context, key attendance.Key, ts time.Time) (bool, error)
}

// Engine turns raw badge scans into check-in/check-out writes on
// attendance records. Unattributable scans (unknown badge, no live
// session, student not enrolled) are discarded with a log line: the
// hardware producer cannot react to them, so they are not errors. Only
// store failures are returned, for the caller to retry.
type Engine struct {
	roster      BadgeResolver
	projections ProjectionSource
	records     RecordStore
	out         queue.Queue
}

// NewEngine creates an engine.
func NewEngine(roster BadgeResolver, projections ProjectionSource, records RecordStore, out queue.Queue) *Engine {
	return &Engine{roster: roster, projections: projections, records: records, out: out}
}

// HandleScan processes one scan log entry.
func (e *Engine) HandleScan(ctx context.Context, entry scanlog.Entry) error {
	if entry.BadgeID == "" || entry.Timestamp.IsZero() {
		log.Printf("derive: scan %s malformed (badge=%q ts=%s), discarding", entry.ID, entry.BadgeID, entry.Timestamp)
		metrics.ScansDiscarded.WithLabelValues("malformed").Inc()
		return nil
	}

	student, ok, err := e.roster.ByBadge(ctx, entry.BadgeID)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("derive: no student with badge %s, discarding scan %s", entry.BadgeID, entry.ID)
		metrics.ScansDiscarded.WithLabelValues("unknown_badge").Inc()
		return nil
	}

	proj, err := e.projections.Load(ctx)
	if err != nil {
		return err
	}
	session, ok := proj.Resolve(entry.Timestamp)
	if !ok {
		log.Printf("derive: no session window contains %s, discarding scan %s", entry.Timestamp, entry.ID)
		metrics.ScansDiscarded.WithLabelValues("no_active_session").Inc()
		return nil
	}

	if !student.EnrolledIn(session.EventID) {
		log.Printf("derive: student %s not enrolled in event %s, discarding scan %s", student.ID, session.EventID, entry.ID)
		metrics.ScansDiscarded.WithLabelValues("not_enrolled").Inc()
		return nil
	}

	key := attendance.Key{EventID: session.EventID, SessionID: session.SessionID, StudentID: student.ID}
	rec, err := e.records.Get(ctx, key)
	if err != nil {
		return err
	}

	switch {
	case rec.Complete():
		// Finalized record, possibly a sweeper-filled absence with no
		// check-in at all. Closed to scan-derived mutation either way.
		log.Printf("derive: record %s/%s/%s already finalized, discarding scan %s",
			key.EventID, key.SessionID, key.StudentID, entry.ID)
		metrics.ScansDiscarded.WithLabelValues("closed_record").Inc()
		return nil

	case rec == nil || rec.CheckInTime == nil:
		applied, err := e.records.RecordCheckIn(ctx, key, entry.Timestamp)
		if err != nil {
			return err
		}
		if !applied {
			// Lost the race against a concurrent scan; that scan's
			// check-in stands.
			log.Printf("derive: check-in for %s/%s/%s already recorded", key.EventID, key.SessionID, key.StudentID)
			return nil
		}
		metrics.CheckInsRecorded.Inc()
		log.Printf("derive: check-in recorded for student %s at %s (event %s, session %s)",
			student.ID, entry.Timestamp, key.EventID, key.SessionID)
		return e.publish(ctx, queue.TypeCheckIn, key)

	case rec.CheckOutTime == nil:
		if rec.CheckInTime.Equal(entry.Timestamp) {
			// Redelivered first scan, not a second detection.
			log.Printf("derive: duplicate scan %s for %s/%s/%s, discarding", entry.ID, key.EventID, key.SessionID, key.StudentID)
			metrics.ScansDiscarded.WithLabelValues("duplicate").Inc()
			return nil
		}
		applied, err := e.records.RecordCheckOut(ctx, key, entry.Timestamp)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("derive: check-out for %s/%s/%s not applicable, discarding scan %s",
				key.EventID, key.SessionID, key.StudentID, entry.ID)
			metrics.ScansDiscarded.WithLabelValues("checkout_rejected").Inc()
			return nil
		}
		metrics.CheckOutsRecorded.Inc()
		log.Printf("derive: check-out recorded for student %s at %s (event %s, session %s)",
			student.ID, entry.Timestamp, key.EventID, key.SessionID)
		return e.publish(ctx, queue.TypeCheckOut, key)

	default:
		// Record already holds both scans: closed to further mutation.
		log.Printf("derive: record %s/%s/%s closed, discarding scan %s",
			key.EventID, key.SessionID, key.StudentID, entry.ID)
		metrics.ScansDiscarded.WithLabelValues("closed_record").Inc()
		return nil
	}
}

func (e *Engine) publish(ctx context.Context, msgType string, key attendance.Key) error {
	body, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return e.out.Publish(ctx, queue.Message{Type: msgType, Body: body})
}
