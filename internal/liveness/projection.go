package liveness

import (
	"log"
	"sort"
	"time"

	"badgetrack/internal/catalog"
)

// ActiveSession is one entry of the published projection: a session whose
// time window contained "now" at compute time.
type ActiveSession struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	EventName string    `json:"event_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Projection is the full active-session snapshot, keyed eventID then
// sessionID. It is recomputed wholesale on every materializer run;
// ComputedAt versions the snapshot for readers.
type Projection struct {
	ComputedAt time.Time                           `json:"computed_at"`
	Events     map[string]map[string]ActiveSession `json:"events"`
}

// Build computes the projection for a catalog at a fixed instant. Sessions
// with a missing start or end time are skipped with a warning.
func Build(events []catalog.Event, now time.Time) Projection {
	p := Projection{ComputedAt: now, Events: map[string]map[string]ActiveSession{}}
	for _, evt := range events {
		for _, s := range evt.Sessions {
			if s.StartTime.IsZero() || s.EndTime.IsZero() {
				log.Printf("liveness: session %s of event %s missing start or end time, skipping", s.ID, evt.ID)
				continue
			}
			if now.Before(s.StartTime) || now.After(s.EndTime) {
				continue
			}
			if p.Events[evt.ID] == nil {
				p.Events[evt.ID] = map[string]ActiveSession{}
			}
			p.Events[evt.ID][s.ID] = ActiveSession{
				EventID:   evt.ID,
				SessionID: s.ID,
				EventName: evt.Name,
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
			}
		}
	}
	return p
}

// Resolve returns the active session whose own recorded window bounds the
// timestamp. Being present in the snapshot is not enough: a session that
// ended between materializer runs must not attract scans. When several
// windows overlap the lexicographically first (event, session) pair wins.
func (p Projection) Resolve(ts time.Time) (ActiveSession, bool) {
	var matches []ActiveSession
	for _, sessions := range p.Events {
		for _, s := range sessions {
			if !ts.Before(s.StartTime) && !ts.After(s.EndTime) {
				matches = append(matches, s)
			}
		}
	}
	if len(matches) == 0 {
		return ActiveSession{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].EventID != matches[j].EventID {
			return matches[i].EventID < matches[j].EventID
		}
		return matches[i].SessionID < matches[j].SessionID
	})
	return matches[0], true
}
