package catalog

import "time"

// Event is a tracked event with its scheduled sessions.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	OrganizerID string    `json:"organizer_id"`
	Quota       int       `json:"quota"`
	Sessions    []Session `json:"sessions,omitempty"`
}

// Session is a scheduled time window belonging to an event. StartTime or
// EndTime may be the zero time when the organizer never filled them in;
// consumers skip such sessions rather than failing.
type Session struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Student is a roster entry. BadgeID is the join key from physical card
// scans to identity and is unique across the roster.
type Student struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	BadgeID        string          `json:"badge_id"`
	EnrolledEvents map[string]bool `json:"enrolled_events"`
}

// EnrolledIn reports whether the student is enrolled in the event.
func (s Student) EnrolledIn(eventID string) bool {
	return s.EnrolledEvents[eventID]
}
