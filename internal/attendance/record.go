package attendance

import "time"

// Check-in timeliness labels. StatusAbsent additionally overrides the
// timeliness label when the final classification forces an absence.
const (
	StatusOnTime = "onTime"
	StatusLate   = "late"
	StatusAbsent = "absent"
)

// Final attendance labels.
const (
	ActualPresent = "present"
	ActualAbsent  = "absent"
)

// Key identifies one attendance record.
type Key struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
}

// Record is the per-(event, session, student) attendance state. Fields
// accumulate over its lifecycle: the derivation engine writes the check
// times, the classifier writes everything else. A record with ActualStatus
// set is complete and closed to further pipeline writes.
type Record struct {
	Key
	CheckInTime          *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime         *time.Time `json:"check_out_time,omitempty"`
	Status               string     `json:"status,omitempty"`
	ActualStatus         string     `json:"actual_status,omitempty"`
	DurationMinutes      *float64   `json:"duration_minutes,omitempty"`
	AttendancePercentage *float64   `json:"attendance_percentage,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Closed reports whether both scan-derived fields are set, after which the
// record accepts no further scans.
func (r *Record) Closed() bool {
	return r != nil && r.CheckInTime != nil && r.CheckOutTime != nil
}

// Complete reports whether the final classification was written. A complete
// record is closed to the whole pipeline, even when it carries no check
// times at all (sweeper-filled absences).
func (r *Record) Complete() bool {
	return r != nil && r.ActualStatus != ""
}
