package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists attendance records in Postgres.
//
// Every mutation is a guarded conditional write, so redelivered pipeline
// messages and concurrent trigger firings degrade to no-ops instead of
// clobbering earlier state. The bool each mutation returns reports whether
// the write actually applied.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `event_id, session_id, student_id, check_in_time, check_out_time,
	status, actual_status, duration_minutes, attendance_percentage, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var checkIn, checkOut sql.NullTime
	var status, actual sql.NullString
	var duration, percentage sql.NullFloat64
	err := row.Scan(&rec.EventID, &rec.SessionID, &rec.StudentID, &checkIn, &checkOut,
		&status, &actual, &duration, &percentage, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if checkIn.Valid {
		t := checkIn.Time
		rec.CheckInTime = &t
	}
	if checkOut.Valid {
		t := checkOut.Time
		rec.CheckOutTime = &t
	}
	rec.Status = status.String
	rec.ActualStatus = actual.String
	if duration.Valid {
		v := duration.Float64
		rec.DurationMinutes = &v
	}
	if percentage.Valid {
		v := percentage.Float64
		rec.AttendancePercentage = &v
	}
	return &rec, nil
}

// Get returns the record for a key, or nil when none exists.
func (r *Repository) Get(ctx context.Context, key Key) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance
		WHERE event_id = $1 AND session_id = $2 AND student_id = $3
	`, key.EventID, key.SessionID, key.StudentID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// RecordCheckIn sets the check-in time, creating the record when needed.
// A record that already has a check-in time, or that was already finalized
// (a sweeper-filled absence has no check-in but is complete), is left
// untouched.
func (r *Repository) RecordCheckIn(ctx context.Context, key Key, ts time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (event_id, session_id, student_id, check_in_time, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id, session_id, student_id) DO UPDATE
		SET check_in_time = EXCLUDED.check_in_time, updated_at = NOW()
		WHERE attendance.check_in_time IS NULL
		  AND attendance.actual_status IS NULL
	`, key.EventID, key.SessionID, key.StudentID, ts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordCheckOut sets the check-out time on a record that has a check-in
// but no check-out yet. The check-out may not precede the check-in.
func (r *Repository) RecordCheckOut(ctx context.Context, key Key, ts time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET check_out_time = $4, updated_at = NOW()
		WHERE event_id = $1 AND session_id = $2 AND student_id = $3
		  AND check_in_time IS NOT NULL
		  AND check_out_time IS NULL
		  AND actual_status IS NULL
		  AND check_in_time <= $4
	`, key.EventID, key.SessionID, key.StudentID, ts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetStatus writes the timeliness label once. Records that already carry a
// status or a final classification are left untouched.
func (r *Repository) SetStatus(ctx context.Context, key Key, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = $4, updated_at = NOW()
		WHERE event_id = $1 AND session_id = $2 AND student_id = $3
		  AND status IS NULL
		  AND actual_status IS NULL
	`, key.EventID, key.SessionID, key.StudentID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Finalize writes the final classification once. When forceAbsent is set
// the legacy timeliness label is overridden to "absent" as well.
func (r *Repository) Finalize(ctx context.Context, key Key, actualStatus string, durationMinutes, percentage float64, forceAbsent bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET actual_status = $4,
		    duration_minutes = $5,
		    attendance_percentage = $6,
		    status = CASE WHEN $7 THEN 'absent' ELSE status END,
		    updated_at = NOW()
		WHERE event_id = $1 AND session_id = $2 AND student_id = $3
		  AND actual_status IS NULL
	`, key.EventID, key.SessionID, key.StudentID, actualStatus, durationMinutes, percentage, forceAbsent)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkAbsent writes an explicit absent record unless an in-window check-in
// already exists. Used by the absence sweeper to fill gaps.
func (r *Repository) MarkAbsent(ctx context.Context, key Key, windowStart, windowEnd time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (event_id, session_id, student_id, check_in_time, check_out_time,
			status, actual_status, attendance_percentage, updated_at)
		VALUES ($1, $2, $3, NULL, NULL, 'absent', 'absent', 0, NOW())
		ON CONFLICT (event_id, session_id, student_id) DO UPDATE
		SET check_in_time = NULL,
		    check_out_time = NULL,
		    status = 'absent',
		    actual_status = 'absent',
		    duration_minutes = NULL,
		    attendance_percentage = 0,
		    updated_at = NOW()
		WHERE attendance.check_in_time IS NULL
		   OR attendance.check_in_time < $4
		   OR attendance.check_in_time > $5
	`, key.EventID, key.SessionID, key.StudentID, windowStart, windowEnd)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns records with basic filters.
func (r *Repository) List(ctx context.Context, eventID, sessionID, studentID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + recordColumns + ` FROM attendance`
	args := []any{}
	clauses := []string{}
	if eventID != "" {
		clauses = append(clauses, "event_id = $"+itoa(len(args)+1))
		args = append(args, eventID)
	}
	if sessionID != "" {
		clauses = append(clauses, "session_id = $"+itoa(len(args)+1))
		args = append(args, sessionID)
	}
	if studentID != "" {
		clauses = append(clauses, "student_id = $"+itoa(len(args)+1))
		args = append(args, studentID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
