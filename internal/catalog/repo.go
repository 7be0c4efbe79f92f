package catalog

import (
	"context"
	"database/sql"
	"errors"
)

// Repository reads the event catalog and roster from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListEvents returns all events with their sessions attached.
func (r *Repository) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, code, organizer_id, quota
		FROM events
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	index := map[string]int{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Code, &e.OrganizerID, &e.Quota); err != nil {
			return nil, err
		}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, start_time, end_time
		FROM sessions
		ORDER BY event_id, start_time
	`)
	if err != nil {
		return nil, err
	}
	defer srows.Close()

	for srows.Next() {
		var s Session
		var start, end sql.NullTime
		if err := srows.Scan(&s.ID, &s.EventID, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid {
			s.StartTime = start.Time
		}
		if end.Valid {
			s.EndTime = end.Time
		}
		if i, ok := index[s.EventID]; ok {
			events[i].Sessions = append(events[i].Sessions, s)
		}
	}
	return events, srows.Err()
}

// GetSession returns a single session of an event, or nil when not found.
func (r *Repository) GetSession(ctx context.Context, eventID, sessionID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, start_time, end_time
		FROM sessions WHERE event_id = $1 AND id = $2
	`, eventID, sessionID)
	var s Session
	var start, end sql.NullTime
	if err := row.Scan(&s.ID, &s.EventID, &start, &end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if start.Valid {
		s.StartTime = start.Time
	}
	if end.Valid {
		s.EndTime = end.Time
	}
	return &s, nil
}

// ListStudents returns the full roster with enrollments attached.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, card_no
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	index := map[string]int{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.BadgeID); err != nil {
			return nil, err
		}
		s.EnrolledEvents = map[string]bool{}
		index[s.ID] = len(students)
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := r.db.QueryContext(ctx, `SELECT student_id, event_id FROM enrollments`)
	if err != nil {
		return nil, err
	}
	defer erows.Close()

	for erows.Next() {
		var studentID, eventID string
		if err := erows.Scan(&studentID, &eventID); err != nil {
			return nil, err
		}
		if i, ok := index[studentID]; ok {
			students[i].EnrolledEvents[eventID] = true
		}
	}
	return students, erows.Err()
}

// UpsertStudent creates or updates a roster entry.
func (r *Repository) UpsertStudent(ctx context.Context, s Student) error {
	if s.ID == "" || s.BadgeID == "" {
		return errors.New("student id and badge required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, card_no)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, card_no = EXCLUDED.card_no
	`, s.ID, s.Name, s.BadgeID)
	return err
}

// Enroll adds a student to an event's roster.
func (r *Repository) Enroll(ctx context.Context, studentID, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (student_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, event_id) DO NOTHING
	`, studentID, eventID)
	return err
}
