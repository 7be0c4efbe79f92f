package scanlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one raw badge scan as produced by the hardware bridge. Entries
// are append-only: the pipeline reads them but never updates or deletes.
type Entry struct {
	ID        string    `json:"id"`
	BadgeID   string    `json:"badge_id"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository appends scan log entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertDevice ensures a scanner-bridge device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return err
}

// Insert appends a new entry.
func (r *Repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.BadgeID == "" {
		return Entry{}, errors.New("badge id required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO scan_logs (id, badge_id, scanned_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, e.ID, e.BadgeID, e.Timestamp)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns recent entries, newest first.
func (r *Repository) List(ctx context.Context, badgeID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, badge_id, scanned_at, created_at FROM scan_logs`
	args := []any{}
	if badgeID != "" {
		query += ` WHERE badge_id = $1`
		args = append(args, badgeID)
	}
	query += ` ORDER BY scanned_at DESC LIMIT ` + fmt.Sprintf("%d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BadgeID, &e.Timestamp, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
