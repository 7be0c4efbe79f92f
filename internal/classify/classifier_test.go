package classify

import (
	"context"
	"testing"
	"time"

	"badgetrack/internal/attendance"
	"badgetrack/internal/catalog"
)

type fakeSessions map[string]catalog.Session

func (f fakeSessions) GetSession(ctx context.Context, eventID, sessionID string) (*catalog.Session, error) {
	s, ok := f[eventID+"/"+sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// fakeRecords mirrors the repository's guarded-write semantics in memory.
type fakeRecords struct {
	records map[attendance.Key]*attendance.Record
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: map[attendance.Key]*attendance.Record{}}
}

func (f *fakeRecords) put(rec attendance.Record) {
	cp := rec
	f.records[rec.Key] = &cp
}

func (f *fakeRecords) Get(ctx context.Context, key attendance.Key) (*attendance.Record, error) {
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) SetStatus(ctx context.Context, key attendance.Key, status string) (bool, error) {
	rec, ok := f.records[key]
	if !ok || rec.Status != "" || rec.ActualStatus != "" {
		return false, nil
	}
	rec.Status = status
	return true, nil
}

func (f *fakeRecords) Finalize(ctx context.Context, key attendance.Key, actualStatus string, durationMinutes, percentage float64, forceAbsent bool) (bool, error) {
	rec, ok := f.records[key]
	if !ok || rec.ActualStatus != "" {
		return false, nil
	}
	rec.ActualStatus = actualStatus
	rec.DurationMinutes = &durationMinutes
	rec.AttendancePercentage = &percentage
	if forceAbsent {
		rec.Status = attendance.StatusAbsent
	}
	return true, nil
}

var (
	sessionStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sessionEnd   = sessionStart.Add(100 * time.Minute)
	testKey      = attendance.Key{EventID: "evt-1", SessionID: "s1", StudentID: "stu-1"}
)

func newClassifier(records *fakeRecords) *Classifier {
	sessions := fakeSessions{
		"evt-1/s1": {ID: "s1", EventID: "evt-1", StartTime: sessionStart, EndTime: sessionEnd},
	}
	return New(sessions, records, 5*time.Minute, 70)
}

func recordWithCheckIn(ts time.Time) attendance.Record {
	t := ts
	return attendance.Record{Key: testKey, CheckInTime: &t}
}

func TestGraceWindowBoundary(t *testing.T) {
	cases := []struct {
		name    string
		checkIn time.Time
		want    string
	}{
		{"exactly at deadline", sessionStart.Add(5 * time.Minute), attendance.StatusOnTime},
		{"one second past", sessionStart.Add(5*time.Minute + time.Second), attendance.StatusLate},
		{"before start", sessionStart.Add(-time.Minute), attendance.StatusOnTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := newFakeRecords()
			records.put(recordWithCheckIn(tc.checkIn))
			c := newClassifier(records)

			if err := c.HandleCheckIn(context.Background(), testKey); err != nil {
				t.Fatal(err)
			}
			if got := records.records[testKey].Status; got != tc.want {
				t.Errorf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCheckInStatusNotRevisited(t *testing.T) {
	records := newFakeRecords()
	rec := recordWithCheckIn(sessionStart.Add(20 * time.Minute))
	rec.Status = attendance.StatusLate
	records.put(rec)
	c := newClassifier(records)

	// Redelivery with a record already labeled must not rewrite it, even
	// though a fresh derivation would reach the same conclusion.
	if err := c.HandleCheckIn(context.Background(), testKey); err != nil {
		t.Fatal(err)
	}
	if got := records.records[testKey].Status; got != attendance.StatusLate {
		t.Errorf("status = %q, want untouched %q", got, attendance.StatusLate)
	}
}

func TestPresenceThreshold(t *testing.T) {
	cases := []struct {
		name           string
		minutes        float64
		wantActual     string
		wantPercentage float64
		wantStatus     string
	}{
		{"seventy percent is present", 70, attendance.ActualPresent, 70, attendance.StatusOnTime},
		{"sixtynine percent forces absent", 69, attendance.ActualAbsent, 0, attendance.StatusAbsent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := newFakeRecords()
			rec := recordWithCheckIn(sessionStart)
			rec.Status = attendance.StatusOnTime
			out := sessionStart.Add(time.Duration(tc.minutes) * time.Minute)
			rec.CheckOutTime = &out
			records.put(rec)
			c := newClassifier(records)

			if err := c.HandleCheckOut(context.Background(), testKey); err != nil {
				t.Fatal(err)
			}

			got := records.records[testKey]
			if got.ActualStatus != tc.wantActual {
				t.Errorf("actual status = %q, want %q", got.ActualStatus, tc.wantActual)
			}
			if got.AttendancePercentage == nil || *got.AttendancePercentage != tc.wantPercentage {
				t.Errorf("percentage = %v, want %v", got.AttendancePercentage, tc.wantPercentage)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tc.wantStatus)
			}
			if got.DurationMinutes == nil || *got.DurationMinutes != tc.minutes {
				t.Errorf("duration = %v, want %v", got.DurationMinutes, tc.minutes)
			}
		})
	}
}

func TestCheckOutWithoutCheckInAborts(t *testing.T) {
	records := newFakeRecords()
	out := sessionStart.Add(time.Hour)
	records.put(attendance.Record{Key: testKey, CheckOutTime: &out})
	c := newClassifier(records)

	if err := c.HandleCheckOut(context.Background(), testKey); err != nil {
		t.Fatal(err)
	}
	if got := records.records[testKey].ActualStatus; got != "" {
		t.Errorf("record without check-in was finalized: %q", got)
	}
}

func TestDegenerateSessionAborts(t *testing.T) {
	records := newFakeRecords()
	rec := recordWithCheckIn(sessionStart)
	out := sessionStart.Add(time.Hour)
	rec.CheckOutTime = &out
	records.put(rec)

	sessions := fakeSessions{
		"evt-1/s1": {ID: "s1", EventID: "evt-1", StartTime: sessionStart, EndTime: sessionStart},
	}
	c := New(sessions, records, 5*time.Minute, 70)

	if err := c.HandleCheckOut(context.Background(), testKey); err != nil {
		t.Fatal(err)
	}
	if got := records.records[testKey].ActualStatus; got != "" {
		t.Errorf("zero-duration session produced a classification: %q", got)
	}
}

func TestFinalClassificationNotRevisited(t *testing.T) {
	records := newFakeRecords()
	rec := recordWithCheckIn(sessionStart)
	out := sessionStart.Add(90 * time.Minute)
	rec.CheckOutTime = &out
	rec.Status = attendance.StatusOnTime
	rec.ActualStatus = attendance.ActualPresent
	pct := 90.0
	rec.AttendancePercentage = &pct
	records.put(rec)
	c := newClassifier(records)

	if err := c.HandleCheckOut(context.Background(), testKey); err != nil {
		t.Fatal(err)
	}
	if got := *records.records[testKey].AttendancePercentage; got != 90.0 {
		t.Errorf("complete record was re-derived: %v", got)
	}
}
