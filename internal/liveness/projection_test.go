package liveness

import (
	"encoding/json"
	"testing"
	"time"

	"badgetrack/internal/catalog"
)

func fixtureCatalog(base time.Time) []catalog.Event {
	return []catalog.Event{
		{
			ID:   "evt-1",
			Name: "Robotics Workshop",
			Sessions: []catalog.Session{
				{ID: "s1", EventID: "evt-1", StartTime: base, EndTime: base.Add(2 * time.Hour)},
				{ID: "s2", EventID: "evt-1", StartTime: base.Add(3 * time.Hour), EndTime: base.Add(5 * time.Hour)},
			},
		},
		{
			ID:   "evt-2",
			Name: "Career Talk",
			Sessions: []catalog.Session{
				{ID: "s1", EventID: "evt-2", StartTime: base.Add(-2 * time.Hour), EndTime: base.Add(-1 * time.Hour)},
				{ID: "broken", EventID: "evt-2"},
			},
		},
	}
}

func TestBuildFiltersByWindow(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := base.Add(30 * time.Minute)

	p := Build(fixtureCatalog(base), now)

	if len(p.Events) != 1 {
		t.Fatalf("expected 1 active event, got %d", len(p.Events))
	}
	sessions := p.Events["evt-1"]
	if len(sessions) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(sessions))
	}
	s, ok := sessions["s1"]
	if !ok {
		t.Fatal("expected session s1 to be active")
	}
	if s.EventName != "Robotics Workshop" {
		t.Errorf("event name = %q", s.EventName)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := base.Add(30 * time.Minute)
	cat := fixtureCatalog(base)

	first, err := json.Marshal(Build(cat, now))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(Build(cat, now))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("projections differ:\n%s\n%s", first, second)
	}
}

func TestBuildSkipsSessionsWithoutTimes(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p := Build(fixtureCatalog(base), base.Add(-90*time.Minute))

	// evt-2/s1 is active at that instant; the session with no times must
	// not appear even though "now" trivially matches nothing for it.
	sessions := p.Events["evt-2"]
	if _, ok := sessions["broken"]; ok {
		t.Error("session without times made it into the projection")
	}
	if _, ok := sessions["s1"]; !ok {
		t.Error("expected evt-2/s1 to be active")
	}
}

func TestBuildBoundaryInclusive(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cat := fixtureCatalog(base)

	for _, now := range []time.Time{base, base.Add(2 * time.Hour)} {
		p := Build(cat, now)
		if _, ok := p.Events["evt-1"]["s1"]; !ok {
			t.Errorf("session should be active at boundary %s", now)
		}
	}
}

func TestResolveRequiresOwnWindow(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p := Build(fixtureCatalog(base), base.Add(30*time.Minute))

	// Scan inside the materialized window resolves.
	if s, ok := p.Resolve(base.Add(time.Hour)); !ok || s.SessionID != "s1" || s.EventID != "evt-1" {
		t.Fatalf("resolve inside window: ok=%v session=%+v", ok, s)
	}

	// A scan after the session's own end must not resolve, even though the
	// session is still present in the stale snapshot.
	if _, ok := p.Resolve(base.Add(2*time.Hour + time.Minute)); ok {
		t.Error("scan outside the session's own window resolved")
	}
}

func TestResolveOverlapDeterministic(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cat := []catalog.Event{
		{ID: "evt-b", Name: "B", Sessions: []catalog.Session{
			{ID: "s1", EventID: "evt-b", StartTime: base, EndTime: base.Add(time.Hour)},
		}},
		{ID: "evt-a", Name: "A", Sessions: []catalog.Session{
			{ID: "s1", EventID: "evt-a", StartTime: base, EndTime: base.Add(time.Hour)},
		}},
	}
	p := Build(cat, base.Add(10*time.Minute))
	for i := 0; i < 10; i++ {
		s, ok := p.Resolve(base.Add(10 * time.Minute))
		if !ok || s.EventID != "evt-a" {
			t.Fatalf("expected deterministic evt-a, got ok=%v %+v", ok, s)
		}
	}
}
