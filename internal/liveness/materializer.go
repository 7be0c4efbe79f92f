package liveness

import (
	"context"
	"log"
	"time"

	"badgetrack/internal/catalog"
	"badgetrack/internal/metrics"
)

// EventLister loads the event catalog.
type EventLister interface {
	ListEvents(ctx context.Context) ([]catalog.Event, error)
}

// Publisher stores a freshly computed projection.
type Publisher interface {
	Publish(ctx context.Context, p Projection) error
}

// Materializer periodically recomputes which sessions are live right now
// and replaces the published projection. Each run is a full recompute, so
// a failed cycle needs no retry: the next tick self-corrects.
type Materializer struct {
	catalog  EventLister
	out      Publisher
	interval time.Duration
	now      func() time.Time
}

// NewMaterializer creates a materializer with the given refresh interval.
func NewMaterializer(cat EventLister, out Publisher, interval time.Duration) *Materializer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Materializer{catalog: cat, out: out, interval: interval, now: time.Now}
}

// Refresh runs one materialization cycle.
func (m *Materializer) Refresh(ctx context.Context) error {
	events, err := m.catalog.ListEvents(ctx)
	if err != nil {
		return err
	}
	p := Build(events, m.now())
	if err := m.out.Publish(ctx, p); err != nil {
		return err
	}
	metrics.MaterializerRuns.Inc()
	active := 0
	for _, sessions := range p.Events {
		active += len(sessions)
	}
	log.Printf("liveness: published %d active session(s) across %d event(s)", active, len(p.Events))
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
// Failed cycles are logged and skipped.
func (m *Materializer) Run(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		log.Printf("liveness: refresh failed: %v", err)
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				log.Printf("liveness: refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
