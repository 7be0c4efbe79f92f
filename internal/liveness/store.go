package liveness

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis key holding the projection snapshot.
const DefaultKey = "badgetrack:activesessions"

// Store publishes and loads the projection snapshot in Redis. A plain SET
// of the whole snapshot gives the replace-all semantics the materializer
// needs: entries for sessions no longer live vanish with the old value.
type Store struct {
	client *redis.Client
	key    string
}

// NewStore creates a store under the given key.
func NewStore(client *redis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Publish replaces the stored snapshot.
func (s *Store) Publish(ctx context.Context, p Projection) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

// Load returns the last published snapshot, or an empty projection when
// none has been published yet.
func (s *Store) Load(ctx context.Context) (Projection, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Projection{Events: map[string]map[string]ActiveSession{}}, nil
		}
		return Projection{}, err
	}
	var p Projection
	if err := json.Unmarshal(raw, &p); err != nil {
		return Projection{}, err
	}
	if p.Events == nil {
		p.Events = map[string]map[string]ActiveSession{}
	}
	return p, nil
}
