package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
)

// Store persists the source registry, the active source pointer and the migration marker
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveSources replaces the persisted registry. The local source is never written.
func (s *Store) SaveSources(ctx context.Context, sources []domain.DataSource) error {
	out := make([]domain.DataSource, 0, len(sources))
	for _, src := range sources {
		if src.IsLocal() {
			continue
		}
		out = append(out, src)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := s.client.Set(ctx, KeySources, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sources: %w", err)
	}
	return nil
}

// LoadSources returns the persisted registry, empty when nothing was saved yet
func (s *Store) LoadSources(ctx context.Context) ([]domain.DataSource, error) {
	data, err := s.client.Get(ctx, KeySources).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.DataSource{}, nil
		}
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	var sources []domain.DataSource
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return sources, nil
}

// SaveActiveSource stores the active source id
func (s *Store) SaveActiveSource(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, KeyActiveSource, id, 0).Err(); err != nil {
		return fmt.Errorf("failed to save active source: %w", err)
	}
	return nil
}

// LoadActiveSource returns the stored active source id, or "" when unset
func (s *Store) LoadActiveSource(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, KeyActiveSource).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get active source: %w", err)
	}
	return id, nil
}

// MigrationVersion returns the last applied migration version, 0 when none ran
func (s *Store) MigrationVersion(ctx context.Context) (int, error) {
	raw, err := s.client.Get(ctx, KeyMigrationVersion).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version %q: %w", raw, err)
	}
	return v, nil
}

// SetMigrationVersion records that migrations up to v have been applied
func (s *Store) SetMigrationVersion(ctx context.Context, v int) error {
	if err := s.client.Set(ctx, KeyMigrationVersion, v, 0).Err(); err != nil {
		return fmt.Errorf("failed to save migration version: %w", err)
	}
	return nil
}

// RetireSourceID records that id belonged to a removed source
func (s *Store) RetireSourceID(ctx context.Context, id string) error {
	if err := s.client.SAdd(ctx, KeyRetiredSources, id).Err(); err != nil {
		return fmt.Errorf("failed to retire source id: %w", err)
	}
	return nil
}

// RetiredSourceIDs returns every retired id, empty when none
func (s *Store) RetiredSourceIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, KeyRetiredSources).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get retired source ids: %w", err)
	}
	return ids, nil
}

// Ping reports whether Redis answers
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
