// Package memory keeps the registry state in process. It backs tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/sources/legacy"
)

// Store is safe for concurrent use.
type Store struct {
	mu               sync.Mutex
	sources          []domain.DataSource
	active           string
	migrationVersion int
	retired          map[string]struct{}
	legacy           legacy.Records

	saves int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{retired: make(map[string]struct{})}
}

// SeedLegacy sets the records ReadLegacy returns.
func (s *Store) SeedLegacy(r legacy.Records) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy = r
}

func (s *Store) SaveSources(_ context.Context, sources []domain.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = s.sources[:0:0]
	for _, src := range sources {
		if !src.IsLocal() {
			s.sources = append(s.sources, src.Clone())
		}
	}
	s.saves++
	return nil
}

func (s *Store) LoadSources(context.Context) ([]domain.DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DataSource, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.Clone()
	}
	return out, nil
}

func (s *Store) SaveActiveSource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	return nil
}

func (s *Store) LoadActiveSource(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *Store) MigrationVersion(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrationVersion, nil
}

func (s *Store) SetMigrationVersion(_ context.Context, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrationVersion = v
	return nil
}

func (s *Store) RetireSourceID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired[id] = struct{}{}
	return nil
}

func (s *Store) RetiredSourceIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.retired))
	for id := range s.retired {
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) ReadLegacy(context.Context) (legacy.Records, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legacy, nil
}

// SaveCount returns how many times SaveSources ran.
func (s *Store) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
