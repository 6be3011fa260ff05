// Package credentials persists one opaque secret per non-local source, keyed by the
// source's credential reference. Secrets are stored as-is; protection at rest is whatever
// the backing store provides.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/zalando/go-keyring"
)

// KeyPrefix scopes credential keys away from the rest of the application's state.
const KeyPrefix = "sourcehub:credential:"

// KeyringService is the service name entries are filed under in the OS keychain.
const KeyringService = "sourcehub"

// Store is a key/value namespace of secrets.
type Store interface {
	// Store saves or replaces the secret for ref.
	Store(ctx context.Context, ref, secret string) error
	// Get returns the secret for ref; ok is false when none is stored.
	Get(ctx context.Context, ref string) (secret string, ok bool, err error)
	// Remove deletes the secret for ref. Removing a missing ref is not an error.
	Remove(ctx context.Context, ref string) error
}

func checkRef(ref string) error {
	if ref == "" {
		return errors.New("credential ref is empty")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────

// RedisStore keeps secrets as plain string values under KeyPrefix.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Key returns the Redis key for a credential ref.
func Key(ref string) string {
	return KeyPrefix + ref
}

func (s *RedisStore) Store(ctx context.Context, ref, secret string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.client.Set(ctx, Key(ref), secret, 0).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, ref string) (string, bool, error) {
	if err := checkRef(ref); err != nil {
		return "", false, err
	}
	secret, err := s.client.Get(ctx, Key(ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get credential: %w", err)
	}
	return secret, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.client.Del(ctx, Key(ref)).Err(); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// OS keychain
// ─────────────────────────────────────────────────────────────────

// KeyringStore keeps secrets in the operating system keychain.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed store. An empty service uses KeyringService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = KeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Store(_ context.Context, ref, secret string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := keyring.Set(s.service, ref, secret); err != nil {
		return fmt.Errorf("failed to store credential in keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Get(_ context.Context, ref string) (string, bool, error) {
	if err := checkRef(ref); err != nil {
		return "", false, err
	}
	secret, err := keyring.Get(s.service, ref)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read credential from keyring: %w", err)
	}
	return secret, true, nil
}

func (s *KeyringStore) Remove(_ context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := keyring.Delete(s.service, ref); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove credential from keyring: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Memory
// ─────────────────────────────────────────────────────────────────

// MemoryStore is a process-local store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) Store(_ context.Context, ref, secret string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[ref] = secret
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) (string, bool, error) {
	if err := checkRef(ref); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[ref]
	return secret, ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, ref)
	return nil
}
