package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sourcehub/internal/sources/legacy"
)

// ReadLegacy returns the pre-registry cloud server and LAN connection lists.
// Missing keys mean nothing to import.
func (s *Store) ReadLegacy(ctx context.Context) (legacy.Records, error) {
	var records legacy.Records

	pipe := s.client.Pipeline()
	cloudCmd := pipe.Get(ctx, KeyLegacyCloudServers)
	lanCmd := pipe.Get(ctx, KeyLegacyLANConnections)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return records, fmt.Errorf("failed to read legacy records: %w", err)
	}

	if err := decodeLegacy(cloudCmd, &records.CloudServers); err != nil {
		return records, fmt.Errorf("cloud servers: %w", err)
	}
	if err := decodeLegacy(lanCmd, &records.LANConnections); err != nil {
		return records, fmt.Errorf("lan connections: %w", err)
	}
	return records, nil
}

func decodeLegacy(cmd *redis.StringCmd, out any) error {
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal legacy records: %w", err)
	}
	return nil
}

var _ legacy.Reader = (*Store)(nil)
