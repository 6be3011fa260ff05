package manager

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/sources/legacy"
)

// CurrentMigrationVersion is written once the legacy import has been applied.
const CurrentMigrationVersion = 1

// legacyNamespace seeds the ids of imported records. The same legacy record always maps
// to the same source id, so an interrupted import can be replayed safely.
var legacyNamespace = uuid.MustParse("6f1c1b8e-3d4a-4c55-9a3e-2b7d0f0e5a11")

// LegacySourceID returns the id an imported legacy record is registered under.
func LegacySourceID(kind domain.SourceKind, legacyID, address string) string {
	return string(kind) + "-" + uuid.NewSHA1(legacyNamespace, []byte(string(kind)+"|"+legacyID+"|"+address)).String()
}

// migrate imports legacy cloud server and LAN connection records into the persisted
// registry. It runs at most once per store: the version marker guards it, and ids that
// already exist are skipped.
func (m *Manager) migrate(ctx context.Context) error {
	version, err := m.store.MigrationVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if version >= CurrentMigrationVersion {
		return nil
	}

	records := legacy.Records{}
	if m.legacy != nil {
		if records, err = m.legacy.ReadLegacy(ctx); err != nil {
			return fmt.Errorf("failed to read legacy records: %w", err)
		}
	}

	imported, err := m.importLegacy(ctx, records)
	if err != nil {
		return err
	}

	if err := m.store.SetMigrationVersion(ctx, CurrentMigrationVersion); err != nil {
		return fmt.Errorf("failed to write migration version: %w", err)
	}
	m.logger.Info("legacy migration applied",
		logger.Int("version", CurrentMigrationVersion),
		logger.Int("imported", imported))
	return nil
}

func (m *Manager) importLegacy(ctx context.Context, records legacy.Records) (int, error) {
	if records.Empty() {
		return 0, nil
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	existing, err := m.store.LoadSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	retired, err := m.store.RetiredSourceIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load retired source ids: %w", err)
	}
	// a legacy record whose source was removed stays removed on replay
	seen := make(map[string]bool, len(existing)+len(retired))
	for _, s := range existing {
		seen[s.ID] = true
	}
	for _, id := range retired {
		seen[id] = true
	}

	var added []domain.DataSource
	add := func(src domain.DataSource, secret string) {
		if seen[src.ID] {
			return
		}
		if err := src.Validate(); err != nil {
			m.logger.Warn("skipping invalid legacy record", logger.String("source_id", src.ID), logger.Error(err))
			return
		}
		if secret != "" {
			if err := m.creds.Store(ctx, src.Connection.CredentialRef, secret); err != nil {
				m.logger.Warn("failed to store legacy credential", logger.String("source_id", src.ID), logger.Error(err))
				return
			}
		}
		seen[src.ID] = true
		added = append(added, src)
	}

	for _, rec := range records.CloudServers {
		id := LegacySourceID(domain.SourceKindCloud, rec.ID, rec.URL)
		src := domain.NewRemoteSource(id, domain.SourceKindCloud, nameOr(rec.Name, rec.URL), domain.Connection{
			BaseURL:       strings.TrimRight(rec.URL, "/"),
			AuthScheme:    domain.AuthSchemeAPIKey,
			CredentialRef: id,
		}, m.legacyCreatedAt(rec.CreatedAt))
		add(src, rec.APIKey)
	}

	for _, rec := range records.LANConnections {
		base := lanBaseURL(rec.Host, rec.Port)
		id := LegacySourceID(domain.SourceKindLAN, rec.ID, base)
		src := domain.NewRemoteSource(id, domain.SourceKindLAN, nameOr(rec.Name, rec.Host), domain.Connection{
			BaseURL:       base,
			AuthScheme:    domain.AuthSchemeSecretKey,
			CredentialRef: id,
		}, m.legacyCreatedAt(rec.CreatedAt))
		add(src, rec.SecretKey)
	}

	if len(added) == 0 {
		return 0, nil
	}
	if err := m.store.SaveSources(ctx, append(existing, added...)); err != nil {
		return 0, fmt.Errorf("failed to save migrated registry: %w", err)
	}
	return len(added), nil
}

func lanBaseURL(host string, port int) string {
	if host == "" {
		return ""
	}
	if port <= 0 {
		return "http://" + host
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func (m *Manager) legacyCreatedAt(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return m.now()
}
