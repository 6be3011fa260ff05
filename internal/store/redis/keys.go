package redis

const (
	// KeyPrefix namespaces every key this application writes.
	KeyPrefix = "sourcehub:"
	// KeySources holds the JSON array of registered non-local sources.
	KeySources = KeyPrefix + "sources"
	// KeyActiveSource holds the active source id.
	KeyActiveSource = KeyPrefix + "active"
	// KeyMigrationVersion holds the last applied legacy migration version.
	KeyMigrationVersion = KeyPrefix + "migration:version"
	// KeyRetiredSources is the set of ids of removed sources.
	KeyRetiredSources = KeyPrefix + "sources:retired"

	// KeyLegacyCloudServers and KeyLegacyLANConnections are the pre-registry lists, read only.
	KeyLegacyCloudServers   = KeyPrefix + "legacy:cloud-servers"
	KeyLegacyLANConnections = KeyPrefix + "legacy:lan-connections"
)
