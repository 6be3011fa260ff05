package sources

import "strings"

// healthyDatabaseValues are the database field values that mean the store is usable.
var healthyDatabaseValues = map[string]bool{
	"ok":         true,
	"healthy":    true,
	"connected":  true,
	"mongodb":    true,
	"sqlite":     true,
	"postgres":   true,
	"postgresql": true,
	"mysql":      true,
}

// parseHealthBody extracts the version and database state from a /health body.
// databaseOK is nil when the body says nothing about the database.
func parseHealthBody(body map[string]any) (version string, databaseOK *bool) {
	if body == nil {
		return "", nil
	}
	if v, ok := body["version"].(string); ok {
		version = v
	}

	if connected, ok := body["database_connected"].(bool); ok {
		databaseOK = &connected
	}

	switch db := body["database"].(type) {
	case bool:
		databaseOK = &db
	case string:
		ok := healthyDatabaseValues[strings.ToLower(strings.TrimSpace(db))]
		// an engine name alongside an explicit disconnected flag is still down
		if databaseOK == nil || !ok {
			databaseOK = &ok
		}
	}
	return version, databaseOK
}
