package legacy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Reader yields legacy records from one place.
type Reader interface {
	ReadLegacy(ctx context.Context) (Records, error)
}

// Loader handles loading a YAML export of legacy connections
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the export file
func (l *Loader) Load() (Records, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Records{}, fmt.Errorf("failed to read legacy file: %w", err)
	}

	// Exports may carry unresolved {{VAR}} placeholders for secrets
	data = stripTemplateVariables(data)

	var records Records
	if err := yaml.Unmarshal(data, &records); err != nil {
		return Records{}, fmt.Errorf("failed to parse legacy yaml: %w", err)
	}

	return records, nil
}

// ReadLegacy implements Reader. A missing file means nothing to import.
func (l *Loader) ReadLegacy(context.Context) (Records, error) {
	if l.filePath == "" {
		return Records{}, nil
	}
	records, err := l.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return Records{}, nil
	}
	return records, err
}

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// stripTemplateVariables blanks {{...}} placeholders
// Example: {{LAN_SECRET}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}

// MultiReader concatenates the records of every reader, in order.
type MultiReader []Reader

func (m MultiReader) ReadLegacy(ctx context.Context) (Records, error) {
	var all Records
	for _, r := range m {
		if r == nil {
			continue
		}
		recs, err := r.ReadLegacy(ctx)
		if err != nil {
			return Records{}, err
		}
		all.CloudServers = append(all.CloudServers, recs.CloudServers...)
		all.LANConnections = append(all.LANConnections, recs.LANConnections...)
	}
	return all, nil
}
