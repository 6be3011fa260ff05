package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// SourceSelection is either every registered source or an explicit subset.
type SourceSelection struct {
	All bool
	IDs []string
}

// AllSources selects every registered source.
func AllSources() SourceSelection { return SourceSelection{All: true} }

// OnlySources selects the given ids.
func OnlySources(ids ...string) SourceSelection { return SourceSelection{IDs: ids} }

// MarshalJSON encodes "all" or the id list.
func (s SourceSelection) MarshalJSON() ([]byte, error) {
	if s.All {
		return []byte(`"all"`), nil
	}
	ids := s.IDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON accepts "all" or an array of ids.
func (s *SourceSelection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte(`"all"`)) {
		*s = AllSources()
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("sources must be \"all\" or a list of ids: %w", err)
	}
	*s = OnlySources(ids...)
	return nil
}

// Filters select what an aggregate query returns.
type Filters struct {
	Sources SourceSelection `json:"sources"`
	Search  string          `json:"search,omitempty"`
	Tags    []string        `json:"tags,omitempty"`
	TeamID  string          `json:"teamId,omitempty"`
}

// Canonical returns a copy with id and tag lists sorted so equal filters serialize equally.
func (f Filters) Canonical() Filters {
	out := f
	if len(f.Tags) > 0 {
		out.Tags = slices.Clone(f.Tags)
		slices.Sort(out.Tags)
	}
	if !f.Sources.All && len(f.Sources.IDs) > 0 {
		out.Sources.IDs = slices.Clone(f.Sources.IDs)
		slices.Sort(out.Sources.IDs)
	}
	return out
}

// Query builds the adapter query for these filters and pagination.
func (f Filters) Query(p ListParams) ListQuery {
	return ListQuery{TeamID: f.TeamID, Search: f.Search, Tags: f.Tags, ListParams: p.Normalize()}
}

// SyncStatus describes how a resource relates to the local copy.
type SyncStatus string

const (
	SyncSynced     SyncStatus = "synced"
	SyncRemoteOnly SyncStatus = "remote-only"
	SyncConflict   SyncStatus = "conflict"
	SyncPending    SyncStatus = "pending"
)

// SyncStatusFor derives the status from where a resource came from.
func SyncStatusFor(kind SourceKind) SyncStatus {
	if kind == SourceKindLocal {
		return SyncSynced
	}
	return SyncRemoteOnly
}

// SourcedResource pairs a resource with the source it came from.
type SourcedResource[T any] struct {
	Resource   T          `json:"resource"`
	Source     DataSource `json:"source"`
	SyncStatus SyncStatus `json:"syncStatus"`
}

// SourceError is one source's failure inside an aggregate result.
type SourceError struct {
	SourceID   string `json:"sourceId"`
	SourceName string `json:"sourceName"`
	Message    string `json:"message"`
}

// AggregatedResult is the merged outcome of a fan-out query. It is never persisted.
type AggregatedResult[T any] struct {
	Items         []SourcedResource[T] `json:"items"`
	CountBySource map[string]int64     `json:"countBySource"`
	Errors        []SourceError        `json:"errors"`
}

// HealthStatus is the outcome of one health probe.
type HealthStatus struct {
	Healthy    bool         `json:"healthy"`
	LatencyMs  int64        `json:"latencyMs"`
	Version    string       `json:"version,omitempty"`
	DatabaseOK *bool        `json:"databaseOk,omitempty"`
	Error      string       `json:"error,omitempty"`
	Status     SourceStatus `json:"status"`
	CheckedAt  time.Time    `json:"checkedAt"`
}
