package domain

import (
	"fmt"
	"time"
)

// LocalSourceID is the id of the always-present local source.
const LocalSourceID = "local"

// SourceKind identifies which adapter family serves a source.
type SourceKind string

const (
	SourceKindLocal SourceKind = "local"
	SourceKindCloud SourceKind = "cloud"
	SourceKindLAN   SourceKind = "lan"
)

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindLocal, SourceKindCloud, SourceKindLAN:
		return true
	}
	return false
}

// SourceStatus is the liveness state of a source.
//
//	connecting -> online            probe succeeded
//	connecting/online -> offline    host not reachable at all
//	connecting/online -> error      host reached but answered badly
//	offline/error -> connecting     only on explicit re-check
type SourceStatus string

const (
	StatusOnline     SourceStatus = "online"
	StatusOffline    SourceStatus = "offline"
	StatusConnecting SourceStatus = "connecting"
	StatusError      SourceStatus = "error"
)

// AuthScheme selects the header a credential is sent in.
type AuthScheme string

const (
	AuthSchemeSecretKey AuthScheme = "secret-key"
	AuthSchemeAPIKey    AuthScheme = "api-key"
)

// HeaderName returns the HTTP header carrying the credential for this scheme.
func (s AuthScheme) HeaderName() (string, error) {
	switch s {
	case AuthSchemeSecretKey:
		return "X-Secret-Key", nil
	case AuthSchemeAPIKey:
		return "X-API-Key", nil
	default:
		return "", fmt.Errorf("unknown auth scheme %q", string(s))
	}
}

// Connection holds how to reach and authenticate against a source.
// BaseURL is empty for the local source; it is resolved from the platform at call time.
type Connection struct {
	BaseURL       string     `json:"baseUrl"`
	AuthScheme    AuthScheme `json:"authScheme"`
	CredentialRef string     `json:"credentialRef,omitempty"`
}

// Capabilities are derived from the kind at creation and never mutated.
type Capabilities struct {
	CanCreate        bool `json:"canCreate"`
	CanSync          bool `json:"canSync"`
	SupportsOffline  bool `json:"supportsOffline"`
	CanManageTeams   bool `json:"canManageTeams"`
	CanInviteMembers bool `json:"canInviteMembers"`
}

// CapabilitiesFor returns the static capability set of a kind.
func CapabilitiesFor(kind SourceKind) Capabilities {
	switch kind {
	case SourceKindLocal:
		return Capabilities{CanCreate: true, SupportsOffline: true, CanManageTeams: true}
	case SourceKindCloud:
		return Capabilities{CanCreate: true, CanSync: true, CanManageTeams: true, CanInviteMembers: true}
	case SourceKindLAN:
		return Capabilities{CanSync: true}
	default:
		return Capabilities{}
	}
}

// ResourceCounts is the last known per-kind total reported by a source.
type ResourceCounts struct {
	Teams      int64 `json:"teams"`
	Skills     int64 `json:"skills"`
	Recipes    int64 `json:"recipes"`
	Extensions int64 `json:"extensions"`
}

// Set records the total for one resource kind.
func (c *ResourceCounts) Set(kind ResourceKind, total int64) {
	switch kind {
	case ResourceTeams:
		c.Teams = total
	case ResourceSkills:
		c.Skills = total
	case ResourceRecipes:
		c.Recipes = total
	case ResourceExtensions:
		c.Extensions = total
	}
}

// UserInfo is the identity a source echoes back after verification.
type UserInfo struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DataSource is one registered backend.
type DataSource struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is stable and never reused after removal.
	ID   string     `json:"id"`
	Kind SourceKind `json:"kind"`

	// CreatedAt is set once at registration.
	CreatedAt time.Time `json:"createdAt"`

	Capabilities Capabilities `json:"capabilities"`

	// ─────────────────────────────
	// User editable
	// ─────────────────────────────

	Name       string     `json:"name"`
	Connection Connection `json:"connection"`

	// ─────────────────────────────
	// Status & telemetry
	// (refreshed by health checks and queries)
	// ─────────────────────────────

	Status         SourceStatus   `json:"status"`
	ResourceCounts ResourceCounts `json:"resourceCounts"`
	LastSyncedAt   *time.Time     `json:"lastSyncedAt,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	UserInfo       *UserInfo      `json:"userInfo,omitempty"`
}

// IsLocal reports whether this is the local source.
func (s DataSource) IsLocal() bool {
	return s.ID == LocalSourceID
}

// Clone returns a copy that shares no pointers with s.
func (s DataSource) Clone() DataSource {
	out := s
	if s.LastSyncedAt != nil {
		t := *s.LastSyncedAt
		out.LastSyncedAt = &t
	}
	if s.UserInfo != nil {
		u := *s.UserInfo
		out.UserInfo = &u
	}
	return out
}

// NewLocalSource builds the local source record.
func NewLocalSource(now time.Time) DataSource {
	return DataSource{
		ID:           LocalSourceID,
		Kind:         SourceKindLocal,
		Name:         "Local",
		CreatedAt:    now,
		Capabilities: CapabilitiesFor(SourceKindLocal),
		Connection:   Connection{AuthScheme: AuthSchemeSecretKey},
		Status:       StatusConnecting,
	}
}

// NewRemoteSource builds a cloud or LAN source with capabilities derived from kind.
func NewRemoteSource(id string, kind SourceKind, name string, conn Connection, now time.Time) DataSource {
	return DataSource{
		ID:           id,
		Kind:         kind,
		Name:         name,
		CreatedAt:    now,
		Capabilities: CapabilitiesFor(kind),
		Connection:   conn,
		Status:       StatusConnecting,
	}
}

// Validate checks the fields a registration must carry.
func (s DataSource) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("source %s: unknown kind %q", s.ID, string(s.Kind))
	}
	if s.IsLocal() {
		return nil
	}
	if s.Kind == SourceKindLocal {
		return fmt.Errorf("source %s: only %q may be of kind local", s.ID, LocalSourceID)
	}
	if s.Connection.BaseURL == "" {
		return fmt.Errorf("source %s: base url is required", s.ID)
	}
	if _, err := s.Connection.AuthScheme.HeaderName(); err != nil {
		return fmt.Errorf("source %s: %w", s.ID, err)
	}
	return nil
}

// SourcePatch carries the mutable fields of an update. Nil fields are left untouched.
type SourcePatch struct {
	Name          *string     `json:"name,omitempty"`
	BaseURL       *string     `json:"baseUrl,omitempty"`
	AuthScheme    *AuthScheme `json:"authScheme,omitempty"`
	CredentialRef *string     `json:"credentialRef,omitempty"`
	LastError     *string     `json:"lastError,omitempty"`
	UserInfo      *UserInfo   `json:"userInfo,omitempty"`
}

// TouchesConnection reports whether applying p changes how the source is reached.
func (p SourcePatch) TouchesConnection() bool {
	return p.BaseURL != nil || p.AuthScheme != nil || p.CredentialRef != nil
}

// Apply returns s with the patch applied.
func (p SourcePatch) Apply(s DataSource) DataSource {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.BaseURL != nil {
		out.Connection.BaseURL = *p.BaseURL
	}
	if p.AuthScheme != nil {
		out.Connection.AuthScheme = *p.AuthScheme
	}
	if p.CredentialRef != nil {
		out.Connection.CredentialRef = *p.CredentialRef
	}
	if p.LastError != nil {
		out.LastError = *p.LastError
	}
	if p.UserInfo != nil {
		u := *p.UserInfo
		out.UserInfo = &u
	}
	return out
}
