package domain

import "fmt"

// ResourceKind names one of the listable resource collections.
type ResourceKind string

const (
	ResourceTeams      ResourceKind = "teams"
	ResourceSkills     ResourceKind = "skills"
	ResourceRecipes    ResourceKind = "recipes"
	ResourceExtensions ResourceKind = "extensions"
)

// ResourceKinds lists every kind in a stable order.
var ResourceKinds = []ResourceKind{ResourceTeams, ResourceSkills, ResourceRecipes, ResourceExtensions}

// ParseResourceKind validates a kind name.
func ParseResourceKind(s string) (ResourceKind, error) {
	for _, k := range ResourceKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Team as returned by {ns}/teams.
type Team struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
	OwnerID       string `json:"ownerId,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Skill as returned by {ns}/skills.
type Skill struct {
	ID              string   `json:"id"`
	TeamID          string   `json:"teamId"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Content         string   `json:"content,omitempty"`
	StorageType     string   `json:"storageType,omitempty"`
	AuthorID        string   `json:"authorId,omitempty"`
	Version         string   `json:"version,omitempty"`
	Visibility      string   `json:"visibility,omitempty"`
	ProtectionLevel string   `json:"protectionLevel,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	UseCount        int64    `json:"useCount,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// Recipe as returned by {ns}/recipes.
type Recipe struct {
	ID              string   `json:"id"`
	TeamID          string   `json:"teamId"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	ContentYAML     string   `json:"contentYaml,omitempty"`
	Category        string   `json:"category,omitempty"`
	AuthorID        string   `json:"authorId,omitempty"`
	Version         string   `json:"version,omitempty"`
	Visibility      string   `json:"visibility,omitempty"`
	ProtectionLevel string   `json:"protectionLevel,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	UseCount        int64    `json:"useCount,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// Extension as returned by {ns}/extensions.
type Extension struct {
	ID               string         `json:"id"`
	TeamID           string         `json:"teamId"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	ExtensionType    string         `json:"extensionType,omitempty"`
	Config           map[string]any `json:"config,omitempty"`
	AuthorID         string         `json:"authorId,omitempty"`
	Version          string         `json:"version,omitempty"`
	Visibility       string         `json:"visibility,omitempty"`
	ProtectionLevel  string         `json:"protectionLevel,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	SecurityReviewed bool           `json:"securityReviewed,omitempty"`
	UseCount         int64          `json:"useCount,omitempty"`
	CreatedAt        string         `json:"createdAt,omitempty"`
	UpdatedAt        string         `json:"updatedAt,omitempty"`
}

// InstalledResource is a resource installed on the local machine.
type InstalledResource struct {
	ID               string `json:"id"`
	ResourceType     string `json:"resourceType"`
	ResourceID       string `json:"resourceId"`
	TeamID           string `json:"teamId"`
	ResourceName     string `json:"resourceName"`
	LocalPath        string `json:"localPath,omitempty"`
	InstalledVersion string `json:"installedVersion"`
	LatestVersion    string `json:"latestVersion,omitempty"`
	HasUpdate        bool   `json:"hasUpdate"`
	InstalledAt      string `json:"installedAt"`
	LastCheckedAt    string `json:"lastCheckedAt,omitempty"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams are the pagination parameters of a query.
type ListParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps page and limit into their valid ranges.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// ListQuery is what an adapter's list call accepts.
type ListQuery struct {
	TeamID string
	Search string
	Tags   []string
	ListParams
}

// Wire contract shared by every source kind.
const (
	// APINamespace prefixes every resource endpoint.
	APINamespace = "/api/team"
	// HealthPath is the unauthenticated liveness endpoint.
	HealthPath = "/health"
)

// ResourcePath returns the collection path for kind, e.g. /api/team/skills.
func ResourcePath(kind ResourceKind) string {
	return APINamespace + "/" + string(kind)
}
