// Package sources translates the unified query interface into each backend's wire
// protocol. Every kind speaks the same REST surface; they differ in how the base URL and
// the credential are resolved.
package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpclient"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// Adapter is the per-source query interface.
type Adapter interface {
	SourceID() string
	Kind() domain.SourceKind
	// Status is the status observed by the last CheckHealth, connecting before any.
	Status() domain.SourceStatus

	IsAvailable(ctx context.Context) bool
	CheckHealth(ctx context.Context) domain.HealthStatus

	ListTeams(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Team], error)
	ListSkills(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Skill], error)
	ListRecipes(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Recipe], error)
	ListExtensions(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Extension], error)

	// Get* return nil on any failure, including not found.
	GetTeam(ctx context.Context, id string) *domain.Team
	GetSkill(ctx context.Context, id string) *domain.Skill
	GetRecipe(ctx context.Context, id string) *domain.Recipe
	GetExtension(ctx context.Context, id string) *domain.Extension
}

// InstalledLister is implemented by adapters that can see locally installed resources.
type InstalledLister interface {
	ListInstalled(ctx context.Context) ([]domain.InstalledResource, error)
}

// Authenticator resolves where a source listens and how to authenticate to it.
// *auth.Adapter satisfies it.
type Authenticator interface {
	HeadersFor(ctx context.Context, source domain.DataSource) (http.Header, error)
	BaseURL(ctx context.Context, source domain.DataSource) (string, error)
}

// Deps are the collaborators every adapter needs.
type Deps struct {
	Auth   Authenticator
	Client *httpclient.Client
	Logger logger.Logger
}

// Factory builds the adapter for a source.
type Factory func(source domain.DataSource) (Adapter, error)

// NewFactory binds deps into a Factory.
func NewFactory(deps Deps) Factory {
	return func(source domain.DataSource) (Adapter, error) {
		return NewAdapter(source, deps)
	}
}

// NewAdapter selects the implementation for source.Kind.
func NewAdapter(source domain.DataSource, deps Deps) (Adapter, error) {
	if deps.Client == nil {
		deps.Client = httpclient.New(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	switch source.Kind {
	case domain.SourceKindLocal:
		return NewLocalAdapter(source, deps), nil
	case domain.SourceKindCloud:
		return NewCloudAdapter(source, deps), nil
	case domain.SourceKindLAN:
		return NewLANAdapter(source, deps), nil
	default:
		return nil, fmt.Errorf("no adapter for source kind %q", string(source.Kind))
	}
}
