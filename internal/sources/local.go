package sources

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
)

// LocalAdapter talks to the backend running next to the client. Its base URL and secret
// come from the platform on every call, so a restarted backend on a new port is picked up.
type LocalAdapter struct{ *remoteAdapter }

// NewLocalAdapter creates the adapter for the local source.
func NewLocalAdapter(source domain.DataSource, deps Deps) *LocalAdapter {
	return &LocalAdapter{newRemoteAdapter(source, deps)}
}

// ListInstalled returns the resources installed on this machine.
func (a *LocalAdapter) ListInstalled(ctx context.Context) ([]domain.InstalledResource, error) {
	var body struct {
		Resources []domain.InstalledResource `json:"resources"`
	}
	if err := a.getJSON(ctx, domain.APINamespace+"/resources/installed", nil, &body); err != nil {
		return nil, fmt.Errorf("failed to list installed resources: %w", err)
	}
	if body.Resources == nil {
		body.Resources = []domain.InstalledResource{}
	}
	return body.Resources, nil
}

var _ InstalledLister = (*LocalAdapter)(nil)
