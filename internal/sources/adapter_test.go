package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

const testKey = "k-123"

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != testKey && r.Header.Get("X-Secret-Key") != testKey {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"code":"unauthorized","message":"bad key"}`))
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","database":"mongodb","database_connected":true,"version":"2.0.1"}`))
	})
	mux.HandleFunc("/api/team/skills", authed(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "go,http", q.Get("tags"))
		assert.Equal(t, "t1", q.Get("teamId"))
		_, _ = w.Write([]byte(`{"skills":[{"id":"s1","teamId":"t1","name":"One"},{"id":"s2","teamId":"t1","name":"Two"}],"total":7,"page":2,"limit":5}`))
	}))
	mux.HandleFunc("/api/team/teams/t1", authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"team":{"id":"t1","name":"Core"},"membersCount":4}`))
	}))
	mux.HandleFunc("/api/team/skills/s1", authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"s1","teamId":"t1","name":"One"}`))
	}))
	mux.HandleFunc("/api/team/resources/installed", authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resources":[{"id":"i1","resourceType":"skill","resourceId":"s1","teamId":"t1","resourceName":"One","installedVersion":"1.0.0","hasUpdate":false,"installedAt":"2024-01-01T00:00:00Z"}]}`))
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDeps(t *testing.T, localURL string) Deps {
	t.Helper()
	creds := credentials.NewMemoryStore()
	require.NoError(t, creds.Store(context.Background(), "cloud-1", testKey))
	return Deps{
		Auth:   auth.NewAdapter(creds, auth.StaticPlatform{Secret: testKey, BaseURL: localURL}, nil, logger.NewNop()),
		Logger: logger.NewNop(),
	}
}

func cloudSource(url string) domain.DataSource {
	return domain.NewRemoteSource("cloud-1", domain.SourceKindCloud, "Cloud",
		domain.Connection{BaseURL: url, AuthScheme: domain.AuthSchemeAPIKey, CredentialRef: "cloud-1"},
		time.Now())
}

func TestNewAdapter_SelectsByKind(t *testing.T) {
	deps := testDeps(t, "http://127.0.0.1:1")

	tests := []struct {
		source domain.DataSource
		check  func(Adapter) bool
	}{
		{domain.NewLocalSource(time.Now()), func(a Adapter) bool { _, ok := a.(*LocalAdapter); return ok }},
		{cloudSource("http://x"), func(a Adapter) bool { _, ok := a.(*CloudAdapter); return ok }},
		{domain.NewRemoteSource("lan-1", domain.SourceKindLAN, "Peer", domain.Connection{BaseURL: "http://y", AuthScheme: domain.AuthSchemeSecretKey}, time.Now()),
			func(a Adapter) bool { _, ok := a.(*LANAdapter); return ok }},
	}

	for _, tt := range tests {
		t.Run(string(tt.source.Kind), func(t *testing.T) {
			a, err := NewAdapter(tt.source, deps)
			require.NoError(t, err)
			assert.True(t, tt.check(a))
			assert.Equal(t, tt.source.ID, a.SourceID())
			assert.Equal(t, domain.StatusConnecting, a.Status())
		})
	}

	_, err := NewAdapter(domain.DataSource{ID: "x", Kind: "ftp"}, deps)
	assert.Error(t, err)
}

func TestListSkills(t *testing.T) {
	srv := fakeBackend(t)
	a, err := NewAdapter(cloudSource(srv.URL), testDeps(t, srv.URL))
	require.NoError(t, err)

	page, err := a.ListSkills(context.Background(), domain.ListQuery{
		TeamID:     "t1",
		Tags:       []string{"go", "http"},
		ListParams: domain.ListParams{Page: 2, Limit: 5},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 7, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "s2", page.Items[1].ID)
}

func TestList_AuthFailure(t *testing.T) {
	srv := fakeBackend(t)
	src := cloudSource(srv.URL)
	src.Connection.CredentialRef = "cloud-unknown"
	a, err := NewAdapter(src, testDeps(t, srv.URL))
	require.NoError(t, err)

	_, err = a.ListSkills(context.Background(), domain.ListQuery{})
	var authErr *domain.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestGetByID(t *testing.T) {
	srv := fakeBackend(t)
	a, err := NewAdapter(cloudSource(srv.URL), testDeps(t, srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	team := a.GetTeam(ctx, "t1")
	require.NotNil(t, team)
	assert.Equal(t, "Core", team.Name)

	skill := a.GetSkill(ctx, "s1")
	require.NotNil(t, skill)
	assert.Equal(t, "t1", skill.TeamID)

	assert.Nil(t, a.GetRecipe(ctx, "missing"))
	assert.Nil(t, a.GetExtension(ctx, ""))
}

func TestLocalAdapter_ListInstalled(t *testing.T) {
	srv := fakeBackend(t)
	a, err := NewAdapter(domain.NewLocalSource(time.Now()), testDeps(t, srv.URL))
	require.NoError(t, err)

	lister, ok := a.(InstalledLister)
	require.True(t, ok)
	got, err := lister.ListInstalled(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ResourceID)
}

func TestCheckHealth(t *testing.T) {
	healthy := fakeBackend(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)
	gone := httptest.NewServer(http.NotFoundHandler())
	goneURL := gone.URL
	gone.Close()

	tests := []struct {
		name        string
		url         string
		wantHealthy bool
		wantStatus  domain.SourceStatus
	}{
		{"online", healthy.URL, true, domain.StatusOnline},
		{"reached but failing", broken.URL, false, domain.StatusError},
		{"unreachable", goneURL, false, domain.StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAdapter(cloudSource(tt.url), testDeps(t, tt.url))
			require.NoError(t, err)

			hs := a.CheckHealth(context.Background())
			assert.Equal(t, tt.wantHealthy, hs.Healthy)
			assert.Equal(t, tt.wantStatus, hs.Status)
			assert.Equal(t, tt.wantStatus, a.Status())
			if tt.wantHealthy {
				assert.Equal(t, "2.0.1", hs.Version)
				require.NotNil(t, hs.DatabaseOK)
				assert.True(t, *hs.DatabaseOK)
			} else {
				assert.NotEmpty(t, hs.Error)
			}
		})
	}
}

func TestIsAvailable_TwoStates(t *testing.T) {
	healthy := fakeBackend(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	tests := []struct {
		name       string
		url        string
		want       bool
		wantStatus domain.SourceStatus
	}{
		{"online", healthy.URL, true, domain.StatusOnline},
		{"failing backend reads as offline", broken.URL, false, domain.StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAdapter(cloudSource(tt.url), testDeps(t, tt.url))
			require.NoError(t, err)

			assert.Equal(t, tt.want, a.IsAvailable(context.Background()))
			assert.Equal(t, tt.wantStatus, a.Status())
		})
	}
}

func TestParseHealthBody(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		wantDB *bool
	}{
		{"no database field", map[string]any{"status": "ok"}, nil},
		{"engine name", map[string]any{"database": "sqlite"}, ptr(true)},
		{"healthy word", map[string]any{"database": "Healthy"}, ptr(true)},
		{"unknown word", map[string]any{"database": "degraded"}, ptr(false)},
		{"boolean", map[string]any{"database": true}, ptr(true)},
		{"connected flag", map[string]any{"database_connected": true}, ptr(true)},
		{"engine but disconnected", map[string]any{"database": "mongodb", "database_connected": false}, ptr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := parseHealthBody(tt.body)
			assert.Equal(t, tt.wantDB, got)
		})
	}
}

func ptr[T any](v T) *T { return &v }
