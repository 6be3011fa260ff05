package httpserver_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/manager"
	"github.com/MrSnakeDoc/sourcehub/internal/sources"
	"github.com/MrSnakeDoc/sourcehub/internal/store/memory"
)

// backend fakes a team server accepting one credential under header.
func backend(t *testing.T, header, key, teamsBody string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok","version":"2.0.0"}`))
			return
		}
		if r.Header.Get(header) != key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/team/teams":
			_, _ = w.Write([]byte(teamsBody))
		case "/api/team/resources/installed":
			_, _ = w.Write([]byte(`{"resources":[{"id":"i1","resourceType":"skill","resourceId":"s1","teamId":"t1","resourceName":"Lint","installedVersion":"1.0.0","hasUpdate":false,"installedAt":"2024-01-01T00:00:00Z"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	router  http.Handler
	manager *manager.Manager
	cloud   *httptest.Server
	trigger chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	local := backend(t, "X-Secret-Key", "local-secret", `{"teams":[{"id":"lt","name":"Local team"}],"total":1,"page":1,"limit":20}`)
	cloud := backend(t, "X-API-Key", "team-key", `{"teams":[{"id":"a","name":"A"},{"id":"b","name":"B"}],"total":2,"page":1,"limit":20}`)

	log := logger.NewNop()
	creds := credentials.NewMemoryStore()
	authAdapter := auth.NewAdapter(creds, auth.StaticPlatform{Secret: "local-secret", BaseURL: local.URL}, nil, log)
	c := cache.New(cache.Options{Logger: log})

	m, err := manager.New(manager.Options{
		Store:          memory.NewStore(),
		Credentials:    creds,
		Auth:           authAdapter,
		Cache:          c,
		Logger:         log,
		AdapterFactory: sources.NewFactory(sources.Deps{Auth: authAdapter, Logger: log}),
		NewID:          func(domain.SourceKind) string { return "cloud-1" },
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(m.Close)

	trigger := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:            log,
		StartTime:         time.Now(),
		Version:           "test",
		Manager:           m,
		Cache:             c,
		TestRateBurst:     100,
		TestRatePerMinute: 100,
		HealthPollTrigger: trigger,
	}
	return &harness{router: httpserver.NewRouter(log, d), manager: m, cloud: cloud, trigger: trigger}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) registerCloud(t *testing.T) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/sources",
		`{"kind":"cloud","name":"Team","baseUrl":"`+h.cloud.URL+`","credential":"team-key"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestProbes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hz := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", hz["status"])
	assert.EqualValues(t, 1, hz["sources"])

	rec = h.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rz := decode[map[string]any](t, rec)
	assert.Equal(t, true, rz["ready"])
	assert.Equal(t, "ok", rz["mode"])

	rec = h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSourcesLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/sources/test",
		`{"kind":"cloud","baseUrl":"`+h.cloud.URL+`","credential":"wrong"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[map[string]any](t, rec)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, string(domain.AuthInvalidCredential), result["code"])

	rec = h.do(t, http.MethodPost, "/api/sources",
		`{"kind":"cloud","baseUrl":"`+h.cloud.URL+`","credential":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.registerCloud(t)

	rec = h.do(t, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Sources  []domain.DataSource `json:"sources"`
		ActiveID string              `json:"activeId"`
	}](t, rec)
	require.Len(t, list.Sources, 2)
	assert.Equal(t, "cloud-1", list.Sources[1].ID)
	assert.Equal(t, domain.StatusOnline, list.Sources[1].Status)
	assert.Equal(t, domain.LocalSourceID, list.ActiveID)

	rec = h.do(t, http.MethodPatch, "/api/sources/cloud-1", `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[domain.DataSource](t, rec).Name)

	rec = h.do(t, http.MethodPut, "/api/sources/active", `{"id":"cloud-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cloud-1", decode[domain.DataSource](t, rec).ID)

	rec = h.do(t, http.MethodPost, "/api/sources/cloud-1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.HealthStatus](t, rec).Healthy)

	rec = h.do(t, http.MethodDelete, "/api/sources/cloud-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the harness mints cloud-1 again, which now belongs to a removed source
	rec = h.do(t, http.MethodPost, "/api/sources",
		`{"kind":"cloud","name":"Team","baseUrl":"`+h.cloud.URL+`","credential":"team-key"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "source-id-retired", decode[map[string]any](t, rec)["code"])

	rec = h.do(t, http.MethodGet, "/api/sources/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.LocalSourceID, decode[domain.DataSource](t, rec).ID)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"delete local", http.MethodDelete, "/api/sources/local", "", http.StatusConflict},
		{"patch local", http.MethodPatch, "/api/sources/local", `{"name":"x"}`, http.StatusConflict},
		{"delete unknown", http.MethodDelete, "/api/sources/nope", "", http.StatusNotFound},
		{"get unknown", http.MethodGet, "/api/sources/nope", "", http.StatusNotFound},
		{"activate unknown", http.MethodPut, "/api/sources/active", `{"id":"nope"}`, http.StatusNotFound},
		{"health unknown", http.MethodPost, "/api/sources/nope/health", "", http.StatusNotFound},
		{"bad kind", http.MethodPost, "/api/sources", `{"kind":"local","baseUrl":"http://x"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/sources/local", `{"id":"x"}`, http.StatusBadRequest},
		{"bad page", http.MethodGet, "/api/teams?page=two", "", http.StatusBadRequest},
		{"bad refresh", http.MethodGet, "/api/skills?refresh=maybe", "", http.StatusBadRequest},
		{"bad cache kind", http.MethodPost, "/api/cache/invalidate", `{"kind":"widgets"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAggregateEndpoints(t *testing.T) {
	h := newHarness(t)
	h.registerCloud(t)

	rec := h.do(t, http.MethodGet, "/api/teams", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		domain.AggregatedResult[domain.Team]
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}](t, rec)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "lt", res.Items[0].Resource.ID)
	assert.Equal(t, domain.SyncSynced, res.Items[0].SyncStatus)
	assert.Equal(t, domain.SyncRemoteOnly, res.Items[1].SyncStatus)
	assert.Equal(t, map[string]int64{"local": 1, "cloud-1": 2}, res.CountBySource)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, domain.DefaultLimit, res.Limit)

	rec = h.do(t, http.MethodGet, "/api/teams?sources=cloud-1,ghost&limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[struct {
		domain.AggregatedResult[domain.Team]
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}](t, rec)
	assert.Len(t, res.Items, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "ghost", res.Errors[0].SourceID)
	assert.Equal(t, domain.MaxLimit, res.Limit)

	rec = h.do(t, http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[cache.Stats](t, rec)
	assert.Equal(t, 2, stats.Entries[domain.ResourceTeams])

	rec = h.do(t, http.MethodPost, "/api/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "all", decode[map[string]any](t, rec)["scope"])

	rec = h.do(t, http.MethodPost, "/api/cache/invalidate", `{"teamId":"t1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "team:t1", decode[map[string]any](t, rec)["scope"])

	rec = h.do(t, http.MethodGet, "/api/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	installed := decode[struct {
		Resources []domain.InstalledResource `json:"resources"`
	}](t, rec)
	require.Len(t, installed.Resources, 1)
	assert.Equal(t, "Lint", installed.Resources[0].ResourceName)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	h.registerCloud(t)
	h.cloud.Close()

	rec := h.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[struct {
		Sources map[string]domain.HealthStatus `json:"sources"`
	}](t, rec)
	require.Len(t, health.Sources, 2)
	assert.True(t, health.Sources["local"].Healthy)
	assert.False(t, health.Sources["cloud-1"].Healthy)
	assert.Equal(t, domain.StatusOffline, health.Sources["cloud-1"].Status)

	rec = h.do(t, http.MethodPost, "/api/health/poll", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/health/poll", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "trigger channel is full until the poller drains it")
	<-h.trigger
}

func TestEventStream(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the handler subscribes before sending headers
	src := domain.NewRemoteSource("lan-1", domain.SourceKindLAN, "Desk", domain.Connection{
		BaseURL: "http://192.168.1.20:7778", AuthScheme: domain.AuthSchemeSecretKey, CredentialRef: "lan-1",
	}, time.Now())
	require.NoError(t, h.manager.RegisterSource(ctx, src))

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	assert.Equal(t, "event: source-added", eventLine)
	var ev domain.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &ev))
	assert.Equal(t, "lan-1", ev.SourceID)
}
