// Package auth derives per-source authentication headers and probes credentials before a
// source is trusted. It never retries: callers decide whether to try again.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpclient"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// Timeout bounds every call made by this package.
const Timeout = 10 * time.Second

// Adapter resolves headers and base URLs for sources.
type Adapter struct {
	creds    credentials.Store
	platform Platform
	client   *httpclient.Client
	logger   logger.Logger
}

// NewAdapter creates an auth adapter.
func NewAdapter(creds credentials.Store, platform Platform, client *httpclient.Client, log logger.Logger) *Adapter {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Adapter{
		creds:    creds,
		platform: platform,
		client:   client,
		logger:   log.With(logger.Component("auth")),
	}
}

// HeadersFor returns the single authentication header for source.
func (a *Adapter) HeadersFor(ctx context.Context, source domain.DataSource) (http.Header, error) {
	if source.IsLocal() {
		secret, err := a.platform.LocalSecret(ctx)
		if err != nil {
			return nil, &domain.AuthError{Code: domain.AuthMissingCredential, SourceID: source.ID, Err: err}
		}
		return header(domain.AuthSchemeSecretKey, secret)
	}

	if source.Connection.CredentialRef == "" {
		return nil, &domain.AuthError{Code: domain.AuthMissingCredential, SourceID: source.ID,
			Err: errors.New("source has no credential reference")}
	}
	secret, ok, err := a.creds.Get(ctx, source.Connection.CredentialRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential for %s: %w", source.ID, err)
	}
	if !ok {
		return nil, &domain.AuthError{Code: domain.AuthMissingCredential, SourceID: source.ID}
	}
	return header(source.Connection.AuthScheme, secret)
}

func header(scheme domain.AuthScheme, secret string) (http.Header, error) {
	name, err := scheme.HeaderName()
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set(name, secret)
	return h, nil
}

// BaseURL resolves where source listens. The local source asks the platform every time.
func (a *Adapter) BaseURL(ctx context.Context, source domain.DataSource) (string, error) {
	if source.IsLocal() {
		u, err := a.platform.LocalBaseURL(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to resolve local base url: %w", err)
		}
		return u, nil
	}
	if source.Connection.BaseURL == "" {
		return "", fmt.Errorf("source %s has no base url", source.ID)
	}
	return source.Connection.BaseURL, nil
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	Success  bool
	Identity *domain.UserInfo
	Err      error
}

// Verify issues a one-item team listing with the stored credential.
func (a *Adapter) Verify(ctx context.Context, source domain.DataSource) VerifyResult {
	base, err := a.BaseURL(ctx, source)
	if err != nil {
		return VerifyResult{Err: &domain.AuthError{Code: domain.AuthUnreachable, SourceID: source.ID, Err: err}}
	}
	headers, err := a.HeadersFor(ctx, source)
	if err != nil {
		return VerifyResult{Err: err}
	}

	resp, err := a.client.GetJSON(ctx, probeURL(base), headers, Timeout, nil)
	if err != nil {
		a.logger.Debug("credential verification failed",
			logger.String("source_id", source.ID),
			logger.Error(err))
		return VerifyResult{Err: classify(source.ID, err)}
	}
	return VerifyResult{Success: true, Identity: identityFrom(resp.Header)}
}

// TestResult is the outcome of TestConnection.
type TestResult struct {
	Success    bool
	TeamsCount int64
	Version    string
	Err        error
}

// TestConnection probes a candidate source before it is registered. The health call is
// best effort; the authenticated listing decides the result. Nothing is persisted.
func (a *Adapter) TestConnection(ctx context.Context, baseURL string, scheme domain.AuthScheme, rawCredential string) TestResult {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return TestResult{Err: fmt.Errorf("invalid url %q: %w", baseURL, err)}
	}
	headers, err := header(scheme, rawCredential)
	if err != nil {
		return TestResult{Err: err}
	}

	var result TestResult

	var health struct {
		Version string `json:"version"`
	}
	if _, err := a.client.GetJSON(ctx, httpclient.JoinURL(baseURL, domain.HealthPath), nil, Timeout, &health); err != nil {
		a.logger.Debug("health probe failed during connection test",
			logger.String("url", baseURL),
			logger.Error(err))
	} else {
		result.Version = health.Version
	}

	var teams struct {
		Total int64 `json:"total"`
	}
	if _, err := a.client.GetJSON(ctx, probeURL(baseURL), headers, Timeout, &teams); err != nil {
		result.Err = classify("", err)
		return result
	}
	result.Success = true
	result.TeamsCount = teams.Total
	return result
}

func probeURL(base string) string {
	return httpclient.JoinURL(base, domain.ResourcePath(domain.ResourceTeams)) + "?page=1&limit=1"
}

// classify maps a transport/HTTP error to the auth taxonomy.
func classify(sourceID string, err error) error {
	status := domain.StatusCodeOf(err)
	if status == http.StatusUnauthorized {
		return &domain.AuthError{Code: domain.AuthInvalidCredential, SourceID: sourceID, StatusCode: status, Err: err}
	}
	return &domain.AuthError{Code: domain.AuthUnreachable, SourceID: sourceID, StatusCode: status, Err: err}
}

func identityFrom(h http.Header) *domain.UserInfo {
	id, name := h.Get("X-User-Id"), h.Get("X-User-Name")
	if id == "" && name == "" {
		return nil
	}
	return &domain.UserInfo{ID: id, Name: name, Email: h.Get("X-User-Email")}
}
