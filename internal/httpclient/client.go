// Package httpclient performs the single-shot JSON GETs every source call is built on.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
)

const (
	// DefaultTimeout applies when a call passes no timeout of its own.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize bounds how much of a body is read (16MB).
	MaxResponseSize = 16 * 1024 * 1024

	// UserAgent is sent on every request.
	UserAgent = "sourcehub/1.0"
)

// Client issues GET requests and decodes JSON bodies. It never retries.
type Client struct {
	http *http.Client
}

// New wraps hc, or a fresh client when hc is nil.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc}
}

// Response is what GetJSON returns besides the decoded body.
type Response struct {
	StatusCode int
	Header     http.Header
}

// GetJSON performs one GET against url with headers and decodes a 2xx body into out.
// out may be nil to discard the body.
//
// Transport failures and timeouts come back as *domain.NetworkError with StatusCode 0.
// Non-2xx responses come back as *domain.APIError when the body carries a message,
// otherwise as *domain.NetworkError with the status code set.
func (c *Client) GetJSON(ctx context.Context, url string, headers http.Header, timeout time.Duration, out any) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &domain.NetworkError{Op: "GET", URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "GET", URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	meta := &Response{StatusCode: resp.StatusCode, Header: resp.Header}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return meta, &domain.NetworkError{Op: "GET", URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if len(body) > MaxResponseSize {
		return meta, &domain.NetworkError{Op: "GET", URL: url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("response exceeds %d bytes", MaxResponseSize)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if apiErr := parseAPIError(resp.StatusCode, body); apiErr != nil {
			return meta, apiErr
		}
		return meta, &domain.NetworkError{Op: "GET", URL: url, StatusCode: resp.StatusCode,
			Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if out == nil || len(body) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return meta, &domain.NetworkError{Op: "GET", URL: url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return meta, nil
}

// errorBody covers both `{code, message}` and `{error: "..."}` shapes.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   any    `json:"error"`
}

func parseAPIError(status int, body []byte) *domain.APIError {
	if len(body) == 0 {
		return nil
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return nil
	}
	msg := strings.TrimSpace(eb.Message)
	if msg == "" {
		switch v := eb.Error.(type) {
		case string:
			msg = strings.TrimSpace(v)
		case map[string]any:
			if m, ok := v["message"].(string); ok {
				msg = strings.TrimSpace(m)
			}
		}
	}
	if msg == "" {
		return nil
	}
	return &domain.APIError{StatusCode: status, Code: eb.Code, Message: msg}
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
