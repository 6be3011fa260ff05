package auth

import (
	"context"
	"errors"
)

// Platform is the host application shell. It owns the local source's ambient secret and
// knows where the local backend currently listens.
type Platform interface {
	LocalSecret(ctx context.Context) (string, error)
	LocalBaseURL(ctx context.Context) (string, error)
}

// StaticPlatform serves fixed values, typically read from configuration.
type StaticPlatform struct {
	Secret  string
	BaseURL string
}

func (p StaticPlatform) LocalSecret(context.Context) (string, error) {
	if p.Secret == "" {
		return "", errors.New("local secret is not configured")
	}
	return p.Secret, nil
}

func (p StaticPlatform) LocalBaseURL(context.Context) (string, error) {
	if p.BaseURL == "" {
		return "", errors.New("local base url is not configured")
	}
	return p.BaseURL, nil
}
