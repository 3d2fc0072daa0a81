// Package session provides the driver session collaborators: the access token used for
// backend calls and the identity of the signed-in driver.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoSession is returned when no driver is signed in.
var ErrNoSession = errors.New("no active driver session")

// TokenSource returns the current access token. Implementations must be safe for
// concurrent use, and callers fetch a fresh token for every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Identity returns the id of the signed-in driver.
type Identity interface {
	DriverID(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoSession
	}

	return string(s), nil
}

// FileTokenSource reads the token from a file on every call, so a session refreshed by
// the host application is picked up by the next request.
type FileTokenSource struct {
	Path string
}

func (f FileTokenSource) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoSession
	}

	return token, nil
}

// NewTokenSource prefers the token file when one is configured.
func NewTokenSource(token, path string) TokenSource {
	if path != "" {
		return FileTokenSource{Path: path}
	}

	return StaticTokenSource(token)
}

// StaticIdentity is a fixed driver id.
type StaticIdentity string

func (s StaticIdentity) DriverID(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoSession
	}

	return string(s), nil
}
