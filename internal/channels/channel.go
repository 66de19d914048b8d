// Package channels checks that chat platform credentials reach their APIs.
package channels

import (
	"context"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single reachability call.
const DefaultTimeout = 8 * time.Second

// Identity is what a platform reports about the bot behind a token.
type Identity struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	Team      string `json:"team,omitempty"`
}

// Verifier confirms a token is accepted by the platform.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, token string) (Identity, error)
}

// ctxClient binds outgoing requests to ctx for clients that take no context.
type ctxClient struct {
	ctx context.Context
	c   *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.c.Do(req.WithContext(c.ctx))
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}
