package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// icpKeyPrefix marks API keys issued by a private cloud deployment, which
// accepts them directly over basic auth instead of through a token exchange.
const icpKeyPrefix = "icp-"

// AuthMethod attaches credentials to an outgoing request. The set of
// implementations is closed: *BearerToken, *BasicAuth and *APIKeyExchange.
type AuthMethod interface {
	Apply(ctx context.Context, req *http.Request) error
	authMethod()
}

var (
	_ AuthMethod = (*BearerToken)(nil)
	_ AuthMethod = (*BasicAuth)(nil)
	_ AuthMethod = (*APIKeyExchange)(nil)
)

// NewAuthMethod picks the auth variant for a long-lived API key.
func NewAuthMethod(apiKey, iamURL string, httpClient Doer) AuthMethod {
	if strings.HasPrefix(apiKey, icpKeyPrefix) {
		return &BasicAuth{Username: "apikey", Password: apiKey}
	}
	return NewAPIKeyExchange(apiKey, iamURL, httpClient)
}

// BearerToken sends a caller-managed access token as-is.
type BearerToken struct {
	mu    sync.RWMutex
	token string
}

// NewBearerToken creates a pass-through bearer auth method.
func NewBearerToken(token string) *BearerToken {
	return &BearerToken{token: token}
}

func (*BearerToken) authMethod() {}

// Token returns the token the next call will send.
func (b *BearerToken) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// SetToken replaces the token. Calls that already applied the old token are
// unaffected.
func (b *BearerToken) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// Apply sets the Authorization header.
func (b *BearerToken) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token())
	return nil
}

// BasicAuth sends fixed basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (*BasicAuth) authMethod() {}

// Apply sets the Authorization header.
func (a *BasicAuth) Apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}
