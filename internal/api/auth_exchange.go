package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/youtell/visrec-cli/internal/debug"
	"github.com/youtell/visrec-cli/internal/json"
)

const (
	// DefaultIAMURL is the token-issuing endpoint used when none is configured.
	DefaultIAMURL = "https://iam.cloud.ibm.com/identity/token"

	iamGrantType     = "urn:ibm:params:oauth:grant-type:apikey"
	iamClientID      = "bx"
	iamClientSecret  = "bx"
	exchangeTimeout  = 30 * time.Second
	refreshFraction  = 0.8
	exchangeFlightID = "token"
)

// APIKeyExchange trades a long-lived API key for short-lived access tokens and
// refreshes them before they expire. Concurrent calls that find no usable
// token share a single exchange.
type APIKeyExchange struct {
	apiKey   string
	tokenURL string

	// HTTP performs the exchange request.
	HTTP Doer
	// ErrorDecoder interprets failed exchange responses.
	ErrorDecoder ErrorDecoder

	now   func() time.Time
	group singleflight.Group

	mu        sync.Mutex
	token     *oauth2.Token
	refreshAt time.Time
}

// NewAPIKeyExchange creates an exchanging auth method. An empty tokenURL
// selects DefaultIAMURL; a nil httpClient selects http.DefaultClient.
func NewAPIKeyExchange(apiKey, tokenURL string, httpClient Doer) *APIKeyExchange {
	if tokenURL == "" {
		tokenURL = DefaultIAMURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIKeyExchange{
		apiKey:       apiKey,
		tokenURL:     tokenURL,
		HTTP:         httpClient,
		ErrorDecoder: DecodeError,
		now:          time.Now,
	}
}

func (*APIKeyExchange) authMethod() {}

// Apply attaches a valid access token, exchanging the API key first when the
// current token is missing or due for refresh. Exchange failures are returned
// unchanged and the request is not sent.
func (a *APIKeyExchange) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// AccessToken returns a usable access token, blocking on an exchange if needed.
func (a *APIKeyExchange) AccessToken(ctx context.Context) (string, error) {
	if token, ok := a.current(); ok {
		return token, nil
	}

	ch := a.group.DoChan(exchangeFlightID, func() (any, error) {
		if token, ok := a.current(); ok {
			return token, nil
		}
		// The flight outlives any single waiter, so it must not inherit one
		// caller's cancellation.
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		token, err := a.exchange(exCtx)
		if err != nil {
			return "", err
		}
		a.store(token)
		return token.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", &TransportError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate discards the current token so the next call exchanges again.
func (a *APIKeyExchange) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
	a.refreshAt = time.Time{}
}

// Token returns a copy of the current token state, or nil.
func (a *APIKeyExchange) Token() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return nil
	}
	copyToken := *a.token
	return &copyToken
}

func (a *APIKeyExchange) current() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil || a.token.AccessToken == "" {
		return "", false
	}
	// Expiry and refreshAt are both judged by a.now, not oauth2's wall clock.
	now := a.now()
	if !a.token.Expiry.IsZero() && !now.Before(a.token.Expiry) {
		return "", false
	}
	if !a.refreshAt.IsZero() && !now.Before(a.refreshAt) {
		return "", false
	}
	return a.token.AccessToken, true
}

func (a *APIKeyExchange) store(token *oauth2.Token) {
	now := a.now()
	var refreshAt time.Time
	if !token.Expiry.IsZero() {
		lifetime := token.Expiry.Sub(now)
		refreshAt = now.Add(time.Duration(float64(lifetime) * refreshFraction))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	a.refreshAt = refreshAt
}

type iamTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Expiration   int64  `json:"expiration"`
}

func (a *APIKeyExchange) exchange(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", iamGrantType)
	form.Set("apikey", a.apiKey)
	form.Set("response_type", "cloud_iam")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(iamClientID, iamClientSecret)

	start := a.now()
	resp, err := a.HTTP.Do(req)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("token exchange failed", "url", a.tokenURL, "error", err)
		}
		return nil, &TransportError{Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read token response: %w", err)}
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("token exchange complete", "url", a.tokenURL, "status", resp.StatusCode, "duration", a.now().Sub(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := a.ErrorDecoder(resp.StatusCode, body)
		httpErr.RequestID = requestIDFromHeader(resp.Header)
		return nil, httpErr
	}

	var payload iamTokenResponse
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return nil, &SerializationError{Values: "token response", Err: err}
	}
	if payload.AccessToken == "" {
		return nil, &SerializationError{Values: "token response", Err: fmt.Errorf("missing access_token")}
	}

	token := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
	}
	switch {
	case payload.Expiration > 0:
		token.Expiry = time.Unix(payload.Expiration, 0)
	case payload.ExpiresIn > 0:
		token.Expiry = start.Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}
