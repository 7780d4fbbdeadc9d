package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newIAMServer(t *testing.T, hits *atomic.Int32, handler func(w http.ResponseWriter, n int32)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		handler(w, n)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAPIKeyExchange_RequestFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Accept = %q", accept)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bx" || pass != "bx" {
			t.Errorf("basic auth = %q:%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ibm:params:oauth:grant-type:apikey" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("apikey"); got != "my-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.PostForm.Get("response_type"); got != "cloud_iam" {
			t.Errorf("response_type = %q", got)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","refresh_token":"r","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	auth := NewAPIKeyExchange("my-key", server.URL, server.Client())
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q", got)
	}
	token := auth.Token()
	if token == nil || token.RefreshToken != "r" || token.TokenType != "Bearer" {
		t.Errorf("unexpected stored token: %+v", token)
	}
}

func TestAPIKeyExchange_ReusesTokenUntilRefreshPoint(t *testing.T) {
	var hits atomic.Int32
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":1000}`, n)
	})

	clock := &fakeClock{now: time.Now()}
	auth := NewAPIKeyExchange("key", server.URL, server.Client())
	auth.now = clock.Now
	ctx := context.Background()

	tok, err := auth.AccessToken(ctx)
	if err != nil || tok != "tok-1" {
		t.Fatalf("AccessToken = %q, %v", tok, err)
	}

	clock.Advance(799 * time.Second)
	tok, _ = auth.AccessToken(ctx)
	if tok != "tok-1" || hits.Load() != 1 {
		t.Errorf("expected cached token before 80%% of lifetime, got %q after %d exchanges", tok, hits.Load())
	}

	clock.Advance(2 * time.Second)
	tok, _ = auth.AccessToken(ctx)
	if tok != "tok-2" || hits.Load() != 2 {
		t.Errorf("expected refresh after 80%% of lifetime, got %q after %d exchanges", tok, hits.Load())
	}
}

func TestAPIKeyExchange_ExpirationField(t *testing.T) {
	var hits atomic.Int32
	base := time.Now()
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expiration":%d}`, n, base.Unix()+100)
	})

	clock := &fakeClock{now: time.Unix(base.Unix(), 0)}
	auth := NewAPIKeyExchange("key", server.URL, server.Client())
	auth.now = clock.Now

	_, _ = auth.AccessToken(context.Background())
	if want := time.Unix(base.Unix()+100, 0); !auth.Token().Expiry.Equal(want) {
		t.Errorf("Expiry = %v, want %v", auth.Token().Expiry, want)
	}
	clock.Advance(81 * time.Second)
	_, _ = auth.AccessToken(context.Background())
	if hits.Load() != 2 {
		t.Errorf("expected refresh after 80 seconds, got %d exchanges", hits.Load())
	}
}

func TestAPIKeyExchange_ValidityUsesInjectedClock(t *testing.T) {
	var hits atomic.Int32
	// Expires long before the wall clock's now.
	issued := time.Unix(1_600_000_000, 0)
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expiration":%d}`, n, issued.Unix()+1000)
	})

	clock := &fakeClock{now: issued}
	auth := NewAPIKeyExchange("key", server.URL, server.Client())
	auth.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if tok, err := auth.AccessToken(ctx); err != nil || tok != "tok-1" {
			t.Fatalf("AccessToken = %q, %v", tok, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected one exchange while the injected clock is before the refresh point, got %d", hits.Load())
	}

	clock.Advance(801 * time.Second)
	if tok, _ := auth.AccessToken(ctx); tok != "tok-2" {
		t.Errorf("expected refresh after 80%% of lifetime, got %q", tok)
	}
}

func TestAPIKeyExchange_ExpiredTokenIsNotReused(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_600_000_000, 0)}
	auth := NewAPIKeyExchange("key", "http://127.0.0.1:0", nil)
	auth.now = clock.Now

	auth.mu.Lock()
	auth.token = &oauth2.Token{AccessToken: "stale", Expiry: clock.Now().Add(time.Minute)}
	auth.refreshAt = time.Time{}
	auth.mu.Unlock()

	if tok, ok := auth.current(); !ok || tok != "stale" {
		t.Fatalf("current() = %q, %v before expiry", tok, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := auth.current(); ok {
		t.Error("token at its expiry must not be reused")
	}
}

func TestAPIKeyExchange_ConcurrentCallsShareOneExchange(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		<-release
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	})

	auth := NewAPIKeyExchange("key", server.URL, server.Client())

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = auth.AccessToken(context.Background())
		}(i)
	}
	close(start)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected exactly 1 token exchange, got %d", hits.Load())
	}
	for i := range tokens {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "tok-1" {
			t.Errorf("caller %d token = %q, want tok-1", i, tokens[i])
		}
	}
}

func TestAPIKeyExchange_HTTPFailure(t *testing.T) {
	var hits atomic.Int32
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, _ int32) {
		w.Header().Set("X-Request-Id", "iam-1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid apikey"}`))
	})

	auth := NewAPIKeyExchange("bad", server.URL, server.Client())
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	err := auth.Apply(context.Background(), req)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != 400 || httpErr.MessageOr("") != "invalid apikey" || httpErr.RequestID != "iam-1" {
		t.Errorf("unexpected error: %+v", httpErr)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("Authorization must not be set when the exchange fails")
	}

	// Failures are not cached or retried automatically.
	_, _ = auth.AccessToken(context.Background())
	if hits.Load() != 2 {
		t.Errorf("expected a fresh exchange per failing call, got %d", hits.Load())
	}
}

func TestAPIKeyExchange_UndecodableBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>ok</html>`},
		{"missing access_token", `{"expires_in":3600}`},
		{"wrong type", `{"access_token":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := newIAMServer(t, &hits, func(w http.ResponseWriter, _ int32) {
				_, _ = w.Write([]byte(tt.body))
			})
			auth := NewAPIKeyExchange("key", server.URL, server.Client())
			_, err := auth.AccessToken(context.Background())

			var serErr *SerializationError
			if !errors.As(err, &serErr) {
				t.Fatalf("expected SerializationError, got %T: %v", err, err)
			}
			if serErr.Values != "token response" {
				t.Errorf("Values = %q", serErr.Values)
			}
		})
	}
}

func TestAPIKeyExchange_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	auth := NewAPIKeyExchange("key", url, &http.Client{Timeout: time.Second})
	_, err := auth.AccessToken(context.Background())
	if !IsTransportError(err) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestAPIKeyExchange_Invalidate(t *testing.T) {
	var hits atomic.Int32
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	auth := NewAPIKeyExchange("key", server.URL, server.Client())

	_, _ = auth.AccessToken(context.Background())
	auth.Invalidate()
	if auth.Token() != nil {
		t.Error("expected no token after Invalidate")
	}
	tok, _ := auth.AccessToken(context.Background())
	if tok != "tok-2" {
		t.Errorf("token = %q, want tok-2", tok)
	}
}

func TestAPIKeyExchange_WaiterCancellation(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := newIAMServer(t, &hits, func(w http.ResponseWriter, n int32) {
		<-release
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	defer close(release)

	auth := NewAPIKeyExchange("key", server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := auth.AccessToken(ctx)
	if !IsTransportError(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected TransportError wrapping deadline, got %T: %v", err, err)
	}
}
