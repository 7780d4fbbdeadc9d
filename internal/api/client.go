package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/youtell/visrec-cli/internal/debug"
	"github.com/youtell/visrec-cli/internal/multipart"
	"github.com/youtell/visrec-cli/internal/validation"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultServiceURL = "https://gateway.watsonplatform.net/visual-recognition/api"
	DefaultVersion    = "2018-03-19"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the visual recognition API client. A Client is safe for
// concurrent use; the only state shared between calls is the auth method.
type Client struct {
	ServiceURL     string
	Version        string
	DefaultHeaders http.Header
	HTTP           Doer
	ErrorDecoder   ErrorDecoder
	UserAgent      string

	auth              AuthMethod
	skipURLValidation bool // internal flag for testing only
	validatedURL      bool
	validateMu        sync.Mutex
}

var validateServiceURL = validation.ValidateServiceURL

// New creates a client that authenticates with a long-lived API key. Keys
// with the "icp-" prefix are sent over basic auth; all others are exchanged
// for access tokens at iamURL (DefaultIAMURL when empty).
func New(version, apiKey, iamURL string) *Client {
	c := newClient(version)
	c.auth = NewAuthMethod(apiKey, iamURL, c.HTTP)
	return c
}

// NewWithAccessToken creates a client that sends a caller-managed access token.
func NewWithAccessToken(version, accessToken string) *Client {
	c := newClient(version)
	c.auth = NewBearerToken(accessToken)
	return c
}

// NewWithAuth creates a client around an existing auth method. An
// *APIKeyExchange is switched to the client's transport so token exchanges
// share its timeout and TLS settings.
func NewWithAuth(version string, auth AuthMethod) *Client {
	c := newClient(version)
	c.auth = auth
	c.SetHTTPClient(c.HTTP)
	return c
}

func newClient(version string) *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	if version == "" {
		version = DefaultVersion
	}

	// Allow localhost URLs when VISREC_TESTING=1 is set (for integration tests)
	skipValidation := os.Getenv("VISREC_TESTING") == "1"

	return &Client{
		ServiceURL:        DefaultServiceURL,
		Version:           version,
		DefaultHeaders:    http.Header{},
		ErrorDecoder:      DecodeError,
		skipURLValidation: skipValidation,
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
	}
}

// newTestClient creates a bearer client pointed at baseURL with URL
// validation disabled.
func newTestClient(baseURL, token string) *Client {
	c := NewWithAccessToken("2018-03-19", token)
	c.ServiceURL = baseURL
	c.skipURLValidation = true
	return c
}

// Auth returns the client's auth method.
func (c *Client) Auth() AuthMethod {
	return c.auth
}

// SetAccessToken replaces the token of a bearer-token client. It reports
// false and changes nothing when the client authenticates another way.
func (c *Client) SetAccessToken(token string) bool {
	bearer, ok := c.auth.(*BearerToken)
	if !ok {
		return false
	}
	bearer.SetToken(token)
	return true
}

// SetHTTPClient replaces the transport for API calls and token exchanges.
func (c *Client) SetHTTPClient(d Doer) {
	c.HTTP = d
	if exchange, ok := c.auth.(*APIKeyExchange); ok {
		exchange.HTTP = d
	}
}

// SetTimeout sets the per-call timeout when the transport is an *http.Client.
func (c *Client) SetTimeout(d time.Duration) {
	if hc, ok := c.HTTP.(*http.Client); ok {
		hc.Timeout = d
	}
}

func (c *Client) ensureServiceURLValidated() error {
	if c.skipURLValidation {
		return nil
	}

	c.validateMu.Lock()
	defer c.validateMu.Unlock()

	if c.validatedURL {
		return nil
	}
	if err := validateServiceURL(c.ServiceURL); err != nil {
		return fmt.Errorf("URL validation failed: %w", err)
	}
	c.validatedURL = true
	return nil
}

// QueryParam is one query parameter. Order and duplicates are preserved.
type QueryParam struct {
	Key   string
	Value string
}

// Request describes one call. Path is relative to the service URL and is
// percent-encoded by the client. When Form is set it is encoded as the body
// and its content type replaces any Content-Type in Header.
type Request struct {
	Method string
	Path   string
	Query  []QueryParam
	Header http.Header
	Body   []byte
	Form   *multipart.Form
}

// Result is the outcome of one asynchronous call. Err, when set, is always a
// ServiceError.
type Result[T any] struct {
	Value T
	Err   error
}

// Execute runs req synchronously and decodes a 2xx body with decode. Any
// returned error is a ServiceError.
func Execute[T any](ctx context.Context, c *Client, req Request, decode Decoder[T]) (T, error) {
	var zero T
	body, header, err := c.execute(ctx, req)
	if err != nil {
		return zero, err
	}
	value, err := decode(body, header)
	if err != nil {
		var se ServiceError
		if errors.As(err, &se) {
			return zero, se
		}
		return zero, &SerializationError{Values: shapeName[T](), Err: err}
	}
	return value, nil
}

// Dispatch runs req on its own goroutine and calls done exactly once with
// the decoded value or a ServiceError.
func Dispatch[T any](ctx context.Context, c *Client, req Request, decode Decoder[T], done func(T, error)) {
	go func() {
		done(Execute(ctx, c, req, decode))
	}()
}

// Go runs req asynchronously and delivers its single result on the
// returned channel.
func Go[T any](ctx context.Context, c *Client, req Request, decode Decoder[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	Dispatch(ctx, c, req, decode, func(value T, err error) {
		ch <- Result[T]{Value: value, Err: err}
	})
	return ch
}

// execute performs the HTTP round trip and returns the body of a 2xx
// response. Failures before the network call (path, body, auth) never reach
// the transport. A service URL rejected by validation is reported as a
// TransportError since the URL is the transport target; no request is sent.
func (c *Client) execute(ctx context.Context, req Request) ([]byte, http.Header, error) {
	if err := c.ensureServiceURLValidated(); err != nil {
		return nil, nil, &TransportError{Err: err}
	}

	reqURL, err := c.requestURL(req.Path, req.Query)
	if err != nil {
		return nil, nil, err
	}

	body := req.Body
	contentType := ""
	if req.Form != nil {
		encoded, err := req.Form.Encode()
		if err != nil {
			return nil, nil, formError(err)
		}
		body = encoded.Bytes
		contentType = encoded.ContentType()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	c.applyHeaders(httpReq, req.Header, contentType)

	if c.auth != nil {
		if err := c.auth.Apply(ctx, httpReq); err != nil {
			var se ServiceError
			if errors.As(err, &se) {
				return nil, nil, se
			}
			return nil, nil, &TransportError{Err: err}
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", method, "url", reqURL, "error", err)
		}
		return nil, nil, &TransportError{Err: err}
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", method, "url", reqURL, "status", resp.StatusCode, "bytes", len(respBody), "duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		decodeErr := c.ErrorDecoder
		if decodeErr == nil {
			decodeErr = DecodeError
		}
		httpErr := decodeErr(resp.StatusCode, respBody)
		if httpErr == nil {
			httpErr = &HTTPError{StatusCode: resp.StatusCode}
		}
		httpErr.RequestID = requestIDFromHeader(resp.Header)
		return nil, nil, httpErr
	}

	return respBody, resp.Header, nil
}

// applyHeaders layers defaults, then caller headers, on the request. The
// Authorization header is owned by the auth method and set afterwards.
func (c *Client) applyHeaders(httpReq *http.Request, header http.Header, contentType string) {
	httpReq.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}
	mergeHeader(httpReq.Header, c.DefaultHeaders)
	mergeHeader(httpReq.Header, header)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
}

// mergeHeader replaces dst's values with src's for every key src names.
// Keys are canonicalized, so "accept" and "Accept" are one header; spellings
// of the same key within src are applied in sorted order.
func mergeHeader(dst, src http.Header) {
	if len(src) == 0 {
		return
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replaced := make(map[string]bool, len(keys))
	for _, k := range keys {
		canonical := http.CanonicalHeaderKey(k)
		if !replaced[canonical] {
			dst.Del(canonical)
			replaced[canonical] = true
		}
		for _, v := range src[k] {
			dst.Add(canonical, v)
		}
	}
}

// requestURL joins the service URL, the encoded path and the query. The
// version parameter is always first.
func (c *Client) requestURL(path string, query []QueryParam) (string, error) {
	escaped, err := EncodePath(path)
	if err != nil {
		return "", err
	}
	if escaped != "" && escaped[0] != '/' {
		escaped = "/" + escaped
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(c.ServiceURL, "/"))
	sb.WriteString(escaped)
	sb.WriteString("?version=")
	sb.WriteString(url.QueryEscape(c.Version))
	for _, p := range query {
		sb.WriteByte('&')
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String(), nil
}

func formError(err error) error {
	var fileErr *multipart.FileError
	if errors.As(err, &fileErr) {
		return &SerializationError{Values: "file " + fileErr.Path, Err: fileErr.Err}
	}
	var valueErr *multipart.ValueError
	if errors.As(err, &valueErr) {
		return &SerializationError{Values: "field " + valueErr.Name, Err: err}
	}
	return &SerializationError{Values: "request multipart form data", Err: err}
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	if id := header.Get("X-Request-Id"); id != "" {
		return id
	}
	return header.Get("X-Global-Transaction-Id")
}
