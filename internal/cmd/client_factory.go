package cmd

import (
	"fmt"
	"time"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/cache"
	"github.com/youtell/visrec-cli/internal/config"
)

type clientFactory struct {
	timeout   time.Duration
	userAgent string
	profile   string
	headers   []string
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		timeout:   flags.Timeout,
		userAgent: fmt.Sprintf("visrec-cli/%s", version),
		profile:   flags.Profile,
		headers:   flags.Headers,
	}
}

// session is a configured client together with the settings it was built from.
type session struct {
	client *api.Client
	config config.ClientConfig
}

func (f *clientFactory) session() (*session, error) {
	cfg, err := config.ResolveClientConfig(f.profile)
	if err != nil {
		return nil, err
	}
	client, err := f.newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &session{client: client, config: cfg}, nil
}

func (f *clientFactory) newClient(cfg config.ClientConfig) (*api.Client, error) {
	client := api.NewWithAuth(cfg.Version, authMethod(cfg))
	client.ServiceURL = cfg.ServiceURL
	if f.timeout > 0 {
		client.SetTimeout(f.timeout)
	}
	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}
	headers, err := parseHeaders(f.headers)
	if err != nil {
		return nil, err
	}
	for name, values := range headers {
		client.DefaultHeaders[name] = values
	}
	return client, nil
}

// authMethod picks bearer auth for an access token, otherwise the API key
// variant (basic auth for icp- keys, token exchange for the rest).
func authMethod(cfg config.ClientConfig) api.AuthMethod {
	if cfg.APIKey != "" {
		return api.NewAuthMethod(cfg.APIKey, cfg.IAMURL, nil)
	}
	return api.NewBearerToken(cfg.AccessToken)
}

// getSession builds an API session for the current invocation.
func getSession() (*session, error) {
	return newClientFactory().session()
}

// classifierCache returns the classifier list cache for this session, or nil
// when caching is off.
func (s *session) classifierCache() *cache.Store {
	if flags.NoCache || cache.Disabled() {
		return nil
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return nil
	}
	scope := s.config.Profile
	if s.config.Source == "env" {
		scope = "env"
	}
	return cache.NewStore(dir, "classifiers", s.config.ServiceURL, scope)
}
