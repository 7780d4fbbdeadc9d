package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/youtell/visrec-cli/internal/api"
)

// Environment overrides.
const (
	EnvAPIKey      = "VISREC_API_KEY"
	EnvAccessToken = "VISREC_ACCESS_TOKEN"
	EnvServiceURL  = "VISREC_SERVICE_URL"
	EnvVersion     = "VISREC_VERSION"
	EnvIAMURL      = "VISREC_IAM_URL"
	EnvProfile     = "VISREC_PROFILE"
)

// ClientConfig contains resolved API client settings.
type ClientConfig struct {
	Credentials
	Profile string
	// Source is "env" when credentials came from the environment, else "keyring".
	Source string
}

// ResolveClientConfig resolves credentials for profile (or the current
// profile when empty). VISREC_API_KEY / VISREC_ACCESS_TOKEN bypass the
// keychain entirely; the URL and version variables override whichever
// source was used.
func ResolveClientConfig(profile string) (ClientConfig, error) {
	var cfg ClientConfig

	apiKey, token := envValue(EnvAPIKey), envValue(EnvAccessToken)
	if apiKey != "" || token != "" {
		cfg.Source = "env"
		cfg.APIKey = apiKey
		if apiKey == "" {
			cfg.AccessToken = token
		}
	} else {
		if profile == "" {
			profile = envValue(EnvProfile)
		}
		if profile == "" {
			current, err := CurrentProfile()
			if err != nil {
				return ClientConfig{}, err
			}
			profile = current
		}
		creds, err := LoadProfile(profile)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Credentials = creds
		cfg.Profile = profile
		cfg.Source = "keyring"
	}

	if v := envValue(EnvServiceURL); v != "" {
		cfg.ServiceURL = v
	}
	if v := envValue(EnvVersion); v != "" {
		cfg.Version = v
	}
	if v := envValue(EnvIAMURL); v != "" {
		cfg.IAMURL = v
	}
	cfg.ApplyDefaults()

	if cfg.APIKey == "" && cfg.AccessToken == "" {
		return ClientConfig{}, fmt.Errorf("no API key or access token configured (set %s or run 'visrec auth login')", EnvAPIKey)
	}
	return cfg, nil
}

// ApplyDefaults fills the public service URL, version and IAM endpoint where unset.
func (c *ClientConfig) ApplyDefaults() {
	c.ServiceURL = strings.TrimSuffix(c.ServiceURL, "/")
	if c.ServiceURL == "" {
		c.ServiceURL = api.DefaultServiceURL
	}
	if c.Version == "" {
		c.Version = api.DefaultVersion
	}
	if c.IAMURL == "" {
		c.IAMURL = api.DefaultIAMURL
	}
}

// DefaultEnvFile is the optional dotenv file loaded at startup.
func DefaultEnvFile() string {
	return filepath.Join(ConfigDir(), ".env")
}

// LoadEnvFiles loads dotenv files in order. Variables already present in
// the environment are never overridden. Missing files are skipped unless
// required is set.
func LoadEnvFiles(required bool, paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if required {
				return fmt.Errorf("env file %s: %w", path, err)
			}
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}
