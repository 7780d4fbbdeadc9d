// Package config stores visual recognition credentials in the OS keychain
// and resolves them against environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"

	"github.com/youtell/visrec-cli/internal/json"
)

const (
	serviceName       = "visrec-cli"
	defaultProfile    = "default"
	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"

	envKeyringBackend  = "VISREC_KEYRING_BACKEND"
	envKeyringPassword = "VISREC_KEYRING_PASSWORD"
	envCredentialsDir  = "VISREC_CREDENTIALS_DIR"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// openKeyring is a package-level function for opening keyrings.
// It can be replaced in tests to use a mock keyring.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var userConfigDir = os.UserConfigDir

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// Credentials identify one service instance. Exactly one of APIKey and
// AccessToken is normally set.
type Credentials struct {
	ServiceURL  string `json:"service_url,omitempty"`
	Version     string `json:"version,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	IAMURL      string `json:"iam_url,omitempty"`
}

// AuthType names how the credentials authenticate.
func (c Credentials) AuthType() string {
	switch {
	case strings.HasPrefix(c.APIKey, "icp-"):
		return "basic"
	case c.APIKey != "":
		return "api_key"
	case c.AccessToken != "":
		return "access_token"
	default:
		return "none"
	}
}

// ErrNotConfigured is returned when no credentials are stored.
var ErrNotConfigured = errors.New("visual recognition not configured - run 'visrec auth login' first")

// ConfigDir returns the per-user configuration directory of the tool.
func ConfigDir() string {
	if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, "visrec")
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".config", "visrec")
	}
	return filepath.Join(os.TempDir(), "visrec")
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	// Auto mode keeps the file backend configured so keyring.Open can fall
	// through to it when no native backend exists.
	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(envValue(envKeyringBackend)) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

// shouldForceFileBackend reports whether only the encrypted file backend may
// be used. Headless Linux has no secret service to talk to.
func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	if backend != keyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func keyringFileDir() string {
	if base := envValue(envCredentialsDir); base != "" {
		return filepath.Join(base, "keyring")
	}
	return filepath.Join(ConfigDir(), "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func profileKey(name string) string {
	if name == "" {
		name = defaultProfile
	}
	return profilePrefix + name
}

func loadProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to get profile index: %w", err)
	}
	var profiles []string
	if err := json.Unmarshal(item.Data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile index: %w", err)
	}
	return profiles, nil
}

func saveProfileIndex(ring keyring.Keyring, profiles []string) error {
	if profiles == nil {
		profiles = []string{}
	}
	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profile index: %w", err)
	}
	return ring.Set(keyring.Item{Key: profileIndexKey, Data: data})
}

func appendUnique(profiles []string, name string) []string {
	for _, p := range profiles {
		if p == name {
			return profiles
		}
	}
	return append(profiles, name)
}

// SaveProfile stores credentials under a named profile and makes it current.
func SaveProfile(profile string, creds Credentials) error {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := ring.Set(keyring.Item{
		Key:   profileKey(profile),
		Data:  data,
		Label: serviceName + " " + profile,
	}); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	if err := saveProfileIndex(ring, appendUnique(profiles, profile)); err != nil {
		return err
	}
	return setCurrentProfile(ring, profile)
}

// LoadProfile retrieves credentials for a named profile.
func LoadProfile(profile string) (Credentials, error) {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := ring.Get(profileKey(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Credentials{}, ErrNotConfigured
		}
		return Credentials{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return creds, nil
}

// DeleteProfile removes a stored profile. When it was current, the first
// remaining profile becomes current.
func DeleteProfile(profile string) error {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	if err := ring.Remove(profileKey(profile)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	remaining := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p != profile {
			remaining = append(remaining, p)
		}
	}
	if err := saveProfileIndex(ring, remaining); err != nil {
		return err
	}

	current, err := currentProfile(ring)
	if err == nil && current == profile {
		next := defaultProfile
		if len(remaining) > 0 {
			next = remaining[0]
		}
		return setCurrentProfile(ring, next)
	}
	return nil
}

// ListProfiles returns the known profile names in creation order.
func ListProfiles() ([]string, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return loadProfileIndex(ring)
}

// CurrentProfile returns the active profile name.
func CurrentProfile() (string, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}
	return currentProfile(ring)
}

// SetCurrentProfile sets the active profile name.
func SetCurrentProfile(profile string) error {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	return setCurrentProfile(ring, profile)
}

func currentProfile(ring keyring.Keyring) (string, error) {
	item, err := ring.Get(currentProfileKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return defaultProfile, nil
		}
		return "", fmt.Errorf("failed to get current profile: %w", err)
	}
	return string(item.Data), nil
}

func setCurrentProfile(ring keyring.Keyring, profile string) error {
	if profile == "" {
		profile = defaultProfile
	}
	return ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(profile)})
}
