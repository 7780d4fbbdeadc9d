// Package cache keeps small API listings on disk between CLI invocations.
//
// Entries are JSON files scoped by resource and by the service instance they
// came from. Default TTL is 5 minutes. Disable with VISREC_NO_CACHE=1.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/youtell/visrec-cli/internal/json"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes a single cache key (resource+service+scope).
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewStore creates a Store with the default TTL. scope separates entries for
// different credentials on the same service, typically the profile name.
func NewStore(dir, key, serviceURL, scope string) *Store {
	return NewStoreWithTTL(dir, key, serviceURL, scope, DefaultTTL)
}

// NewStoreWithTTL creates a Store with a custom TTL.
func NewStoreWithTTL(dir, key, serviceURL, scope string, ttl time.Duration) *Store {
	hash := sha1.Sum([]byte(strings.TrimRight(serviceURL, "/") + "\x00" + scope))
	filename := sanitizeKey(key) + "_" + hex.EncodeToString(hash[:6]) + ".json"
	return &Store{
		path: filepath.Join(dir, filename),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get loads cached items into dst. Returns false on miss (no file, expired, disabled).
func (s *Store) Get(dst any) bool {
	if Disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if s.now().Sub(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

// Put writes items to the cache. Silently no-ops on error or when disabled.
func (s *Store) Put(items any) {
	if Disabled() {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: s.now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear removes this cache file.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// ClearAll removes every cache file from dir. Only names matching the
// store's filename scheme are touched.
func ClearAll(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isCacheFilename(e.Name()) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
}

// DefaultDir returns "$XDG_CACHE_HOME/visrec" or the platform equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "visrec"), nil
}

// Disabled reports whether caching is turned off through the environment.
func Disabled() bool {
	return os.Getenv("VISREC_NO_CACHE") != ""
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	return strings.NewReplacer("/", "-", "\\", "-", "_", "-").Replace(key)
}

func isCacheFilename(name string) bool {
	// "<key>_<12hex>.json"
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	key, hash, ok := strings.Cut(base, "_")
	if !ok || key == "" || len(hash) != 12 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
