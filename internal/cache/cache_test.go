package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type classifier struct {
	ID   string `json:"classifier_id"`
	Name string `json:"name"`
}

func TestStore_PutAndGet(t *testing.T) {
	s := NewStore(t.TempDir(), "classifiers", "https://example.com/api", "default")

	items := []classifier{{ID: "dogs_1", Name: "dogs"}, {ID: "cats_2", Name: "cats"}}
	s.Put(items)

	var got []classifier
	if !s.Get(&got) {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0].Name != "dogs" || got[1].ID != "cats_2" {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestStore_ExpiredTTL(t *testing.T) {
	s := NewStoreWithTTL(t.TempDir(), "classifiers", "https://example.com", "default", time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }
	s.Put([]string{"a"})

	s.now = func() time.Time { return start.Add(2 * time.Minute) }
	var got []string
	if s.Get(&got) {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestStore_MissOnEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), "classifiers", "https://example.com", "default")

	var got []string
	if s.Get(&got) {
		t.Fatal("expected cache miss on empty store")
	}
}

func TestStore_MissOnCorruptFile(t *testing.T) {
	s := NewStore(t.TempDir(), "classifiers", "https://example.com", "default")
	if err := os.WriteFile(s.Path(), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	var got []string
	if s.Get(&got) {
		t.Fatal("expected cache miss on corrupt file")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(t.TempDir(), "classifiers", "https://example.com", "default")

	s.Put([]string{"a"})
	s.Clear()

	var got []string
	if s.Get(&got) {
		t.Fatal("expected cache miss after clear")
	}
}

func TestStore_ScopesAreSeparate(t *testing.T) {
	dir := t.TempDir()
	s1 := NewStore(dir, "classifiers", "https://example.com", "work")
	s2 := NewStore(dir, "classifiers", "https://example.com", "home")
	s3 := NewStore(dir, "classifiers", "https://example.com/", "work")

	s1.Put([]string{"work"})
	s2.Put([]string{"home"})

	var got1, got2, got3 []string
	s1.Get(&got1)
	s2.Get(&got2)
	if got1[0] != "work" || got2[0] != "home" {
		t.Fatal("scopes should have separate caches")
	}
	if !s3.Get(&got3) || got3[0] != "work" {
		t.Fatal("trailing slash on the service URL should share the cache")
	}
}

func TestStore_DisabledByEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VISREC_NO_CACHE", "1")

	s := NewStore(dir, "classifiers", "https://example.com", "default")
	s.Put([]string{"a"})

	var got []string
	if s.Get(&got) {
		t.Fatal("expected cache miss when disabled via env")
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Fatal("expected no files written when cache disabled")
	}
}

func TestDefaultDir(t *testing.T) {
	dir, err := DefaultDir()
	if err != nil {
		t.Skipf("no user cache dir: %v", err)
	}
	if !strings.HasSuffix(dir, "visrec") {
		t.Fatalf("unexpected default cache dir: %q", dir)
	}
}

func TestIsCacheFilename(t *testing.T) {
	cases := map[string]bool{
		"classifiers_abcdef123456.json": true,
		"classifiers_ABCDEF123456.json": true,
		"_abcdef123456.json":            false,
		"classifiers_abcdef.json":       false,
		"classifiers_abcdef12345z.json": false,
		"classifiers_abcdef123456.txt":  false,
		"classifiers.json":              false,
	}
	for name, want := range cases {
		if got := isCacheFilename(name); got != want {
			t.Errorf("isCacheFilename(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestClearAll_RemovesOnlyCacheFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "classifiers", "https://example.com", "default")
	s.Put([]string{"a"})
	keepFile := filepath.Join(dir, "README.txt")
	if err := os.WriteFile(keepFile, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}

	ClearAll(dir)

	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected cache file removed, stat err=%v", err)
	}
	if _, err := os.Stat(keepFile); err != nil {
		t.Fatalf("expected non-cache file kept, err=%v", err)
	}
}
