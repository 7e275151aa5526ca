package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()

	if got := store.Get(AccessToken); got != "" {
		t.Errorf("empty store returned %q", got)
	}

	store.Set(AccessToken, "eyJhbGciOi.access")
	store.Set(RefreshToken, "refresh-1")
	if got := store.Get(AccessToken); got != "eyJhbGciOi.access" {
		t.Errorf("AccessToken = %q", got)
	}
	if got := store.Get(RefreshToken); got != "refresh-1" {
		t.Errorf("RefreshToken = %q", got)
	}

	store.Clear()
	if s := LoadSession(store); !s.Empty() {
		t.Errorf("session not cleared: %+v", s)
	}
}

func TestTokenKind_String(t *testing.T) {
	if AccessToken.String() != "token" || RefreshToken.String() != "refreshToken" {
		t.Errorf("unexpected storage keys %q, %q", AccessToken, RefreshToken)
	}
}

func newTestFileStore(t *testing.T, path, baseURL string) *FileStore {
	t.Helper()
	fs, err := NewFileStore(path, baseURL, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return fs
}

func readSessionFile(t *testing.T, path string) sessionFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		t.Fatalf("Failed to parse session file: %v", err)
	}
	return sf
}

func TestFileStore_SurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	fs := newTestFileStore(t, path, "https://api.example.com/api")
	SaveSession(fs, Session{AccessToken: "T1", RefreshToken: "R1"})

	reloaded := newTestFileStore(t, path, "https://api.example.com/other")
	if got := LoadSession(reloaded); got != (Session{AccessToken: "T1", RefreshToken: "R1"}) {
		t.Errorf("reloaded session = %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}
}

func TestFileStore_ReadsWhileFileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	fs := newTestFileStore(t, path, "https://api.example.com")
	SaveSession(fs, Session{AccessToken: "T1", RefreshToken: "R1"})

	lock, err := lockSessionFile(path)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fs.Set(AccessToken, "T2")
	}()

	start := time.Now()
	for fs.Get(AccessToken) != "T2" {
		if time.Since(start) > time.Second {
			t.Fatalf("Get blocked behind the file lock")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := fs.Get(RefreshToken); got != "R1" {
		t.Errorf("RefreshToken = %q while write pending", got)
	}
	select {
	case <-done:
		t.Fatalf("Set finished while the file was locked")
	default:
	}

	if err := lock.unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Set did not finish after unlock")
	}

	if s := readSessionFile(t, path).Sessions["https://api.example.com"]; s == nil || s.AccessToken != "T2" {
		t.Errorf("persisted session = %+v", s)
	}
}

func TestFileStore_ClearRemovesOnlyOwnOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	prod := newTestFileStore(t, path, "https://api.example.com")
	staging := newTestFileStore(t, path, "https://staging.example.com")
	SaveSession(prod, Session{AccessToken: "P1", RefreshToken: "PR1"})
	SaveSession(staging, Session{AccessToken: "S1", RefreshToken: "SR1"})

	prod.Clear()

	sf := readSessionFile(t, path)
	if _, ok := sf.Sessions["https://api.example.com"]; ok {
		t.Errorf("cleared origin still present")
	}
	if s := sf.Sessions["https://staging.example.com"]; s == nil || s.AccessToken != "S1" {
		t.Errorf("other origin was not preserved: %+v", s)
	}
	if got := prod.Get(AccessToken); got != "" {
		t.Errorf("Get after Clear = %q", got)
	}
}

func TestFileStore_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := newTestFileStore(t, path, "http://localhost:8080")
	if s := LoadSession(fs); !s.Empty() {
		t.Errorf("corrupt file yielded %+v", s)
	}

	fs.Set(AccessToken, "T1")
	sf := readSessionFile(t, path)
	if s := sf.Sessions["http://localhost:8080"]; s == nil || s.AccessToken != "T1" {
		t.Errorf("file not rebuilt: %+v", sf)
	}
}

func TestFileStore_ConcurrentOrigins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	const goroutines = 8
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fs, err := NewFileStore(path, fmt.Sprintf("https://tenant-%d.example.com", id), zerolog.Nop())
			if err != nil {
				t.Errorf("Goroutine %d: %v", id, err)
				return
			}
			SaveSession(fs, Session{
				AccessToken:  fmt.Sprintf("access-%d", id),
				RefreshToken: fmt.Sprintf("refresh-%d", id),
			})
		}(i)
	}
	wg.Wait()

	sf := readSessionFile(t, path)
	if len(sf.Sessions) != goroutines {
		t.Errorf("Expected %d sessions, got %d", goroutines, len(sf.Sessions))
	}
	for i := 0; i < goroutines; i++ {
		s := sf.Sessions[fmt.Sprintf("https://tenant-%d.example.com", i)]
		if s == nil || s.RefreshToken != fmt.Sprintf("refresh-%d", i) {
			t.Errorf("tenant %d session = %+v", i, s)
		}
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all writes completed")
	}
}

func TestNewFileStore_RejectsRelativeURL(t *testing.T) {
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "s.json"), "/api", zerolog.Nop()); err == nil {
		t.Errorf("expected error for URL without host")
	}
}

func BenchmarkFileStore_Set(b *testing.B) {
	fs, err := NewFileStore(filepath.Join(b.TempDir(), "sessions.json"), "https://api.example.com", zerolog.Nop())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fs.Set(AccessToken, "access-token")
	}
}
