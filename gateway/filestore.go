package gateway

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// sessionFile is the on-disk layout: one session per API origin.
type sessionFile struct {
	Sessions map[string]*Session `json:"sessions"`
}

// FileStore persists the session for one API origin in a JSON file shared
// with sessions of other origins. The in-memory copy is authoritative for
// the lifetime of the process; failed writes are logged, not returned.
type FileStore struct {
	mu      sync.RWMutex
	writeMu sync.Mutex // serializes persist; never held with mu while writing
	path    string
	origin  string
	session Session
	logger  zerolog.Logger
}

// NewFileStore opens the session stored in path for the origin of baseURL.
// A missing or unreadable file yields an empty session.
func NewFileStore(path, baseURL string, logger zerolog.Logger) (*FileStore, error) {
	origin, err := originOf(baseURL)
	if err != nil {
		return nil, err
	}

	fs := &FileStore{path: path, origin: origin, logger: logger}
	if s, err := fs.load(); err == nil {
		fs.session = s
	} else if !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("file", path).Msg("ignoring unreadable session file")
	}
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(kind TokenKind) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session.get(kind)
}

func (f *FileStore) Set(kind TokenKind, value string) {
	f.mu.Lock()
	f.session.set(kind, value)
	f.mu.Unlock()
	f.persist()
}

func (f *FileStore) Clear() {
	f.mu.Lock()
	f.session = Session{}
	f.mu.Unlock()
	f.persist()
}

// persist writes the latest session. It runs outside mu so readers never
// wait on the file lock.
func (f *FileStore) persist() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.RLock()
	s := f.session
	f.mu.RUnlock()

	if err := f.write(s); err != nil {
		f.logger.Error().Err(err).Str("file", f.path).Msg("failed to persist session")
	}
}

func (f *FileStore) load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Session{}, err
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return Session{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s, ok := sf.Sessions[f.origin]; ok && s != nil {
		return *s, nil
	}
	return Session{}, nil
}

// write merges s into the file under the sidecar lock, keeping other
// origins' sessions, and replaces the file atomically.
func (f *FileStore) write(s Session) error {
	lock, err := lockSessionFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if err := lock.unlock(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to release session file lock")
		}
	}()

	var sf sessionFile
	if existing, err := os.ReadFile(f.path); err == nil {
		// a corrupt file is rebuilt from scratch
		_ = json.Unmarshal(existing, &sf)
	}
	if sf.Sessions == nil {
		sf.Sessions = make(map[string]*Session)
	}

	if s.Empty() {
		delete(sf.Sessions, f.origin)
	} else {
		sf.Sessions[f.origin] = &s
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL must include scheme and host: %q", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
