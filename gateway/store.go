package gateway

import "sync"

// TokenKind selects one of the two credentials a session holds.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

// Storage keys of the two session credentials.
const (
	accessTokenKey  = "token"
	refreshTokenKey = "refreshToken"
)

func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return accessTokenKey
	case RefreshToken:
		return refreshTokenKey
	default:
		return "unknown"
	}
}

// TokenStore is a key-value facade over wherever the session is persisted.
// Get returns "" for an absent key. Setting "" removes the key.
type TokenStore interface {
	Get(kind TokenKind) string
	Set(kind TokenKind, value string)
	Clear()
}

// Session is the pair of credentials issued by the backend.
type Session struct {
	AccessToken  string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Empty reports whether neither token is present.
func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// LoadSession reads both tokens from store.
func LoadSession(store TokenStore) Session {
	return Session{
		AccessToken:  store.Get(AccessToken),
		RefreshToken: store.Get(RefreshToken),
	}
}

// SaveSession overwrites the stored session with s.
func SaveSession(store TokenStore, s Session) {
	store.Set(AccessToken, s.AccessToken)
	store.Set(RefreshToken, s.RefreshToken)
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(kind TokenKind) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.get(kind)
}

func (m *MemoryStore) Set(kind TokenKind, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.set(kind, value)
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
}

func (s *Session) get(kind TokenKind) string {
	switch kind {
	case AccessToken:
		return s.AccessToken
	case RefreshToken:
		return s.RefreshToken
	}
	return ""
}

func (s *Session) set(kind TokenKind, value string) {
	switch kind {
	case AccessToken:
		s.AccessToken = value
	case RefreshToken:
		s.RefreshToken = value
	}
}
