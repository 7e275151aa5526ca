package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeNavigator records redirects to the login surface.
type fakeNavigator struct {
	onLogin   atomic.Bool
	redirects atomic.Int32
}

func (n *fakeNavigator) OnLoginView() bool { return n.onLogin.Load() }

func (n *fakeNavigator) RedirectToLogin() {
	n.redirects.Add(1)
	n.onLogin.Store(true)
}

// countingStore wraps a MemoryStore and counts reads.
type countingStore struct {
	*MemoryStore
	reads atomic.Int32
}

func (s *countingStore) Get(kind TokenKind) string {
	s.reads.Add(1)
	return s.MemoryStore.Get(kind)
}

// backend is a fake API: /invoices accepts only the current valid token,
// /auth/refresh hands out new tokens.
type backend struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	validToken string
	mux        *http.ServeMux

	refreshCalls atomic.Int32
	invoiceCalls atomic.Int32
	authHeaders  []string

	// refresh overrides the default refresh handler when set.
	refresh http.HandlerFunc
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{t: t, validToken: "T2", mux: http.NewServeMux()}
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refresh != nil {
			b.refresh(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "T2"})
	})
	b.mux.HandleFunc("/invoices", func(w http.ResponseWriter, r *http.Request) {
		b.invoiceCalls.Add(1)
		auth := r.Header.Get("Authorization")
		b.mu.Lock()
		b.authHeaders = append(b.authHeaders, auth)
		valid := "Bearer " + b.validToken
		b.mu.Unlock()

		if auth != valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   []map[string]any{{"id": "inv-1", "total": 1200}},
		})
	})
	b.mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := "Bearer " + b.validToken
		b.mu.Unlock()
		if r.Header.Get("Authorization") != valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]string{"email": "ana@example.com"},
		})
	})

	b.server = httptest.NewServer(b.mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, h)
}

func (b *backend) headers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func (b *backend) options(nav Navigator) Options {
	return Options{
		BaseURL:   b.server.URL,
		Navigator: nav,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func storeWith(access, refresh string) *MemoryStore {
	s := NewMemoryStore()
	SaveSession(s, Session{AccessToken: access, RefreshToken: refresh})
	return s
}
