// Package session issues and tracks cookie-backed sign-in sessions. Tokens
// are random, opaque, and kept server-side only; the cookie carries nothing
// but the token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/indieinfra/simmer/config"
)

type userKeyType struct{}

var userKey = userKeyType{}

// ContextWithUser records the signed-in username for downstream handlers.
func ContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

// UserFromContext returns the signed-in username, or "" when the request is
// anonymous.
func UserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if user, ok := ctx.Value(userKey).(string); ok {
		return user
	}

	return ""
}

type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Store keeps active sessions in process memory.
type Store struct {
	mu         sync.Mutex
	cookieName string
	ttl        time.Duration
	sessions   map[string]Session
}

func NewStore(cfg *config.Session) *Store {
	return &Store{
		cookieName: cfg.CookieName,
		ttl:        time.Duration(cfg.TTLMinutes) * time.Minute,
		sessions:   make(map[string]Session),
	}
}

// Create starts a session for the username and sets the session cookie.
func (st *Store) Create(w http.ResponseWriter, username string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	s := Session{
		Token:     token,
		Username:  username,
		ExpiresAt: time.Now().Add(st.ttl),
	}

	st.mu.Lock()
	st.sessions[token] = s
	st.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     st.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return s, nil
}

// Get resolves the request's session cookie. Expired sessions are dropped on
// sight.
func (st *Store) Get(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(st.cookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[cookie.Value]
	if !ok {
		return Session{}, false
	}

	if time.Now().After(s.ExpiresAt) {
		delete(st.sessions, cookie.Value)
		return Session{}, false
	}

	return s, true
}

// Destroy ends the request's session, if any, and clears the cookie.
func (st *Store) Destroy(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(st.cookieName); err == nil && cookie.Value != "" {
		st.mu.Lock()
		delete(st.sessions, cookie.Value)
		st.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     st.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// DestroyUser ends every session belonging to the username. Called when the
// account itself is deleted.
func (st *Store) DestroyUser(username string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for token, s := range st.sessions {
		if s.Username == username {
			delete(st.sessions, token)
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
