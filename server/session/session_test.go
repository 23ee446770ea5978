package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/indieinfra/simmer/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(&config.Session{CookieName: "simmer_session", TTLMinutes: 30})
}

func requestWithCookies(rr *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestCreateAndGet(t *testing.T) {
	st := newTestStore(t)
	rr := httptest.NewRecorder()

	created, err := st.Create(rr, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Token == "" {
		t.Fatal("expected a token")
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "simmer_session" {
		t.Fatalf("unexpected cookies %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	s, ok := st.Get(requestWithCookies(rr))
	if !ok || s.Username != "alice" {
		t.Fatalf("got %+v ok=%v, want alice", s, ok)
	}
}

func TestGet_NoCookie(t *testing.T) {
	st := newTestStore(t)

	if _, ok := st.Get(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("expected no session without a cookie")
	}
}

func TestGet_UnknownToken(t *testing.T) {
	st := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "simmer_session", Value: "forged"})

	if _, ok := st.Get(req); ok {
		t.Fatal("expected no session for an unknown token")
	}
}

func TestGet_Expired(t *testing.T) {
	st := newTestStore(t)
	rr := httptest.NewRecorder()

	created, err := st.Create(rr, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st.mu.Lock()
	s := st.sessions[created.Token]
	s.ExpiresAt = time.Now().Add(-time.Minute)
	st.sessions[created.Token] = s
	st.mu.Unlock()

	if _, ok := st.Get(requestWithCookies(rr)); ok {
		t.Fatal("expected expired session to be rejected")
	}

	st.mu.Lock()
	_, still := st.sessions[created.Token]
	st.mu.Unlock()
	if still {
		t.Error("expired session should be dropped from the store")
	}
}

func TestDestroy(t *testing.T) {
	st := newTestStore(t)
	rr := httptest.NewRecorder()

	if _, err := st.Create(rr, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := requestWithCookies(rr)
	out := httptest.NewRecorder()
	st.Destroy(out, req)

	if _, ok := st.Get(req); ok {
		t.Fatal("session should be gone after destroy")
	}

	cookies := out.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("expected an expiring cookie, got %v", cookies)
	}
}

func TestDestroyUser(t *testing.T) {
	st := newTestStore(t)

	aliceOne := httptest.NewRecorder()
	aliceTwo := httptest.NewRecorder()
	bob := httptest.NewRecorder()
	if _, err := st.Create(aliceOne, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Create(aliceTwo, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Create(bob, "bob"); err != nil {
		t.Fatalf("create: %v", err)
	}

	st.DestroyUser("alice")

	if _, ok := st.Get(requestWithCookies(aliceOne)); ok {
		t.Error("alice's first session should be gone")
	}
	if _, ok := st.Get(requestWithCookies(aliceTwo)); ok {
		t.Error("alice's second session should be gone")
	}
	if _, ok := st.Get(requestWithCookies(bob)); !ok {
		t.Error("bob's session should survive")
	}
}

func TestUserContext(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "alice")
	if got := UserFromContext(ctx); got != "alice" {
		t.Fatalf("got %q, want alice", got)
	}
	if got := UserFromContext(context.Background()); got != "" {
		t.Fatalf("got %q, want empty for anonymous", got)
	}
}
