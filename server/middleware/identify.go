package middleware

import (
	"log"
	"net/http"

	"github.com/indieinfra/simmer/server/session"
	"github.com/indieinfra/simmer/server/util"
)

// Identify resolves the request's session cookie, if any, and attaches the
// username and a request-scoped logger to the context. It never rejects a
// request; guards downstream decide what anonymity means per route.
func Identify(sessions *session.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user string
		if s, ok := sessions.Get(r); ok {
			user = s.Username
		}

		rl := util.WithRequest(log.Default(), r, user)
		ctx := util.ContextWithLogger(r.Context(), rl)
		if user != "" {
			ctx = session.ContextWithUser(ctx, user)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
