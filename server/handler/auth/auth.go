package auth

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/indieinfra/simmer/server/body"
	"github.com/indieinfra/simmer/server/handler/common"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/state"
	"github.com/indieinfra/simmer/storage/entity"
)

type SigninPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleSignin verifies credentials and starts a session. An unknown
// username and a wrong password produce the same response.
func HandleSignin(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload SigninPayload
		if !body.ReadJSON(st.Cfg, w, r, &payload) {
			return
		}
		if !body.ValidatePayload(st.Validate, w, &payload) {
			return
		}

		ref := entity.Ref{Kind: entity.KindUser, ID: payload.Username}
		ent, err := st.Entities.Get(r.Context(), ref)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				resp.WriteUnauthorized(w, "invalid credentials")
				return
			}
			common.LogAndWriteError(w, r, "sign in", err)
			return
		}

		hash, _ := ent.Fields["password_hash"].(string)
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(payload.Password)) != nil {
			resp.WriteUnauthorized(w, "invalid credentials")
			return
		}

		if _, err := st.Sessions.Create(w, payload.Username); err != nil {
			common.LogAndWriteError(w, r, "create session", err)
			return
		}

		resp.WriteNoContent(w)
	}
}

func HandleSignout(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.Sessions.Destroy(w, r)
		resp.WriteNoContent(w)
	}
}
