package user

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/indieinfra/simmer/server/body"
	"github.com/indieinfra/simmer/server/handler/common"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/state"
	"github.com/indieinfra/simmer/storage/entity"
)

type SignupPayload struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type UpdatePayload struct {
	DisplayName string `json:"display_name" validate:"max=100"`
	Password    string `json:"password" validate:"omitempty,min=8,max=72"`
}

type UserResponse struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Media       []string  `json:"media"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HandleSignup registers a new account. It is the one unauthenticated write
// in the API; a user record owns itself.
func HandleSignup(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload SignupPayload
		if !body.ReadJSON(st.Cfg, w, r, &payload) {
			return
		}
		if !body.ValidatePayload(st.Validate, w, &payload) {
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			common.LogAndWriteError(w, r, "hash password", err)
			return
		}

		ent := &entity.Entity{
			Kind:  entity.KindUser,
			ID:    payload.Username,
			Owner: payload.Username,
			Fields: map[string]any{
				"display_name":  payload.DisplayName,
				"password_hash": string(hash),
			},
		}

		if err := st.Entities.Create(r.Context(), ent); err != nil {
			common.LogAndWriteError(w, r, "create user", err)
			return
		}

		resp.WriteCreated(w, "/users/"+payload.Username, nil)
	}
}

func HandleGet(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: entity.KindUser, ID: r.PathValue("username")}

		ent, err := st.Entities.Get(r.Context(), ref)
		if err != nil {
			common.LogAndWriteError(w, r, "get user", err)
			return
		}

		display, _ := ent.Fields["display_name"].(string)
		resp.WriteOK(w, UserResponse{
			Username:    ent.ID,
			DisplayName: display,
			Media:       ent.Media,
			CreatedAt:   ent.CreatedAt,
			UpdatedAt:   ent.UpdatedAt,
		})
	}
}

func HandleUpdate(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload UpdatePayload
		if !body.ReadJSON(st.Cfg, w, r, &payload) {
			return
		}
		if !body.ValidatePayload(st.Validate, w, &payload) {
			return
		}

		fields := map[string]any{"display_name": payload.DisplayName}
		if payload.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
			if err != nil {
				common.LogAndWriteError(w, r, "hash password", err)
				return
			}
			fields["password_hash"] = string(hash)
		}

		ref := entity.Ref{Kind: entity.KindUser, ID: r.PathValue("username")}
		if err := st.Entities.Update(r.Context(), ref, fields); err != nil {
			common.LogAndWriteError(w, r, "update user", err)
			return
		}

		resp.WriteNoContent(w)
	}
}

// HandleDelete removes the account, its sessions, and its media.
func HandleDelete(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		ref := entity.Ref{Kind: entity.KindUser, ID: username}

		if err := st.Entities.Delete(r.Context(), ref); err != nil {
			common.LogAndWriteError(w, r, "delete user", err)
			return
		}

		st.Sessions.DestroyUser(username)

		if err := st.Media.Purge(r.Context(), ref); err != nil {
			common.LogAndWriteError(w, r, "purge user media", err)
			return
		}

		resp.WriteNoContent(w)
	}
}
