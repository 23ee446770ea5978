package recipe

import (
	"net/http"
	"time"

	"github.com/gosimple/slug"

	"github.com/indieinfra/simmer/server/body"
	"github.com/indieinfra/simmer/server/handler/common"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/session"
	"github.com/indieinfra/simmer/server/state"
	"github.com/indieinfra/simmer/storage/entity"
)

type RecipePayload struct {
	Title        string   `json:"title" validate:"required,min=1,max=200"`
	Summary      string   `json:"summary" validate:"max=2000"`
	Ingredients  []string `json:"ingredients" validate:"required,min=1,dive,required,max=500"`
	Instructions string   `json:"instructions" validate:"required,max=20000"`
}

type RecipeResponse struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Media     []string       `json:"media"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p *RecipePayload) fields() map[string]any {
	return map[string]any{
		"title":        p.Title,
		"summary":      p.Summary,
		"ingredients":  p.Ingredients,
		"instructions": p.Instructions,
	}
}

// HandleCreate creates a recipe owned by the signed-in user. The identifier
// is a slug of the title, so two recipes with the same title conflict.
func HandleCreate(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload RecipePayload
		if !body.ReadJSON(st.Cfg, w, r, &payload) {
			return
		}
		if !body.ValidatePayload(st.Validate, w, &payload) {
			return
		}

		id := slug.Make(payload.Title)
		if id == "" {
			resp.WriteInvalidRequest(w, "title does not produce a usable identifier")
			return
		}

		ent := &entity.Entity{
			Kind:   entity.KindRecipe,
			ID:     id,
			Owner:  session.UserFromContext(r.Context()),
			Fields: payload.fields(),
		}

		if err := st.Entities.Create(r.Context(), ent); err != nil {
			common.LogAndWriteError(w, r, "create recipe", err)
			return
		}

		resp.WriteCreated(w, "/recipes/"+id, nil)
	}
}

func HandleGet(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: entity.KindRecipe, ID: r.PathValue("id")}

		ent, err := st.Entities.Get(r.Context(), ref)
		if err != nil {
			common.LogAndWriteError(w, r, "get recipe", err)
			return
		}

		resp.WriteOK(w, RecipeResponse{
			ID:        ent.ID,
			Owner:     ent.Owner,
			Media:     ent.Media,
			Fields:    ent.Fields,
			CreatedAt: ent.CreatedAt,
			UpdatedAt: ent.UpdatedAt,
		})
	}
}

func HandleUpdate(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload RecipePayload
		if !body.ReadJSON(st.Cfg, w, r, &payload) {
			return
		}
		if !body.ValidatePayload(st.Validate, w, &payload) {
			return
		}

		ref := entity.Ref{Kind: entity.KindRecipe, ID: r.PathValue("id")}
		if err := st.Entities.Update(r.Context(), ref, payload.fields()); err != nil {
			common.LogAndWriteError(w, r, "update recipe", err)
			return
		}

		resp.WriteNoContent(w)
	}
}

// HandleDelete removes the recipe record, then its media files and any
// staged uploads.
func HandleDelete(st *state.SimmerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: entity.KindRecipe, ID: r.PathValue("id")}

		if err := st.Entities.Delete(r.Context(), ref); err != nil {
			common.LogAndWriteError(w, r, "delete recipe", err)
			return
		}

		if err := st.Media.Purge(r.Context(), ref); err != nil {
			common.LogAndWriteError(w, r, "purge recipe media", err)
			return
		}

		resp.WriteNoContent(w)
	}
}
