package common

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/indieinfra/simmer/media/lifecycle"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/util"
	"github.com/indieinfra/simmer/storage/entity"
)

// LogAndWriteError logs an error with request context and maps known conditions to client responses.
func LogAndWriteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	rl := util.FromContext(r.Context())
	if rl == nil {
		rl = util.WithRequest(log.Default(), r, "")
	}
	rl.Errorf("%s failed: %v", op, err)

	// Map known errors to user-friendly responses.
	switch {
	case errors.Is(err, entity.ErrNotFound):
		resp.WriteNotFound(w, "not found")
	case errors.Is(err, entity.ErrAlreadyExists):
		resp.WriteConflict(w, "already exists")
	case errors.Is(err, lifecycle.ErrAttached):
		resp.WriteConflict(w, "media already attached; replace or remove it first")
	case errors.Is(err, lifecycle.ErrNoMedia):
		resp.WriteNotFound(w, "no media attached")
	case errors.Is(err, lifecycle.ErrUnsupportedMedia):
		resp.WriteUnsupportedMediaType(w, "no uploaded file has an allowed media type")
	default:
		resp.WriteInternalServerError(w, fmt.Sprintf("%s failed", op))
	}
}
