package body

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/util"
)

// ReadJSON enforces the JSON content type, decodes the request body into out
// under the configured payload limit, and writes the error response itself
// on failure.
func ReadJSON(cfg *config.Config, w http.ResponseWriter, r *http.Request, out any) bool {
	if !util.RequireValidJSONContentType(w, r) {
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(cfg.Server.Limits.MaxPayloadSize))
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		resp.WriteInvalidRequest(w, "Invalid JSON body")
		return false
	}

	return true
}

// ValidatePayload runs struct validation and reports failures as a 400.
func ValidatePayload(v *validator.Validate, w http.ResponseWriter, payload any) bool {
	if err := v.Struct(payload); err != nil {
		resp.WriteInvalidRequest(w, err.Error())
		return false
	}

	return true
}
