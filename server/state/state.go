package state

import (
	"github.com/go-playground/validator/v10"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/media/lifecycle"
	"github.com/indieinfra/simmer/media/sniff"
	"github.com/indieinfra/simmer/server/session"
	"github.com/indieinfra/simmer/storage/blob"
	"github.com/indieinfra/simmer/storage/entity"
)

// SimmerState carries the wired collaborators every handler needs.
type SimmerState struct {
	Cfg      *config.Config
	Entities entity.Store
	Blobs    blob.Store
	Sessions *session.Store
	Media    *lifecycle.Manager
	Patterns []sniff.Pattern
	Validate *validator.Validate
}
