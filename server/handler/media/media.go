// Package media exposes the attach, replace, and remove endpoints shared by
// every entity kind that carries media.
package media

import (
	"fmt"
	"net/http"

	"github.com/indieinfra/simmer/media/staging"
	"github.com/indieinfra/simmer/server/handler/common"
	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/state"
	"github.com/indieinfra/simmer/server/util"
	"github.com/indieinfra/simmer/storage/entity"
)

type MediaResponse struct {
	Media []string `json:"media"`
}

// HandleAttach handles the first upload for an entity. 409 when media is
// already attached.
func HandleAttach(st *state.SimmerState, kind entity.Kind, idParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: kind, ID: r.PathValue(idParam)}

		uploads, parsed, ok := readUploads(st, w, r)
		if !ok {
			return
		}
		defer parsed.CloseFiles()

		names, err := st.Media.Attach(r.Context(), ref, uploads)
		if err != nil {
			common.LogAndWriteError(w, r, "attach media", err)
			return
		}

		resp.WriteCreated(w, "", MediaResponse{Media: names})
	}
}

// HandleReplace swaps the entity's media for the uploaded batch. 404 when
// nothing is attached yet.
func HandleReplace(st *state.SimmerState, kind entity.Kind, idParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: kind, ID: r.PathValue(idParam)}

		uploads, parsed, ok := readUploads(st, w, r)
		if !ok {
			return
		}
		defer parsed.CloseFiles()

		names, err := st.Media.Replace(r.Context(), ref, uploads)
		if err != nil {
			common.LogAndWriteError(w, r, "replace media", err)
			return
		}

		resp.WriteOK(w, MediaResponse{Media: names})
	}
}

// HandleRemove detaches and deletes the entity's media.
func HandleRemove(st *state.SimmerState, kind entity.Kind, idParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := entity.Ref{Kind: kind, ID: r.PathValue(idParam)}

		if err := st.Media.Remove(r.Context(), ref); err != nil {
			common.LogAndWriteError(w, r, "remove media", err)
			return
		}

		resp.WriteNoContent(w)
	}
}

// readUploads runs the declared-type gate over the multipart body before any
// upload reaches the staging area. A single disallowed part rejects the
// whole request.
func readUploads(st *state.SimmerState, w http.ResponseWriter, r *http.Request) ([]staging.Upload, *util.ParsedMultipart, bool) {
	if _, ok := util.RequireValidMediaContentType(w, r); !ok {
		return nil, nil, false
	}

	maxMemory := int64(st.Cfg.Server.Limits.MaxMultipartMem)
	maxFileSize := int64(st.Cfg.Server.Limits.MaxFileSize)
	parsed, err := util.ParseMultipart(w, r, maxMemory, maxFileSize)
	if err != nil {
		resp.WriteInvalidRequest(w, "Invalid multipart body")
		return nil, nil, false
	}

	if len(parsed.Files) == 0 {
		parsed.CloseFiles()
		resp.WriteInvalidRequest(w, "At least one file is required")
		return nil, nil, false
	}

	uploads := make([]staging.Upload, 0, len(parsed.Files))
	for _, mf := range parsed.Files {
		declared := mf.Header.Header.Get("Content-Type")
		if !staging.Admit(declared, st.Patterns) {
			parsed.CloseFiles()
			resp.WriteUnsupportedMediaType(w, fmt.Sprintf("file %q declares a disallowed media type", mf.Header.Filename))
			return nil, nil, false
		}

		uploads = append(uploads, staging.Upload{
			Filename: mf.Header.Filename,
			Declared: declared,
			Data:     mf.File,
		})
	}

	return uploads, parsed, true
}
