package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/media/lifecycle"
	"github.com/indieinfra/simmer/media/sniff"
	"github.com/indieinfra/simmer/media/staging"
	"github.com/indieinfra/simmer/server/firewall"
	authhandler "github.com/indieinfra/simmer/server/handler/auth"
	mediahandler "github.com/indieinfra/simmer/server/handler/media"
	"github.com/indieinfra/simmer/server/handler/recipe"
	"github.com/indieinfra/simmer/server/handler/user"
	"github.com/indieinfra/simmer/server/middleware"
	"github.com/indieinfra/simmer/server/session"
	"github.com/indieinfra/simmer/server/state"
	blobfactory "github.com/indieinfra/simmer/storage/blob/factory"
	"github.com/indieinfra/simmer/storage/entity"
	entityfactory "github.com/indieinfra/simmer/storage/entity/factory"
)

// NewState wires the configured stores, the staging area, and the media
// lifecycle manager into the shared handler state.
func NewState(cfg *config.Config) (*state.SimmerState, error) {
	entities, err := entityfactory.Create(&cfg.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity store: %w", err)
	}

	blobs, err := blobfactory.Create(&cfg.Media.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create media store: %w", err)
	}

	area, err := staging.NewArea(cfg.Media.StagingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging area: %w", err)
	}

	patterns := sniff.Patterns(cfg.Media.AllowedTypes)
	opTimeout := time.Duration(cfg.Media.OpTimeoutSeconds) * time.Second

	return &state.SimmerState{
		Cfg:      cfg,
		Entities: entities,
		Blobs:    blobs,
		Sessions: session.NewStore(&cfg.Session),
		Media:    lifecycle.NewManager(entities, blobs, area, patterns, opTimeout),
		Patterns: patterns,
		Validate: validator.New(),
	}, nil
}

// BuildMux assembles the route table. Reads are public; creation requires a
// session; everything that touches an existing entity requires its owner.
func BuildMux(st *state.SimmerState) *http.ServeMux {
	signedIn := firewall.SessionCheck()
	recipeOwner := firewall.OwnershipGuard{
		Unauthorized: signedIn,
		Forbidden:    firewall.OwnerCheck(st.Entities, entity.KindRecipe, "id"),
	}
	userOwner := firewall.OwnershipGuard{
		Unauthorized: signedIn,
		Forbidden:    firewall.OwnerCheck(st.Entities, entity.KindUser, "username"),
	}
	creation := firewall.CreationGuard{Unauthorized: signedIn}

	mux := http.NewServeMux()

	mux.Handle("POST /signin", authhandler.HandleSignin(st))
	mux.Handle("POST /signout", authhandler.HandleSignout(st))

	mux.Handle("POST /users", user.HandleSignup(st))
	mux.Handle("GET /users/{username}", user.HandleGet(st))
	mux.Handle("PUT /users/{username}", firewall.Require(userOwner, user.HandleUpdate(st)))
	mux.Handle("DELETE /users/{username}", firewall.Require(userOwner, user.HandleDelete(st)))
	mux.Handle("POST /users/{username}/media", firewall.Require(userOwner, mediahandler.HandleAttach(st, entity.KindUser, "username")))
	mux.Handle("PUT /users/{username}/media", firewall.Require(userOwner, mediahandler.HandleReplace(st, entity.KindUser, "username")))
	mux.Handle("DELETE /users/{username}/media", firewall.Require(userOwner, mediahandler.HandleRemove(st, entity.KindUser, "username")))

	mux.Handle("POST /recipes", firewall.Require(creation, recipe.HandleCreate(st)))
	mux.Handle("GET /recipes/{id}", recipe.HandleGet(st))
	mux.Handle("PUT /recipes/{id}", firewall.Require(recipeOwner, recipe.HandleUpdate(st)))
	mux.Handle("DELETE /recipes/{id}", firewall.Require(recipeOwner, recipe.HandleDelete(st)))
	mux.Handle("POST /recipes/{id}/media", firewall.Require(recipeOwner, mediahandler.HandleAttach(st, entity.KindRecipe, "id")))
	mux.Handle("PUT /recipes/{id}/media", firewall.Require(recipeOwner, mediahandler.HandleReplace(st, entity.KindRecipe, "id")))
	mux.Handle("DELETE /recipes/{id}/media", firewall.Require(recipeOwner, mediahandler.HandleRemove(st, entity.KindRecipe, "id")))

	return mux
}

// StartServer serves until the context is cancelled, then drains in-flight
// requests before returning.
func StartServer(ctx context.Context, cfg *config.Config) error {
	st, err := NewState(cfg)
	if err != nil {
		return err
	}
	defer st.Entities.Close()

	bindAddress := fmt.Sprintf("%v:%v", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{
		Addr:    bindAddress,
		Handler: middleware.Identify(st.Sessions, BuildMux(st)),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("serving http requests on %q", bindAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		log.Println("shutting down http server...")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
