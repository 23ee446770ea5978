// Package entity persists recipe and user records, including each record's
// authoritative media filename list.
package entity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names an entity collection.
type Kind string

const (
	KindRecipe Kind = "recipes"
	KindUser   Kind = "users"
)

// Ref identifies a single entity across collections.
type Ref struct {
	Kind Kind
	ID   string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// Entity is a stored recipe or user record. Media is the ordered list of
// media filenames attached to the entity; it is the single source of truth
// for what media exists for the record.
type Entity struct {
	Kind      Kind           `json:"kind"`
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Media     []string       `json:"media"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ErrNotFound indicates that an entity record was not found.
var ErrNotFound = errors.New("entity not found")

// ErrAlreadyExists indicates that a record with the same kind and id exists.
var ErrAlreadyExists = errors.New("entity already exists")

// Store is the persistence boundary for entity records.
type Store interface {
	Get(ctx context.Context, ref Ref) (*Entity, error)
	Create(ctx context.Context, e *Entity) error
	Update(ctx context.Context, ref Ref, fields map[string]any) error
	Delete(ctx context.Context, ref Ref) error

	// SetMediaList replaces the entity's media filename list. It is the
	// ledger write of the media lifecycle and must fail with ErrNotFound
	// rather than creating a record.
	SetMediaList(ctx context.Context, ref Ref, filenames []string) error

	Owner(ctx context.Context, ref Ref) (string, error)
	Exists(ctx context.Context, ref Ref) (bool, error)

	Close() error
}
