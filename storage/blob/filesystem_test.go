package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/storage/entity"
)

func setupFilesystemTest(t *testing.T) (*FilesystemStore, string) {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := NewFilesystemStore(&config.FilesystemMediaStrategy{Path: tmpDir})
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	return store, tmpDir
}

func TestNewFilesystemStore(t *testing.T) {
	t.Run("creates directory if missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		nestedPath := filepath.Join(tmpDir, "media", "uploads")

		store, err := NewFilesystemStore(&config.FilesystemMediaStrategy{Path: nestedPath})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := os.Stat(nestedPath); os.IsNotExist(err) {
			t.Fatal("expected directory to be created")
		}

		if store.basePath != nestedPath {
			t.Errorf("basePath = %q, want %q", store.basePath, nestedPath)
		}
	})

	t.Run("nil config returns error", func(t *testing.T) {
		if _, err := NewFilesystemStore(nil); err == nil {
			t.Error("expected error for nil config")
		}
	})
}

func TestFilesystemStore_WriteAndList(t *testing.T) {
	store, tmpDir := setupFilesystemTest(t)
	ctx := context.Background()
	ref := entity.Ref{Kind: entity.KindRecipe, ID: "carbonara"}

	data := "fake image bytes"
	if err := store.Write(ctx, ref, "a.png", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("write: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(tmpDir, "recipes", "carbonara", "a.png"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(onDisk) != data {
		t.Errorf("stored bytes = %q, want %q", onDisk, data)
	}

	names, err := store.List(ctx, ref)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "a.png" {
		t.Errorf("list = %v, want [a.png]", names)
	}
}

func TestFilesystemStore_WriteRejectsPathyName(t *testing.T) {
	store, tmpDir := setupFilesystemTest(t)
	ctx := context.Background()
	ref := entity.Ref{Kind: entity.KindRecipe, ID: "carbonara"}

	if err := store.Write(ctx, ref, "../escape.png", strings.NewReader("x"), 1); err == nil {
		t.Fatal("expected error for path traversal filename")
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "recipes", "escape.png")); !os.IsNotExist(err) {
		t.Fatal("file must not escape the entity directory")
	}
}

func TestFilesystemStore_Remove(t *testing.T) {
	store, _ := setupFilesystemTest(t)
	ctx := context.Background()
	ref := entity.Ref{Kind: entity.KindUser, ID: "alice"}

	if err := store.Write(ctx, ref, "avatar.png", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := store.Remove(ctx, ref, "avatar.png"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	names, err := store.List(ctx, ref)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("list after remove = %v, want empty", names)
	}

	// Removing a missing file is not an error.
	if err := store.Remove(ctx, ref, "avatar.png"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestFilesystemStore_RemoveAll(t *testing.T) {
	store, tmpDir := setupFilesystemTest(t)
	ctx := context.Background()
	ref := entity.Ref{Kind: entity.KindRecipe, ID: "stew"}

	for _, name := range []string{"a.png", "b.png"} {
		if err := store.Write(ctx, ref, name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := store.RemoveAll(ctx, ref); err != nil {
		t.Fatalf("remove all: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "recipes", "stew")); !os.IsNotExist(err) {
		t.Fatal("entity directory should be gone")
	}

	// RemoveAll on an entity with no directory is not an error.
	if err := store.RemoveAll(ctx, entity.Ref{Kind: entity.KindRecipe, ID: "never"}); err != nil {
		t.Fatalf("remove all missing: %v", err)
	}
}

func TestFilesystemStore_ListMissingEntity(t *testing.T) {
	store, _ := setupFilesystemTest(t)

	names, err := store.List(context.Background(), entity.Ref{Kind: entity.KindRecipe, ID: "ghost"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("list = %v, want empty", names)
	}
}

func TestFilesystemStore_EntityIsolation(t *testing.T) {
	store, _ := setupFilesystemTest(t)
	ctx := context.Background()

	recipeRef := entity.Ref{Kind: entity.KindRecipe, ID: "shared-id"}
	userRef := entity.Ref{Kind: entity.KindUser, ID: "shared-id"}

	if err := store.Write(ctx, recipeRef, "r.png", strings.NewReader("r"), 1); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	if err := store.Write(ctx, userRef, "u.png", strings.NewReader("u"), 1); err != nil {
		t.Fatalf("write user: %v", err)
	}

	if err := store.RemoveAll(ctx, recipeRef); err != nil {
		t.Fatalf("remove all recipe: %v", err)
	}

	names, err := store.List(ctx, userRef)
	if err != nil {
		t.Fatalf("list user: %v", err)
	}
	if len(names) != 1 || names[0] != "u.png" {
		t.Errorf("user media affected by recipe removal: %v", names)
	}
}
