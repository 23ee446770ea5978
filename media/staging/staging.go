// Package staging receives accepted uploads into a per-entity holding
// directory and sweeps that directory before any file is promoted to durable
// media storage. Files are renamed to generated unique names on arrival; the
// client-supplied filename never touches the filesystem.
package staging

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/indieinfra/simmer/media/sniff"
	"github.com/indieinfra/simmer/storage/entity"
)

// Upload is a single incoming file: the claimed name and declared type are
// untrusted client input.
type Upload struct {
	Filename string
	Declared string
	Data     io.Reader
}

// Staged records where an accepted upload landed.
type Staged struct {
	// Name is the assigned unique filename inside the holding directory.
	Name string
	// Claimed is the client-supplied filename, kept for logging only.
	Claimed string
}

// Admit is the declared-type gate. It runs before any bytes are written and
// rejects uploads whose declared Content-Type does not satisfy the allow
// patterns. It is a cheap, spoofable filter; Sanitize inspects real content.
func Admit(declaredType string, patterns []sniff.Pattern) bool {
	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil {
		return false
	}

	return sniff.AnyMatches(patterns, mediaType)
}

// Area is the staging root. Each entity holds its uploads in a directory
// keyed by kind and id.
type Area struct {
	root string
}

func NewArea(root string) (*Area, error) {
	if root == "" {
		return nil, fmt.Errorf("staging root is empty")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}

	return &Area{root: root}, nil
}

func (a *Area) dir(ref entity.Ref) string {
	return filepath.Join(a.root, string(ref.Kind), ref.ID)
}

// extPattern accepts short alphanumeric extensions only; anything else is
// discarded rather than written to disk.
var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

func safeExt(claimed string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(claimed)))
	if !extPattern.MatchString(ext) {
		return ""
	}

	return ext
}

// Stage writes each upload into the entity's holding directory under a
// freshly generated unique name. A failed file is reported in the joined
// error but does not roll back siblings already staged; Sanitize and Discard
// are the cleanup passes.
func (a *Area) Stage(ref entity.Ref, files []Upload) ([]Staged, error) {
	dir := a.dir(ref)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create holding directory: %w", err)
	}

	var staged []Staged
	var errs []error

	for _, f := range files {
		name := uuid.New().String() + safeExt(f.Filename)
		absPath := filepath.Join(dir, name)

		outFile, err := os.Create(absPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %q: %w", f.Filename, err))
			continue
		}

		_, copyErr := io.Copy(outFile, f.Data)
		closeErr := outFile.Close()

		if copyErr != nil || closeErr != nil {
			_ = os.Remove(absPath)
			errs = append(errs, fmt.Errorf("stage %q: %w", f.Filename, errors.Join(copyErr, closeErr)))
			continue
		}

		staged = append(staged, Staged{Name: name, Claimed: f.Filename})
	}

	return staged, errors.Join(errs...)
}

// Sanitize sweeps the entity's holding directory: every file is read and
// classified by content; files whose real type does not satisfy the allow
// patterns are deleted, survivors are restricted to owner read-write. The
// directory listing is a snapshot; a file that vanishes between listing and
// read was already handled elsewhere and is skipped. Returns the surviving
// filenames.
func (a *Area) Sanitize(ref entity.Ref, patterns []sniff.Pattern) ([]string, error) {
	dir := a.dir(ref)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list holding directory: %w", err)
	}

	survivors := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		absPath := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return survivors, fmt.Errorf("failed to read staged file %q: %w", e.Name(), err)
		}

		mediaType := sniff.Classify(data)
		if !sniff.AnyMatches(patterns, mediaType) {
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return survivors, fmt.Errorf("failed to delete rejected file %q: %w", e.Name(), err)
			}
			continue
		}

		if err := os.Chmod(absPath, 0644); err != nil {
			return survivors, fmt.Errorf("failed to restrict permissions on %q: %w", e.Name(), err)
		}

		survivors = append(survivors, e.Name())
	}

	return survivors, nil
}

// Open yields a staged file for promotion into the blob store.
func (a *Area) Open(ref entity.Ref, name string) (*os.File, int64, error) {
	if filepath.Base(name) != name {
		return nil, 0, fmt.Errorf("invalid staged filename %q", name)
	}

	absPath := filepath.Join(a.dir(ref), name)

	f, err := os.Open(absPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open staged file %q: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("failed to stat staged file %q: %w", name, err)
	}

	return f, info.Size(), nil
}

// Discard drops the entity's entire holding directory.
func (a *Area) Discard(ref entity.Ref) error {
	if err := os.RemoveAll(a.dir(ref)); err != nil {
		return fmt.Errorf("failed to discard holding directory: %w", err)
	}

	return nil
}
