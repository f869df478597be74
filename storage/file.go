package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	auth "github.com/goliatone/go-plantauth"
)

// File stores the token as plain JSON.
type File struct {
	path string
}

var _ auth.TokenPersister = (*File)(nil)

// NewFile returns a persister writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load implements auth.TokenPersister.
func (f *File) Load(context.Context) (*auth.IdentityToken, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return decodeToken(data)
}

// Save implements auth.TokenPersister.
func (f *File) Save(_ context.Context, token *auth.IdentityToken) error {
	if token == nil {
		return f.Clear(context.Background())
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

// Clear implements auth.TokenPersister.
func (f *File) Clear(context.Context) error {
	return removeIfExists(f.path)
}

func decodeToken(data []byte) (*auth.IdentityToken, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var token auth.IdentityToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if token.Token == "" {
		return nil, nil
	}
	return &token, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".plantauth-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
