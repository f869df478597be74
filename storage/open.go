package storage

import (
	"context"
	"io"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/repository"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the persister described by cfg. The returned closer releases
// any database handle and is never nil.
func Open(ctx context.Context, cfg auth.StorageConfig) (auth.TokenPersister, io.Closer, error) {
	switch cfg.Kind {
	case "", auth.StorageMemory:
		return auth.NewMemoryPersister(), nopCloser{}, nil
	case auth.StorageFile:
		return NewFile(cfg.Path), nopCloser{}, nil
	case auth.StorageSealed:
		identity, err := LoadOrCreateIdentity(cfg.IdentityFile)
		if err != nil {
			return nil, nil, err
		}
		return NewSealedFile(cfg.Path, identity), nopCloser{}, nil
	case auth.StorageSQLite:
		repo, db, err := repository.OpenIdentityTokens(ctx, cfg.Path, repository.DefaultSlot)
		if err != nil {
			return nil, nil, err
		}
		return repo, db, nil
	}
	return nil, nil, goerrors.New("unknown storage kind", goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"kind": cfg.Kind})
}
