package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a SQLite database at dsn. A plain file path is accepted.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// a single connection keeps ":memory:" databases shared
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenIdentityTokens opens the database at dsn and prepares the token table.
func OpenIdentityTokens(ctx context.Context, dsn, slot string) (*IdentityTokenRepository, *bun.DB, error) {
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, nil, err
	}

	repo := NewIdentityTokenRepository(db, slot)
	if err := repo.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create identity_tokens table: %w", err)
	}
	return repo, db, nil
}
