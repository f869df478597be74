package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	auth "github.com/goliatone/go-plantauth"
	"github.com/uptrace/bun"
)

// DefaultSlot is the row used when a single identity is stored.
const DefaultSlot = "default"

// IdentityTokenModel is the Bun model for persisted identity tokens.
type IdentityTokenModel struct {
	bun.BaseModel `bun:"table:identity_tokens"`

	Slot         string    `bun:"slot,pk"`
	Token        string    `bun:"token,notnull"`
	RefreshToken string    `bun:"refresh_token"`
	ExpiresAtMS  int64     `bun:"expires_at_ms,notnull"`
	Subject      string    `bun:"subject"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// IdentityTokenRepository implements auth.TokenPersister using Bun. Each
// slot holds at most one token.
type IdentityTokenRepository struct {
	db   bun.IDB
	slot string
	now  func() time.Time
}

var _ auth.TokenPersister = (*IdentityTokenRepository)(nil)

// NewIdentityTokenRepository creates a repository bound to slot. An empty
// slot uses DefaultSlot.
func NewIdentityTokenRepository(db bun.IDB, slot string) *IdentityTokenRepository {
	if slot == "" {
		slot = DefaultSlot
	}
	return &IdentityTokenRepository{db: db, slot: slot, now: time.Now}
}

// CreateTable creates the identity_tokens table if it does not exist.
func (r *IdentityTokenRepository) CreateTable(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*IdentityTokenModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Load implements auth.TokenPersister.
func (r *IdentityTokenRepository) Load(ctx context.Context) (*auth.IdentityToken, error) {
	var model IdentityTokenModel
	err := r.db.NewSelect().
		Model(&model).
		Where("slot = ?", r.slot).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toIdentityToken(&model), nil
}

// Save implements auth.TokenPersister.
func (r *IdentityTokenRepository) Save(ctx context.Context, token *auth.IdentityToken) error {
	if token == nil {
		return r.Clear(ctx)
	}

	model := r.fromIdentityToken(token)
	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (slot) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("expires_at_ms = EXCLUDED.expires_at_ms").
		Set("subject = EXCLUDED.subject").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Clear implements auth.TokenPersister.
func (r *IdentityTokenRepository) Clear(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*IdentityTokenModel)(nil)).
		Where("slot = ?", r.slot).
		Exec(ctx)
	return err
}

func toIdentityToken(m *IdentityTokenModel) *auth.IdentityToken {
	return &auth.IdentityToken{
		Token:        m.Token,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    time.UnixMilli(m.ExpiresAtMS),
	}
}

func (r *IdentityTokenRepository) fromIdentityToken(t *auth.IdentityToken) *IdentityTokenModel {
	model := &IdentityTokenModel{
		Slot:         r.slot,
		Token:        t.Token,
		RefreshToken: t.RefreshToken,
		ExpiresAtMS:  t.ExpiresAt.UnixMilli(),
		UpdatedAt:    r.now().UTC(),
	}
	// opaque tokens are stored without a subject
	if claims, err := t.Claims(); err == nil {
		model.Subject = claims.Subject
	}
	return model
}
