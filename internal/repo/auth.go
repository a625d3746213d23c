package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opentagger/tagstore/internal/domain"
)

// AuthRepo persists issued bearer tokens. One token per user: issuing a new
// token replaces any previous one, and resolving a token refreshes its
// last_use timestamp.
type AuthRepo interface {
	// SaveToken stores token for userID, replacing any existing token of
	// that user. Call inside Store.InTx — the replace is two statements.
	SaveToken(ctx context.Context, userID, token string) error

	// ResolveToken returns the user the token belongs to and touches its
	// last_use timestamp. Returns domain.ErrNotFound for an unknown token.
	ResolveToken(ctx context.Context, token string) (string, error)
}

// pgAuthRepo is the Postgres implementation of AuthRepo.
type pgAuthRepo struct {
	db DB
}

// NewAuthRepo constructs an AuthRepo backed by the provided db connection.
func NewAuthRepo(db DB) AuthRepo {
	return &pgAuthRepo{db: db}
}

func (r *pgAuthRepo) SaveToken(ctx context.Context, userID, token string) error {
	const del = `DELETE FROM auth WHERE user_id = @user_id`
	if _, err := r.db.Exec(ctx, del, pgx.NamedArgs{"user_id": userID}); err != nil {
		return fmt.Errorf("repo.AuthRepo.SaveToken: delete: %w", err)
	}

	const ins = `
		INSERT INTO auth (user_id, token, last_use)
		VALUES (@user_id, @token, now())`
	if _, err := r.db.Exec(ctx, ins, pgx.NamedArgs{"user_id": userID, "token": token}); err != nil {
		return fmt.Errorf("repo.AuthRepo.SaveToken: insert: %w", err)
	}
	return nil
}

func (r *pgAuthRepo) ResolveToken(ctx context.Context, token string) (string, error) {
	const q = `
		UPDATE auth
		SET last_use = now()
		WHERE token = @token
		RETURNING user_id`

	var userID string
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token}).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("repo.AuthRepo.ResolveToken: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("repo.AuthRepo.ResolveToken: %w", err)
	}
	return userID, nil
}
