package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opentagger/tagstore/internal/domain"
)

// HistoryRepo is the append-only ledger of superseded tag versions.
// Append is called only from inside a version-engine transaction, never on its
// own: a history entry without its matching current-state change must not be
// able to commit. Entries are never mutated or removed.
type HistoryRepo interface {
	// Append records tag exactly as it was at the moment it was superseded
	// or finalized. last_edit is preserved, not reset.
	Append(ctx context.Context, tag domain.Tag) error

	// ListVersions returns all archived snapshots for a triple, descending
	// by version. The current live row is never included. After a
	// delete-then-recreate the result spans both lineages, newest first.
	ListVersions(ctx context.Context, product, owner, key string) ([]domain.Tag, error)
}

// pgHistoryRepo is the Postgres implementation of HistoryRepo.
type pgHistoryRepo struct {
	db DB
}

// NewHistoryRepo constructs a HistoryRepo backed by the provided db connection.
func NewHistoryRepo(db DB) HistoryRepo {
	return &pgHistoryRepo{db: db}
}

func (r *pgHistoryRepo) Append(ctx context.Context, tag domain.Tag) error {
	const q = `
		INSERT INTO tags_history (product, k, v, owner, version, editor, last_edit, comment)
		VALUES (@product, @k, @v, @owner, @version, @editor, @last_edit, @comment)`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"product":   tag.Product,
		"k":         tag.Key,
		"v":         tag.Value,
		"owner":     tag.Owner,
		"version":   tag.Version,
		"editor":    tag.Editor,
		"last_edit": tag.LastEdit,
		"comment":   tag.Comment,
	})
	if err != nil {
		return fmt.Errorf("repo.HistoryRepo.Append: %w", err)
	}
	return nil
}

func (r *pgHistoryRepo) ListVersions(ctx context.Context, product, owner, key string) ([]domain.Tag, error) {
	const q = `
		SELECT product, k, v, owner, version, editor, last_edit, comment
		FROM tags_history
		WHERE product = @product AND owner = @owner AND k = @k
		ORDER BY version DESC, id DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"product": product, "owner": owner, "k": key})
	if err != nil {
		return nil, fmt.Errorf("repo.HistoryRepo.ListVersions: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.HistoryRepo.ListVersions: scan: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.HistoryRepo.ListVersions: rows: %w", err)
	}
	return tags, nil
}
