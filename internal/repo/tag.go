package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opentagger/tagstore/internal/domain"
)

// TagRepo defines the persistence operations for current-state tags.
// Mutations are conditional single-row statements: the version predicates are
// what make optimistic concurrency work without any in-process locking —
// under concurrent writers the storage layer lets exactly one predicate match.
type TagRepo interface {
	// Insert creates the version-1 row for a triple. Returns the persisted
	// record. Returns domain.ErrConflict if a live row already exists for
	// (product, owner, key) — i.e. this create lost a race or the triple
	// was never deleted.
	Insert(ctx context.Context, tag domain.Tag) (domain.Tag, error)

	// Replace overwrites the live row with tag, conditioned on the stored
	// version being exactly tag.Version-1. Returns domain.ErrNotFound when
	// the predicate matches no row (missing triple or concurrent writer won).
	Replace(ctx context.Context, tag domain.Tag) (domain.Tag, error)

	// Tombstone marks the live row version=0, conditioned on the stored
	// version being exactly version. Returns the number of rows affected.
	Tombstone(ctx context.Context, product, owner, key string, version int, editor string) (int64, error)

	// DeleteTombstone physically removes the version-0 row for a triple and
	// returns the number of rows affected.
	DeleteTombstone(ctx context.Context, product, owner, key string) (int64, error)

	// Get returns the live tag for an exact triple, or domain.ErrNotFound.
	Get(ctx context.Context, product, owner, key string) (domain.Tag, error)

	// ListByProduct returns all live tags on a product under one owner,
	// ordered by key. A non-empty keys slice restricts the result to those keys.
	ListByProduct(ctx context.Context, product, owner string, keys []string) ([]domain.Tag, error)

	// ListByKeyPrefix returns the tag stored under base plus every tag under
	// base:subkey..., ordered by key. Prefix semantics follow colon segments:
	// base "color" matches "color" and "color:hue" but never "colorful".
	ListByKeyPrefix(ctx context.Context, product, owner, base string) ([]domain.Tag, error)

	// ListProducts returns (product, k, v) rows matching the filter.
	ListProducts(ctx context.Context, f domain.TagFilter) ([]domain.ProductEntry, error)

	// ProductStats returns per-product tag counts, distinct editor counts and
	// the latest edit timestamp for rows matching the filter.
	ProductStats(ctx context.Context, f domain.TagFilter) ([]domain.ProductStats, error)

	// KeyStats returns per-key usage and distinct-value counts for one owner,
	// most used first. A non-empty q restricts keys to a case-insensitive
	// substring match.
	KeyStats(ctx context.Context, owner, q string) ([]domain.KeyStats, error)

	// ValueCounts returns the distinct values of a key with per-value product
	// counts, most frequent first, capped at limit rows. A non-empty q
	// restricts values to a case-insensitive substring match.
	ValueCounts(ctx context.Context, owner, key, q string, limit int) ([]domain.ValueCount, error)
}

// pgTagRepo is the Postgres implementation of TagRepo.
type pgTagRepo struct {
	db DB
}

// NewTagRepo constructs a TagRepo backed by the provided db connection.
func NewTagRepo(db DB) TagRepo {
	return &pgTagRepo{db: db}
}

// tagColumns is the canonical column list scanned by scanTag.
const tagColumns = `product, k, v, owner, version, editor, last_edit, comment`

func (r *pgTagRepo) Insert(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	const q = `
		INSERT INTO tags (product, k, v, owner, version, editor, comment)
		VALUES (@product, @k, @v, @owner, @version, @editor, @comment)
		RETURNING ` + tagColumns

	args := pgx.NamedArgs{
		"product": tag.Product,
		"k":       tag.Key,
		"v":       tag.Value,
		"owner":   tag.Owner,
		"version": tag.Version,
		"editor":  tag.Editor,
		"comment": tag.Comment,
	}

	result, err := scanTag(r.db.QueryRow(ctx, q, args))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Tag{}, fmt.Errorf("repo.TagRepo.Insert: %w", domain.ErrConflict)
		}
		return domain.Tag{}, fmt.Errorf("repo.TagRepo.Insert: %w", err)
	}
	return result, nil
}

func (r *pgTagRepo) Replace(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	const q = `
		UPDATE tags
		SET v         = @v,
		    version   = @version,
		    editor    = @editor,
		    comment   = @comment,
		    last_edit = now()
		WHERE product = @product AND owner = @owner AND k = @k
		  AND version = @version - 1
		RETURNING ` + tagColumns

	args := pgx.NamedArgs{
		"product": tag.Product,
		"k":       tag.Key,
		"v":       tag.Value,
		"owner":   tag.Owner,
		"version": tag.Version,
		"editor":  tag.Editor,
		"comment": tag.Comment,
	}

	result, err := scanTag(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Tag{}, fmt.Errorf("repo.TagRepo.Replace: %w", err)
	}
	return result, nil
}

func (r *pgTagRepo) Tombstone(ctx context.Context, product, owner, key string, version int, editor string) (int64, error) {
	const q = `
		UPDATE tags
		SET version = 0, editor = @editor, comment = 'DELETE', last_edit = now()
		WHERE product = @product AND owner = @owner AND k = @k AND version = @version`

	ct, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"product": product,
		"owner":   owner,
		"k":       key,
		"version": version,
		"editor":  editor,
	})
	if err != nil {
		return 0, fmt.Errorf("repo.TagRepo.Tombstone: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgTagRepo) DeleteTombstone(ctx context.Context, product, owner, key string) (int64, error) {
	const q = `
		DELETE FROM tags
		WHERE product = @product AND owner = @owner AND k = @k AND version = 0`

	ct, err := r.db.Exec(ctx, q, pgx.NamedArgs{"product": product, "owner": owner, "k": key})
	if err != nil {
		return 0, fmt.Errorf("repo.TagRepo.DeleteTombstone: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgTagRepo) Get(ctx context.Context, product, owner, key string) (domain.Tag, error) {
	const q = `
		SELECT ` + tagColumns + `
		FROM tags
		WHERE product = @product AND owner = @owner AND k = @k`

	result, err := scanTag(r.db.QueryRow(ctx, q, pgx.NamedArgs{"product": product, "owner": owner, "k": key}))
	if err != nil {
		return domain.Tag{}, fmt.Errorf("repo.TagRepo.Get: %w", err)
	}
	return result, nil
}

func (r *pgTagRepo) ListByProduct(ctx context.Context, product, owner string, keys []string) ([]domain.Tag, error) {
	q := `
		SELECT ` + tagColumns + `
		FROM tags
		WHERE product = @product AND owner = @owner`
	args := pgx.NamedArgs{"product": product, "owner": owner}
	if len(keys) > 0 {
		q += ` AND k = ANY(@keys)`
		args["keys"] = keys
	}
	q += ` ORDER BY k`

	return r.queryTags(ctx, "ListByProduct", q, args)
}

func (r *pgTagRepo) ListByKeyPrefix(ctx context.Context, product, owner, base string) ([]domain.Tag, error) {
	const q = `
		SELECT ` + tagColumns + `
		FROM tags
		WHERE product = @product AND owner = @owner
		  AND (k = @base OR k LIKE @base || ':%')
		ORDER BY k`

	return r.queryTags(ctx, "ListByKeyPrefix", q,
		pgx.NamedArgs{"product": product, "owner": owner, "base": base})
}

func (r *pgTagRepo) queryTags(ctx context.Context, op, q string, args pgx.NamedArgs) ([]domain.Tag, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.%s: %w", op, err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TagRepo.%s: scan: %w", op, err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.%s: rows: %w", op, err)
	}
	return tags, nil
}

// filterWhere builds the WHERE clause shared by the product listing and stats
// queries: owner always, key only when set, value only when the key is set too.
func filterWhere(f domain.TagFilter) (string, pgx.NamedArgs) {
	where := `owner = @owner`
	args := pgx.NamedArgs{"owner": f.Owner}
	if f.Key != "" {
		where += ` AND k = @k`
		args["k"] = f.Key
		if f.Value != "" {
			where += ` AND v = @v`
			args["v"] = f.Value
		}
	}
	return where, args
}

func (r *pgTagRepo) ListProducts(ctx context.Context, f domain.TagFilter) ([]domain.ProductEntry, error) {
	where, args := filterWhere(f)
	q := `
		SELECT product, k, v
		FROM tags
		WHERE ` + where + `
		ORDER BY product, k`

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListProducts: %w", err)
	}
	defer rows.Close()

	entries := []domain.ProductEntry{}
	for rows.Next() {
		var e domain.ProductEntry
		if err := rows.Scan(&e.Product, &e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ListProducts: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListProducts: rows: %w", err)
	}
	return entries, nil
}

func (r *pgTagRepo) ProductStats(ctx context.Context, f domain.TagFilter) ([]domain.ProductStats, error) {
	where, args := filterWhere(f)
	q := `
		SELECT product,
		       count(*)                AS keys,
		       count(DISTINCT editor)  AS editors,
		       max(last_edit)          AS last_edit
		FROM tags
		WHERE ` + where + `
		GROUP BY product
		ORDER BY product`

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ProductStats: %w", err)
	}
	defer rows.Close()

	stats := []domain.ProductStats{}
	for rows.Next() {
		var s domain.ProductStats
		if err := rows.Scan(&s.Product, &s.Keys, &s.Editors, &s.LastEdit); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ProductStats: scan: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ProductStats: rows: %w", err)
	}
	return stats, nil
}

func (r *pgTagRepo) KeyStats(ctx context.Context, owner, q string) ([]domain.KeyStats, error) {
	sql := `
		SELECT k, count(*) AS count, count(DISTINCT v) AS values
		FROM tags
		WHERE owner = @owner`
	args := pgx.NamedArgs{"owner": owner}
	if q != "" {
		sql += ` AND k ILIKE @q`
		args["q"] = "%" + q + "%"
	}
	sql += `
		GROUP BY k
		ORDER BY count(*) DESC, k`

	rows, err := r.db.Query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.KeyStats: %w", err)
	}
	defer rows.Close()

	stats := []domain.KeyStats{}
	for rows.Next() {
		var s domain.KeyStats
		if err := rows.Scan(&s.Key, &s.Count, &s.Values); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.KeyStats: scan: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.KeyStats: rows: %w", err)
	}
	return stats, nil
}

func (r *pgTagRepo) ValueCounts(ctx context.Context, owner, key, q string, limit int) ([]domain.ValueCount, error) {
	sql := `
		SELECT v, count(*) AS product_count
		FROM tags
		WHERE owner = @owner AND k = @k`
	args := pgx.NamedArgs{"owner": owner, "k": key, "limit": limit}
	if q != "" {
		sql += ` AND v ILIKE @q`
		args["q"] = "%" + q + "%"
	}
	sql += `
		GROUP BY v
		ORDER BY count(*) DESC, v
		LIMIT @limit`

	rows, err := r.db.Query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ValueCounts: %w", err)
	}
	defer rows.Close()

	counts := []domain.ValueCount{}
	for rows.Next() {
		var c domain.ValueCount
		if err := rows.Scan(&c.Value, &c.Products); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ValueCounts: scan: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ValueCounts: rows: %w", err)
	}
	return counts, nil
}

// scanTag maps a single database row into a domain.Tag.
func scanTag(s scanner) (domain.Tag, error) {
	var t domain.Tag
	err := s.Scan(&t.Product, &t.Key, &t.Value, &t.Owner, &t.Version, &t.Editor, &t.LastEdit, &t.Comment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tag{}, domain.ErrNotFound
		}
		return domain.Tag{}, err
	}
	return t, nil
}
