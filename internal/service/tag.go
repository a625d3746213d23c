package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/repo"
)

// Value enumeration limits (GET /values/{k}).
const (
	defaultValueLimit = 50
	maxValueLimit     = 1000
)

// TagService implements the tag lifecycle: create, versioned update,
// version-gated delete, and the read projections over current state and
// history. Concurrency control is optimistic — no in-process locks; the
// uniqueness constraint on (product, owner, k) arbitrates create races and
// the version predicates on update/tombstone arbitrate write races, so
// correctness holds across multiple server processes.
type TagService struct {
	store repo.Store
}

// NewTagService constructs a TagService backed by the provided Store.
func NewTagService(store repo.Store) *TagService {
	return &TagService{store: store}
}

// Create persists a brand-new tag at version 1. The acting identity becomes
// the editor. Fails with domain.ErrConflict when a live row already exists
// for the triple — including when a concurrent create wins the race.
func (s *TagService) Create(ctx context.Context, identity string, tag domain.Tag) (domain.Tag, error) {
	if err := Authorize(identity, tag.Owner, false); err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Create: %w", err)
	}
	tag, err := ValidateTag(tag)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Create: %w", err)
	}
	if tag.Version != 1 {
		return domain.Tag{}, fmt.Errorf("service.TagService.Create: %w",
			&domain.FieldError{Field: "version", Reason: "must be 1 when creating a tag"})
	}
	tag.Editor = identity

	var created domain.Tag
	err = s.store.InTx(ctx, func(st repo.Store) error {
		var err error
		created, err = st.Tags().Insert(ctx, tag)
		return err
	})
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Create: %w", err)
	}
	return created, nil
}

// Update replaces the live value of a tag. The submitted version must be
// exactly current+1; anything else fails with domain.VersionMismatchError
// carrying the version actually stored. The superseded row is archived to
// history in the same transaction, so a failure at any point leaves neither
// a stray history entry nor a half-applied bump.
func (s *TagService) Update(ctx context.Context, identity string, tag domain.Tag) (domain.Tag, error) {
	if err := Authorize(identity, tag.Owner, false); err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Update: %w", err)
	}
	tag, err := ValidateTag(tag)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Update: %w", err)
	}
	tag.Editor = identity

	var updated domain.Tag
	err = s.store.InTx(ctx, func(st repo.Store) error {
		current, err := st.Tags().Get(ctx, tag.Product, tag.Owner, tag.Key)
		if err != nil {
			return err
		}
		if tag.Version != current.Version+1 {
			return &domain.VersionMismatchError{Expected: tag.Version, Actual: current.Version}
		}
		if err := st.History().Append(ctx, current); err != nil {
			return err
		}

		updated, err = st.Tags().Replace(ctx, tag)
		if errors.Is(err, domain.ErrNotFound) {
			// The conditional write matched nothing: a concurrent writer
			// advanced the row between our read and our write. Re-read so
			// the caller learns the post-winner version. The transaction
			// rolls back, taking the history append with it.
			actual, gerr := st.Tags().Get(ctx, tag.Product, tag.Owner, tag.Key)
			if gerr != nil {
				return gerr
			}
			return &domain.VersionMismatchError{Expected: tag.Version, Actual: actual.Version}
		}
		return err
	})
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a live tag, gated on its exact current version. The live row
// is archived to history, marked as a version-0 tombstone conditioned on the
// submitted version, then physically removed — all in one transaction. The
// net effect is that the triple disappears from current state while its full
// lineage stays readable through history.
func (s *TagService) Delete(ctx context.Context, identity, product, owner, key string, version int) error {
	if err := Authorize(identity, owner, false); err != nil {
		return fmt.Errorf("service.TagService.Delete: %w", err)
	}
	key, err := validateKey(key)
	if err != nil {
		return fmt.Errorf("service.TagService.Delete: %w", err)
	}

	err = s.store.InTx(ctx, func(st repo.Store) error {
		current, err := st.Tags().Get(ctx, product, owner, key)
		if err != nil {
			return err
		}
		if err := st.History().Append(ctx, current); err != nil {
			return err
		}

		n, err := st.Tags().Tombstone(ctx, product, owner, key, version, identity)
		if err != nil {
			return err
		}
		switch {
		case n == 0:
			// Stale version, or the row vanished since the read above.
			actual, gerr := st.Tags().Get(ctx, product, owner, key)
			if gerr != nil {
				return gerr
			}
			return &domain.VersionMismatchError{Expected: version, Actual: actual.Version}
		case n > 1:
			return domain.ErrInconsistent
		}

		n, err = st.Tags().DeleteTombstone(ctx, product, owner, key)
		if err != nil {
			return err
		}
		if n != 1 {
			// The tombstone we just wrote is gone. Should be impossible with
			// the predicates above holding; treat as a conflict and roll back.
			return domain.ErrConflict
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.TagService.Delete: %w", err)
	}
	return nil
}

// Get returns the live tag for an exact triple.
func (s *TagService) Get(ctx context.Context, identity, product, owner, key string) (domain.Tag, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Get: %w", err)
	}
	key, err := validateKey(key)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Get: %w", err)
	}
	tag, err := s.store.Tags().Get(ctx, product, owner, key)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("service.TagService.Get: %w", err)
	}
	return tag, nil
}

// GetHierarchy returns the tag stored under base plus every tag under
// base:subkey..., for a key lookup carrying a trailing '*'. base is the key
// without the star.
func (s *TagService) GetHierarchy(ctx context.Context, identity, product, owner, base string) ([]domain.Tag, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.GetHierarchy: %w", err)
	}
	base, err := validateKey(base)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.GetHierarchy: %w", err)
	}
	tags, err := s.store.Tags().ListByKeyPrefix(ctx, product, owner, base)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.GetHierarchy: %w", err)
	}
	return tags, nil
}

// ListByProduct returns all live tags on a product under one owner, optionally
// restricted to the given keys. Keys are normalized the same way as on write,
// so lookups are insensitive to case and surrounding whitespace.
func (s *TagService) ListByProduct(ctx context.Context, identity, product, owner string, keys []string) ([]domain.Tag, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.ListByProduct: %w", err)
	}
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = NormalizeKey(k); k != "" {
			normalized = append(normalized, k)
		}
	}
	tags, err := s.store.Tags().ListByProduct(ctx, product, owner, normalized)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ListByProduct: %w", err)
	}
	return tags, nil
}

// ListVersions returns the archived snapshots of a tag, newest first.
// The live row is never part of the result.
func (s *TagService) ListVersions(ctx context.Context, identity, product, owner, key string) ([]domain.Tag, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.ListVersions: %w", err)
	}
	key, err := validateKey(key)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ListVersions: %w", err)
	}
	tags, err := s.store.History().ListVersions(ctx, product, owner, key)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ListVersions: %w", err)
	}
	return tags, nil
}

// ListProducts returns the products carrying the filter's key (or key=value).
// The key filter is mandatory — an unfiltered dump of every tag row is not a
// supported projection.
func (s *TagService) ListProducts(ctx context.Context, identity string, f domain.TagFilter) ([]domain.ProductEntry, error) {
	if f.Key == "" {
		return nil, fmt.Errorf("service.TagService.ListProducts: %w",
			&domain.FieldError{Field: "k", Reason: "missing value"})
	}
	if err := Authorize(identity, f.Owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.ListProducts: %w", err)
	}
	f.Key = NormalizeKey(f.Key)
	f.Value = strings.TrimSpace(f.Value)
	entries, err := s.store.Tags().ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ListProducts: %w", err)
	}
	return entries, nil
}

// ProductStats returns per-product aggregate stats, optionally narrowed to a
// key or key=value pair.
func (s *TagService) ProductStats(ctx context.Context, identity string, f domain.TagFilter) ([]domain.ProductStats, error) {
	if err := Authorize(identity, f.Owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.ProductStats: %w", err)
	}
	f.Key = NormalizeKey(f.Key)
	f.Value = strings.TrimSpace(f.Value)
	stats, err := s.store.Tags().ProductStats(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ProductStats: %w", err)
	}
	return stats, nil
}

// KeyStats returns per-key usage stats for one owner, optionally filtered by
// a case-insensitive substring.
func (s *TagService) KeyStats(ctx context.Context, identity, owner, q string) ([]domain.KeyStats, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.KeyStats: %w", err)
	}
	stats, err := s.store.Tags().KeyStats(ctx, owner, strings.TrimSpace(q))
	if err != nil {
		return nil, fmt.Errorf("service.TagService.KeyStats: %w", err)
	}
	return stats, nil
}

// ValueCounts enumerates the distinct values of a key with per-value product
// counts. limit <= 0 falls back to the default of 50 and is capped at 1000.
func (s *TagService) ValueCounts(ctx context.Context, identity, owner, key, q string, limit int) ([]domain.ValueCount, error) {
	if err := Authorize(identity, owner, true); err != nil {
		return nil, fmt.Errorf("service.TagService.ValueCounts: %w", err)
	}
	key, err := validateKey(key)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ValueCounts: %w", err)
	}
	if limit <= 0 {
		limit = defaultValueLimit
	}
	if limit > maxValueLimit {
		limit = maxValueLimit
	}
	counts, err := s.store.Tags().ValueCounts(ctx, owner, key, strings.TrimSpace(q), limit)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.ValueCounts: %w", err)
	}
	return counts, nil
}
