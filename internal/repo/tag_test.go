package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/repo"
	"github.com/opentagger/tagstore/testutil"
)

// newTestStore returns a Store bound to a single transaction that is rolled
// back when the test finishes, giving free per-test isolation. Begin on the
// transaction opens a savepoint, so InTx keeps working inside it.
func newTestStore(t *testing.T) repo.Store {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewStore(tx)
}

func tagFixture() domain.Tag {
	return domain.Tag{
		Product: "3017620422003",
		Key:     "color",
		Value:   "red",
		Owner:   "",
		Version: 1,
		Editor:  "alice",
	}
}

func mustInsert(t *testing.T, tags repo.TagRepo, tag domain.Tag) domain.Tag {
	t.Helper()
	got, err := tags.Insert(context.Background(), tag)
	require.NoError(t, err, "insert fixture tag")
	return got
}

// ---- Insert ----------------------------------------------------------------

func TestTagRepo_Insert(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Tags().Insert(context.Background(), tagFixture())

	require.NoError(t, err)
	assert.Equal(t, "3017620422003", got.Product)
	assert.Equal(t, "color", got.Key)
	assert.Equal(t, "red", got.Value)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "alice", got.Editor)
	assert.False(t, got.LastEdit.IsZero(), "last_edit is set by the database")
}

func TestTagRepo_Insert_DuplicateTriple(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store.Tags(), tagFixture())

	dup := tagFixture()
	dup.Value = "blue"
	_, err := store.Tags().Insert(context.Background(), dup)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTagRepo_Insert_SameKeyDifferentOwner(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store.Tags(), tagFixture())

	private := tagFixture()
	private.Owner = "alice"
	got, err := store.Tags().Insert(context.Background(), private)

	require.NoError(t, err, "owner is part of the identity triple")
	assert.Equal(t, "alice", got.Owner)
}

// ---- Replace ---------------------------------------------------------------

func TestTagRepo_Replace(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store.Tags(), tagFixture())

	next := tagFixture()
	next.Value = "blue"
	next.Version = 2
	next.Editor = "bob"
	got, err := store.Tags().Replace(context.Background(), next)

	require.NoError(t, err)
	assert.Equal(t, "blue", got.Value)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "bob", got.Editor)
}

func TestTagRepo_Replace_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store.Tags(), tagFixture())

	next := tagFixture()
	next.Version = 3 // stored version is 1, predicate wants 2
	_, err := store.Tags().Replace(context.Background(), next)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTagRepo_Replace_MissingTriple(t *testing.T) {
	store := newTestStore(t)

	next := tagFixture()
	next.Version = 2
	_, err := store.Tags().Replace(context.Background(), next)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Tombstone / DeleteTombstone -------------------------------------------

func TestTagRepo_Tombstone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, store.Tags(), tagFixture())

	n, err := store.Tags().Tombstone(ctx, "3017620422003", "", "color", 1, "alice")

	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.Tags().Get(ctx, "3017620422003", "", "color")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Version)
	assert.Equal(t, "DELETE", got.Comment)
}

func TestTagRepo_Tombstone_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store.Tags(), tagFixture())

	n, err := store.Tags().Tombstone(context.Background(), "3017620422003", "", "color", 7, "alice")

	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "wrong version must match nothing")
}

func TestTagRepo_DeleteTombstone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, store.Tags(), tagFixture())
	_, err := store.Tags().Tombstone(ctx, "3017620422003", "", "color", 1, "alice")
	require.NoError(t, err)

	n, err := store.Tags().DeleteTombstone(ctx, "3017620422003", "", "color")

	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.Tags().Get(ctx, "3017620422003", "", "color")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTagRepo_DeleteTombstone_LiveRowUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, store.Tags(), tagFixture())

	n, err := store.Tags().DeleteTombstone(ctx, "3017620422003", "", "color")

	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "only version-0 rows may be removed")

	_, err = store.Tags().Get(ctx, "3017620422003", "", "color")
	assert.NoError(t, err)
}

// ---- Get / ListByProduct ---------------------------------------------------

func TestTagRepo_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Tags().Get(context.Background(), "999", "", "color")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTagRepo_ListByProduct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"color", "shape", "weight"} {
		tag := tagFixture()
		tag.Key = k
		mustInsert(t, store.Tags(), tag)
	}
	other := tagFixture()
	other.Product = "42"
	mustInsert(t, store.Tags(), other)

	t.Run("all keys", func(t *testing.T) {
		got, err := store.Tags().ListByProduct(ctx, "3017620422003", "", nil)

		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "color", got[0].Key, "ordered by key")
	})

	t.Run("keys filter", func(t *testing.T) {
		got, err := store.Tags().ListByProduct(ctx, "3017620422003", "", []string{"color", "weight"})

		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("no rows", func(t *testing.T) {
		got, err := store.Tags().ListByProduct(ctx, "777", "", nil)

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// ---- ListByKeyPrefix -------------------------------------------------------

func TestTagRepo_ListByKeyPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"color", "color:hue", "color:hue:shade", "colorful"} {
		tag := tagFixture()
		tag.Key = k
		mustInsert(t, store.Tags(), tag)
	}

	got, err := store.Tags().ListByKeyPrefix(ctx, "3017620422003", "", "color")

	require.NoError(t, err)
	require.Len(t, got, 3, "'colorful' is not part of the 'color' hierarchy")
	assert.Equal(t, "color", got[0].Key)
	assert.Equal(t, "color:hue", got[1].Key)
	assert.Equal(t, "color:hue:shade", got[2].Key)
}

// ---- ListProducts / ProductStats -------------------------------------------

func seedStatsFixture(t *testing.T, tags repo.TagRepo) {
	t.Helper()
	rows := []struct{ product, k, v, editor string }{
		{"111", "color", "red", "alice"},
		{"111", "shape", "round", "bob"},
		{"222", "color", "red", "alice"},
		{"333", "color", "blue", "alice"},
	}
	for _, row := range rows {
		tag := tagFixture()
		tag.Product, tag.Key, tag.Value, tag.Editor = row.product, row.k, row.v, row.editor
		mustInsert(t, tags, tag)
	}
}

func TestTagRepo_ListProducts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedStatsFixture(t, store.Tags())

	t.Run("by key", func(t *testing.T) {
		got, err := store.Tags().ListProducts(ctx, domain.TagFilter{Key: "color"})

		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("by key and value", func(t *testing.T) {
		got, err := store.Tags().ListProducts(ctx, domain.TagFilter{Key: "color", Value: "red"})

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "111", got[0].Product)
		assert.Equal(t, "222", got[1].Product)
	})
}

func TestTagRepo_ProductStats(t *testing.T) {
	store := newTestStore(t)
	seedStatsFixture(t, store.Tags())

	got, err := store.Tags().ProductStats(context.Background(), domain.TagFilter{})

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "111", got[0].Product)
	assert.Equal(t, 2, got[0].Keys)
	assert.Equal(t, 2, got[0].Editors)
	assert.False(t, got[0].LastEdit.IsZero())
}

// ---- KeyStats / ValueCounts ------------------------------------------------

func TestTagRepo_KeyStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedStatsFixture(t, store.Tags())

	t.Run("all keys", func(t *testing.T) {
		got, err := store.Tags().KeyStats(ctx, "", "")

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "color", got[0].Key, "most used key first")
		assert.Equal(t, 3, got[0].Count)
		assert.Equal(t, 2, got[0].Values, "distinct values of color: red, blue")
	})

	t.Run("substring filter", func(t *testing.T) {
		got, err := store.Tags().KeyStats(ctx, "", "SHAP")

		require.NoError(t, err)
		require.Len(t, got, 1, "filter is case-insensitive")
		assert.Equal(t, "shape", got[0].Key)
	})
}

func TestTagRepo_ValueCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedStatsFixture(t, store.Tags())

	t.Run("ranked by frequency", func(t *testing.T) {
		got, err := store.Tags().ValueCounts(ctx, "", "color", "", 50)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "red", got[0].Value)
		assert.Equal(t, 2, got[0].Products)
		assert.Equal(t, "blue", got[1].Value)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.Tags().ValueCounts(ctx, "", "color", "", 1)

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("substring filter", func(t *testing.T) {
		got, err := store.Tags().ValueCounts(ctx, "", "color", "RE", 50)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "red", got[0].Value)
	})
}

// ---- InTx ------------------------------------------------------------------

func TestStore_InTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(st repo.Store) error {
		mustInsert(t, st.Tags(), tagFixture())
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	_, err = store.Tags().Get(ctx, "3017620422003", "", "color")
	assert.ErrorIs(t, err, domain.ErrNotFound, "failed transaction must leave no row behind")
}

func TestStore_InTx_Commits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(st repo.Store) error {
		_, err := st.Tags().Insert(ctx, tagFixture())
		return err
	})

	require.NoError(t, err)
	got, err := store.Tags().Get(ctx, "3017620422003", "", "color")
	require.NoError(t, err)
	assert.Equal(t, "red", got.Value)
}
