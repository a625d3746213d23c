package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentagger/tagstore/internal/domain"
)

func TestAuthRepo_SaveAndResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Auth().SaveToken(ctx, "alice", "alice__Utok-1"))

	got, err := store.Auth().ResolveToken(ctx, "alice__Utok-1")

	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

func TestAuthRepo_SaveToken_ReplacesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Auth().SaveToken(ctx, "alice", "alice__Utok-1"))
	require.NoError(t, store.Auth().SaveToken(ctx, "alice", "alice__Utok-2"))

	_, err := store.Auth().ResolveToken(ctx, "alice__Utok-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "old token must stop working")

	got, err := store.Auth().ResolveToken(ctx, "alice__Utok-2")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

func TestAuthRepo_ResolveToken_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Auth().ResolveToken(context.Background(), "nobody__Unope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthRepo_TwoUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Auth().SaveToken(ctx, "alice", "alice__Utok"))
	require.NoError(t, store.Auth().SaveToken(ctx, "bob", "bob__Utok"))

	gotA, err := store.Auth().ResolveToken(ctx, "alice__Utok")
	require.NoError(t, err)
	gotB, err := store.Auth().ResolveToken(ctx, "bob__Utok")
	require.NoError(t, err)

	assert.Equal(t, "alice", gotA)
	assert.Equal(t, "bob", gotB)
}
