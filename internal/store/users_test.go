package store_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/testutil"
)

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return testutil.NewTestDB(t)
}

func newStores(t *testing.T) (*store.UserStore, *store.CardStore) {
	t.Helper()
	db := newDB(t)
	return store.NewUserStore(db), store.NewCardStore(db)
}

func TestUserCreateAndGet(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "Alice", "alice@example.com", "hash", true)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.True(t, u.IsPublisher)
	assert.Empty(t, u.Favorites)
	assert.NotNil(t, u.Favorites)

	byEmail, err := us.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	_, err := us.Create(ctx, "Alice", "alice@example.com", "hash", false)
	require.NoError(t, err)

	_, err = us.Create(ctx, "Other Alice", "alice@example.com", "hash", false)
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestUserGetMissing(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	_, err := us.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = us.GetByEmail(ctx, "nope@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserFavoritesAreASet(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "Bob", "bob@example.com", "hash", false)
	require.NoError(t, err)

	require.NoError(t, us.AddFavorite(ctx, u.ID, "card-1"))
	require.NoError(t, us.AddFavorite(ctx, u.ID, "card-1"))
	require.NoError(t, us.AddFavorite(ctx, u.ID, "card-2"))

	got, err := us.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-1", "card-2"}, got.Favorites)
	assert.True(t, got.HasFavorite("card-2"))

	require.NoError(t, us.RemoveFavorite(ctx, u.ID, "card-1"))
	require.NoError(t, us.RemoveFavorite(ctx, u.ID, "card-1"))

	got, err = us.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-2"}, got.Favorites)
	assert.False(t, got.HasFavorite("card-1"))
}

func TestPullFavorites(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	a, err := us.Create(ctx, "A", "a@example.com", "hash", false)
	require.NoError(t, err)
	b, err := us.Create(ctx, "B", "b@example.com", "hash", false)
	require.NoError(t, err)

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, us.AddFavorite(ctx, a.ID, id))
		require.NoError(t, us.AddFavorite(ctx, b.ID, id))
	}

	n, err := us.PullFavorites(ctx, []string{a.ID}, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = us.PullFavorites(ctx, nil, []string{"c1"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = us.PullFavoriteFromAll(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	gotA, err := us.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gotA.Favorites)

	gotB, err := us.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, gotB.Favorites)
}

func TestUserDelete(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "Carol", "carol@example.com", "hash", false)
	require.NoError(t, err)
	require.NoError(t, us.AddFavorite(ctx, u.ID, "card-1"))

	require.NoError(t, us.Delete(ctx, u.ID))

	_, err = us.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	edges, err := us.ListFavoriteEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)

	assert.ErrorIs(t, us.Delete(ctx, u.ID), store.ErrNotFound)
}

func TestUserListingAndCount(t *testing.T) {
	us, _ := newStores(t)
	ctx := context.Background()

	a, err := us.Create(ctx, "A", "a@example.com", "hash", false)
	require.NoError(t, err)
	b, err := us.Create(ctx, "B", "b@example.com", "hash", true)
	require.NoError(t, err)
	require.NoError(t, us.AddFavorite(ctx, b.ID, "card-9"))

	ids, err := us.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	edges, err := us.ListFavoriteEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.Edge{{UserID: b.ID, CardID: "card-9"}}, edges)

	n, err := us.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
