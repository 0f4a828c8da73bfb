package directory_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/testutil"
)

type env struct {
	db     *sqlx.DB
	users  *store.UserStore
	cards  *store.CardStore
	locks  *lock.Local
	logger *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &env{
		db:     db,
		users:  store.NewUserStore(db),
		cards:  store.NewCardStore(db),
		locks:  lock.NewLocal(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *env) user(t *testing.T, name string, publisher bool) *store.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), name, name+"@example.com", "hash", publisher)
	require.NoError(t, err)
	return u
}

var bizCounter struct {
	sync.Mutex
	n int
}

func (e *env) card(t *testing.T, owner *store.User) *store.Card {
	t.Helper()
	bizCounter.Lock()
	bizCounter.n++
	biz := fmt.Sprintf("%d", 100000+bizCounter.n)
	bizCounter.Unlock()

	c, err := e.cards.Insert(context.Background(), owner.ID, biz, store.CardFields{
		BizName:        "Card " + biz,
		BizDescription: "A card",
		BizAddress:     "1 Main St",
		BizPhone:       "031234567",
		BizImage:       directory.DefaultBizImage,
	})
	require.NoError(t, err)
	return c
}

// like records the relation on both sides, as a completed toggle would.
func (e *env) like(t *testing.T, u *store.User, c *store.Card) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.users.AddFavorite(ctx, u.ID, c.ID))
	require.NoError(t, e.cards.AddLike(ctx, c.ID, u.ID))
}

// requireConsistent asserts the favorite relation is two-sided everywhere and
// every like_amount matches its likedBy set.
func (e *env) requireConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	favs, err := e.users.ListFavoriteEdges(ctx)
	require.NoError(t, err)
	likes, err := e.cards.ListLikeEdges(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, favs, likes, "favorites and likes disagree")

	ids, err := e.cards.ListIDs(ctx)
	require.NoError(t, err)
	for _, id := range ids {
		c, err := e.cards.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, len(c.LikedBy), c.LikeAmount, "like_amount of card %s", id)
	}
}

func (e *env) favorites(t *testing.T, userID string) []string {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	sort.Strings(u.Favorites)
	return u.Favorites
}

// spy records calls to the write methods of a repository and fails the ones
// named in fail.
type spy struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func (s *spy) hit(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
	return s.fail[method]
}

func (s *spy) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *spy) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail == nil {
		s.fail = make(map[string]error)
	}
	s.fail[method] = err
}

func (s *spy) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = nil
}

type userSpy struct {
	directory.UserRepository
	spy
}

func (s *userSpy) AddFavorite(ctx context.Context, userID, cardID string) error {
	if err := s.hit("AddFavorite"); err != nil {
		return err
	}
	return s.UserRepository.AddFavorite(ctx, userID, cardID)
}

func (s *userSpy) RemoveFavorite(ctx context.Context, userID, cardID string) error {
	if err := s.hit("RemoveFavorite"); err != nil {
		return err
	}
	return s.UserRepository.RemoveFavorite(ctx, userID, cardID)
}

func (s *userSpy) PullFavorites(ctx context.Context, userIDs, cardIDs []string) (int64, error) {
	if err := s.hit("PullFavorites"); err != nil {
		return 0, err
	}
	return s.UserRepository.PullFavorites(ctx, userIDs, cardIDs)
}

func (s *userSpy) PullFavoriteFromAll(ctx context.Context, cardID string) (int64, error) {
	if err := s.hit("PullFavoriteFromAll"); err != nil {
		return 0, err
	}
	return s.UserRepository.PullFavoriteFromAll(ctx, cardID)
}

func (s *userSpy) Delete(ctx context.Context, id string) error {
	if err := s.hit("Delete"); err != nil {
		return err
	}
	return s.UserRepository.Delete(ctx, id)
}

type cardSpy struct {
	directory.CardRepository
	spy
}

func (s *cardSpy) ExistsByBizNumber(ctx context.Context, bizNumber string) (bool, error) {
	if err := s.hit("ExistsByBizNumber"); err != nil {
		return false, err
	}
	return s.CardRepository.ExistsByBizNumber(ctx, bizNumber)
}

func (s *cardSpy) AddLike(ctx context.Context, cardID, userID string) error {
	if err := s.hit("AddLike"); err != nil {
		return err
	}
	return s.CardRepository.AddLike(ctx, cardID, userID)
}

func (s *cardSpy) RemoveLike(ctx context.Context, cardID, userID string) error {
	if err := s.hit("RemoveLike"); err != nil {
		return err
	}
	return s.CardRepository.RemoveLike(ctx, cardID, userID)
}

func (s *cardSpy) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if err := s.hit("DeleteByIDs"); err != nil {
		return 0, err
	}
	return s.CardRepository.DeleteByIDs(ctx, ids)
}

func (s *cardSpy) DeleteOwned(ctx context.Context, id, ownerID string) (*store.Card, error) {
	if err := s.hit("DeleteOwned"); err != nil {
		return nil, err
	}
	return s.CardRepository.DeleteOwned(ctx, id, ownerID)
}

func (s *cardSpy) PullLikeFromAll(ctx context.Context, userID string) (int64, error) {
	if err := s.hit("PullLikeFromAll"); err != nil {
		return 0, err
	}
	return s.CardRepository.PullLikeFromAll(ctx, userID)
}
