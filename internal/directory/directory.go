// Package directory keeps the favorite relation between users and cards
// consistent. A user's favorites and a card's likedBy live in two aggregates
// written independently, with no foreign keys and no transaction spanning
// both. The components here order those writes, lock the entities involved,
// report half-applied operations as ErrPartialWrite and repair one-sided
// relations after the fact.
package directory

import (
	"context"

	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/store"
)

// UserRepository is the user aggregate as seen by the core.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*store.User, error)
	AddFavorite(ctx context.Context, userID, cardID string) error
	RemoveFavorite(ctx context.Context, userID, cardID string) error
	PullFavorites(ctx context.Context, userIDs, cardIDs []string) (int64, error)
	PullFavoriteFromAll(ctx context.Context, cardID string) (int64, error)
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
	ListFavoriteEdges(ctx context.Context) ([]store.Edge, error)
}

// CardRepository is the card aggregate as seen by the core.
type CardRepository interface {
	Insert(ctx context.Context, ownerID, bizNumber string, f store.CardFields) (*store.Card, error)
	ExistsByBizNumber(ctx context.Context, bizNumber string) (bool, error)
	GetByID(ctx context.Context, id string) (*store.Card, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*store.Card, error)
	ListByIDs(ctx context.Context, ids []string) ([]*store.Card, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (*store.Card, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	AddLike(ctx context.Context, cardID, userID string) error
	RemoveLike(ctx context.Context, cardID, userID string) error
	PullLikeFromAll(ctx context.Context, userID string) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListLikeEdges(ctx context.Context) ([]store.Edge, error)
	RecountLikes(ctx context.Context) (int64, error)
}

var (
	_ UserRepository = (*store.UserStore)(nil)
	_ CardRepository = (*store.CardStore)(nil)
)

// acquire takes the entity locks for one operation.
func acquire(ctx context.Context, locks lock.Locker, keys ...string) (lock.Release, error) {
	release, err := lock.Acquire(ctx, locks, keys...)
	if err != nil {
		return nil, unavailable("acquire lock", err)
	}
	return release, nil
}

func userKey(id string) string { return "user:" + id }
func cardKey(id string) string { return "card:" + id }
