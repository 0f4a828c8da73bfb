package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/metrics"
	"github.com/joestump/card-runner/internal/store"
)

// UserDeletion reports what deleting a user touched.
type UserDeletion struct {
	UserID            string
	CardsDeleted      int64
	FavoritesRepaired int64 // favorite entries pulled from other users
	LikesRepaired     int64 // likes by the deleted user pulled from cards
}

// DeletionCoordinator removes users and cards and repairs the references
// the other aggregate holds to them.
type DeletionCoordinator struct {
	users  UserRepository
	cards  CardRepository
	locks  lock.Locker
	logger *slog.Logger
}

func NewDeletionCoordinator(users UserRepository, cards CardRepository, locks lock.Locker, logger *slog.Logger) *DeletionCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeletionCoordinator{users: users, cards: cards, locks: locks, logger: logger}
}

// OnUserDeleted deletes a user. A publisher's cards go first, and those
// cards are pulled from the favorites of everyone who liked them. Then the
// user's likes are pulled from every card and finally the user record is
// removed. The publisher step runs when either isPublisher or the stored
// flag says so.
func (d *DeletionCoordinator) OnUserDeleted(ctx context.Context, userID string, isPublisher bool) (*UserDeletion, error) {
	// Owned cards are locked together with the user so a concurrent toggle
	// on one of them cannot interleave with the cascade.
	owned, err := d.cards.ListByOwner(ctx, userID)
	if err != nil {
		return nil, unavailable("list owned cards", err)
	}
	keys := []string{userKey(userID)}
	for _, c := range owned {
		keys = append(keys, cardKey(c.ID))
	}
	release, err := acquire(ctx, d.locks, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := findUser(ctx, d.users, userID)
	if err != nil {
		return nil, err
	}

	report := &UserDeletion{UserID: userID}
	wrote := false
	fail := func(op string, err error) (*UserDeletion, error) {
		if !wrote {
			return nil, unavailable(op, err)
		}
		metrics.PartialWritesTotal.WithLabelValues("delete_user").Inc()
		d.logger.Error("user deletion left partial state",
			"user_id", userID, "step", op, "cards_deleted", report.CardsDeleted, "error", err)
		return report, partial(op, err)
	}

	if isPublisher || user.IsPublisher {
		if owned, err = d.cards.ListByOwner(ctx, userID); err != nil {
			return fail("list owned cards", err)
		}
		if len(owned) > 0 {
			cardIDs, likers := collect(owned)

			n, err := d.cards.DeleteByIDs(ctx, cardIDs)
			if err != nil {
				return fail("delete owned cards", err)
			}
			wrote = true
			report.CardsDeleted = n
			metrics.CascadeCardsDeletedTotal.Add(float64(n))

			if len(likers) > 0 {
				n, err := d.users.PullFavorites(ctx, likers, cardIDs)
				if err != nil {
					return fail("pull favorites of deleted cards", err)
				}
				report.FavoritesRepaired = n
				metrics.CascadeRepairsTotal.WithLabelValues("favorites").Add(float64(n))
			}
		}
	}

	n, err := d.cards.PullLikeFromAll(ctx, userID)
	if err != nil {
		return fail("pull likes of deleted user", err)
	}
	if n > 0 {
		wrote = true
	}
	report.LikesRepaired = n
	metrics.CascadeRepairsTotal.WithLabelValues("likes").Add(float64(n))

	if err := d.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) && !wrote {
			return nil, userNotFound(userID)
		}
		return fail("delete user", err)
	}

	d.logger.Info("user deleted",
		"user_id", userID,
		"cards_deleted", report.CardsDeleted,
		"favorites_repaired", report.FavoritesRepaired,
		"likes_repaired", report.LikesRepaired,
	)
	return report, nil
}

// OnCardDeleted pulls cardID from the favorites of every user and returns
// the number of entries removed. Call it after the card itself is gone.
func (d *DeletionCoordinator) OnCardDeleted(ctx context.Context, cardID string) (int64, error) {
	n, err := d.users.PullFavoriteFromAll(ctx, cardID)
	if err != nil {
		return 0, unavailable("pull favorites of deleted card", err)
	}
	metrics.CascadeRepairsTotal.WithLabelValues("favorites").Add(float64(n))
	return n, nil
}

// DeleteCard deletes a card owned by ownerID and then repairs the favorites
// that referenced it. A failed repair is reported as ErrPartialWrite.
func (d *DeletionCoordinator) DeleteCard(ctx context.Context, cardID, ownerID string) (*store.Card, error) {
	release, err := acquire(ctx, d.locks, cardKey(cardID))
	if err != nil {
		return nil, err
	}
	defer release()

	card, err := d.cards.DeleteOwned(ctx, cardID, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cardNotFound(cardID)
	}
	if err != nil {
		return nil, unavailable("delete card", err)
	}

	n, err := d.OnCardDeleted(ctx, cardID)
	if err != nil {
		metrics.PartialWritesTotal.WithLabelValues("delete_card").Inc()
		d.logger.Error("card deleted but favorites not repaired", "card_id", cardID, "error", err)
		return card, partial("repair favorites", err)
	}

	d.logger.Info("card deleted", "card_id", cardID, "owner_id", ownerID, "favorites_repaired", n)
	return card, nil
}

// collect returns the ids of cards and the deduplicated union of their likers.
func collect(cards []*store.Card) (cardIDs, likers []string) {
	seen := make(map[string]struct{})
	for _, c := range cards {
		cardIDs = append(cardIDs, c.ID)
		for _, u := range c.LikedBy {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			likers = append(likers, u)
		}
	}
	return cardIDs, likers
}
