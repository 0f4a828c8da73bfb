package directory

import (
	"context"
	"slices"
	"time"

	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/metrics"
	"github.com/joestump/card-runner/internal/store"
)

// State is the favorite relation between one user and one card.
type State string

const (
	Favorited   State = "favorited"
	Unfavorited State = "unfavorited"
)

// ToggleResult carries both aggregates after a toggle and the new state.
type ToggleResult struct {
	Card  *store.Card
	User  *store.User
	State State
}

// FavoriteManager flips the favorite relation while keeping the user's
// favorites and the card's likedBy in step.
type FavoriteManager struct {
	users UserRepository
	cards CardRepository
	locks lock.Locker
}

func NewFavoriteManager(users UserRepository, cards CardRepository, locks lock.Locker) *FavoriteManager {
	return &FavoriteManager{users: users, cards: cards, locks: locks}
}

// Toggle favorites cardID for userID, or unfavorites it if the card already
// lists the user in likedBy. The card decides the direction.
//
// The user write lands first and the card write second. If the card write
// fails the error wraps ErrPartialWrite; issuing the same toggle again
// converges because both writes are set operations.
func (m *FavoriteManager) Toggle(ctx context.Context, userID, cardID string) (*ToggleResult, error) {
	start := time.Now()
	defer func() { metrics.ToggleDuration.Observe(time.Since(start).Seconds()) }()

	release, err := acquire(ctx, m.locks, userKey(userID), cardKey(cardID))
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := findUser(ctx, m.users, userID)
	if err != nil {
		return nil, err
	}
	card, err := findCard(ctx, m.cards, cardID)
	if err != nil {
		return nil, err
	}

	if card.IsLikedBy(userID) {
		if err := m.users.RemoveFavorite(ctx, userID, cardID); err != nil {
			return nil, unavailable("remove favorite", err)
		}
		if err := m.cards.RemoveLike(ctx, cardID, userID); err != nil {
			metrics.PartialWritesTotal.WithLabelValues("toggle").Inc()
			return nil, partial("remove like", err)
		}
		user.Favorites = slices.DeleteFunc(user.Favorites, func(id string) bool { return id == cardID })
		card.LikedBy = slices.DeleteFunc(card.LikedBy, func(id string) bool { return id == userID })
		card.LikeAmount = len(card.LikedBy)
		metrics.FavoriteTogglesTotal.WithLabelValues(string(Unfavorited)).Inc()
		return &ToggleResult{Card: card, User: user, State: Unfavorited}, nil
	}

	if err := m.users.AddFavorite(ctx, userID, cardID); err != nil {
		return nil, unavailable("add favorite", err)
	}
	if err := m.cards.AddLike(ctx, cardID, userID); err != nil {
		metrics.PartialWritesTotal.WithLabelValues("toggle").Inc()
		return nil, partial("add like", err)
	}
	if !user.HasFavorite(cardID) {
		user.Favorites = append(user.Favorites, cardID)
	}
	card.LikedBy = append(card.LikedBy, userID)
	card.LikeAmount = len(card.LikedBy)
	metrics.FavoriteTogglesTotal.WithLabelValues(string(Favorited)).Inc()
	return &ToggleResult{Card: card, User: user, State: Favorited}, nil
}

// Favorites returns the cards in the user's favorites that still exist.
func (m *FavoriteManager) Favorites(ctx context.Context, userID string) ([]*store.Card, error) {
	user, err := findUser(ctx, m.users, userID)
	if err != nil {
		return nil, err
	}
	cards, err := m.cards.ListByIDs(ctx, user.Favorites)
	if err != nil {
		return nil, unavailable("list favorite cards", err)
	}
	return cards, nil
}
