package directory

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/metrics"
	"github.com/joestump/card-runner/internal/store"
)

// RepairReport counts what a repair pass corrected.
type RepairReport struct {
	DanglingFavorites int   // favorites of cards that no longer exist
	DanglingLikes     int   // likes from users that no longer exist
	FavoritesAdded    int   // likes whose favorite was missing
	FavoritesRemoved  int   // favorites whose like was missing
	CountsFixed       int64 // cards whose like_amount disagreed with likedBy
}

// Fixed reports whether the pass changed anything.
func (r *RepairReport) Fixed() bool {
	return r.DanglingFavorites+r.DanglingLikes+r.FavoritesAdded+r.FavoritesRemoved > 0 || r.CountsFixed > 0
}

// Repairer scans both sides of the favorite relation and makes them agree.
// The card side is authoritative: a favorite without a matching like is
// undone, a like without a matching favorite is completed.
type Repairer struct {
	users  UserRepository
	cards  CardRepository
	locks  lock.Locker
	logger *slog.Logger
}

func NewRepairer(users UserRepository, cards CardRepository, locks lock.Locker, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{users: users, cards: cards, locks: locks, logger: logger}
}

// Repair runs one pass. Each suspicious edge is re-read under the locks of
// its user and card before it is changed, so edges fixed by a concurrent
// toggle are left alone.
func (r *Repairer) Repair(ctx context.Context) (*RepairReport, error) {
	var (
		favorites, likes []store.Edge
		userIDs, cardIDs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() (err error) {
		favorites, err = r.users.ListFavoriteEdges(gctx)
		return err
	})
	g.Go(func() (err error) {
		likes, err = r.cards.ListLikeEdges(gctx)
		return err
	})
	g.Go(func() (err error) {
		userIDs, err = r.users.ListIDs(gctx)
		return err
	})
	g.Go(func() (err error) {
		cardIDs, err = r.cards.ListIDs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable("load relation", err)
	}

	users := toSet(userIDs)
	cards := toSet(cardIDs)
	favSet := make(map[store.Edge]struct{}, len(favorites))
	for _, e := range favorites {
		favSet[e] = struct{}{}
	}
	likeSet := make(map[store.Edge]struct{}, len(likes))
	for _, e := range likes {
		likeSet[e] = struct{}{}
	}

	var suspects []store.Edge
	for e := range favSet {
		_, liked := likeSet[e]
		_, cardExists := cards[e.CardID]
		if !liked || !cardExists {
			suspects = append(suspects, e)
		}
	}
	for e := range likeSet {
		_, faved := favSet[e]
		_, userExists := users[e.UserID]
		if !faved || !userExists {
			suspects = append(suspects, e)
		}
	}
	sort.Slice(suspects, func(i, j int) bool {
		if suspects[i].UserID != suspects[j].UserID {
			return suspects[i].UserID < suspects[j].UserID
		}
		return suspects[i].CardID < suspects[j].CardID
	})

	report := &RepairReport{}
	for _, e := range suspects {
		if err := r.fixEdge(ctx, e, report); err != nil {
			return report, err
		}
	}

	n, err := r.cards.RecountLikes(ctx)
	if err != nil {
		return report, unavailable("recount likes", err)
	}
	report.CountsFixed = n
	metrics.RepairFixesTotal.WithLabelValues("like_count").Add(float64(n))

	if report.Fixed() {
		r.logger.Warn("repair pass fixed relation",
			"dangling_favorites", report.DanglingFavorites,
			"dangling_likes", report.DanglingLikes,
			"favorites_added", report.FavoritesAdded,
			"favorites_removed", report.FavoritesRemoved,
			"counts_fixed", report.CountsFixed,
		)
	} else {
		r.logger.Debug("repair pass found nothing to fix")
	}
	return report, nil
}

func (r *Repairer) fixEdge(ctx context.Context, e store.Edge, report *RepairReport) error {
	release, err := acquire(ctx, r.locks, userKey(e.UserID), cardKey(e.CardID))
	if err != nil {
		return err
	}
	defer release()

	user, err := r.users.GetByID(ctx, e.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return unavailable("load user", err)
	}
	card, err := r.cards.GetByID(ctx, e.CardID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return unavailable("load card", err)
	}

	inFav := user != nil && user.HasFavorite(e.CardID)
	inLike := card != nil && card.IsLikedBy(e.UserID)

	switch {
	case card == nil && inFav:
		if err := r.users.RemoveFavorite(ctx, e.UserID, e.CardID); err != nil {
			return unavailable("remove dangling favorite", err)
		}
		report.DanglingFavorites++
		metrics.RepairFixesTotal.WithLabelValues("dangling_favorite").Inc()

	case user == nil && inLike:
		if err := r.cards.RemoveLike(ctx, e.CardID, e.UserID); err != nil {
			return unavailable("remove dangling like", err)
		}
		report.DanglingLikes++
		metrics.RepairFixesTotal.WithLabelValues("dangling_like").Inc()

	case user != nil && card != nil && inFav && !inLike:
		if err := r.users.RemoveFavorite(ctx, e.UserID, e.CardID); err != nil {
			return unavailable("remove one-sided favorite", err)
		}
		report.FavoritesRemoved++
		metrics.RepairFixesTotal.WithLabelValues("favorite_removed").Inc()

	case user != nil && card != nil && !inFav && inLike:
		if err := r.users.AddFavorite(ctx, e.UserID, e.CardID); err != nil {
			return unavailable("add missing favorite", err)
		}
		report.FavoritesAdded++
		metrics.RepairFixesTotal.WithLabelValues("favorite_added").Inc()
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
