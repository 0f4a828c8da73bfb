package directory

import (
	"context"
	"errors"

	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/store"
)

// DefaultBizImage is used when a card is published without an image.
const DefaultBizImage = "https://cdn.pixabay.com/photo/2015/10/05/22/37/blank-profile-picture-973460_960_720.png"

// Publisher creates cards on behalf of publisher users.
type Publisher struct {
	users     UserRepository
	cards     CardRepository
	allocator *Allocator
	locks     lock.Locker
}

func NewPublisher(users UserRepository, cards CardRepository, allocator *Allocator, locks lock.Locker) *Publisher {
	return &Publisher{users: users, cards: cards, allocator: allocator, locks: locks}
}

// Publish creates a card owned by ownerID with a freshly allocated business
// number. The owner must exist and be a publisher. The owner stays locked
// until the card is stored, so a concurrent deletion of the owner either
// sees the card or makes this call fail with NotFound.
func (p *Publisher) Publish(ctx context.Context, ownerID string, f store.CardFields) (*store.Card, error) {
	release, err := acquire(ctx, p.locks, userKey(ownerID))
	if err != nil {
		return nil, err
	}
	defer release()

	owner, err := findUser(ctx, p.users, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsPublisher {
		return nil, ErrNotPublisher
	}
	if f.BizImage == "" {
		f.BizImage = DefaultBizImage
	}

	var card *store.Card
	_, err = p.allocator.Claim(ctx, func(bizNumber string) error {
		c, err := p.cards.Insert(ctx, owner.ID, bizNumber, f)
		if err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAllocationExhausted) || errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, unavailable("insert card", err)
	}
	return card, nil
}
