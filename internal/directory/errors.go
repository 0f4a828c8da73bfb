package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/joestump/card-runner/internal/store"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrAllocationExhausted is returned when the allocator used its whole
	// attempt budget without finding a free business number.
	ErrAllocationExhausted = errors.New("business number allocation exhausted")

	// ErrStoreUnavailable wraps transport and I/O failures from the store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialWrite means a multi-aggregate operation failed after at least
	// one of its writes landed. The relation may be one-sided until the
	// operation is retried or the repair pass runs.
	ErrPartialWrite = errors.New("partial write")

	// ErrNotPublisher is returned when a non-publisher tries to create a card.
	ErrNotPublisher = errors.New("user is not a publisher")
)

// NotFoundError names the entity that could not be found.
type NotFoundError struct {
	Entity string // "user" or "card"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func userNotFound(id string) error { return &NotFoundError{Entity: "user", ID: id} }
func cardNotFound(id string) error { return &NotFoundError{Entity: "card", ID: id} }

// unavailable wraps a store failure. Context errors pass through so callers
// can tell cancellation from an outage.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// StoreUnavailable wraps a failure from a store call made outside the
// directory components so it maps like one made inside them.
func StoreUnavailable(op string, err error) error { return unavailable(op, err) }

// partial wraps a failure that happened after an earlier write landed.
func partial(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrPartialWrite, err)
	}
	return fmt.Errorf("%s: %w: %w: %w", op, ErrPartialWrite, ErrStoreUnavailable, err)
}

func findUser(ctx context.Context, users UserRepository, id string) (*store.User, error) {
	u, err := users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, unavailable("load user", err)
	}
	return u, nil
}

func findCard(ctx context.Context, cards CardRepository, id string) (*store.Card, error) {
	c, err := cards.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cardNotFound(id)
	}
	if err != nil {
		return nil, unavailable("load card", err)
	}
	return c, nil
}
