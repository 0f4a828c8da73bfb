package directory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/joestump/card-runner/internal/metrics"
	"github.com/joestump/card-runner/internal/store"
)

// AllocatorConfig bounds the business-number draw. Zero values take the defaults.
type AllocatorConfig struct {
	Min         int // inclusive, default 1000
	Max         int // inclusive, default 999999
	MaxAttempts int // default 1000

	// Rand returns a value in [0, n). Defaults to math/rand/v2.IntN.
	Rand func(n int) int
}

// Allocator hands out business numbers not held by any existing card.
type Allocator struct {
	cards CardRepository
	cfg   AllocatorConfig
}

func NewAllocator(cards CardRepository, cfg AllocatorConfig) (*Allocator, error) {
	if cfg.Min == 0 && cfg.Max == 0 {
		cfg.Min, cfg.Max = 1000, 999999
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1000
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	if cfg.Min < 0 || cfg.Max < cfg.Min {
		return nil, fmt.Errorf("allocator range [%d, %d] is invalid", cfg.Min, cfg.Max)
	}
	return &Allocator{cards: cards, cfg: cfg}, nil
}

// Allocate returns a business number no existing card holds. The number is
// not reserved: use Claim when inserting so a racing insert is retried.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	return a.Claim(ctx, nil)
}

// Claim allocates a business number and passes it to insert. If insert
// reports store.ErrBizNumberTaken the number is treated as a collision and a
// new one is drawn from the same attempt budget. Other insert errors are
// returned unchanged.
func (a *Allocator) Claim(ctx context.Context, insert func(bizNumber string) error) (string, error) {
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		n := a.cfg.Min + a.cfg.Rand(a.cfg.Max-a.cfg.Min+1)
		bizNumber := strconv.Itoa(n)

		exists, err := a.cards.ExistsByBizNumber(ctx, bizNumber)
		if err != nil {
			return "", unavailable("check business number", err)
		}
		if exists {
			metrics.BizNumberCollisionsTotal.Inc()
			continue
		}
		if insert == nil {
			return bizNumber, nil
		}

		err = insert(bizNumber)
		if errors.Is(err, store.ErrBizNumberTaken) {
			metrics.BizNumberCollisionsTotal.Inc()
			continue
		}
		if err != nil {
			return "", err
		}
		return bizNumber, nil
	}
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.cfg.MaxAttempts)
}
