package directory_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/store"
)

// sequence returns a Rand that yields vals in order, then repeats the last one.
func sequence(vals ...int) func(int) int {
	i := 0
	return func(n int) int {
		v := vals[i]
		if i < len(vals)-1 {
			i++
		}
		return v % n
	}
}

func insertBiz(t *testing.T, e *env, owner *store.User, biz string) {
	t.Helper()
	_, err := e.cards.Insert(context.Background(), owner.ID, biz, store.CardFields{
		BizName: "x", BizDescription: "x", BizAddress: "x", BizPhone: "031234567", BizImage: "x",
	})
	require.NoError(t, err)
}

func TestAllocateDefaultRange(t *testing.T) {
	e := newEnv(t)
	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		biz, err := a.Allocate(context.Background())
		require.NoError(t, err)
		n, err := strconv.Atoi(biz)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestAllocateInclusiveBounds(t *testing.T) {
	e := newEnv(t)
	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{
		Min: 10, Max: 12, Rand: sequence(0, 2),
	})
	require.NoError(t, err)

	biz, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", biz)

	biz, err = a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12", biz)
}

func TestAllocateSkipsExistingNumbers(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "pub", true)
	insertBiz(t, e, owner, "1000")
	insertBiz(t, e, owner, "1001")

	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{Rand: sequence(0, 1, 0, 2)})
	require.NoError(t, err)

	biz, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1002", biz)
}

func TestAllocateExhausted(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "pub", true)
	insertBiz(t, e, owner, "7")

	cards := &cardSpy{CardRepository: e.cards}
	a, err := directory.NewAllocator(cards, directory.AllocatorConfig{Min: 7, Max: 7, MaxAttempts: 5})
	require.NoError(t, err)

	_, err = a.Allocate(context.Background())
	assert.ErrorIs(t, err, directory.ErrAllocationExhausted)
	assert.Equal(t, 5, cards.count("ExistsByBizNumber"))
}

func TestAllocateStoreFailure(t *testing.T) {
	e := newEnv(t)
	cards := &cardSpy{CardRepository: e.cards}
	cards.failOn("ExistsByBizNumber", errors.New("connection reset"))

	a, err := directory.NewAllocator(cards, directory.AllocatorConfig{})
	require.NoError(t, err)

	_, err = a.Allocate(context.Background())
	assert.ErrorIs(t, err, directory.ErrStoreUnavailable)
}

func TestClaimRetriesRacingInsert(t *testing.T) {
	e := newEnv(t)
	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{Rand: sequence(5, 6)})
	require.NoError(t, err)

	var tried []string
	biz, err := a.Claim(context.Background(), func(bizNumber string) error {
		tried = append(tried, bizNumber)
		if len(tried) == 1 {
			return store.ErrBizNumberTaken
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1006", biz)
	assert.Equal(t, []string{"1005", "1006"}, tried)
}

func TestClaimSharesAttemptBudget(t *testing.T) {
	e := newEnv(t)
	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{MaxAttempts: 3})
	require.NoError(t, err)

	calls := 0
	_, err = a.Claim(context.Background(), func(string) error {
		calls++
		return store.ErrBizNumberTaken
	})
	assert.ErrorIs(t, err, directory.ErrAllocationExhausted)
	assert.Equal(t, 3, calls)
}

func TestClaimReturnsOtherInsertErrors(t *testing.T) {
	e := newEnv(t)
	a, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = a.Claim(context.Background(), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, directory.ErrAllocationExhausted)
}

func TestClaimAgainstUniqueIndex(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "pub", true)
	insertBiz(t, e, owner, "1000")

	// The existence check is bypassed for the first draw to simulate a racing
	// insert landing between check and insert.
	cards := &racyCards{CardRepository: e.cards, blind: 1}
	a, err := directory.NewAllocator(cards, directory.AllocatorConfig{Rand: sequence(0, 1)})
	require.NoError(t, err)

	biz, err := a.Claim(context.Background(), func(bizNumber string) error {
		_, err := e.cards.Insert(context.Background(), owner.ID, bizNumber, store.CardFields{
			BizName: "y", BizDescription: "y", BizAddress: "y", BizPhone: "031234567", BizImage: "y",
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", biz)
}

func TestNewAllocatorRejectsInvertedRange(t *testing.T) {
	e := newEnv(t)
	_, err := directory.NewAllocator(e.cards, directory.AllocatorConfig{Min: 10, Max: 5})
	assert.Error(t, err)
}

// racyCards reports the first blind business numbers as free.
type racyCards struct {
	directory.CardRepository
	blind int
}

func (r *racyCards) ExistsByBizNumber(ctx context.Context, bizNumber string) (bool, error) {
	if r.blind > 0 {
		r.blind--
		return false, nil
	}
	return r.CardRepository.ExistsByBizNumber(ctx, bizNumber)
}
