package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Card is the card aggregate: a cards row plus the set of users who liked it.
type Card struct {
	ID             string    `db:"id"`
	BizNumber      string    `db:"biz_number"`
	OwnerID        string    `db:"owner_id"`
	BizName        string    `db:"biz_name"`
	BizDescription string    `db:"biz_description"`
	BizAddress     string    `db:"biz_address"`
	BizPhone       string    `db:"biz_phone"`
	BizImage       string    `db:"biz_image"`
	LikeAmount     int       `db:"like_amount"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`

	LikedBy []string `db:"-"`
}

// IsLikedBy reports whether userID is in the card's likedBy set.
func (c *Card) IsLikedBy(userID string) bool {
	for _, id := range c.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// CardFields are the publisher-editable fields of a card.
type CardFields struct {
	BizName        string
	BizDescription string
	BizAddress     string
	BizPhone       string
	BizImage       string
}

// Sort orders accepted by Search.
const (
	OrderLikes  = "likes"
	OrderName   = "name"
	OrderNewest = "newest"
	OrderOldest = "oldest"
)

var searchOrders = map[string]string{
	OrderName:   `biz_name ASC, id ASC`,
	OrderNewest: `created_at DESC, id ASC`,
	OrderOldest: `created_at ASC, id ASC`,
	OrderLikes:  `like_amount DESC, created_at DESC, id ASC`,
}

// recountSQL sets like_amount from card_likes for a single card.
const recountSQL = `UPDATE cards SET like_amount = (SELECT COUNT(*) FROM card_likes WHERE card_likes.card_id = cards.id) WHERE id = ?`

// CardStore is the sqlx-backed store for the card aggregate.
type CardStore struct {
	db *sqlx.DB
}

func NewCardStore(db *sqlx.DB) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) q(query string) string { return s.db.Rebind(query) }

// Insert creates a card with the given business number. Returns
// ErrBizNumberTaken if another card already holds bizNumber.
func (s *CardStore) Insert(ctx context.Context, ownerID, bizNumber string, f CardFields) (*Card, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO cards (id, biz_number, owner_id, biz_name, biz_description, biz_address,
		                   biz_phone, biz_image, like_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`), id, bizNumber, ownerID, f.BizName, f.BizDescription, f.BizAddress, f.BizPhone, f.BizImage, now, now)
	if err != nil {
		if violates(err, "biz_number") {
			return nil, ErrBizNumberTaken
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ExistsByBizNumber reports whether any card holds bizNumber.
func (s *CardStore) ExistsByBizNumber(ctx context.Context, bizNumber string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM cards WHERE biz_number = ?`), bizNumber)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID returns the card with its likedBy set, or ErrNotFound.
func (s *CardStore) GetByID(ctx context.Context, id string) (*Card, error) {
	var c Card
	err := s.db.GetContext(ctx, &c, s.q(`SELECT * FROM cards WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachLikes(ctx, []*Card{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOwned returns the card only if it is owned by ownerID, or ErrNotFound.
func (s *CardStore) GetOwned(ctx context.Context, id, ownerID string) (*Card, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListByOwner returns all cards owned by ownerID, oldest first.
func (s *CardStore) ListByOwner(ctx context.Context, ownerID string) ([]*Card, error) {
	var cards []*Card
	err := s.db.SelectContext(ctx, &cards, s.q(`
		SELECT * FROM cards WHERE owner_id = ? ORDER BY created_at ASC, id ASC
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return cards, s.attachLikes(ctx, cards)
}

// ListByIDs returns the cards among ids that exist. Missing ids are skipped.
func (s *CardStore) ListByIDs(ctx context.Context, ids []string) ([]*Card, error) {
	if len(ids) == 0 {
		return []*Card{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM cards WHERE id IN (?) ORDER BY created_at ASC, id ASC`, ids)
	if err != nil {
		return nil, err
	}
	var cards []*Card
	if err := s.db.SelectContext(ctx, &cards, s.q(query), args...); err != nil {
		return nil, err
	}
	return cards, s.attachLikes(ctx, cards)
}

// Update replaces the editable fields of a card owned by ownerID. An empty
// BizImage keeps the current image. The business number never changes.
func (s *CardStore) Update(ctx context.Context, id, ownerID string, f CardFields) (*Card, error) {
	if _, err := s.GetOwned(ctx, id, ownerID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE cards
		SET biz_name = ?, biz_description = ?, biz_address = ?, biz_phone = ?,
		    biz_image = COALESCE(NULLIF(?, ''), biz_image), updated_at = ?
		WHERE id = ? AND owner_id = ?
	`), f.BizName, f.BizDescription, f.BizAddress, f.BizPhone, f.BizImage, time.Now().UTC(), id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// DeleteOwned removes a card owned by ownerID together with its likedBy set
// and returns the removed card. Returns ErrNotFound if no such card exists.
func (s *CardStore) DeleteOwned(ctx context.Context, id, ownerID string) (*Card, error) {
	c, err := s.GetOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM card_likes WHERE card_id = ?`), id); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM cards WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteByIDs removes the given cards and their likedBy sets and returns the
// number of cards removed.
func (s *CardStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	likesQuery, likesArgs, err := sqlx.In(`DELETE FROM card_likes WHERE card_id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	cardsQuery, cardsArgs, err := sqlx.In(`DELETE FROM cards WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(likesQuery), likesArgs...); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, s.q(cardsQuery), cardsArgs...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// AddLike adds userID to the card's likedBy set and recomputes like_amount
// in the same transaction. Adding an existing like is a no-op.
func (s *CardStore) AddLike(ctx context.Context, cardID, userID string) error {
	return s.mutateLikes(ctx, cardID, userID, func(tx *sqlx.Tx, liked bool) error {
		if liked {
			return nil
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO card_likes (card_id, user_id) VALUES (?, ?)`), cardID, userID)
		return err
	})
}

// RemoveLike removes userID from the card's likedBy set and recomputes
// like_amount in the same transaction. Removing a missing like is a no-op.
func (s *CardStore) RemoveLike(ctx context.Context, cardID, userID string) error {
	return s.mutateLikes(ctx, cardID, userID, func(tx *sqlx.Tx, liked bool) error {
		if !liked {
			return nil
		}
		_, err := tx.ExecContext(ctx, s.q(`DELETE FROM card_likes WHERE card_id = ? AND user_id = ?`), cardID, userID)
		return err
	})
}

// mutateLikes runs fn inside a transaction that first checks the card exists
// and whether userID already likes it, then recounts like_amount.
func (s *CardStore) mutateLikes(ctx context.Context, cardID, userID string, fn func(tx *sqlx.Tx, liked bool) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, s.q(`SELECT COUNT(*) FROM cards WHERE id = ?`), cardID); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	var liked int
	if err := tx.GetContext(ctx, &liked, s.q(`
		SELECT COUNT(*) FROM card_likes WHERE card_id = ? AND user_id = ?
	`), cardID, userID); err != nil {
		return err
	}
	if err := fn(tx, liked > 0); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(recountSQL), cardID); err != nil {
		return err
	}
	return tx.Commit()
}

// PullLikeFromAll removes userID from every card's likedBy set and recomputes
// like_amount on the affected cards. Returns the number of likes removed.
func (s *CardStore) PullLikeFromAll(ctx context.Context, userID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var cardIDs []string
	if err := tx.SelectContext(ctx, &cardIDs, s.q(`SELECT card_id FROM card_likes WHERE user_id = ?`), userID); err != nil {
		return 0, err
	}
	if len(cardIDs) == 0 {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM card_likes WHERE user_id = ?`), userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	query, args, err := sqlx.In(`
		UPDATE cards SET like_amount = (SELECT COUNT(*) FROM card_likes WHERE card_likes.card_id = cards.id)
		WHERE id IN (?)
	`, cardIDs)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, s.q(query), args...); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ListIDs returns the ids of all cards.
func (s *CardStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM cards`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLikeEdges returns every (user, card) pair recorded on the card side.
func (s *CardStore) ListLikeEdges(ctx context.Context) ([]Edge, error) {
	var edges []Edge
	err := s.db.SelectContext(ctx, &edges, `SELECT user_id, card_id FROM card_likes`)
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// RecountLikes sets like_amount to the size of likedBy on every card where
// the two disagree and returns the number of cards corrected.
func (s *CardStore) RecountLikes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET like_amount = (SELECT COUNT(*) FROM card_likes WHERE card_likes.card_id = cards.id)
		WHERE like_amount <> (SELECT COUNT(*) FROM card_likes WHERE card_likes.card_id = cards.id)
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Top returns up to limit cards with the most likes.
func (s *CardStore) Top(ctx context.Context, limit int) ([]*Card, error) {
	var cards []*Card
	err := s.db.SelectContext(ctx, &cards, s.q(`
		SELECT * FROM cards ORDER BY `+searchOrders[OrderLikes]+` LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	return cards, s.attachLikes(ctx, cards)
}

// likeEscaper makes LIKE metacharacters in a search term match literally.
// '!' is the escape character because a backslash literal is parsed
// differently by MySQL.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search returns one page of cards whose name, description or business
// number contains q (case-insensitive), plus the total number of matches.
// Unknown orders sort by likes. A page past the last match yields the first page.
func (s *CardStore) Search(ctx context.Context, q, order string, page, perPage int) ([]*Card, int, error) {
	where := ""
	var args []interface{}
	if q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		where = ` WHERE LOWER(biz_name) LIKE LOWER(?) ESCAPE '!' OR LOWER(biz_description) LIKE LOWER(?) ESCAPE '!' OR biz_number LIKE ? ESCAPE '!'`
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.q(`SELECT COUNT(*) FROM cards`+where), args...); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	skip := (page - 1) * perPage
	if total < skip {
		skip = 0
	}
	orderBy, ok := searchOrders[order]
	if !ok {
		orderBy = searchOrders[OrderLikes]
	}

	var cards []*Card
	query := `SELECT * FROM cards` + where + ` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &cards, s.q(query), append(args, perPage, skip)...); err != nil {
		return nil, 0, err
	}
	if err := s.attachLikes(ctx, cards); err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

// Count returns the number of cards.
func (s *CardStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM cards`)
	return n, err
}

// attachLikes loads the likedBy set of every card in one query.
func (s *CardStore) attachLikes(ctx context.Context, cards []*Card) error {
	if len(cards) == 0 {
		return nil
	}
	ids := make([]string, len(cards))
	byID := make(map[string]*Card, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
		c.LikedBy = []string{}
		byID[c.ID] = c
	}

	query, args, err := sqlx.In(`
		SELECT user_id, card_id FROM card_likes WHERE card_id IN (?) ORDER BY user_id ASC
	`, ids)
	if err != nil {
		return err
	}
	var edges []Edge
	if err := s.db.SelectContext(ctx, &edges, s.q(query), args...); err != nil {
		return err
	}
	for _, e := range edges {
		if c, ok := byID[e.CardID]; ok {
			c.LikedBy = append(c.LikedBy, e.UserID)
		}
	}
	return nil
}
