package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// User is the user aggregate: a users row plus the user's favorites set.
type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsPublisher  bool      `db:"is_publisher"`
	CreatedAt    time.Time `db:"created_at"`

	// Favorites holds the ids of cards this user marked as favorite.
	Favorites []string `db:"-"`
}

// HasFavorite reports whether cardID is in the user's favorites.
func (u *User) HasFavorite(cardID string) bool {
	for _, id := range u.Favorites {
		if id == cardID {
			return true
		}
	}
	return false
}

// UserStore is the sqlx-backed store for the user aggregate.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// q rebinds ? placeholders to the driver's native format ($1,$2,... for PostgreSQL).
func (s *UserStore) q(query string) string { return s.db.Rebind(query) }

// Create inserts a new user. Returns ErrEmailTaken if email is already registered.
func (s *UserStore) Create(ctx context.Context, name, email, passwordHash string, isPublisher bool) (*User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, name, email, password_hash, is_publisher, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, name, email, passwordHash, isPublisher, now)
	if err != nil {
		if violates(err, "email") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the user with its favorites, or ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT * FROM users WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadFavorites(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the user matching email, or ErrNotFound.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT * FROM users WHERE email = ?`), email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadFavorites(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) loadFavorites(ctx context.Context, u *User) error {
	u.Favorites = []string{}
	return s.db.SelectContext(ctx, &u.Favorites, s.q(`
		SELECT card_id FROM user_favorites WHERE user_id = ? ORDER BY card_id ASC
	`), u.ID)
}

// AddFavorite adds cardID to the user's favorites. Adding a card that is
// already a favorite is a no-op.
func (s *UserStore) AddFavorite(ctx context.Context, userID, cardID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO user_favorites (user_id, card_id) VALUES (?, ?)
	`), userID, cardID)
	if isUniqueConstraintError(err) {
		return nil
	}
	return err
}

// RemoveFavorite removes cardID from the user's favorites. Removing a card
// that is not a favorite is a no-op.
func (s *UserStore) RemoveFavorite(ctx context.Context, userID, cardID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM user_favorites WHERE user_id = ? AND card_id = ?
	`), userID, cardID)
	return err
}

// PullFavorites removes every card in cardIDs from the favorites of every
// user in userIDs and returns the number of favorite entries removed.
func (s *UserStore) PullFavorites(ctx context.Context, userIDs, cardIDs []string) (int64, error) {
	if len(userIDs) == 0 || len(cardIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`
		DELETE FROM user_favorites WHERE user_id IN (?) AND card_id IN (?)
	`, userIDs, cardIDs)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PullFavoriteFromAll removes cardID from the favorites of every user and
// returns the number of favorite entries removed.
func (s *UserStore) PullFavoriteFromAll(ctx context.Context, cardID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM user_favorites WHERE card_id = ?`), cardID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the user and its favorites set. Returns ErrNotFound if the
// user does not exist.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM user_favorites WHERE user_id = ?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ListIDs returns the ids of all users.
func (s *UserStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFavoriteEdges returns every (user, card) pair recorded on the user side.
func (s *UserStore) ListFavoriteEdges(ctx context.Context) ([]Edge, error) {
	var edges []Edge
	err := s.db.SelectContext(ctx, &edges, `SELECT user_id, card_id FROM user_favorites`)
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// Count returns the number of registered users.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}
