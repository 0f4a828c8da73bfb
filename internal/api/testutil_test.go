package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/joestump/card-runner/internal/api"
	"github.com/joestump/card-runner/internal/auth"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/testutil"
	"github.com/joestump/card-runner/internal/validate"
)

const testPassword = "hunter22"

// testEnv holds the router and the stores behind it for API integration tests.
type testEnv struct {
	Router    http.Handler
	DB        *sqlx.DB
	Users     *store.UserStore
	Cards     *store.CardStore
	Tokens    *auth.TokenIssuer
	Passwords *auth.Passwords
}

// newTestEnv creates an in-memory SQLite test database, runs migrations,
// and wires up the full API router with real stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := store.NewUserStore(db)
	cards := store.NewCardStore(db)
	locks := lock.NewLocal()

	allocator, err := directory.NewAllocator(cards, directory.AllocatorConfig{})
	if err != nil {
		t.Fatalf("new allocator: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	passwords := auth.NewPasswords(bcrypt.MinCost)

	router := api.NewRouter(api.Deps{
		Logger:    logger,
		DB:        db,
		Users:     users,
		Cards:     cards,
		Publisher: directory.NewPublisher(users, cards, allocator, locks),
		Favorites: directory.NewFavoriteManager(users, cards, locks),
		Deletions: directory.NewDeletionCoordinator(users, cards, locks, logger),
		Tokens:    tokens,
		Passwords: passwords,
		Validator: validate.New(),
	})
	return &testEnv{Router: router, DB: db, Users: users, Cards: cards, Tokens: tokens, Passwords: passwords}
}

// seedUser creates a user whose password is testPassword.
func seedUser(t *testing.T, env *testEnv, email string, publisher bool) *store.User {
	t.Helper()
	hash, err := env.Passwords.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := env.Users.Create(context.Background(), "Test User", email, hash, publisher)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedToken issues an identity token for u.
func seedToken(t *testing.T, env *testEnv, u *store.User) string {
	t.Helper()
	token, err := env.Tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// seedCard inserts a card owned by ownerID directly through the store.
func seedCard(t *testing.T, env *testEnv, ownerID, bizNumber, name string) *store.Card {
	t.Helper()
	c, err := env.Cards.Insert(context.Background(), ownerID, bizNumber, store.CardFields{
		BizName:        name,
		BizDescription: "Open daily at " + name,
		BizAddress:     "1 Main Street",
		BizPhone:       "0501234567",
		BizImage:       directory.DefaultBizImage,
	})
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return c
}

// do sends a request with an optional JSON body and identity token.
func do(t *testing.T, env *testEnv, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func validCardBody(name string) map[string]any {
	return map[string]any{
		"bizName":        name,
		"bizDescription": "Fresh bread every morning",
		"bizAddress":     "12 Baker Street",
		"bizPhone":       "0501234567",
	}
}
