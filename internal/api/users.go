package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/card-runner/internal/auth"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/validate"
)

// usersAPIHandler provides signup, login and account deletion.
type usersAPIHandler struct {
	users     *store.UserStore
	passwords *auth.Passwords
	tokens    *auth.TokenIssuer
	deletions *directory.DeletionCoordinator
	validator *validate.Validator
	logger    *slog.Logger
}

func registerUserRoutes(r chi.Router, authMW *auth.Middleware, h *usersAPIHandler) {
	r.Post("/users", h.Signup)
	r.Post("/auth", h.Login)
	r.With(authMW.RequireAuth).Delete("/users/me", h.DeleteMe)
}

// Signup registers a new user.
// POST /api/users
//
// @Summary      Sign up
// @Description  Registers a user. biz=true makes the user a publisher.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        body  body      SignupRequest  true  "New user"
// @Success      201   {object}  UserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /users [post]
func (h *usersAPIHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		// The length rule counts characters; bcrypt's limit is in bytes.
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  `"password" must be at most 72 bytes`,
			Code:   "VALIDATION_ERROR",
			Fields: map[string]string{"password": "must be at most 72 bytes"},
		})
		return
	}
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}

	u, err := h.users.Create(r.Context(), req.Name, req.Email, hash, *req.Biz)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "User already registered.", "ALREADY_REGISTERED")
		return
	}
	if err != nil {
		writeStoreError(w, r, h.logger, "create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, &UserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

// Login exchanges email and password for an identity token.
// POST /api/auth
//
// @Summary      Log in
// @Description  Exchanges email and password for an identity token.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        body  body      LoginRequest  true  "Credentials"
// @Success      200   {object}  TokenResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /auth [post]
func (h *usersAPIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Invalid email or password.", "INVALID_CREDENTIALS")
		return
	}
	if err != nil {
		writeStoreError(w, r, h.logger, "find user", err)
		return
	}
	if err := h.passwords.Check(u.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email or password.", "INVALID_CREDENTIALS")
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, &TokenResponse{Token: token})
}

// DeleteMe deletes the caller's account after re-checking the password.
// A publisher's cards are deleted with it.
// DELETE /api/users/me
//
// @Summary      Delete own account
// @Description  Re-checks the password, then deletes the caller, their cards, and every favorite and like that referenced them.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        body  body      DeleteMeRequest  true  "Current password"
// @Success      200   {object}  DeleteUserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Security     AuthToken
// @Router       /users/me [delete]
func (h *usersAPIHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req DeleteMeRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	u, err := h.users.GetByID(r.Context(), id.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Invalid user or password.", "INVALID_CREDENTIALS")
		return
	}
	if err != nil {
		writeStoreError(w, r, h.logger, "load user", err)
		return
	}
	if err := h.passwords.Check(u.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user or password.", "INVALID_CREDENTIALS")
		return
	}

	report, err := h.deletions.OnUserDeleted(r.Context(), u.ID, id.IsPublisher)
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &DeleteUserResponse{
		Message:           "User deleted successfully",
		CardsDeleted:      report.CardsDeleted,
		FavoritesRepaired: report.FavoritesRepaired,
		LikesRepaired:     report.LikesRepaired,
	})
}
