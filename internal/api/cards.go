package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/card-runner/internal/auth"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/validate"
)

const (
	topCardsLimit = 3
	searchPerPage = 9
)

// cardsAPIHandler provides card browsing, publishing and favorites.
type cardsAPIHandler struct {
	cards     *store.CardStore
	publisher *directory.Publisher
	favorites *directory.FavoriteManager
	deletions *directory.DeletionCoordinator
	validator *validate.Validator
	logger    *slog.Logger
}

func registerCardRoutes(r chi.Router, authMW *auth.Middleware, h *cardsAPIHandler) {
	r.Get("/cards/top", h.Top)
	r.Get("/cards/search", h.Search)

	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireAuth)
		r.Get("/cards/my-favorites", h.MyFavorites)
		r.Patch("/cards/my-favorites", h.ToggleFavorite)
		r.With(authMW.RequirePublisher).Get("/cards/my-cards", h.MyCards)
		r.With(authMW.RequirePublisher).Post("/cards", h.Create)
		r.Get("/cards/{id}", h.Get)
		r.Put("/cards/{id}", h.Update)
		r.Delete("/cards/{id}", h.Delete)
	})
}

// Top returns the most liked cards.
// GET /api/cards/top
//
// @Summary      Top cards
// @Description  Returns the three cards with the most likes.
// @Tags         Cards
// @Produce      json
// @Success      200  {array}   CardResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /cards/top [get]
func (h *cardsAPIHandler) Top(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.Top(r.Context(), topCardsLimit)
	if err != nil {
		writeStoreError(w, r, h.logger, "top cards", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(cards))
}

// Search returns one page of cards matching q, sorted by o.
// GET /api/cards/search?q=&p=&o=
//
// @Summary      Search cards
// @Description  Matches name, description or business number. Nine cards per page; a page past the end returns the first page.
// @Tags         Cards
// @Produce      json
// @Param        q  query     string  false  "Search term"
// @Param        p  query     int     false  "Page, from 1"
// @Param        o  query     string  false  "Order: likes, name, newest, oldest"
// @Success      200  {object}  SearchResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /cards/search [get]
func (h *cardsAPIHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("p"))
	if err != nil || page < 1 {
		page = 1
	}

	cards, total, err := h.cards.Search(r.Context(), query.Get("q"), query.Get("o"), page, searchPerPage)
	if err != nil {
		writeStoreError(w, r, h.logger, "search cards", err)
		return
	}
	writeJSON(w, http.StatusOK, &SearchResponse{Cards: toCardResponses(cards), Total: total})
}

// MyFavorites returns the cards the caller favorited.
// GET /api/cards/my-favorites
//
// @Summary      List favorites
// @Tags         Favorites
// @Produce      json
// @Success      200  {array}   CardResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/my-favorites [get]
func (h *cardsAPIHandler) MyFavorites(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	cards, err := h.favorites.Favorites(r.Context(), id.ID)
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(cards))
}

// ToggleFavorite flips the caller's favorite on a card.
// PATCH /api/cards/my-favorites
//
// @Summary      Toggle a favorite
// @Description  Favorites the card when the caller has not liked it yet, otherwise removes the favorite.
// @Tags         Favorites
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleFavoriteRequest  true  "Card to toggle"
// @Success      200   {object}  ToggleResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/my-favorites [patch]
func (h *cardsAPIHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req ToggleFavoriteRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	res, err := h.favorites.Toggle(r.Context(), id.ID, req.CardID)
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, &ToggleResponse{Card: toCardResponse(res.Card), State: res.State})
}

// MyCards returns the cards the calling publisher owns.
// GET /api/cards/my-cards
//
// @Summary      List own cards
// @Tags         Cards
// @Produce      json
// @Success      200  {array}   CardResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/my-cards [get]
func (h *cardsAPIHandler) MyCards(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	cards, err := h.cards.ListByOwner(r.Context(), id.ID)
	if err != nil {
		writeStoreError(w, r, h.logger, "list owned cards", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(cards))
}

// Create publishes a new card owned by the caller.
// POST /api/cards
//
// @Summary      Publish a card
// @Description  Creates a card with a server-assigned business number. Publishers only.
// @Tags         Cards
// @Accept       json
// @Produce      json
// @Param        body  body      CardRequest  true  "Card to publish"
// @Success      201   {object}  CardResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards [post]
func (h *cardsAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req CardRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	card, err := h.publisher.Publish(r.Context(), id.ID, req.fields())
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardResponse(card))
}

// Get returns a card the caller owns.
// GET /api/cards/{id}
//
// @Summary      Get own card
// @Tags         Cards
// @Produce      json
// @Param        id   path      string  true  "Card ID"
// @Success      200  {object}  CardResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/{id} [get]
func (h *cardsAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	card, err := h.cards.GetOwned(r.Context(), chi.URLParam(r, "id"), id.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "The card with the given ID was not found.", "NOT_FOUND")
		return
	}
	if err != nil {
		writeStoreError(w, r, h.logger, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

// Update replaces the editable fields of a card the caller owns.
// PUT /api/cards/{id}
//
// @Summary      Update own card
// @Description  Replaces the editable fields. The business number is immutable.
// @Tags         Cards
// @Accept       json
// @Produce      json
// @Param        id    path      string       true  "Card ID"
// @Param        body  body      CardRequest  true  "New card fields"
// @Success      200   {object}  CardResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/{id} [put]
func (h *cardsAPIHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req CardRequest
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	card, err := h.cards.Update(r.Context(), chi.URLParam(r, "id"), id.ID, req.fields())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "The card with the given ID was not found.", "NOT_FOUND")
		return
	}
	if err != nil {
		writeStoreError(w, r, h.logger, "update card", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

// Delete removes a card the caller owns and pulls it from every user's favorites.
// DELETE /api/cards/{id}
//
// @Summary      Delete own card
// @Tags         Cards
// @Produce      json
// @Param        id   path      string  true  "Card ID"
// @Success      200  {object}  CardResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     AuthToken
// @Router       /cards/{id} [delete]
func (h *cardsAPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	card, err := h.deletions.DeleteCard(r.Context(), chi.URLParam(r, "id"), id.ID)
	if err != nil {
		writeCoreError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}
