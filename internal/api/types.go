package api

import (
	"time"

	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/store"
)

// --- User types ---

// SignupRequest is the request body for POST /api/users.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,min=6,max=255,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Biz      *bool  `json:"biz" validate:"required"`
}

// LoginRequest is the request body for POST /api/auth.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,min=6,max=255,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// DeleteMeRequest is the request body for DELETE /api/users/me.
type DeleteMeRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UserResponse is the JSON representation of a user.
type UserResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenResponse carries a freshly issued identity token.
type TokenResponse struct {
	Token string `json:"token"`
}

// DeleteUserResponse reports what deleting an account removed.
type DeleteUserResponse struct {
	Message           string `json:"message"`
	CardsDeleted      int64  `json:"cardsDeleted"`
	FavoritesRepaired int64  `json:"favoritesRepaired"`
	LikesRepaired     int64  `json:"likesRepaired"`
}

// --- Card types ---

// CardRequest is the request body for POST /api/cards and PUT /api/cards/{id}.
// The business number is assigned by the server and cannot be set.
type CardRequest struct {
	BizName        string `json:"bizName" validate:"required,min=2,max=255"`
	BizDescription string `json:"bizDescription" validate:"required,min=2,max=1024"`
	BizAddress     string `json:"bizAddress" validate:"required,min=2,max=400"`
	BizPhone       string `json:"bizPhone" validate:"required,min=9,max=10,bizphone"`
	BizImage       string `json:"bizImage" validate:"omitempty,min=11,max=1024"`
}

func (c CardRequest) fields() store.CardFields {
	return store.CardFields{
		BizName:        c.BizName,
		BizDescription: c.BizDescription,
		BizAddress:     c.BizAddress,
		BizPhone:       c.BizPhone,
		BizImage:       c.BizImage,
	}
}

// ToggleFavoriteRequest is the request body for PATCH /api/cards/my-favorites.
type ToggleFavoriteRequest struct {
	CardID string `json:"cardId" validate:"required"`
}

// CardResponse is the JSON representation of a card.
type CardResponse struct {
	ID             string    `json:"_id"`
	BizNumber      string    `json:"bizNumber"`
	UserID         string    `json:"user_id"`
	BizName        string    `json:"bizName"`
	BizDescription string    `json:"bizDescription"`
	BizAddress     string    `json:"bizAddress"`
	BizPhone       string    `json:"bizPhone"`
	BizImage       string    `json:"bizImage"`
	LikedBy        []string  `json:"likedBy"`
	LikeAmount     int       `json:"likeAmount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SearchResponse is one page of search results plus the total match count.
type SearchResponse struct {
	Cards []*CardResponse `json:"cards"`
	Total int             `json:"total"`
}

// ToggleResponse is the card after a favorite toggle and the new state.
type ToggleResponse struct {
	Card  *CardResponse   `json:"card"`
	State directory.State `json:"state"`
}

func toCardResponse(c *store.Card) *CardResponse {
	likedBy := c.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return &CardResponse{
		ID:             c.ID,
		BizNumber:      c.BizNumber,
		UserID:         c.OwnerID,
		BizName:        c.BizName,
		BizDescription: c.BizDescription,
		BizAddress:     c.BizAddress,
		BizPhone:       c.BizPhone,
		BizImage:       c.BizImage,
		LikedBy:        likedBy,
		LikeAmount:     c.LikeAmount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toCardResponses(cards []*store.Card) []*CardResponse {
	out := make([]*CardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	return out
}
