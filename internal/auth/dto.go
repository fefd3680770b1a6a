package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to either login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token for the authenticated account.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UserID      uuid.UUID  `json:"user_id"`
	Role        enums.Role `json:"role"`
}
