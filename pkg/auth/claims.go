package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	ArtisanID *uuid.UUID
	Role      enums.ActorRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. ArtisanID is
// set only for artisan sessions and is the seller-profile id, not the user id.
type AccessTokenClaims struct {
	UserID    uuid.UUID       `json:"user_id"`
	ArtisanID *uuid.UUID      `json:"artisan_id,omitempty"`
	Role      enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
