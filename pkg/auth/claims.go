package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gulautos/storefront-backend/pkg/enums"
)

// Audience is stamped on every storefront access token.
const Audience = "gulautos-storefront"

// AccessTokenPayload is the identity carried by a new access token. An empty
// JTI gets a generated one; the JTI is also the session key.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checks. It ties sub to user_id
// and refuses roles this build does not know.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token has no user_id")
	}
	if c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user_id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries unknown role %q", c.Role)
	}
	if c.ID == "" {
		return errors.New("token has no jti")
	}
	return nil
}
