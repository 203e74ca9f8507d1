// Package sessions validates the session tokens minted by the federation's
// identity service. Token issuance lives outside this repo; we only verify
// and extract the acting party.
package sessions

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"fedoffice/internal/platform/middleware"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/requestcontext"
)

// Claims represents the JWT claims carried in a dashboard session.
type Claims struct {
	ClubID string `json:"club_id,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 session tokens against the shared signing key.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken implements middleware.TokenValidator.
func (v *Validator) ValidateToken(tokenString string) (*middleware.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session claims")
	}

	out := &middleware.SessionClaims{Role: claims.Role}
	switch claims.Role {
	case requestcontext.RoleAdmin:
		// Administrators act for the federation, not for a club.
	case requestcontext.RoleClub:
		clubID, err := id.ParseClubID(claims.ClubID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session missing club identity")
		}
		out.ClubID = clubID
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown session role")
	}
	return out, nil
}
