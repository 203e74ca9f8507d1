package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/requestcontext"
)

// Issuer mints HS256 session tokens. Clubs get a token bound to their club
// id; admins carry only the role.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl}
}

// IssueClubToken signs a session for one club.
func (i *Issuer) IssueClubToken(clubID id.ClubID) (string, error) {
	if clubID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "club id is required")
	}
	return i.sign(Claims{
		ClubID:           clubID.String(),
		Role:             requestcontext.RoleClub,
		RegisteredClaims: i.registered(),
	})
}

// IssueAdminToken signs a federation back-office session.
func (i *Issuer) IssueAdminToken() (string, error) {
	return i.sign(Claims{
		Role:             requestcontext.RoleAdmin,
		RegisteredClaims: i.registered(),
	})
}

func (i *Issuer) registered() jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}
