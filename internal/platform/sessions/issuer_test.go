package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fedoffice/pkg/domain"
	"fedoffice/pkg/requestcontext"
)

func TestIssuedTokensValidate(t *testing.T) {
	const key = "test-signing-key"
	issuer := NewIssuer(key, time.Hour)
	validator := NewValidator(key)

	t.Run("club token round trip", func(t *testing.T) {
		clubID := id.NewClubID()
		token, err := issuer.IssueClubToken(clubID)
		require.NoError(t, err)

		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, clubID, claims.ClubID)
		assert.Equal(t, requestcontext.RoleClub, claims.Role)
	})

	t.Run("admin token round trip", func(t *testing.T) {
		token, err := issuer.IssueAdminToken()
		require.NoError(t, err)

		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, requestcontext.RoleAdmin, claims.Role)
		assert.True(t, claims.ClubID.IsNil())
	})

	t.Run("nil club id is rejected", func(t *testing.T) {
		_, err := issuer.IssueClubToken(id.ClubID{})
		require.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		expired := NewIssuer(key, -time.Minute)
		token, err := expired.IssueAdminToken()
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		other := NewIssuer("other-key", time.Hour)
		token, err := other.IssueAdminToken()
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		require.Error(t, err)
	})
}
