package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

func TestNewClubInvariants(t *testing.T) {
	now := time.Now()

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewClub(id.NewClubID(), "   ", "ZAN", "ZPL", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("trims and accepts valid club", func(t *testing.T) {
		club, err := NewClub(id.NewClubID(), "  Zanaco FC ", " ZAN ", "ZPL", now)
		require.NoError(t, err)
		assert.Equal(t, "Zanaco FC", club.Name)
		assert.Equal(t, "ZAN", club.Abbreviation)
		assert.Equal(t, ClubStatusActive, club.Status)
	})
}

func TestLeagueCode(t *testing.T) {
	cases := []struct {
		name         string
		abbreviation string
		league       string
		want         string
	}{
		{"abbreviation uppercased", "zan", "", "ZAN"},
		{"non-alphanumerics stripped", "K.C. 11", "", "KC11"},
		{"truncated to six", "superleague", "", "SUPERL"},
		{"league used as fallback", "", "zpl", "ZPL"},
		{"default when nothing usable", "---", "", "GEN"},
		{"default when empty", "", "", "GEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			club := &Club{Abbreviation: tc.abbreviation, League: tc.league}
			assert.Equal(t, tc.want, club.LeagueCode())
		})
	}
}
