package models

import (
	"strings"
	"time"
	"unicode"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

// ClubStatus is the registration status of a club with the federation.
type ClubStatus string

const (
	ClubStatusActive    ClubStatus = "active"
	ClubStatusSuspended ClubStatus = "suspended"
)

// Club is a registered member club.
type Club struct {
	ID           id.ClubID
	Name         string
	Abbreviation string
	League       string
	Status       ClubStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewClub validates invariants and constructs a Club.
func NewClub(clubID id.ClubID, name, abbreviation, league string, now time.Time) (*Club, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "club name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "club name must be 128 characters or less")
	}
	return &Club{
		ID:           clubID,
		Name:         name,
		Abbreviation: strings.TrimSpace(abbreviation),
		League:       strings.TrimSpace(league),
		Status:       ClubStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActive reports whether the club may take part in transfers.
func (c *Club) IsActive() bool {
	return c.Status == ClubStatusActive
}

// defaultLeagueCode is used when a club carries no usable abbreviation or league.
const defaultLeagueCode = "GEN"

// LeagueCode derives the registration-counter key for this club: the
// abbreviation (or league as fallback) uppercased, stripped of
// non-alphanumerics and truncated to 6 characters.
func (c *Club) LeagueCode() string {
	source := c.Abbreviation
	if source == "" {
		source = c.League
	}
	var code []rune
	for _, r := range strings.ToUpper(source) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			code = append(code, r)
		}
		if len(code) == 6 {
			break
		}
	}
	if len(code) == 0 {
		return defaultLeagueCode
	}
	return string(code)
}
