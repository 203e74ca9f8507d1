package models

import (
	"strings"
	"time"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

// Player is a registered footballer. The club of record (ClubID) is the
// authority for the transfer state machine's ownership check.
type Player struct {
	ID                 id.PlayerID
	FirstName          string
	LastName           string
	NRC                string
	DateOfBirth        time.Time
	Nationality        string
	ClubID             id.ClubID
	RegistrationNumber string
	Movements          []Movement
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Movement is one entry in a player's append-only movement history.
type Movement struct {
	FromClubID id.ClubID
	ToClubID   id.ClubID
	TransferID id.TransferID
	Note       string
	Date       time.Time
}

// NewPlayer validates invariants and constructs a Player.
func NewPlayer(playerID id.PlayerID, firstName, lastName, nrc, nationality string, dateOfBirth time.Time, clubID id.ClubID, now time.Time) (*Player, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "player name cannot be empty")
	}
	if clubID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "player must belong to a club")
	}
	if !dateOfBirth.IsZero() && dateOfBirth.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "date of birth cannot be in the future")
	}
	return &Player{
		ID:          playerID,
		FirstName:   firstName,
		LastName:    lastName,
		NRC:         strings.TrimSpace(nrc),
		Nationality: strings.TrimSpace(nationality),
		DateOfBirth: dateOfBirth,
		ClubID:      clubID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FullName joins the player's names for export payloads and logs.
func (p *Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// IsRegistered reports whether a registration number has been issued.
func (p *Player) IsRegistered() bool {
	return p.RegistrationNumber != ""
}
