// Package domain holds typed identifiers shared across the back office.
// Distinct defined types keep a ClubID from ever being passed where a
// PlayerID is expected; the compiler enforces what code review would miss.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "fedoffice/pkg/domain-errors"
)

// Typed UUID identifiers for the federation aggregates.
type (
	ClubID     uuid.UUID
	PlayerID   uuid.UUID
	TransferID uuid.UUID
	OfferID    uuid.UUID
)

func (id ClubID) String() string     { return uuid.UUID(id).String() }
func (id PlayerID) String() string   { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id OfferID) String() string    { return uuid.UUID(id).String() }

func (id ClubID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PlayerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OfferID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewClubID mints a random club identifier.
func NewClubID() ClubID { return ClubID(uuid.New()) }

// NewPlayerID mints a random player identifier.
func NewPlayerID() PlayerID { return PlayerID(uuid.New()) }

// NewTransferID mints a random transfer identifier.
func NewTransferID() TransferID { return TransferID(uuid.New()) }

// NewOfferID mints a random counter-offer identifier.
func NewOfferID() OfferID { return OfferID(uuid.New()) }

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid UUID", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id must not be the nil UUID", kind)
	}
	return parsed, nil
}

// ParseClubID parses an incoming club id at a trust boundary.
func ParseClubID(raw string) (ClubID, error) {
	parsed, err := parseUUID(raw, "club")
	return ClubID(parsed), err
}

// ParsePlayerID parses an incoming player id at a trust boundary.
func ParsePlayerID(raw string) (PlayerID, error) {
	parsed, err := parseUUID(raw, "player")
	return PlayerID(parsed), err
}

// ParseTransferID parses an incoming transfer id at a trust boundary.
func ParseTransferID(raw string) (TransferID, error) {
	parsed, err := parseUUID(raw, "transfer")
	return TransferID(parsed), err
}

// ParseOfferID parses an incoming counter-offer id at a trust boundary.
func ParseOfferID(raw string) (OfferID, error) {
	parsed, err := parseUUID(raw, "offer")
	return OfferID(parsed), err
}
