package tms

import (
	"encoding/json"
	"fmt"
	"time"

	clubmodels "fedoffice/internal/club/models"
	playermodels "fedoffice/internal/player/models"
	transfermodels "fedoffice/internal/transfer/models"
)

// Payload is the document sent to the regulatory system. A snapshot of it
// is persisted on the transfer before each attempt so operators can see
// exactly what was (or would have been) sent.
type Payload struct {
	TransferID         string         `json:"transferId"`
	Player             PlayerSnapshot `json:"player"`
	FromClub           Party          `json:"fromClub"`
	ToClub             Party          `json:"toClub"`
	Type               string         `json:"type"`
	TransferFee        string         `json:"transferFee"`
	RequestedAt        string         `json:"requestedAt"`
	CompletionDate     string         `json:"completionDate,omitempty"`
	RegistrationNumber string         `json:"registrationNumber,omitempty"`
}

// Party is a named participant reference.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerSnapshot carries the identity fields the regulatory system matches
// players on, frozen at export time.
type PlayerSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NRC         string `json:"nrc"`
	DateOfBirth string `json:"dateOfBirth"`
	Nationality string `json:"nationality"`
}

// BuildPayload assembles the export document from the aggregate and its
// registry lookups.
func BuildPayload(transfer *transfermodels.Transfer, player *playermodels.Player, fromClub, toClub *clubmodels.Club) ([]byte, error) {
	snapshot := PlayerSnapshot{
		ID:          player.ID.String(),
		Name:        player.FullName(),
		NRC:         player.NRC,
		Nationality: player.Nationality,
	}
	if !player.DateOfBirth.IsZero() {
		snapshot.DateOfBirth = player.DateOfBirth.Format("2006-01-02")
	}

	payload := Payload{
		TransferID: transfer.ID.String(),
		Player:     snapshot,
		FromClub: Party{
			ID:   fromClub.ID.String(),
			Name: fromClub.Name,
		},
		ToClub: Party{
			ID:   toClub.ID.String(),
			Name: toClub.Name,
		},
		Type:               string(transfer.Type),
		TransferFee:        transfer.TransferFee.String(),
		RequestedAt:        transfer.CreatedAt.Format(time.RFC3339),
		RegistrationNumber: player.RegistrationNumber,
	}
	if transfer.CompletionDate != nil {
		payload.CompletionDate = transfer.CompletionDate.Format(time.RFC3339)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return raw, nil
}
