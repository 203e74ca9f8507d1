package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

// TransferType classifies the deal between the two clubs.
type TransferType string

const (
	TransferTypePermanent TransferType = "permanent"
	TransferTypeLoan      TransferType = "loan"
	TransferTypeSwap      TransferType = "swap"
)

// ParseTransferType validates an incoming type string.
func ParseTransferType(raw string) (TransferType, error) {
	switch TransferType(raw) {
	case TransferTypePermanent, TransferTypeLoan, TransferTypeSwap:
		return TransferType(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "transfer type must be one of permanent, loan, swap")
	}
}

// TransferStatus is the negotiation state. Accepted, Rejected and Cancelled
// are terminal: no transition leaves them.
type TransferStatus string

const (
	StatusPending       TransferStatus = "pending"
	StatusInNegotiation TransferStatus = "in_negotiation"
	StatusAccepted      TransferStatus = "accepted"
	StatusRejected      TransferStatus = "rejected"
	StatusCancelled     TransferStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// OfferStatus is the state of one counter-offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// CounterOffer is an alternative fee/terms proposal appended by either party
// during negotiation. The list is append-only; earlier offers are superseded
// by later ones but stay in the log as an audit trail.
type CounterOffer struct {
	ID              id.OfferID      `json:"id"`
	OfferedByClubID id.ClubID       `json:"offeredByClubId"`
	Fee             decimal.Decimal `json:"fee"`
	Terms           string          `json:"terms,omitempty"`
	Date            time.Time       `json:"date"`
	Status          OfferStatus     `json:"status"`
}

// StatusChange is one entry in the append-only status audit log.
type StatusChange struct {
	Status    TransferStatus `json:"status"`
	ChangedBy string         `json:"changedBy"`
	Date      time.Time      `json:"date"`
	Notes     string         `json:"notes,omitempty"`
}

// Document is an uploaded attachment reference. Storage itself is external;
// we keep the URL and provenance only.
type Document struct {
	URL              string    `json:"url"`
	UploadedAt       time.Time `json:"uploadedAt"`
	UploadedByClubID id.ClubID `json:"uploadedByClubId"`
}

// DocumentKind names the two attachments the approval gate requires.
type DocumentKind string

const (
	DocumentConsent  DocumentKind = "consent"
	DocumentContract DocumentKind = "contract"
)

// Documents holds the attachments required by the administrative gate.
type Documents struct {
	Consent  *Document `json:"consent,omitempty"`
	Contract *Document `json:"contract,omitempty"`
}

// Missing lists which required documents are absent, in gate order.
func (d Documents) Missing() []string {
	var missing []string
	if d.Consent == nil {
		missing = append(missing, string(DocumentConsent))
	}
	if d.Contract == nil {
		missing = append(missing, string(DocumentContract))
	}
	return missing
}

// ExportStatus tracks the regulatory export sub-document independently of
// the negotiation status.
type ExportStatus string

const (
	ExportPending          ExportStatus = "pending"
	ExportExporting        ExportStatus = "exporting"
	ExportExported         ExportStatus = "exported"
	ExportFailed           ExportStatus = "failed"
	ExportWebhookConfirmed ExportStatus = "webhook_confirmed"
	ExportDisabled         ExportStatus = "disabled"
)

// Settled reports whether the external system already has this transfer;
// enqueue and the worker both short-circuit on a settled export.
func (s ExportStatus) Settled() bool {
	return s == ExportExported || s == ExportWebhookConfirmed
}

// FifaExport describes export progress. Workers and the webhook reconciler
// mutate it asynchronously from the request path; every update goes through
// an atomic store operation.
type FifaExport struct {
	Status        ExportStatus    `json:"status"`
	ExternalID    string          `json:"externalId,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"lastError,omitempty"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	ExportedAt    *time.Time      `json:"exportedAt,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Confirmation  json.RawMessage `json:"confirmation,omitempty"`
}

// Transfer is the aggregate root for one inter-club transfer negotiation.
type Transfer struct {
	ID                id.TransferID
	FromClubID        id.ClubID
	ToClubID          id.ClubID
	PlayerID          id.PlayerID
	InitiatedByClubID id.ClubID
	Type              TransferType
	Status            TransferStatus
	TransferFee       decimal.Decimal
	Reason            string
	Comments          string
	CounterOffers     []CounterOffer
	StatusHistory     []StatusChange
	Documents         Documents
	FifaExport        FifaExport
	CompletionDate    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New validates creation invariants and constructs a pending Transfer with
// its first statusHistory entry. The buying club initiates.
func New(transferID id.TransferID, fromClub, toClub id.ClubID, playerID id.PlayerID, transferType TransferType, fee decimal.Decimal, reason, comments string, now time.Time) (*Transfer, error) {
	if fromClub.IsNil() || toClub.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "both clubs are required")
	}
	if fromClub == toClub {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "selling and buying club must differ")
	}
	if playerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "player is required")
	}
	if fee.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer fee cannot be negative")
	}

	t := &Transfer{
		ID:                transferID,
		FromClubID:        fromClub,
		ToClubID:          toClub,
		PlayerID:          playerID,
		InitiatedByClubID: toClub,
		Type:              transferType,
		Status:            StatusPending,
		TransferFee:       fee,
		Reason:            reason,
		Comments:          comments,
		FifaExport:        FifaExport{Status: ExportPending},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	t.AppendHistory(StatusPending, toClub.String(), "transfer requested", now)
	return t, nil
}

// IsParty reports whether the club is one of the two negotiating parties.
func (t *Transfer) IsParty(clubID id.ClubID) bool {
	return clubID == t.FromClubID || clubID == t.ToClubID
}

// AppendHistory records a status mutation. Every status change appends
// exactly one entry; callers never write StatusHistory directly.
func (t *Transfer) AppendHistory(status TransferStatus, changedBy, notes string, now time.Time) {
	t.StatusHistory = append(t.StatusHistory, StatusChange{
		Status:    status,
		ChangedBy: changedBy,
		Date:      now,
		Notes:     notes,
	})
	t.UpdatedAt = now
}

// LatestCounterOffer returns the most recently appended offer, or nil.
// Only this offer is actionable; earlier ones are implicitly superseded.
func (t *Transfer) LatestCounterOffer() *CounterOffer {
	if len(t.CounterOffers) == 0 {
		return nil
	}
	return &t.CounterOffers[len(t.CounterOffers)-1]
}

// FindCounterOffer locates an offer by id.
func (t *Transfer) FindCounterOffer(offerID id.OfferID) *CounterOffer {
	for i := range t.CounterOffers {
		if t.CounterOffers[i].ID == offerID {
			return &t.CounterOffers[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (t *Transfer) Clone() *Transfer {
	cp := *t
	cp.CounterOffers = append([]CounterOffer(nil), t.CounterOffers...)
	cp.StatusHistory = append([]StatusChange(nil), t.StatusHistory...)
	if t.Documents.Consent != nil {
		doc := *t.Documents.Consent
		cp.Documents.Consent = &doc
	}
	if t.Documents.Contract != nil {
		doc := *t.Documents.Contract
		cp.Documents.Contract = &doc
	}
	if t.FifaExport.LastAttemptAt != nil {
		ts := *t.FifaExport.LastAttemptAt
		cp.FifaExport.LastAttemptAt = &ts
	}
	if t.FifaExport.ExportedAt != nil {
		ts := *t.FifaExport.ExportedAt
		cp.FifaExport.ExportedAt = &ts
	}
	cp.FifaExport.Payload = append(json.RawMessage(nil), t.FifaExport.Payload...)
	cp.FifaExport.Confirmation = append(json.RawMessage(nil), t.FifaExport.Confirmation...)
	if t.CompletionDate != nil {
		ts := *t.CompletionDate
		cp.CompletionDate = &ts
	}
	return &cp
}

// MarkAccepted moves the transfer to Accepted and stamps completion.
func (t *Transfer) MarkAccepted(changedBy, notes string, now time.Time) {
	t.Status = StatusAccepted
	completed := now
	t.CompletionDate = &completed
	t.AppendHistory(StatusAccepted, changedBy, notes, now)
}
