package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	clubmodels "fedoffice/internal/club/models"
	"fedoffice/internal/platform/metrics"
	playermodels "fedoffice/internal/player/models"
	"fedoffice/internal/transfer/models"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/sentinel"
	"fedoffice/pkg/requestcontext"
)

// Store is the persistence surface for transfer aggregates. Execute is the
// atomic transition primitive: validate and mutate run under the same lock,
// so no transition can observe a stale status.
type Store interface {
	Create(ctx context.Context, transfer *models.Transfer) error
	FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	List(ctx context.Context) ([]*models.Transfer, error)
	ListForClub(ctx context.Context, clubID id.ClubID) ([]*models.Transfer, error)
	Execute(ctx context.Context, transferID id.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error)
	UpdateExport(ctx context.Context, transferID id.TransferID, mutate func(*models.FifaExport) error) (*models.Transfer, error)
}

// ClubDirectory resolves clubs when validating a new transfer request.
type ClubDirectory interface {
	FindByID(ctx context.Context, clubID id.ClubID) (*clubmodels.Club, error)
}

// PlayerDirectory checks registry ownership and records accepted moves.
type PlayerDirectory interface {
	Get(ctx context.Context, playerID id.PlayerID) (*playermodels.Player, error)
	RecordTransfer(ctx context.Context, playerID id.PlayerID, fromClub, toClub id.ClubID, transferID id.TransferID, note string) error
}

// Enqueuer submits accepted transfers to the export pipeline. Enabled
// reports whether a real queue is wired; a disabled pipeline makes Enqueue
// a no-op that reports not queued.
type Enqueuer interface {
	Enabled() bool
	Enqueue(ctx context.Context, transferID id.TransferID) (bool, error)
	ForceEnqueue(ctx context.Context, transferID id.TransferID) error
}

// Service drives the transfer negotiation state machine. Every transition
// is one Execute call; who may perform it is decided per operation against
// the acting club carried in the request context.
type Service struct {
	transfers Store
	clubs     ClubDirectory
	players   PlayerDirectory
	exports   Enqueuer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(transfers Store, clubs ClubDirectory, players PlayerDirectory, exports Enqueuer, opts ...Option) *Service {
	s := &Service{
		transfers: transfers,
		clubs:     clubs,
		players:   players,
		exports:   exports,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTransferRequest carries the fields submitted by the buying club.
// toClubId is only honored for admin callers; club callers always act as
// the buying side.
type CreateTransferRequest struct {
	FromClubID  string `json:"fromClubId"`
	ToClubID    string `json:"toClubId,omitempty"`
	PlayerID    string `json:"playerId"`
	Type        string `json:"type"`
	TransferFee string `json:"transferFee"`
	Reason      string `json:"reason,omitempty"`
	Comments    string `json:"comments,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateTransferRequest) (*models.Transfer, error) {
	fromClub, err := id.ParseClubID(req.FromClubID)
	if err != nil {
		return nil, err
	}

	toClub := requestcontext.ActorClubID(ctx)
	if requestcontext.IsAdmin(ctx) {
		if toClub, err = id.ParseClubID(req.ToClubID); err != nil {
			return nil, err
		}
	} else if req.ToClubID != "" {
		claimed, err := id.ParseClubID(req.ToClubID)
		if err != nil {
			return nil, err
		}
		if claimed != toClub {
			return nil, dErrors.New(dErrors.CodeForbidden, "cannot create a transfer on behalf of another club")
		}
	}

	playerID, err := id.ParsePlayerID(req.PlayerID)
	if err != nil {
		return nil, err
	}
	transferType, err := models.ParseTransferType(req.Type)
	if err != nil {
		return nil, err
	}

	fee := decimal.Zero
	if req.TransferFee != "" {
		if fee, err = decimal.NewFromString(req.TransferFee); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "transfer fee must be a decimal number")
		}
	}

	for _, clubID := range []id.ClubID{fromClub, toClub} {
		if _, err := s.clubs.FindByID(ctx, clubID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Newf(dErrors.CodeNotFound, "club %s not found", clubID)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load club")
		}
	}

	player, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.ClubID != fromClub {
		return nil, dErrors.New(dErrors.CodeValidation, "player is not registered with the selling club")
	}

	transfer, err := models.New(id.NewTransferID(), fromClub, toClub, playerID, transferType, fee, req.Reason, req.Comments, requestcontext.Now(ctx))
	if err != nil {
		return nil, toValidation(err)
	}

	if err := s.transfers.Create(ctx, transfer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "player already has an active transfer")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transfer")
	}

	if s.metrics != nil {
		s.metrics.TransfersCreated.Inc()
	}
	s.logger.InfoContext(ctx, "transfer created",
		slog.String("transfer_id", transfer.ID.String()),
		slog.String("player_id", playerID.String()),
		slog.String("from_club", fromClub.String()),
		slog.String("to_club", toClub.String()),
	)
	return transfer, nil
}

// CounterOfferRequest proposes an alternative fee during negotiation.
type CounterOfferRequest struct {
	Fee   string `json:"fee"`
	Terms string `json:"terms,omitempty"`
}

func (s *Service) CounterOffer(ctx context.Context, transferID id.TransferID, req CounterOfferRequest) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	fee, err := decimal.NewFromString(req.Fee)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "fee must be a decimal number")
	}
	if fee.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "fee cannot be negative")
	}
	now := requestcontext.Now(ctx)

	return s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if err := requireParty(tr, actor); err != nil {
				return err
			}
			return ensureActive(tr)
		},
		func(tr *models.Transfer) {
			tr.CounterOffers = append(tr.CounterOffers, models.CounterOffer{
				ID:              id.NewOfferID(),
				OfferedByClubID: actor,
				Fee:             fee,
				Terms:           req.Terms,
				Date:            now,
				Status:          models.OfferPending,
			})
			if tr.Status != models.StatusInNegotiation {
				tr.Status = models.StatusInNegotiation
				tr.AppendHistory(models.StatusInNegotiation, actor.String(), "counter offer made", now)
			} else {
				tr.UpdatedAt = now
			}
		},
	)
}

// Accept closes the deal at the currently proposed terms. Only the selling
// club may accept the original request.
func (s *Service) Accept(ctx context.Context, transferID id.TransferID, note string) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	now := requestcontext.Now(ctx)

	transfer, err := s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if err := requireParty(tr, actor); err != nil {
				return err
			}
			if actor != tr.FromClubID {
				return dErrors.New(dErrors.CodeForbidden, "only the selling club can accept the transfer request")
			}
			return ensureActive(tr)
		},
		func(tr *models.Transfer) {
			tr.MarkAccepted(actor.String(), note, now)
		},
	)
	if err != nil {
		return nil, err
	}
	s.recordMovement(ctx, transfer, "transfer accepted")
	return transfer, nil
}

// AcceptCounterOffer accepts a specific counter-offer. Only the latest
// offer is actionable, and only by the party that did not make it. The
// accepted fee replaces the transfer fee.
func (s *Service) AcceptCounterOffer(ctx context.Context, transferID id.TransferID, offerID id.OfferID) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	now := requestcontext.Now(ctx)

	transfer, err := s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if err := requireParty(tr, actor); err != nil {
				return err
			}
			if err := ensureActive(tr); err != nil {
				return err
			}
			offer := tr.FindCounterOffer(offerID)
			if offer == nil {
				return dErrors.New(dErrors.CodeNotFound, "counter offer not found")
			}
			latest := tr.LatestCounterOffer()
			if latest == nil || latest.ID != offerID {
				return dErrors.New(dErrors.CodeConflict, "only the latest counter offer can be accepted")
			}
			if offer.Status != models.OfferPending {
				return dErrors.Newf(dErrors.CodeConflict, "counter offer is already %s", offer.Status)
			}
			if offer.OfferedByClubID == actor {
				return dErrors.New(dErrors.CodeForbidden, "cannot accept your own counter offer")
			}
			return nil
		},
		func(tr *models.Transfer) {
			offer := tr.FindCounterOffer(offerID)
			offer.Status = models.OfferAccepted
			tr.TransferFee = offer.Fee
			tr.MarkAccepted(actor.String(), fmt.Sprintf("counter offer accepted at %s", offer.Fee), now)
		},
	)
	if err != nil {
		return nil, err
	}
	s.recordMovement(ctx, transfer, "counter offer accepted")
	return transfer, nil
}

// Reject declines the transfer. Either party may reject while the
// negotiation is still open.
func (s *Service) Reject(ctx context.Context, transferID id.TransferID, reason string) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	now := requestcontext.Now(ctx)

	return s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if err := requireParty(tr, actor); err != nil {
				return err
			}
			return ensureActive(tr)
		},
		func(tr *models.Transfer) {
			tr.Status = models.StatusRejected
			tr.AppendHistory(models.StatusRejected, actor.String(), reason, now)
		},
	)
}

// Cancel withdraws the request. Only the club that initiated the workflow
// may cancel it.
func (s *Service) Cancel(ctx context.Context, transferID id.TransferID, reason string) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	now := requestcontext.Now(ctx)

	return s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if actor != tr.InitiatedByClubID {
				return dErrors.New(dErrors.CodeForbidden, "only the initiating club can cancel the transfer")
			}
			return ensureActive(tr)
		},
		func(tr *models.Transfer) {
			tr.Status = models.StatusCancelled
			tr.AppendHistory(models.StatusCancelled, actor.String(), reason, now)
		},
	)
}

// AttachDocument stores a document reference on an open transfer.
func (s *Service) AttachDocument(ctx context.Context, transferID id.TransferID, kind models.DocumentKind, url string) (*models.Transfer, error) {
	actor := requestcontext.ActorClubID(ctx)
	now := requestcontext.Now(ctx)

	if url == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document url is required")
	}
	if kind != models.DocumentConsent && kind != models.DocumentContract {
		return nil, dErrors.New(dErrors.CodeValidation, "document kind must be consent or contract")
	}

	return s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if !requestcontext.IsAdmin(ctx) {
				if err := requireParty(tr, actor); err != nil {
					return err
				}
			}
			return ensureActive(tr)
		},
		func(tr *models.Transfer) {
			doc := &models.Document{URL: url, UploadedAt: now, UploadedByClubID: actor}
			switch kind {
			case models.DocumentConsent:
				tr.Documents.Consent = doc
			case models.DocumentContract:
				tr.Documents.Contract = doc
			}
			tr.UpdatedAt = now
		},
	)
}

// AdminApprove is the federation back-office acceptance. It enforces the
// document gate, then hands the transfer to the export pipeline. Enqueue
// problems never roll back the acceptance; the transfer stays exportable
// through the force re-export operation.
func (s *Service) AdminApprove(ctx context.Context, transferID id.TransferID, note string) (*models.Transfer, error) {
	if !requestcontext.IsAdmin(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	now := requestcontext.Now(ctx)

	transfer, err := s.execute(ctx, transferID,
		func(tr *models.Transfer) error {
			if err := ensureActive(tr); err != nil {
				return err
			}
			if missing := tr.Documents.Missing(); len(missing) > 0 {
				return dErrors.Newf(dErrors.CodeValidation, "Missing required documents: %s", strings.Join(missing, ", "))
			}
			return nil
		},
		func(tr *models.Transfer) {
			tr.MarkAccepted("admin", note, now)
		},
	)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TransfersApproved.Inc()
	}
	s.recordMovement(ctx, transfer, "transfer approved by federation")
	s.submitForExport(ctx, transfer)
	return transfer, nil
}

// ForceExport re-submits an accepted transfer to the pipeline, bypassing
// queue deduplication. Used by operators after exhausted retries. A transfer
// whose export is already settled is returned as-is without enqueueing.
func (s *Service) ForceExport(ctx context.Context, transferID id.TransferID) (*models.Transfer, error) {
	if !requestcontext.IsAdmin(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	if !s.exports.Enabled() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "export pipeline is disabled")
	}

	transfer, err := s.get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.StatusAccepted {
		return nil, dErrors.Newf(dErrors.CodeConflict, "transfer is %s, only accepted transfers can be exported", transfer.Status)
	}
	if transfer.FifaExport.Status.Settled() {
		// Export already landed, nothing to re-send.
		s.logger.InfoContext(ctx, "export already settled, skipping re-enqueue",
			slog.String("transfer_id", transferID.String()),
			slog.String("export_status", string(transfer.FifaExport.Status)),
		)
		return transfer, nil
	}

	transfer, err = s.transfers.UpdateExport(ctx, transferID, func(export *models.FifaExport) error {
		export.Status = models.ExportPending
		export.LastError = ""
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset export state")
	}
	if err := s.exports.ForceEnqueue(ctx, transferID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to enqueue export")
	}
	s.logger.InfoContext(ctx, "export re-enqueued", slog.String("transfer_id", transferID.String()))
	return transfer, nil
}

// Get returns one transfer; clubs see only transfers they are a party to.
func (s *Service) Get(ctx context.Context, transferID id.TransferID) (*models.Transfer, error) {
	transfer, err := s.get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !requestcontext.IsAdmin(ctx) && !transfer.IsParty(requestcontext.ActorClubID(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this transfer")
	}
	return transfer, nil
}

// List returns all transfers for admins and the caller's transfers for clubs.
func (s *Service) List(ctx context.Context) ([]*models.Transfer, error) {
	var (
		transfers []*models.Transfer
		err       error
	)
	if requestcontext.IsAdmin(ctx) {
		transfers, err = s.transfers.List(ctx)
	} else {
		transfers, err = s.transfers.ListForClub(ctx, requestcontext.ActorClubID(ctx))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return transfers, nil
}

func (s *Service) get(ctx context.Context, transferID id.TransferID) (*models.Transfer, error) {
	transfer, err := s.transfers.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}
	return transfer, nil
}

func (s *Service) execute(ctx context.Context, transferID id.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	transfer, err := s.transfers.Execute(ctx, transferID, validate, mutate)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer not found")
		case dErrors.CodeOf(err) != dErrors.CodeInternal:
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transfer")
		}
	}
	return transfer, nil
}

// recordMovement updates the player registry after acceptance. The
// transition is already committed, so a registry failure is logged rather
// than surfaced to the caller.
func (s *Service) recordMovement(ctx context.Context, transfer *models.Transfer, note string) {
	err := s.players.RecordTransfer(ctx, transfer.PlayerID, transfer.FromClubID, transfer.ToClubID, transfer.ID, note)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record player movement",
			slog.String("transfer_id", transfer.ID.String()),
			slog.String("player_id", transfer.PlayerID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// submitForExport hands an accepted transfer to the queue. With no queue
// wired the export is flagged disabled so operators can see it was skipped.
func (s *Service) submitForExport(ctx context.Context, transfer *models.Transfer) {
	if transfer.FifaExport.Status.Settled() {
		s.logger.InfoContext(ctx, "export already settled, not enqueueing",
			slog.String("transfer_id", transfer.ID.String()),
			slog.String("export_status", string(transfer.FifaExport.Status)),
		)
		return
	}
	if !s.exports.Enabled() {
		_, err := s.transfers.UpdateExport(ctx, transfer.ID, func(export *models.FifaExport) error {
			export.Status = models.ExportDisabled
			export.LastError = "export pipeline disabled"
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to flag export disabled",
				slog.String("transfer_id", transfer.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	queued, err := s.exports.Enqueue(ctx, transfer.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue export",
			slog.String("transfer_id", transfer.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "transfer submitted for export",
		slog.String("transfer_id", transfer.ID.String()),
		slog.Bool("queued", queued),
	)
}

func requireParty(tr *models.Transfer, actor id.ClubID) error {
	if !tr.IsParty(actor) {
		return dErrors.New(dErrors.CodeForbidden, "not a party to this transfer")
	}
	return nil
}

func ensureActive(tr *models.Transfer) error {
	if tr.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeConflict, "transfer is already %s", tr.Status)
	}
	return nil
}

func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid transfer request")
	}
	return err
}
