// Package service reconciles confirmation webhooks from the regulatory
// system with the local export record. The webhook is the authoritative
// source: its confirmation wins over whatever state the worker left behind.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"fedoffice/internal/platform/metrics"
	"fedoffice/internal/transfer/models"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/sentinel"
)

// TransferStore resolves and updates the transfer the webhook refers to.
type TransferStore interface {
	FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Transfer, error)
	UpdateExport(ctx context.Context, transferID id.TransferID, mutate func(*models.FifaExport) error) (*models.Transfer, error)
}

// PlayerDirectory appends the confirmation to the player's movement log.
type PlayerDirectory interface {
	AppendMovementNote(ctx context.Context, playerID id.PlayerID, fromClub, toClub id.ClubID, transferID id.TransferID, note string) error
}

// Notification is the parsed webhook body. Either identifier may be used
// to locate the transfer; externalId is tried first.
type Notification struct {
	ExternalID string          `json:"externalId"`
	TransferID string          `json:"transferId"`
	Status     string          `json:"status"`
	Raw        json.RawMessage `json:"-"`
}

// Service applies webhook confirmations.
type Service struct {
	transfers TransferStore
	players   PlayerDirectory
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

func New(transfers TransferStore, players PlayerDirectory, opts ...Option) *Service {
	s := &Service{transfers: transfers, players: players, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile merges the confirmation into the export record. The merge is
// deliberately one-way: the status becomes webhook_confirmed regardless of
// what the worker recorded, while identifiers and timestamps already set by
// a completed export are kept.
func (s *Service) Reconcile(ctx context.Context, notification Notification) (*models.Transfer, error) {
	transfer, err := s.locate(ctx, notification)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated, err := s.transfers.UpdateExport(ctx, transfer.ID, func(export *models.FifaExport) error {
		export.Status = models.ExportWebhookConfirmed
		if export.ExternalID == "" {
			export.ExternalID = notification.ExternalID
		}
		if export.ExportedAt == nil {
			exportedAt := now
			export.ExportedAt = &exportedAt
		}
		export.LastAttemptAt = &now
		export.LastError = ""
		if len(notification.Raw) > 0 {
			export.Confirmation = notification.Raw
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply webhook confirmation")
	}

	if s.metrics != nil {
		s.metrics.WebhooksReceived.Inc()
	}
	s.logger.InfoContext(ctx, "webhook confirmation applied",
		slog.String("transfer_id", updated.ID.String()),
		slog.String("external_id", updated.FifaExport.ExternalID),
		slog.String("remote_status", notification.Status),
	)

	// Audit entry on the player record; the confirmation itself is already
	// committed, so a registry failure is logged only.
	err = s.players.AppendMovementNote(ctx, updated.PlayerID, updated.FromClubID, updated.ToClubID, updated.ID, "transfer confirmed by regulatory system")
	if err != nil {
		s.logger.WarnContext(ctx, "failed to append confirmation to player history",
			slog.String("transfer_id", updated.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return updated, nil
}

func (s *Service) locate(ctx context.Context, notification Notification) (*models.Transfer, error) {
	if notification.ExternalID != "" {
		transfer, err := s.transfers.FindByExternalID(ctx, notification.ExternalID)
		if err == nil {
			return transfer, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up transfer by external id")
		}
	}

	if notification.TransferID != "" {
		transferID, err := id.ParseTransferID(notification.TransferID)
		if err != nil {
			return nil, err
		}
		transfer, err := s.transfers.FindByID(ctx, transferID)
		if err == nil {
			return transfer, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up transfer")
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no transfer matches the webhook notification")
}
