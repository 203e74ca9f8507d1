package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fedoffice/internal/transfer/models"
	transferstore "fedoffice/internal/transfer/store"
	"fedoffice/internal/webhook/service"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

type movementNote struct {
	playerID   id.PlayerID
	transferID id.TransferID
	note       string
}

type fakePlayerDirectory struct {
	notes []movementNote
	err   error
}

func (f *fakePlayerDirectory) AppendMovementNote(_ context.Context, playerID id.PlayerID, _, _ id.ClubID, transferID id.TransferID, note string) error {
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, movementNote{playerID: playerID, transferID: transferID, note: note})
	return nil
}

type WebhookServiceSuite struct {
	suite.Suite

	transfers *transferstore.InMemory
	players   *fakePlayerDirectory
	svc       *service.Service
	transfer  *models.Transfer
}

func TestWebhookServiceSuite(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	s.transfers = transferstore.NewInMemory()
	var err error
	s.transfer, err = models.New(id.NewTransferID(), id.NewClubID(), id.NewClubID(), id.NewPlayerID(), models.TransferTypePermanent, decimal.NewFromInt(40000), "", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.transfers.Create(ctx, s.transfer))
	_, err = s.transfers.Execute(ctx, s.transfer.ID,
		func(*models.Transfer) error { return nil },
		func(tr *models.Transfer) { tr.MarkAccepted("admin", "", now) },
	)
	s.Require().NoError(err)

	s.players = &fakePlayerDirectory{}
	s.svc = service.New(s.transfers, s.players)
}

func (s *WebhookServiceSuite) TestConfirmationByTransferID() {
	raw := json.RawMessage(`{"transferId":"` + s.transfer.ID.String() + `","externalId":"TMS-5","status":"completed"}`)
	updated, err := s.svc.Reconcile(context.Background(), service.Notification{
		TransferID: s.transfer.ID.String(),
		ExternalID: "TMS-5",
		Status:     "completed",
		Raw:        raw,
	})
	s.Require().NoError(err)

	s.Equal(models.ExportWebhookConfirmed, updated.FifaExport.Status)
	s.Equal("TMS-5", updated.FifaExport.ExternalID)
	s.Require().NotNil(updated.FifaExport.ExportedAt)
	s.JSONEq(string(raw), string(updated.FifaExport.Confirmation))

	s.Require().Len(s.players.notes, 1)
	s.Equal(s.transfer.PlayerID, s.players.notes[0].playerID)
	s.Equal(s.transfer.ID, s.players.notes[0].transferID)
}

func (s *WebhookServiceSuite) TestConfirmationByExternalIDWinsOverWorkerFailure() {
	ctx := context.Background()
	attemptedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := s.transfers.UpdateExport(ctx, s.transfer.ID, func(export *models.FifaExport) error {
		export.Status = models.ExportFailed
		export.ExternalID = "TMS-6"
		export.Attempts = 3
		export.LastError = "timeout"
		export.LastAttemptAt = &attemptedAt
		return nil
	})
	s.Require().NoError(err)

	updated, err := s.svc.Reconcile(ctx, service.Notification{ExternalID: "TMS-6", Status: "completed"})
	s.Require().NoError(err)

	s.Equal(models.ExportWebhookConfirmed, updated.FifaExport.Status)
	s.Equal("TMS-6", updated.FifaExport.ExternalID)
	s.Empty(updated.FifaExport.LastError, "the confirmation clears the stale failure")
	s.Equal(3, updated.FifaExport.Attempts, "attempt history is kept")
	s.Require().NotNil(updated.FifaExport.LastAttemptAt)
	s.True(updated.FifaExport.LastAttemptAt.After(attemptedAt))
}

func (s *WebhookServiceSuite) TestExistingExportTimestampIsKept() {
	ctx := context.Background()
	exportedAt := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	_, err := s.transfers.UpdateExport(ctx, s.transfer.ID, func(export *models.FifaExport) error {
		export.Status = models.ExportExported
		export.ExternalID = "TMS-7"
		export.ExportedAt = &exportedAt
		return nil
	})
	s.Require().NoError(err)

	updated, err := s.svc.Reconcile(ctx, service.Notification{ExternalID: "TMS-7"})
	s.Require().NoError(err)
	s.Equal(models.ExportWebhookConfirmed, updated.FifaExport.Status)
	s.Equal(exportedAt, updated.FifaExport.ExportedAt.UTC())
}

func (s *WebhookServiceSuite) TestUnknownTransferIsNotFound() {
	_, err := s.svc.Reconcile(context.Background(), service.Notification{ExternalID: "TMS-missing"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// Nothing mutated.
	reloaded, err := s.transfers.FindByID(context.Background(), s.transfer.ID)
	s.Require().NoError(err)
	s.Equal(models.ExportPending, reloaded.FifaExport.Status)
}

func (s *WebhookServiceSuite) TestRegistryFailureDoesNotFailReconciliation() {
	s.players.err = dErrors.New(dErrors.CodeNotFound, "player not found")

	updated, err := s.svc.Reconcile(context.Background(), service.Notification{TransferID: s.transfer.ID.String(), ExternalID: "TMS-8"})
	s.Require().NoError(err)
	s.Equal(models.ExportWebhookConfirmed, updated.FifaExport.Status)
}
