package service_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	clubmodels "fedoffice/internal/club/models"
	clubstore "fedoffice/internal/club/store"
	playermodels "fedoffice/internal/player/models"
	playerservice "fedoffice/internal/player/service"
	playerstore "fedoffice/internal/player/store"
	"fedoffice/internal/registration"
	registrationstore "fedoffice/internal/registration/store"
	"fedoffice/internal/transfer/models"
	"fedoffice/internal/transfer/service"
	"fedoffice/internal/transfer/store"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/requestcontext"
)

// fakeEnqueuer records submissions instead of touching a real queue.
type fakeEnqueuer struct {
	mu       sync.Mutex
	enabled  bool
	err      error
	enqueued []id.TransferID
	forced   []id.TransferID
}

func (f *fakeEnqueuer) Enabled() bool { return f.enabled }

func (f *fakeEnqueuer) Enqueue(_ context.Context, transferID id.TransferID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.enqueued = append(f.enqueued, transferID)
	return true, nil
}

func (f *fakeEnqueuer) ForceEnqueue(_ context.Context, transferID id.TransferID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.forced = append(f.forced, transferID)
	return nil
}

type TransferServiceSuite struct {
	suite.Suite

	transfers *store.InMemory
	enqueuer  *fakeEnqueuer
	svc       *service.Service

	sellingClub *clubmodels.Club
	buyingClub  *clubmodels.Club
	player      *playermodels.Player
	players     *playerstore.InMemory

	now time.Time
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceSuite))
}

func (s *TransferServiceSuite) SetupTest() {
	ctx := context.Background()
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	clubs := clubstore.NewInMemory()
	var err error
	s.sellingClub, err = clubmodels.NewClub(id.NewClubID(), "Zanaco FC", "ZAN", "Super League", s.now)
	s.Require().NoError(err)
	s.Require().NoError(clubs.CreateIfNameAvailable(ctx, s.sellingClub))
	s.buyingClub, err = clubmodels.NewClub(id.NewClubID(), "Power Dynamos", "PWD", "Super League", s.now)
	s.Require().NoError(err)
	s.Require().NoError(clubs.CreateIfNameAvailable(ctx, s.buyingClub))

	s.players = playerstore.NewInMemory()
	s.player, err = playermodels.NewPlayer(id.NewPlayerID(), "Moses", "Banda", "123456/10/1", "Zambian", time.Date(2001, 6, 1, 0, 0, 0, 0, time.UTC), s.sellingClub.ID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.players.Create(ctx, s.player))

	counters := registration.New(registrationstore.NewInMemory(), "FAZ")
	playerSvc := playerservice.New(s.players, clubs, counters, playerservice.WithLogger(slog.Default()))

	s.transfers = store.NewInMemory()
	s.enqueuer = &fakeEnqueuer{enabled: true}
	s.svc = service.New(s.transfers, clubs, playerSvc, s.enqueuer)
}

func (s *TransferServiceSuite) asClub(clubID id.ClubID) context.Context {
	ctx := requestcontext.WithActorRole(context.Background(), requestcontext.RoleClub)
	ctx = requestcontext.WithActorClubID(ctx, clubID)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *TransferServiceSuite) asAdmin() context.Context {
	ctx := requestcontext.WithActorRole(context.Background(), requestcontext.RoleAdmin)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *TransferServiceSuite) createTransfer() *models.Transfer {
	transfer, err := s.svc.Create(s.asClub(s.buyingClub.ID), service.CreateTransferRequest{
		FromClubID:  s.sellingClub.ID.String(),
		PlayerID:    s.player.ID.String(),
		Type:        "permanent",
		TransferFee: "50000",
		Reason:      "starting striker",
	})
	s.Require().NoError(err)
	return transfer
}

func (s *TransferServiceSuite) attachDocuments(transferID id.TransferID) {
	_, err := s.svc.AttachDocument(s.asClub(s.sellingClub.ID), transferID, models.DocumentConsent, "https://files.example/consent.pdf")
	s.Require().NoError(err)
	_, err = s.svc.AttachDocument(s.asClub(s.buyingClub.ID), transferID, models.DocumentContract, "https://files.example/contract.pdf")
	s.Require().NoError(err)
}

func (s *TransferServiceSuite) TestCreate() {
	s.Run("buying club creates a pending transfer", func() {
		transfer := s.createTransfer()
		s.Equal(models.StatusPending, transfer.Status)
		s.Equal(s.buyingClub.ID, transfer.ToClubID)
		s.Equal(s.buyingClub.ID, transfer.InitiatedByClubID)
		s.True(transfer.TransferFee.Equal(decimal.NewFromInt(50000)))
	})

	s.Run("player must belong to the selling club", func() {
		_, err := s.svc.Create(s.asClub(s.sellingClub.ID), service.CreateTransferRequest{
			FromClubID: s.buyingClub.ID.String(),
			PlayerID:   s.player.ID.String(),
			Type:       "permanent",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("second active transfer for the player conflicts", func() {
		// The pending transfer from the first subtest is still active.
		_, err := s.svc.Create(s.asClub(s.buyingClub.ID), service.CreateTransferRequest{
			FromClubID:  s.sellingClub.ID.String(),
			PlayerID:    s.player.ID.String(),
			Type:        "loan",
			TransferFee: "0",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("club cannot create on behalf of another club", func() {
		_, err := s.svc.Create(s.asClub(s.sellingClub.ID), service.CreateTransferRequest{
			FromClubID: s.sellingClub.ID.String(),
			ToClubID:   s.buyingClub.ID.String(),
			PlayerID:   s.player.ID.String(),
			Type:       "permanent",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown transfer type is rejected", func() {
		_, err := s.svc.Create(s.asClub(s.buyingClub.ID), service.CreateTransferRequest{
			FromClubID: s.sellingClub.ID.String(),
			PlayerID:   s.player.ID.String(),
			Type:       "rental",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TransferServiceSuite) TestCounterOfferFlow() {
	transfer := s.createTransfer()

	s.Run("first counter offer moves to in negotiation", func() {
		updated, err := s.svc.CounterOffer(s.asClub(s.sellingClub.ID), transfer.ID, service.CounterOfferRequest{Fee: "75000", Terms: "sell-on clause"})
		s.Require().NoError(err)
		s.Equal(models.StatusInNegotiation, updated.Status)
		s.Require().Len(updated.CounterOffers, 1)
		s.Equal(s.sellingClub.ID, updated.CounterOffers[0].OfferedByClubID)
	})

	s.Run("outsider cannot counter", func() {
		_, err := s.svc.CounterOffer(s.asClub(id.NewClubID()), transfer.ID, service.CounterOfferRequest{Fee: "80000"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("accepting the latest offer closes at its fee", func() {
		updated, err := s.svc.CounterOffer(s.asClub(s.buyingClub.ID), transfer.ID, service.CounterOfferRequest{Fee: "60000"})
		s.Require().NoError(err)
		latest := updated.LatestCounterOffer()
		s.Require().NotNil(latest)

		accepted, err := s.svc.AcceptCounterOffer(s.asClub(s.sellingClub.ID), transfer.ID, latest.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, accepted.Status)
		s.True(accepted.TransferFee.Equal(decimal.NewFromInt(60000)))
		s.Equal(models.OfferAccepted, accepted.LatestCounterOffer().Status)
		s.Require().NotNil(accepted.CompletionDate)

		// Acceptance moves the player to the buying club.
		player, err := s.players.FindByID(context.Background(), s.player.ID)
		s.Require().NoError(err)
		s.Equal(s.buyingClub.ID, player.ClubID)
		s.Require().Len(player.Movements, 1)
		s.Equal(transfer.ID, player.Movements[0].TransferID)
	})
}

func (s *TransferServiceSuite) TestOnlyLatestCounterOfferIsActionable() {
	transfer := s.createTransfer()

	first, err := s.svc.CounterOffer(s.asClub(s.sellingClub.ID), transfer.ID, service.CounterOfferRequest{Fee: "75000"})
	s.Require().NoError(err)
	firstOffer := first.LatestCounterOffer()

	_, err = s.svc.CounterOffer(s.asClub(s.buyingClub.ID), transfer.ID, service.CounterOfferRequest{Fee: "60000"})
	s.Require().NoError(err)

	_, err = s.svc.AcceptCounterOffer(s.asClub(s.buyingClub.ID), transfer.ID, firstOffer.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TransferServiceSuite) TestCannotAcceptOwnCounterOffer() {
	transfer := s.createTransfer()

	updated, err := s.svc.CounterOffer(s.asClub(s.sellingClub.ID), transfer.ID, service.CounterOfferRequest{Fee: "75000"})
	s.Require().NoError(err)

	_, err = s.svc.AcceptCounterOffer(s.asClub(s.sellingClub.ID), transfer.ID, updated.LatestCounterOffer().ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *TransferServiceSuite) TestAcceptPermissions() {
	transfer := s.createTransfer()

	s.Run("buying club cannot accept its own request", func() {
		_, err := s.svc.Accept(s.asClub(s.buyingClub.ID), transfer.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("selling club accepts", func() {
		accepted, err := s.svc.Accept(s.asClub(s.sellingClub.ID), transfer.ID, "deal agreed")
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, accepted.Status)
	})

	s.Run("terminal state admits no further transitions", func() {
		_, err := s.svc.Reject(s.asClub(s.sellingClub.ID), transfer.ID, "changed mind")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *TransferServiceSuite) TestCancelOnlyByInitiator() {
	transfer := s.createTransfer()

	_, err := s.svc.Cancel(s.asClub(s.sellingClub.ID), transfer.ID, "pulled out")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	cancelled, err := s.svc.Cancel(s.asClub(s.buyingClub.ID), transfer.ID, "budget cut")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
	s.Equal("budget cut", cancelled.StatusHistory[len(cancelled.StatusHistory)-1].Notes)
}

func (s *TransferServiceSuite) TestAdminApproveDocumentGate() {
	transfer := s.createTransfer()

	_, err := s.svc.AdminApprove(s.asAdmin(), transfer.ID, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "Missing required documents: consent, contract")
	s.Empty(s.enqueuer.enqueued)

	// A failed gate leaves the transfer open.
	reloaded, err := s.transfers.FindByID(context.Background(), transfer.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, reloaded.Status)
}

func (s *TransferServiceSuite) TestAdminApproveEnqueuesExport() {
	transfer := s.createTransfer()
	s.attachDocuments(transfer.ID)

	approved, err := s.svc.AdminApprove(s.asAdmin(), transfer.ID, "paperwork verified")
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, approved.Status)
	s.Equal([]id.TransferID{transfer.ID}, s.enqueuer.enqueued)
}

func (s *TransferServiceSuite) TestAdminApproveSkipsEnqueueWhenExportSettled() {
	transfer := s.createTransfer()
	s.attachDocuments(transfer.ID)

	// The regulatory system can confirm out of band before the approval
	// lands; the approve path must not open a second export job.
	_, err := s.transfers.UpdateExport(context.Background(), transfer.ID, func(export *models.FifaExport) error {
		export.Status = models.ExportWebhookConfirmed
		export.ExternalID = "TMS-5"
		return nil
	})
	s.Require().NoError(err)

	approved, err := s.svc.AdminApprove(s.asAdmin(), transfer.ID, "")
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, approved.Status)
	s.Empty(s.enqueuer.enqueued)
	s.Equal(models.ExportWebhookConfirmed, approved.FifaExport.Status)
}

func (s *TransferServiceSuite) TestAdminApproveRequiresAdminRole() {
	transfer := s.createTransfer()

	_, err := s.svc.AdminApprove(s.asClub(s.buyingClub.ID), transfer.ID, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *TransferServiceSuite) TestAdminApproveWithDisabledPipelineFlagsExport() {
	s.enqueuer.enabled = false
	transfer := s.createTransfer()
	s.attachDocuments(transfer.ID)

	_, err := s.svc.AdminApprove(s.asAdmin(), transfer.ID, "")
	s.Require().NoError(err)
	s.Empty(s.enqueuer.enqueued)

	reloaded, err := s.transfers.FindByID(context.Background(), transfer.ID)
	s.Require().NoError(err)
	s.Equal(models.ExportDisabled, reloaded.FifaExport.Status)
}

func (s *TransferServiceSuite) TestForceExport() {
	transfer := s.createTransfer()
	s.attachDocuments(transfer.ID)

	s.Run("only accepted transfers can be forced", func() {
		_, err := s.svc.ForceExport(s.asAdmin(), transfer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	_, err := s.svc.AdminApprove(s.asAdmin(), transfer.ID, "")
	s.Require().NoError(err)

	s.Run("force bypasses deduplication", func() {
		_, err := s.svc.ForceExport(s.asAdmin(), transfer.ID)
		s.Require().NoError(err)
		s.Equal([]id.TransferID{transfer.ID}, s.enqueuer.forced)
	})

	s.Run("settled exports are a no-op", func() {
		_, err := s.transfers.UpdateExport(context.Background(), transfer.ID, func(export *models.FifaExport) error {
			export.Status = models.ExportExported
			export.ExternalID = "TMS-9"
			return nil
		})
		s.Require().NoError(err)

		got, err := s.svc.ForceExport(s.asAdmin(), transfer.ID)
		s.Require().NoError(err)
		s.Equal(models.ExportExported, got.FifaExport.Status)
		s.Equal("TMS-9", got.FifaExport.ExternalID)
		s.Len(s.enqueuer.forced, 1, "no second forced enqueue for a settled export")
	})
}

func (s *TransferServiceSuite) TestVisibility() {
	transfer := s.createTransfer()

	s.Run("outsider club cannot read the transfer", func() {
		_, err := s.svc.Get(s.asClub(id.NewClubID()), transfer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin sees everything", func() {
		got, err := s.svc.Get(s.asAdmin(), transfer.ID)
		s.Require().NoError(err)
		s.Equal(transfer.ID, got.ID)

		all, err := s.svc.List(s.asAdmin())
		s.Require().NoError(err)
		s.Len(all, 1)
	})

	s.Run("club list is scoped to its transfers", func() {
		mine, err := s.svc.List(s.asClub(s.sellingClub.ID))
		s.Require().NoError(err)
		s.Len(mine, 1)

		none, err := s.svc.List(s.asClub(id.NewClubID()))
		s.Require().NoError(err)
		s.Empty(none)
	})
}
