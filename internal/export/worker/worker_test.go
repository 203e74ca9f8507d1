package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	clubmodels "fedoffice/internal/club/models"
	clubstore "fedoffice/internal/club/store"
	"fedoffice/internal/export/queue"
	playermodels "fedoffice/internal/player/models"
	playerstore "fedoffice/internal/player/store"
	"fedoffice/internal/transfer/models"
	transferstore "fedoffice/internal/transfer/store"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

// fakeExporter fails the first `failures` calls, then succeeds.
type fakeExporter struct {
	mu         sync.Mutex
	calls      int
	failures   int
	externalID string
}

func (f *fakeExporter) SubmitTransfer(_ context.Context, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", dErrors.New(dErrors.CodeUnavailable, "export endpoint timed out")
	}
	return f.externalID, nil
}

func (f *fakeExporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type WorkerSuite struct {
	suite.Suite

	queue     *queue.Memory
	transfers *transferstore.InMemory
	exporter  *fakeExporter
	worker    *Worker

	transfer *models.Transfer
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	clubs := clubstore.NewInMemory()
	fromClub, err := clubmodels.NewClub(id.NewClubID(), "Green Eagles", "GRE", "Super League", now)
	s.Require().NoError(err)
	s.Require().NoError(clubs.CreateIfNameAvailable(ctx, fromClub))
	toClub, err := clubmodels.NewClub(id.NewClubID(), "Red Arrows", "RED", "Super League", now)
	s.Require().NoError(err)
	s.Require().NoError(clubs.CreateIfNameAvailable(ctx, toClub))

	players := playerstore.NewInMemory()
	player, err := playermodels.NewPlayer(id.NewPlayerID(), "Patson", "Daka", "654321/10/1", "Zambian", time.Date(1998, 10, 9, 0, 0, 0, 0, time.UTC), fromClub.ID, now)
	s.Require().NoError(err)
	s.Require().NoError(players.Create(ctx, player))

	s.transfers = transferstore.NewInMemory()
	s.transfer, err = models.New(id.NewTransferID(), fromClub.ID, toClub.ID, player.ID, models.TransferTypePermanent, decimal.NewFromInt(90000), "striker", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.transfers.Create(ctx, s.transfer))
	_, err = s.transfers.Execute(ctx, s.transfer.ID,
		func(*models.Transfer) error { return nil },
		func(tr *models.Transfer) { tr.MarkAccepted("admin", "approved", now) },
	)
	s.Require().NoError(err)

	s.queue = queue.NewMemory()
	s.exporter = &fakeExporter{externalID: "TMS-100"}
	s.worker = New(
		Config{Concurrency: 2, MaxAttempts: 5, RetryBase: time.Millisecond, CallTimeout: time.Second},
		s.queue, s.transfers, players, clubs, s.exporter,
	)
}

func (s *WorkerSuite) exportState() models.FifaExport {
	transfer, err := s.transfers.FindByID(context.Background(), s.transfer.ID)
	s.Require().NoError(err)
	return transfer.FifaExport
}

func (s *WorkerSuite) TestSuccessfulExport() {
	ctx := context.Background()
	queued, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)
	s.Require().True(queued)

	job, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.worker.process(ctx, job)

	export := s.exportState()
	s.Equal(models.ExportExported, export.Status)
	s.Equal("TMS-100", export.ExternalID)
	s.Equal(1, export.Attempts)
	s.Empty(export.LastError)
	s.Require().NotNil(export.ExportedAt)
	s.NotEmpty(export.Payload, "the sent payload is persisted on the transfer")

	// The terminal outcome releases the dedup key.
	queued, err = s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)
	s.True(queued)
}

func (s *WorkerSuite) TestRetriesUntilSuccess() {
	ctx := context.Background()
	s.exporter.failures = 2
	_, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)

	// Drive the queue manually through two failures and the final success.
	for i := 0; i < 3; i++ {
		var job *queue.Job
		s.Require().Eventually(func() bool {
			next, err := s.queue.Dequeue(ctx)
			if err != nil || next == nil {
				return false
			}
			job = next
			return true
		}, time.Second, time.Millisecond)
		s.worker.process(ctx, job)
	}

	export := s.exportState()
	s.Equal(models.ExportExported, export.Status)
	s.Equal(3, export.Attempts)
	s.Equal(3, s.exporter.callCount())
}

func (s *WorkerSuite) TestAttemptBudgetExhausted() {
	ctx := context.Background()
	s.exporter.failures = 100
	s.worker.cfg.MaxAttempts = 2
	_, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)

	for i := 0; i < 2; i++ {
		var job *queue.Job
		s.Require().Eventually(func() bool {
			next, err := s.queue.Dequeue(ctx)
			if err != nil || next == nil {
				return false
			}
			job = next
			return true
		}, time.Second, time.Millisecond)
		s.worker.process(ctx, job)
	}

	export := s.exportState()
	s.Equal(models.ExportFailed, export.Status)
	s.Equal(2, export.Attempts)
	s.Contains(export.LastError, "timed out")

	// No further job was scheduled and the dedup key is free again.
	job, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Nil(job)
	queued, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)
	s.True(queued)
}

func (s *WorkerSuite) TestWebhookConfirmationShortCircuitsWorker() {
	ctx := context.Background()
	_, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)

	// The webhook lands before the worker picks the job up.
	_, err = s.transfers.UpdateExport(ctx, s.transfer.ID, func(export *models.FifaExport) error {
		export.Status = models.ExportWebhookConfirmed
		export.ExternalID = "TMS-EXT"
		return nil
	})
	s.Require().NoError(err)

	job, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.worker.process(ctx, job)

	s.Equal(0, s.exporter.callCount(), "no outbound call for a settled export")
	export := s.exportState()
	s.Equal(models.ExportWebhookConfirmed, export.Status)
	s.Equal("TMS-EXT", export.ExternalID)
}

func (s *WorkerSuite) TestNonAcceptedTransferIsDropped() {
	ctx := context.Background()
	_, err := s.transfers.Execute(ctx, s.transfer.ID,
		func(*models.Transfer) error { return nil },
		func(tr *models.Transfer) { tr.Status = models.StatusCancelled },
	)
	s.Require().NoError(err)

	_, err = s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)
	job, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.worker.process(ctx, job)

	s.Equal(0, s.exporter.callCount())
	s.Equal(models.ExportPending, s.exportState().Status)
}

func (s *WorkerSuite) TestStartStopDrainsQueue() {
	ctx := context.Background()
	_, err := s.queue.Enqueue(ctx, s.transfer.ID)
	s.Require().NoError(err)

	s.worker.Start(ctx)
	s.Require().Eventually(func() bool {
		return s.exportState().Status == models.ExportExported
	}, 2*time.Second, 10*time.Millisecond)
	s.worker.Stop()
}

func TestDoubleEnqueueYieldsSingleExport(t *testing.T) {
	// Enqueue twice, drain fully: the external system must see one call.
	s := new(WorkerSuite)
	s.SetT(t)
	s.SetupTest()
	ctx := context.Background()

	queued, err := s.queue.Enqueue(ctx, s.transfer.ID)
	require.NoError(t, err)
	require.True(t, queued)
	queued, err = s.queue.Enqueue(ctx, s.transfer.ID)
	require.NoError(t, err)
	require.False(t, queued)

	for {
		job, err := s.queue.Dequeue(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		s.worker.process(ctx, job)
	}

	assert.Equal(t, 1, s.exporter.callCount())
	assert.Equal(t, models.ExportExported, s.exportState().Status)
}
