// Package worker drains the export queue and drives each transfer through
// the regulatory submission protocol: persist intent, call out, persist
// outcome. Persisting attempts and last errors before and after the call
// means a crash at any point is visible in the transfer record.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	clubmodels "fedoffice/internal/club/models"
	"fedoffice/internal/export/queue"
	"fedoffice/internal/export/tms"
	"fedoffice/internal/platform/metrics"
	playermodels "fedoffice/internal/player/models"
	"fedoffice/internal/transfer/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
)

// errSettled aborts an exporting-mark when the webhook confirmed the
// transfer between dequeue and the update.
var errSettled = errors.New("export already settled")

// idlePause bounds the polling loop when the queue has nothing ready.
const idlePause = 100 * time.Millisecond

// Queue is the consuming side of the export queue.
type Queue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, delay time.Duration) error
	Release(ctx context.Context, transferID string) error
}

// TransferStore provides the per-transfer export state.
type TransferStore interface {
	FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	UpdateExport(ctx context.Context, transferID id.TransferID, mutate func(*models.FifaExport) error) (*models.Transfer, error)
}

// Exporter submits the payload to the external system.
type Exporter interface {
	SubmitTransfer(ctx context.Context, payload []byte) (string, error)
}

// PlayerDirectory and ClubDirectory resolve the payload participants.
type PlayerDirectory interface {
	FindByID(ctx context.Context, playerID id.PlayerID) (*playermodels.Player, error)
}

type ClubDirectory interface {
	FindByID(ctx context.Context, clubID id.ClubID) (*clubmodels.Club, error)
}

// Config bounds the pool and the retry schedule.
type Config struct {
	Concurrency int
	MaxAttempts int
	RetryBase   time.Duration
	CallTimeout time.Duration
}

// Worker is the export worker pool.
type Worker struct {
	cfg       Config
	queue     Queue
	transfers TransferStore
	players   PlayerDirectory
	clubs     ClubDirectory
	exporter  Exporter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(w *Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func New(cfg Config, q Queue, transfers TransferStore, players PlayerDirectory, clubs ClubDirectory, exporter Exporter, opts ...Option) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	w := &Worker{
		cfg:       cfg,
		queue:     q,
		transfers: transfers,
		players:   players,
		clubs:     clubs,
		exporter:  exporter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the pool. It returns immediately; Stop blocks until all
// loops have drained.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(w.done)
	}()
}

// Stop cancels the pool and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.ErrorContext(ctx, "export dequeue failed", slog.String("error", err.Error()))
			w.pause(ctx)
			continue
		}
		if job == nil {
			w.pause(ctx)
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(idlePause):
	}
}

// process runs one export attempt end to end. A job is dropped, with its
// dedup released, when the transfer vanished, is not accepted, or is
// already settled; jobs retry with exponential backoff until the attempt
// budget runs out.
func (w *Worker) process(ctx context.Context, job *queue.Job) {
	log := w.logger.With(slog.String("transfer_id", job.TransferID), slog.Int("attempt", job.Attempt))

	transferID, err := id.ParseTransferID(job.TransferID)
	if err != nil {
		log.ErrorContext(ctx, "dropping malformed export job", slog.String("error", err.Error()))
		return
	}

	transfer, err := w.transfers.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			log.WarnContext(ctx, "dropping export for unknown transfer")
			w.release(ctx, job)
			return
		}
		log.ErrorContext(ctx, "failed to load transfer, will retry", slog.String("error", err.Error()))
		w.retryOrDrop(ctx, job, err)
		return
	}

	if transfer.Status != models.StatusAccepted {
		log.WarnContext(ctx, "dropping export for non-accepted transfer", slog.String("status", string(transfer.Status)))
		w.release(ctx, job)
		return
	}
	if transfer.FifaExport.Status.Settled() {
		log.InfoContext(ctx, "export already settled, skipping", slog.String("export_status", string(transfer.FifaExport.Status)))
		w.release(ctx, job)
		return
	}

	payload, err := w.buildPayload(ctx, transfer)
	if err != nil {
		log.ErrorContext(ctx, "failed to build export payload", slog.String("error", err.Error()))
		w.retryOrDrop(ctx, job, err)
		return
	}

	// Persist intent before calling out. The settled re-check runs under
	// the store lock so a webhook landing after our read still wins.
	now := time.Now().UTC()
	_, err = w.transfers.UpdateExport(ctx, transferID, func(export *models.FifaExport) error {
		if export.Status.Settled() {
			return errSettled
		}
		export.Status = models.ExportExporting
		export.Attempts = job.Attempt
		export.LastAttemptAt = &now
		export.Payload = payload
		return nil
	})
	if errors.Is(err, errSettled) {
		log.InfoContext(ctx, "export settled concurrently, skipping")
		w.release(ctx, job)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to mark export in flight", slog.String("error", err.Error()))
		w.retryOrDrop(ctx, job, err)
		return
	}

	if w.metrics != nil {
		w.metrics.ExportAttempts.Inc()
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	externalID, err := w.exporter.SubmitTransfer(callCtx, payload)
	cancel()
	if err != nil {
		w.recordFailure(ctx, job, transferID, err)
		return
	}

	exportedAt := time.Now().UTC()
	_, err = w.transfers.UpdateExport(ctx, transferID, func(export *models.FifaExport) error {
		if export.Status == models.ExportWebhookConfirmed {
			// Keep the webhook's record; just make sure the id is set.
			if export.ExternalID == "" {
				export.ExternalID = externalID
			}
			return nil
		}
		export.Status = models.ExportExported
		export.ExternalID = externalID
		export.ExportedAt = &exportedAt
		export.LastError = ""
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "export succeeded but outcome not persisted", slog.String("external_id", externalID), slog.String("error", err.Error()))
	}
	if w.metrics != nil {
		w.metrics.ExportsCompleted.Inc()
	}
	log.InfoContext(ctx, "transfer exported", slog.String("external_id", externalID))
	w.release(ctx, job)
}

func (w *Worker) buildPayload(ctx context.Context, transfer *models.Transfer) ([]byte, error) {
	player, err := w.players.FindByID(ctx, transfer.PlayerID)
	if err != nil {
		return nil, err
	}
	fromClub, err := w.clubs.FindByID(ctx, transfer.FromClubID)
	if err != nil {
		return nil, err
	}
	toClub, err := w.clubs.FindByID(ctx, transfer.ToClubID)
	if err != nil {
		return nil, err
	}
	return tms.BuildPayload(transfer, player, fromClub, toClub)
}

func (w *Worker) recordFailure(ctx context.Context, job *queue.Job, transferID id.TransferID, cause error) {
	if w.metrics != nil {
		w.metrics.ExportFailures.Inc()
	}
	_, err := w.transfers.UpdateExport(ctx, transferID, func(export *models.FifaExport) error {
		if export.Status.Settled() {
			return errSettled
		}
		export.Status = models.ExportFailed
		export.LastError = cause.Error()
		return nil
	})
	if errors.Is(err, errSettled) {
		w.release(ctx, job)
		return
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to record export failure", slog.String("transfer_id", job.TransferID), slog.String("error", err.Error()))
	}
	w.retryOrDrop(ctx, job, cause)
}

func (w *Worker) retryOrDrop(ctx context.Context, job *queue.Job, cause error) {
	if job.Attempt >= w.cfg.MaxAttempts {
		w.logger.ErrorContext(ctx, "export attempts exhausted",
			slog.String("transfer_id", job.TransferID),
			slog.Int("attempts", job.Attempt),
			slog.String("error", cause.Error()),
		)
		w.release(ctx, job)
		return
	}
	shift := job.Attempt - 1
	if shift < 0 {
		shift = 0
	}
	delay := w.cfg.RetryBase << shift
	if err := w.queue.Retry(ctx, job, delay); err != nil {
		w.logger.ErrorContext(ctx, "failed to schedule export retry",
			slog.String("transfer_id", job.TransferID),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) release(ctx context.Context, job *queue.Job) {
	if err := w.queue.Release(ctx, job.TransferID); err != nil {
		w.logger.WarnContext(ctx, "failed to release export dedup",
			slog.String("transfer_id", job.TransferID),
			slog.String("error", err.Error()),
		)
	}
}
