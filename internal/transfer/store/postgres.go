package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fedoffice/internal/transfer/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
)

// Postgres persists transfers in a single row per aggregate. The negotiation
// log, documents and export progress live in jsonb columns so that Execute
// and UpdateExport can rewrite the whole sub-document under one row lock.
// A partial unique index on (player_id) WHERE status IN ('pending',
// 'in_negotiation') enforces at most one active transfer per player.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const transferColumns = `
	id, from_club_id, to_club_id, player_id, initiated_by_club_id,
	type, status, transfer_fee, reason, comments,
	counter_offers, status_history, documents, fifa_export,
	completion_date, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, transfer *models.Transfer) error {
	offers, history, documents, export, err := marshalSubdocs(transfer)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(transfer.ID),
		uuid.UUID(transfer.FromClubID),
		uuid.UUID(transfer.ToClubID),
		uuid.UUID(transfer.PlayerID),
		uuid.UUID(transfer.InitiatedByClubID),
		string(transfer.Type),
		string(transfer.Status),
		transfer.TransferFee,
		transfer.Reason,
		transfer.Comments,
		offers,
		history,
		documents,
		export,
		transfer.CompletionDate,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, query, uuid.UUID(transferID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.Transfer, error) {
	if externalID == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE fifa_export->>'externalId' = $1`
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY created_at DESC`
	return s.queryTransfers(ctx, query)
}

func (s *Postgres) ListForClub(ctx context.Context, clubID id.ClubID) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_club_id = $1 OR to_club_id = $1
		ORDER BY created_at DESC
	`
	return s.queryTransfers(ctx, query, uuid.UUID(clubID))
}

func (s *Postgres) queryTransfers(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []*models.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT FOR UPDATE, runs validate then mutate in
// memory, and writes the result back in the same transaction. Concurrent
// transitions on the same transfer serialize on the row lock, so validate
// always sees the committed state.
func (s *Postgres) Execute(ctx context.Context, transferID id.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback()

	transfer, err := s.lockRow(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}
	if err := validate(transfer); err != nil {
		return nil, err
	}
	mutate(transfer)

	if err := s.writeAggregate(ctx, tx, transfer); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer tx: %w", err)
	}
	return transfer, nil
}

// UpdateExport is the export-pipeline counterpart of Execute: it locks the
// row and rewrites only the fifa_export sub-document. A non-nil error from
// mutate rolls back and propagates.
func (s *Postgres) UpdateExport(ctx context.Context, transferID id.TransferID, mutate func(*models.FifaExport) error) (*models.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin export tx: %w", err)
	}
	defer tx.Rollback()

	transfer, err := s.lockRow(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}
	if err := mutate(&transfer.FifaExport); err != nil {
		return nil, err
	}

	export, err := json.Marshal(transfer.FifaExport)
	if err != nil {
		return nil, fmt.Errorf("marshal fifa export: %w", err)
	}
	transfer.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE transfers SET fifa_export = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(transfer.ID), export, transfer.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update fifa export: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit export tx: %w", err)
	}
	return transfer, nil
}

func (s *Postgres) lockRow(ctx context.Context, tx *sql.Tx, transferID id.TransferID) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE`
	transfer, err := scanTransfer(tx.QueryRowContext(ctx, query, uuid.UUID(transferID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Postgres) writeAggregate(ctx context.Context, tx *sql.Tx, transfer *models.Transfer) error {
	offers, history, documents, export, err := marshalSubdocs(transfer)
	if err != nil {
		return err
	}
	query := `
		UPDATE transfers
		SET status = $2, transfer_fee = $3, comments = $4,
		    counter_offers = $5, status_history = $6, documents = $7,
		    fifa_export = $8, completion_date = $9, updated_at = $10
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.UUID(transfer.ID),
		string(transfer.Status),
		transfer.TransferFee,
		transfer.Comments,
		offers,
		history,
		documents,
		export,
		transfer.CompletionDate,
		transfer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update transfer: %w", err)
	}
	return nil
}

func marshalSubdocs(transfer *models.Transfer) (offers, history, documents, export []byte, err error) {
	if offers, err = json.Marshal(offerList(transfer.CounterOffers)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal counter offers: %w", err)
	}
	if history, err = json.Marshal(historyList(transfer.StatusHistory)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal status history: %w", err)
	}
	if documents, err = json.Marshal(transfer.Documents); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal documents: %w", err)
	}
	if export, err = json.Marshal(transfer.FifaExport); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal fifa export: %w", err)
	}
	return offers, history, documents, export, nil
}

// offerList and historyList keep jsonb columns as [] rather than null for
// empty slices.
func offerList(offers []models.CounterOffer) []models.CounterOffer {
	if offers == nil {
		return []models.CounterOffer{}
	}
	return offers
}

func historyList(history []models.StatusChange) []models.StatusChange {
	if history == nil {
		return []models.StatusChange{}
	}
	return history
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(scanner rowScanner) (*models.Transfer, error) {
	var (
		transfer              models.Transfer
		rawID                 uuid.UUID
		rawFrom, rawTo        uuid.UUID
		rawPlayer, rawInit    uuid.UUID
		transferType, status  string
		offers, history       []byte
		documents, fifaExport []byte
	)
	err := scanner.Scan(
		&rawID,
		&rawFrom,
		&rawTo,
		&rawPlayer,
		&rawInit,
		&transferType,
		&status,
		&transfer.TransferFee,
		&transfer.Reason,
		&transfer.Comments,
		&offers,
		&history,
		&documents,
		&fifaExport,
		&transfer.CompletionDate,
		&transfer.CreatedAt,
		&transfer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	transfer.ID = id.TransferID(rawID)
	transfer.FromClubID = id.ClubID(rawFrom)
	transfer.ToClubID = id.ClubID(rawTo)
	transfer.PlayerID = id.PlayerID(rawPlayer)
	transfer.InitiatedByClubID = id.ClubID(rawInit)
	transfer.Type = models.TransferType(transferType)
	transfer.Status = models.TransferStatus(status)

	if err := json.Unmarshal(offers, &transfer.CounterOffers); err != nil {
		return nil, fmt.Errorf("unmarshal counter offers: %w", err)
	}
	if err := json.Unmarshal(history, &transfer.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history: %w", err)
	}
	if err := json.Unmarshal(documents, &transfer.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(fifaExport, &transfer.FifaExport); err != nil {
		return nil, fmt.Errorf("unmarshal fifa export: %w", err)
	}
	return &transfer, nil
}
