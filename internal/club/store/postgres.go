package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fedoffice/internal/club/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
	txcontext "fedoffice/pkg/platform/tx"
)

// Postgres persists clubs in the clubs table. A unique index on
// lower(name) backs the name-availability check.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Postgres) CreateIfNameAvailable(ctx context.Context, club *models.Club) error {
	query := `
		INSERT INTO clubs (id, name, abbreviation, league, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(club.ID),
		club.Name,
		club.Abbreviation,
		club.League,
		string(club.Status),
		club.CreatedAt,
		club.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert club: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, clubID id.ClubID) (*models.Club, error) {
	query := `
		SELECT id, name, abbreviation, league, status, created_at, updated_at
		FROM clubs
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(clubID))
	return scanClub(row)
}

func (s *Postgres) Update(ctx context.Context, club *models.Club) error {
	query := `
		UPDATE clubs
		SET name = $2, abbreviation = $3, league = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(club.ID),
		club.Name,
		club.Abbreviation,
		club.League,
		string(club.Status),
		club.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update club: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update club rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Club, error) {
	query := `
		SELECT id, name, abbreviation, league, status, created_at, updated_at
		FROM clubs
		ORDER BY name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query clubs: %w", err)
	}
	defer rows.Close()

	var out []*models.Club
	for rows.Next() {
		club, err := scanClubRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, club)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clubs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(scanner rowScanner) (*models.Club, error) {
	var (
		club   models.Club
		rawID  uuid.UUID
		status string
	)
	err := scanner.Scan(
		&rawID,
		&club.Name,
		&club.Abbreviation,
		&club.League,
		&status,
		&club.CreatedAt,
		&club.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	club.ID = id.ClubID(rawID)
	club.Status = models.ClubStatus(status)
	return &club, nil
}

func scanClub(row *sql.Row) (*models.Club, error) {
	club, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan club: %w", err)
	}
	return club, nil
}

func scanClubRow(rows *sql.Rows) (*models.Club, error) {
	club, err := scanInto(rows)
	if err != nil {
		return nil, fmt.Errorf("scan club: %w", err)
	}
	return club, nil
}
