package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fedoffice/internal/player/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
	txcontext "fedoffice/pkg/platform/tx"
)

// Postgres persists players in the players table and their movement history
// in player_movements. A unique index on registration_number backs the
// duplicate-assignment race recovery.
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

func (s *Postgres) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (
			id, first_name, last_name, nrc, date_of_birth, nationality,
			club_id, registration_number, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(player.ID),
		player.FirstName,
		player.LastName,
		player.NRC,
		player.DateOfBirth,
		player.Nationality,
		uuid.UUID(player.ClubID),
		player.RegistrationNumber,
		player.CreatedAt,
		player.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	query := `
		SELECT id, first_name, last_name, nrc, date_of_birth, nationality,
		       club_id, COALESCE(registration_number, ''), created_at, updated_at
		FROM players
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(playerID))

	player, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	movements, err := s.loadMovements(ctx, playerID)
	if err != nil {
		return nil, err
	}
	player.Movements = movements
	return player, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Player, error) {
	query := `
		SELECT id, first_name, last_name, nrc, date_of_birth, nationality,
		       club_id, COALESCE(registration_number, ''), created_at, updated_at
		FROM players
		ORDER BY last_name, first_name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []*models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return out, nil
}

// AssignRegistrationNumber sets the number iff the player has none; the
// unique index turns concurrent duplicate issuance into ErrConflict.
func (s *Postgres) AssignRegistrationNumber(ctx context.Context, playerID id.PlayerID, number string) error {
	query := `
		UPDATE players
		SET registration_number = $2, updated_at = NOW()
		WHERE id = $1 AND registration_number IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(playerID), number)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("assign registration number: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign registration number rows affected: %w", err)
	}
	if affected == 0 {
		// Either the player is missing or a number is already assigned;
		// let the caller reload and distinguish.
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) SetClub(ctx context.Context, playerID id.PlayerID, clubID id.ClubID) error {
	query := `
		UPDATE players SET club_id = $2, updated_at = NOW() WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(playerID), uuid.UUID(clubID))
	if err != nil {
		return fmt.Errorf("set player club: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set player club rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AppendMovement(ctx context.Context, playerID id.PlayerID, movement models.Movement) error {
	query := `
		INSERT INTO player_movements (player_id, from_club_id, to_club_id, transfer_id, note, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var transferID any
	if !movement.TransferID.IsNil() {
		transferID = uuid.UUID(movement.TransferID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(playerID),
		uuid.UUID(movement.FromClubID),
		uuid.UUID(movement.ToClubID),
		transferID,
		movement.Note,
		movement.Date,
	)
	if err != nil {
		return fmt.Errorf("insert player movement: %w", err)
	}
	return nil
}

func (s *Postgres) loadMovements(ctx context.Context, playerID id.PlayerID) ([]models.Movement, error) {
	query := `
		SELECT from_club_id, to_club_id, transfer_id, note, moved_at
		FROM player_movements
		WHERE player_id = $1
		ORDER BY moved_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(playerID))
	if err != nil {
		return nil, fmt.Errorf("query player movements: %w", err)
	}
	defer rows.Close()

	var out []models.Movement
	for rows.Next() {
		var (
			movement   models.Movement
			fromClub   uuid.UUID
			toClub     uuid.UUID
			transferID *uuid.UUID
		)
		if err := rows.Scan(&fromClub, &toClub, &transferID, &movement.Note, &movement.Date); err != nil {
			return nil, fmt.Errorf("scan player movement: %w", err)
		}
		movement.FromClubID = id.ClubID(fromClub)
		movement.ToClubID = id.ClubID(toClub)
		if transferID != nil {
			movement.TransferID = id.TransferID(*transferID)
		}
		out = append(out, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player movements: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(scanner rowScanner) (*models.Player, error) {
	var (
		player models.Player
		rawID  uuid.UUID
		clubID uuid.UUID
	)
	err := scanner.Scan(
		&rawID,
		&player.FirstName,
		&player.LastName,
		&player.NRC,
		&player.DateOfBirth,
		&player.Nationality,
		&clubID,
		&player.RegistrationNumber,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	player.ID = id.PlayerID(rawID)
	player.ClubID = id.ClubID(clubID)
	return &player, nil
}
