package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	clubmodels "fedoffice/internal/club/models"
	"fedoffice/internal/player/models"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/sentinel"
	"fedoffice/pkg/requestcontext"
)

// Store is the persistence surface the player service needs.
type Store interface {
	Create(ctx context.Context, player *models.Player) error
	FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error)
	List(ctx context.Context) ([]*models.Player, error)
	AssignRegistrationNumber(ctx context.Context, playerID id.PlayerID, number string) error
	SetClub(ctx context.Context, playerID id.PlayerID, clubID id.ClubID) error
	AppendMovement(ctx context.Context, playerID id.PlayerID, movement models.Movement) error
}

// ClubDirectory resolves clubs for ownership checks and league codes.
type ClubDirectory interface {
	FindByID(ctx context.Context, clubID id.ClubID) (*clubmodels.Club, error)
}

// NumberIssuer mints the next registration number for a league code.
type NumberIssuer interface {
	NextNumber(ctx context.Context, key string) (number string, seq int64, err error)
}

// TxRunner executes fn atomically when the backing store supports
// transactions. The default runner is a passthrough for in-memory stores.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service manages the player registry and registration-number issuance.
type Service struct {
	players Store
	clubs   ClubDirectory
	numbers NumberIssuer
	tx      TxRunner
	logger  *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(players Store, clubs ClubDirectory, numbers NumberIssuer, opts ...Option) *Service {
	s := &Service{players: players, clubs: clubs, numbers: numbers, tx: passthroughTx{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePlayerRequest carries the fields submitted for a new player.
type CreatePlayerRequest struct {
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	NRC         string    `json:"nrc"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Nationality string    `json:"nationality"`
	ClubID      string    `json:"clubId"`
}

func (s *Service) Create(ctx context.Context, req CreatePlayerRequest) (*models.Player, error) {
	clubID, err := id.ParseClubID(req.ClubID)
	if err != nil {
		return nil, err
	}
	if _, err := s.clubs.FindByID(ctx, clubID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "club not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load club")
	}

	player, err := models.NewPlayer(
		id.NewPlayerID(),
		req.FirstName, req.LastName, req.NRC, req.Nationality,
		req.DateOfBirth, clubID,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.players.Create(ctx, player); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create player")
	}
	return player, nil
}

func (s *Service) Get(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	player, err := s.players.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "player not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load player")
	}
	return player, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Player, error) {
	players, err := s.players.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list players")
	}
	return players, nil
}

// registerAttempts bounds the issue-then-write loop under heavy contention.
const registerAttempts = 3

// Register issues a registration number for the player, keyed by the club's
// league code. Safe to call concurrently: a duplicate-number write means
// another approver already completed this exact assignment, so we reload
// and return the authoritative state instead of erroring.
func (s *Service) Register(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	player, err := s.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.IsRegistered() {
		return player, nil
	}

	club, err := s.clubs.FindByID(ctx, player.ClubID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "player's club not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load club")
	}

	for attempt := 0; attempt < registerAttempts; attempt++ {
		number, _, err := s.numbers.NextNumber(ctx, club.LeagueCode())
		if err != nil {
			return nil, err
		}

		err = s.players.AssignRegistrationNumber(ctx, playerID, number)
		if err == nil {
			s.logger.InfoContext(ctx, "registration number issued",
				"player_id", playerID.String(),
				"registration_number", number,
				"request_id", requestcontext.RequestID(ctx),
			)
			return s.Get(ctx, playerID)
		}
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrInvalidState) {
			// Someone else finished the assignment, or took this number.
			// The reload tells us which.
			player, reloadErr := s.Get(ctx, playerID)
			if reloadErr != nil {
				return nil, reloadErr
			}
			if player.IsRegistered() {
				return player, nil
			}
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign registration number")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "could not issue a registration number, try again")
}

// RecordTransfer moves the player to the buying club and appends a movement
// entry. Invoked when a transfer reaches Accepted.
func (s *Service) RecordTransfer(ctx context.Context, playerID id.PlayerID, fromClub, toClub id.ClubID, transferID id.TransferID, note string) error {
	movement := models.Movement{
		FromClubID: fromClub,
		ToClubID:   toClub,
		TransferID: transferID,
		Note:       note,
		Date:       requestcontext.Now(ctx),
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.players.SetClub(ctx, playerID, toClub); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "player not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to move player")
		}
		if err := s.players.AppendMovement(ctx, playerID, movement); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append movement history")
		}
		return nil
	})
}

// AppendMovementNote appends an audit entry without changing the club of
// record. Used by webhook reconciliation.
func (s *Service) AppendMovementNote(ctx context.Context, playerID id.PlayerID, fromClub, toClub id.ClubID, transferID id.TransferID, note string) error {
	movement := models.Movement{
		FromClubID: fromClub,
		ToClubID:   toClub,
		TransferID: transferID,
		Note:       note,
		Date:       requestcontext.Now(ctx),
	}
	if err := s.players.AppendMovement(ctx, playerID, movement); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "player not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append movement history")
	}
	return nil
}
