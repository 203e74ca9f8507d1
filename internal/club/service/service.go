package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fedoffice/internal/club/models"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/sentinel"
	"fedoffice/pkg/requestcontext"
)

// Store is the persistence surface the club service needs.
type Store interface {
	CreateIfNameAvailable(ctx context.Context, club *models.Club) error
	FindByID(ctx context.Context, clubID id.ClubID) (*models.Club, error)
	Update(ctx context.Context, club *models.Club) error
	List(ctx context.Context) ([]*models.Club, error)
}

// Service manages the club registry.
type Service struct {
	clubs  Store
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(clubs Store, opts ...Option) *Service {
	s := &Service{clubs: clubs, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateClubRequest carries the fields a registrar submits for a new club.
type CreateClubRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	League       string `json:"league"`
}

func (s *Service) Create(ctx context.Context, req CreateClubRequest) (*models.Club, error) {
	club, err := models.NewClub(id.NewClubID(), req.Name, req.Abbreviation, req.League, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.clubs.CreateIfNameAvailable(ctx, club); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "club name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create club")
	}

	s.logger.InfoContext(ctx, "club registered",
		"club_id", club.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return club, nil
}

func (s *Service) Get(ctx context.Context, clubID id.ClubID) (*models.Club, error) {
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "club not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load club")
	}
	return club, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Club, error) {
	clubs, err := s.clubs.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list clubs")
	}
	return clubs, nil
}

// UpdateClubRequest carries the mutable club fields; nil means unchanged.
type UpdateClubRequest struct {
	Name         *string `json:"name"`
	Abbreviation *string `json:"abbreviation"`
	League       *string `json:"league"`
	Status       *string `json:"status"`
}

func (s *Service) Update(ctx context.Context, clubID id.ClubID, req UpdateClubRequest) (*models.Club, error) {
	club, err := s.Get(ctx, clubID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "club name cannot be empty")
		}
		club.Name = name
	}
	if req.Abbreviation != nil {
		club.Abbreviation = strings.TrimSpace(*req.Abbreviation)
	}
	if req.League != nil {
		club.League = strings.TrimSpace(*req.League)
	}
	if req.Status != nil {
		switch models.ClubStatus(*req.Status) {
		case models.ClubStatusActive, models.ClubStatusSuspended:
			club.Status = models.ClubStatus(*req.Status)
		default:
			return nil, dErrors.New(dErrors.CodeValidation, "unknown club status")
		}
	}
	club.UpdatedAt = requestcontext.Now(ctx)

	if err := s.clubs.Update(ctx, club); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "club name must be unique")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "club not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update club")
	}
	return club, nil
}
