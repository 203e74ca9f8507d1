package store

import (
	"context"
	"sort"
	"sync"

	"fedoffice/internal/player/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded player store. Registration-number uniqueness
// is enforced the same way the Postgres unique index does it, so services
// exercise the identical conflict-recovery path in tests.
type InMemory struct {
	mu      sync.RWMutex
	players map[id.PlayerID]*models.Player
	numbers map[string]id.PlayerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		players: make(map[id.PlayerID]*models.Player),
		numbers: make(map[string]id.PlayerID),
	}
}

func clonePlayer(p *models.Player) *models.Player {
	cloned := *p
	cloned.Movements = append([]models.Movement(nil), p.Movements...)
	return &cloned
}

func (s *InMemory) Create(ctx context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; ok {
		return sentinel.ErrConflict
	}
	s.players[player.ID] = clonePlayer(player)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[playerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePlayer(player), nil
}

func (s *InMemory) List(ctx context.Context) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Player, 0, len(s.players))
	for _, player := range s.players {
		out = append(out, clonePlayer(player))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

// AssignRegistrationNumber writes the number unless the player already has
// one or another player holds it.
func (s *InMemory) AssignRegistrationNumber(ctx context.Context, playerID id.PlayerID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if holder, taken := s.numbers[number]; taken && holder != playerID {
		return sentinel.ErrConflict
	}
	if player.RegistrationNumber != "" && player.RegistrationNumber != number {
		return sentinel.ErrInvalidState
	}
	player.RegistrationNumber = number
	s.numbers[number] = playerID
	return nil
}

// SetClub moves the player's club of record.
func (s *InMemory) SetClub(ctx context.Context, playerID id.PlayerID, clubID id.ClubID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	player.ClubID = clubID
	return nil
}

// AppendMovement adds one entry to the player's movement history.
func (s *InMemory) AppendMovement(ctx context.Context, playerID id.PlayerID, movement models.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	player.Movements = append(player.Movements, movement)
	return nil
}
