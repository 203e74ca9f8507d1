package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fedoffice/internal/club/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded club store for tests and single-node
// deployments without Postgres.
type InMemory struct {
	mu    sync.RWMutex
	clubs map[id.ClubID]*models.Club
}

func NewInMemory() *InMemory {
	return &InMemory{clubs: make(map[id.ClubID]*models.Club)}
}

// CreateIfNameAvailable inserts the club unless another club already holds
// the name (case-insensitive).
func (s *InMemory) CreateIfNameAvailable(ctx context.Context, club *models.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(club.Name)
	for _, existing := range s.clubs {
		if strings.ToLower(existing.Name) == needle {
			return sentinel.ErrConflict
		}
	}
	cloned := *club
	s.clubs[club.ID] = &cloned
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, clubID id.ClubID) (*models.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	club, ok := s.clubs[clubID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cloned := *club
	return &cloned, nil
}

func (s *InMemory) Update(ctx context.Context, club *models.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clubs[club.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cloned := *club
	s.clubs[club.ID] = &cloned
	return nil
}

func (s *InMemory) List(ctx context.Context) ([]*models.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Club, 0, len(s.clubs))
	for _, club := range s.clubs {
		cloned := *club
		out = append(out, &cloned)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
