package store

import (
	"context"
	"sync"

	"fedoffice/internal/transfer/models"
	id "fedoffice/pkg/domain"
	"fedoffice/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded transfer store. The mutex makes Execute and
// UpdateExport atomic check-then-mutate sections, mirroring what the
// postgres store does with row locks.
type InMemory struct {
	mu        sync.RWMutex
	transfers map[id.TransferID]*models.Transfer
}

func NewInMemory() *InMemory {
	return &InMemory{transfers: make(map[id.TransferID]*models.Transfer)}
}

// Create inserts the transfer, refusing a duplicate id and refusing a second
// non-terminal transfer for the same player.
func (s *InMemory) Create(_ context.Context, transfer *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transfers[transfer.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.transfers {
		if existing.PlayerID == transfer.PlayerID && !existing.Status.IsTerminal() {
			return sentinel.ErrConflict
		}
	}
	s.transfers[transfer.ID] = transfer.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, transferID id.TransferID) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.transfers[transferID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return transfer.Clone(), nil
}

// FindByExternalID resolves a transfer by the identifier assigned by the
// external regulatory system.
func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if externalID == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, transfer := range s.transfers {
		if transfer.FifaExport.ExternalID == externalID {
			return transfer.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Transfer, 0, len(s.transfers))
	for _, transfer := range s.transfers {
		out = append(out, transfer.Clone())
	}
	return out, nil
}

func (s *InMemory) ListForClub(_ context.Context, clubID id.ClubID) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Transfer
	for _, transfer := range s.transfers {
		if transfer.IsParty(clubID) {
			out = append(out, transfer.Clone())
		}
	}
	return out, nil
}

// Execute atomically applies validate then mutate to the stored transfer.
// The mutation runs on a copy and is committed only when both callbacks
// succeed, so a failed validation leaves the record untouched.
func (s *InMemory) Execute(_ context.Context, transferID id.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transfers[transferID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.transfers[transferID] = working
	return working.Clone(), nil
}

// UpdateExport atomically mutates the export sub-document. A non-nil error
// from mutate aborts the update and is returned to the caller.
func (s *InMemory) UpdateExport(_ context.Context, transferID id.TransferID, mutate func(*models.FifaExport) error) (*models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transfers[transferID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	if err := mutate(&working.FifaExport); err != nil {
		return nil, err
	}
	s.transfers[transferID] = working
	return working.Clone(), nil
}
