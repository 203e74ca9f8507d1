// Package registration issues federation registration numbers from durable,
// per-league monotonic counters.
package registration

import (
	"context"
	"fmt"
	"strings"

	dErrors "fedoffice/pkg/domain-errors"
)

// Store is a durable keyed sequence. Next atomically increments the sequence
// for key and returns the new value; the increment is a single atomic
// read-modify-write at the storage layer, never read-then-write in
// application code.
type Store interface {
	Next(ctx context.Context, key string) (int64, error)
}

// Service formats registration numbers on top of a counter store.
type Service struct {
	counters   Store
	federation string
}

// New builds a Service. federation is the number prefix, e.g. "FAZ".
func New(counters Store, federation string) *Service {
	if federation == "" {
		federation = "FAZ"
	}
	return &Service{counters: counters, federation: strings.ToUpper(federation)}
}

// NormalizeKey canonicalizes a counter key: trimmed and uppercased.
// Successive callers racing on differently-cased spellings of the same
// league code must land on one counter.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// NextNumber increments the counter for key and returns the formatted
// registration number plus the raw sequence value.
func (s *Service) NextNumber(ctx context.Context, key string) (string, int64, error) {
	key = NormalizeKey(key)
	if key == "" {
		return "", 0, dErrors.New(dErrors.CodeValidation, "counter key is required")
	}
	seq, err := s.counters.Next(ctx, key)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance registration counter")
	}
	return fmt.Sprintf("%s-%s-%06d", s.federation, key, seq), seq, nil
}
