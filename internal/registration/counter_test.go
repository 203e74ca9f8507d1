package registration

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedoffice/internal/registration/store"
	dErrors "fedoffice/pkg/domain-errors"
)

func TestNextNumberFormat(t *testing.T) {
	svc := New(store.NewInMemory(), "faz")
	ctx := context.Background()

	number, seq, err := svc.NextNumber(ctx, "zpl")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, "FAZ-ZPL-000001", number)

	number, seq, err = svc.NextNumber(ctx, " ZPL ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	assert.Equal(t, "FAZ-ZPL-000002", number)
}

func TestNextNumberKeysAreIndependent(t *testing.T) {
	svc := New(store.NewInMemory(), "FAZ")
	ctx := context.Background()

	_, _, err := svc.NextNumber(ctx, "ZPL")
	require.NoError(t, err)

	number, seq, err := svc.NextNumber(ctx, "DIV1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, "FAZ-DIV1-000001", number)
}

func TestNextNumberRejectsEmptyKey(t *testing.T) {
	svc := New(store.NewInMemory(), "FAZ")

	_, _, err := svc.NextNumber(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

// TestConcurrentNextIsGapless drives N concurrent callers at one key and
// verifies the issued sequence values are distinct and gapless, with the
// final stored value equal to N.
func TestConcurrentNextIsGapless(t *testing.T) {
	counters := store.NewInMemory()
	svc := New(counters, "FAZ")
	ctx := context.Background()

	const callers = 100
	seqs := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, seqs[i], errs[i] = svc.NextNumber(ctx, "ZPL")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq, "sequence must be gapless with no repeats")
	}
	assert.Equal(t, int64(callers), counters.Current("ZPL"))
}
