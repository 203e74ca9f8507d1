package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
)

func TestNewTransferValidation(t *testing.T) {
	from := id.NewClubID()
	to := id.NewClubID()
	player := id.NewPlayerID()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	t.Run("valid transfer starts pending with one history entry", func(t *testing.T) {
		tr, err := New(id.NewTransferID(), from, to, player, TransferTypePermanent, decimal.NewFromInt(50000), "squad depth", "", now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, tr.Status)
		assert.Equal(t, to, tr.InitiatedByClubID)
		assert.Equal(t, ExportPending, tr.FifaExport.Status)
		require.Len(t, tr.StatusHistory, 1)
		assert.Equal(t, StatusPending, tr.StatusHistory[0].Status)
	})

	t.Run("rejects same club on both sides", func(t *testing.T) {
		_, err := New(id.NewTransferID(), from, from, player, TransferTypeLoan, decimal.Zero, "", "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects negative fee", func(t *testing.T) {
		_, err := New(id.NewTransferID(), from, to, player, TransferTypePermanent, decimal.NewFromInt(-1), "", "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("zero fee is a valid free transfer", func(t *testing.T) {
		_, err := New(id.NewTransferID(), from, to, player, TransferTypePermanent, decimal.Zero, "", "", now)
		require.NoError(t, err)
	})
}

func TestParseTransferType(t *testing.T) {
	for _, raw := range []string{"permanent", "loan", "swap"} {
		got, err := ParseTransferType(raw)
		require.NoError(t, err)
		assert.Equal(t, TransferType(raw), got)
	}
	_, err := ParseTransferType("rental")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDocumentsMissing(t *testing.T) {
	var docs Documents
	assert.Equal(t, []string{"consent", "contract"}, docs.Missing())

	docs.Consent = &Document{URL: "https://files.example/consent.pdf"}
	assert.Equal(t, []string{"contract"}, docs.Missing())

	docs.Contract = &Document{URL: "https://files.example/contract.pdf"}
	assert.Empty(t, docs.Missing())
}

func TestExportStatusSettled(t *testing.T) {
	assert.True(t, ExportExported.Settled())
	assert.True(t, ExportWebhookConfirmed.Settled())
	assert.False(t, ExportPending.Settled())
	assert.False(t, ExportExporting.Settled())
	assert.False(t, ExportFailed.Settled())
}

func TestLatestCounterOffer(t *testing.T) {
	tr := &Transfer{}
	assert.Nil(t, tr.LatestCounterOffer())

	first := CounterOffer{ID: id.NewOfferID(), Fee: decimal.NewFromInt(100)}
	second := CounterOffer{ID: id.NewOfferID(), Fee: decimal.NewFromInt(200)}
	tr.CounterOffers = append(tr.CounterOffers, first, second)

	latest := tr.LatestCounterOffer()
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	assert.Equal(t, first.ID, tr.FindCounterOffer(first.ID).ID)
	assert.Nil(t, tr.FindCounterOffer(id.NewOfferID()))
}
