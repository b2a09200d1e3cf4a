package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `Transaction ID: TXN-2024-0001
Date: 2024-03-15 14:30:00
Sender:
  Name: Shell Corp
  Account: ACC-99812
  Address: 120 Harbour Drive, George Town, Cayman Islands
Receiver:
  Name: Offshore Holdings Ltd
  Account: ACC-55231
  Address: Road Town, British Virgin Islands
Amount: $2,000,000.00 (USD)
Additional Notes: urgent transfer via intermediary, documentation missing

Transaction ID: TXN-2024-0002
Date: 2024-03-16
Sender:
  Name: Plain Goods Inc
Receiver:
  Name: Honest Widgets LLC
Amount: $4,500 (EUR)
Additional Notes: quarterly invoice settlement
`

func TestParse_MultiBlockReport(t *testing.T) {
	txs := NewParser().Parse(sampleReport)
	require.Len(t, txs, 2)

	first := txs[0]
	assert.Equal(t, "TXN-2024-0001", first.ID)
	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Shell Corp", first.Sender.Name)
	assert.Equal(t, "ACC-99812", first.Sender.Account)
	require.NotNil(t, first.Sender.Address)
	assert.Contains(t, first.Sender.Address.String(), "Cayman Islands")
	assert.Equal(t, "Offshore Holdings Ltd", first.Receiver.Name)
	assert.Equal(t, 2000000.0, first.Amount.Value)
	assert.Equal(t, "USD", first.Amount.Currency)
	assert.Contains(t, first.Notes, "urgent transfer via intermediary")

	second := txs[1]
	assert.Equal(t, "TXN-2024-0002", second.ID)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), second.Date)
	assert.Equal(t, 4500.0, second.Amount.Value)
	assert.Equal(t, "EUR", second.Amount.Currency)
	assert.Nil(t, second.Sender.Address)
}

func TestParse_MissingIDGetsGenerated(t *testing.T) {
	txs := NewParser().Parse(`Sender:
  Name: Anonymous Trading Co
Receiver:
  Name: Somewhere Ltd
Amount: $100 (USD)`)
	require.Len(t, txs, 1)
	assert.NotEmpty(t, txs[0].ID)
	assert.Equal(t, "Anonymous Trading Co", txs[0].Sender.Name)
}

func TestParse_MalformedBlockSkipped(t *testing.T) {
	content := `Transaction ID: TXN-BAD
some unstructured noise with no parties

Transaction ID: TXN-GOOD
Sender:
  Name: Fine Corp
Receiver:
  Name: Also Fine Ltd
Amount: $10 (USD)`

	txs := NewParser().Parse(content)
	require.Len(t, txs, 1)
	assert.Equal(t, "TXN-GOOD", txs[0].ID)
}

func TestParse_EmptyContent(t *testing.T) {
	assert.Empty(t, NewParser().Parse(""))
	assert.Empty(t, NewParser().Parse("   \n\t "))
}
