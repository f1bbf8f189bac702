package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestTransaction_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		tx       Transaction
		expected bool
	}{
		{
			name:     "complete transaction",
			tx:       Transaction{Direction: DirectionReceived, Amount: decPtr("10"), TransactionCode: strPtr("QAB1CD2EF3")},
			expected: true,
		},
		{
			name:     "missing code",
			tx:       Transaction{Direction: DirectionReceived, Amount: decPtr("10")},
			expected: false,
		},
		{
			name:     "empty code",
			tx:       Transaction{Direction: DirectionReceived, Amount: decPtr("10"), TransactionCode: strPtr("")},
			expected: false,
		},
		{
			name:     "missing amount",
			tx:       Transaction{Direction: DirectionSent, TransactionCode: strPtr("QAB1CD2EF3")},
			expected: false,
		},
		{
			name:     "missing direction",
			tx:       Transaction{Amount: decPtr("10"), TransactionCode: strPtr("QAB1CD2EF3")},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.tx.IsValid())
		})
	}
}

func TestTransaction_FormattedAmount(t *testing.T) {
	tests := []struct {
		amount   *decimal.Decimal
		expected string
	}{
		{nil, "Unknown"},
		{decPtr("5000"), "Ksh 5,000.00"},
		{decPtr("15000.5"), "Ksh 15,000.50"},
		{decPtr("999.99"), "Ksh 999.99"},
		{decPtr("1234567.8"), "Ksh 1,234,567.80"},
		{decPtr("0"), "Ksh 0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Transaction{Amount: tt.amount}.FormattedAmount())
		})
	}
}

func TestTransaction_TxDateAndTime(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)
	at := time.Date(2024, 1, 15, 14, 30, 0, 0, loc)

	tx := Transaction{OccurredAtLocal: &at}
	assert.Equal(t, "2024-01-15", tx.TxDate())
	assert.Equal(t, "14:30:00", tx.TxTime())

	assert.Empty(t, Transaction{}.TxDate())
	assert.Empty(t, Transaction{}.TxTime())
}

func TestMessage_Transition(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("received to processed", func(t *testing.T) {
		msg := &Message{ID: "m1", Status: StatusReceived}
		require.NoError(t, msg.Transition(StatusProcessed, NoteParsed, now))

		assert.Equal(t, StatusProcessed, msg.Status)
		assert.Equal(t, NoteParsed, msg.ProcessingNotes)
		require.NotNil(t, msg.ProcessedAt)
		assert.Equal(t, now, *msg.ProcessedAt)
	})

	t.Run("received to failed", func(t *testing.T) {
		msg := &Message{ID: "m2", Status: StatusReceived}
		require.NoError(t, msg.Transition(StatusFailed, NoteParseFailed, now))
		assert.Equal(t, StatusFailed, msg.Status)
	})

	t.Run("terminal status is final", func(t *testing.T) {
		msg := &Message{ID: "m3", Status: StatusProcessed}
		err := msg.Transition(StatusFailed, "late", now)
		require.Error(t, err)
		assert.Equal(t, StatusProcessed, msg.Status)
	})

	t.Run("cannot target received", func(t *testing.T) {
		msg := &Message{ID: "m4", Status: StatusReceived}
		assert.Error(t, msg.Transition(StatusReceived, "", now))
	})
}
