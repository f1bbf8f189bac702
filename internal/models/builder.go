package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionBuilder provides a fluent API for turning an extractor draft
// into a persistable Transaction. The first error short-circuits the chain.
type TransactionBuilder struct {
	tx  Transaction
	err error
}

// NewTransactionBuilder creates a builder for the transaction owned by
// messageID.
func NewTransactionBuilder(messageID string) *TransactionBuilder {
	b := &TransactionBuilder{
		tx: Transaction{
			ID:          uuid.NewString(),
			MessageID:   messageID,
			Provider:    ProviderMPESA,
			ParseErrors: []string{},
		},
	}
	if messageID == "" {
		b.err = errors.New("message id cannot be empty")
	}
	return b
}

// FromDraft copies the extracted fields. A draft without a direction is
// rejected.
func (b *TransactionBuilder) FromDraft(d Draft) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	if d.Direction == nil {
		b.err = errors.New("draft has no direction")
		return b
	}
	if d.Provider != "" {
		b.tx.Provider = d.Provider
	}
	b.tx.Direction = *d.Direction
	if d.Amount != nil {
		amount := RoundAmount(*d.Amount)
		b.tx.Amount = &amount
	}
	b.tx.CounterpartyName = d.CounterpartyName
	b.tx.CounterpartyPhone = d.CounterpartyPhone
	b.tx.TransactionCode = d.TransactionCode
	b.tx.RawDate = d.RawDate
	b.tx.RawTime = d.RawTime
	b.tx.OccurredAtLocal = d.OccurredAtLocal
	b.tx.Confidence = d.Confidence
	if len(d.ParseErrors) > 0 {
		b.tx.ParseErrors = append([]string(nil), d.ParseErrors...)
	}
	return b
}

// WithCreatedAt sets the creation instant.
func (b *TransactionBuilder) WithCreatedAt(at time.Time) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	b.tx.CreatedAt = at
	return b
}

// Build returns the transaction or the first error recorded by the chain.
func (b *TransactionBuilder) Build() (Transaction, error) {
	if b.err != nil {
		return Transaction{}, b.err
	}
	if b.tx.Confidence < 0 || b.tx.Confidence > 1 {
		return Transaction{}, fmt.Errorf("confidence %.2f out of range", b.tx.Confidence)
	}
	if b.tx.CreatedAt.IsZero() {
		b.tx.CreatedAt = time.Now().UTC()
	}
	return b.tx, nil
}
