package store

import (
	"context"
	"time"

	"fjacquet/sms-ledger/internal/models"
)

// MockStore wraps a Store and injects errors for testing failure paths.
// A nil error flag passes the call through to the wrapped store.
type MockStore struct {
	Store

	// Error flags for testing error conditions
	FindMessageError       error
	CreateMessageError     error
	MarkProcessedError     error
	MarkFailedError        error
	CreateTransactionError error
	LatestMessageTimeError error
	CreateWebhookLogError  error

	// FailMessageIDs makes CreateMessage fail for the listed IDs only.
	FailMessageIDs map[string]error
}

// NewMockStore wraps an in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{Store: NewMemoryStore()}
}

func (m *MockStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	if m.FindMessageError != nil {
		return nil, m.FindMessageError
	}
	return m.Store.FindMessage(ctx, id)
}

func (m *MockStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if m.CreateMessageError != nil {
		return m.CreateMessageError
	}
	if err, ok := m.FailMessageIDs[msg.ID]; ok {
		return err
	}
	return m.Store.CreateMessage(ctx, msg)
}

func (m *MockStore) MarkProcessed(ctx context.Context, id, notes string, at time.Time) error {
	if m.MarkProcessedError != nil {
		return m.MarkProcessedError
	}
	return m.Store.MarkProcessed(ctx, id, notes, at)
}

func (m *MockStore) MarkFailed(ctx context.Context, id, notes string, at time.Time) error {
	if m.MarkFailedError != nil {
		return m.MarkFailedError
	}
	return m.Store.MarkFailed(ctx, id, notes, at)
}

func (m *MockStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if m.CreateTransactionError != nil {
		return m.CreateTransactionError
	}
	return m.Store.CreateTransaction(ctx, tx)
}

func (m *MockStore) LatestMessageTime(ctx context.Context) (time.Time, bool, error) {
	if m.LatestMessageTimeError != nil {
		return time.Time{}, false, m.LatestMessageTimeError
	}
	return m.Store.LatestMessageTime(ctx)
}

func (m *MockStore) CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	if m.CreateWebhookLogError != nil {
		return m.CreateWebhookLogError
	}
	return m.Store.CreateWebhookLog(ctx, entry)
}
