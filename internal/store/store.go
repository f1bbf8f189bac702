// Package store persists messages, the transactions derived from them and
// the webhook audit log.
package store

import (
	"context"
	"errors"
	"time"

	"fjacquet/sms-ledger/internal/models"
)

var (
	ErrDuplicateMessage     = errors.New("message already exists")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMessageFinal         = errors.New("message status is final")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateTransaction = errors.New("message already has a transaction")
)

// Store is the persistence surface used by ingestion. The uniqueness of
// message IDs is enforced by the implementation and reported as
// ErrDuplicateMessage; callers rely on it as the only concurrency guard.
type Store interface {
	FindMessage(ctx context.Context, id string) (*models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkProcessed(ctx context.Context, id, notes string, at time.Time) error
	MarkFailed(ctx context.Context, id, notes string, at time.Time) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	FindTransactionByMessage(ctx context.Context, messageID string) (*models.Transaction, error)

	// LatestMessageTime returns the newest OccurredAt. ok is false when no
	// message has been stored yet.
	LatestMessageTime(ctx context.Context) (latest time.Time, ok bool, err error)
	CountMessages(ctx context.Context) (int, error)

	CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error

	Close() error
}
