package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"fjacquet/sms-ledger/internal/models"
)

// MemoryStore keeps everything in process memory. It is used for tests and
// for local runs with database.driver=memory.
type MemoryStore struct {
	mu           sync.RWMutex
	messages     map[string]models.Message
	transactions map[string]models.Transaction // keyed by message ID
	webhookLogs  []models.WebhookLog
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:     make(map[string]models.Message),
		transactions: make(map[string]models.Transaction),
	}
}

func (s *MemoryStore) FindMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &msg, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[msg.ID]; exists {
		return ErrDuplicateMessage
	}
	stored := *msg
	stored.RawSource = slices.Clone(msg.RawSource)
	s.messages[msg.ID] = stored
	return nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id, notes string, at time.Time) error {
	return s.transition(id, models.StatusProcessed, notes, at)
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, notes string, at time.Time) error {
	return s.transition(id, models.StatusFailed, notes, at)
}

func (s *MemoryStore) transition(id string, to models.MessageStatus, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	if msg.Status.IsTerminal() {
		return ErrMessageFinal
	}
	if err := msg.Transition(to, notes, at); err != nil {
		return err
	}
	s.messages[id] = msg
	return nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[tx.MessageID]; !ok {
		return ErrMessageNotFound
	}
	if _, exists := s.transactions[tx.MessageID]; exists {
		return ErrDuplicateTransaction
	}
	stored := *tx
	stored.ParseErrors = slices.Clone(tx.ParseErrors)
	s.transactions[tx.MessageID] = stored
	return nil
}

func (s *MemoryStore) FindTransactionByMessage(_ context.Context, messageID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[messageID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *MemoryStore) LatestMessageTime(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	found := false
	for _, msg := range s.messages {
		if !found || msg.OccurredAt.After(latest) {
			latest = msg.OccurredAt
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) CountMessages(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages), nil
}

func (s *MemoryStore) CreateWebhookLog(_ context.Context, entry *models.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookLogs = append(s.webhookLogs, *entry)
	return nil
}

// WebhookLogs returns a copy of the recorded webhook calls.
func (s *MemoryStore) WebhookLogs() []models.WebhookLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.webhookLogs)
}

func (s *MemoryStore) Close() error {
	return nil
}
