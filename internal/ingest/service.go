// Package ingest turns canonical records into stored messages and the MPESA
// transactions extracted from them. Every entry point (webhook, poll cycle,
// offline import) funnels through Service.Ingest.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/normalizer"
	"fjacquet/sms-ledger/internal/parser"
	"fjacquet/sms-ledger/internal/parsererror"
	"fjacquet/sms-ledger/internal/store"

	"github.com/google/uuid"
)

// State is the terminal state of one record.
type State string

const (
	StateStored  State = "stored"
	StateSkipped State = "skipped"
	StateError   State = "error"
)

// ErrCycleInProgress is returned when a poll cycle is requested while another
// one is still running.
var ErrCycleInProgress = errors.New("fetch cycle already in progress")

// Outcome reports what happened to one record.
type Outcome struct {
	MessageID     string               `json:"message_id"`
	State         State                `json:"state"`
	MessageStatus models.MessageStatus `json:"message_status,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Err           error                `json:"-"`
}

// BatchResult aggregates the outcomes of a batch in processing order.
type BatchResult struct {
	Stored   int       `json:"stored"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"-"`
}

func (r *BatchResult) add(o Outcome) {
	switch o.State {
	case StateStored:
		r.Stored++
	case StateSkipped:
		r.Skipped++
	case StateError:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Service is the ingestion orchestrator. Extraction is pure and may run in
// parallel; persistence is always sequential.
type Service struct {
	store      store.Store
	extractor  parser.Extractor
	fetcher    gateway.Fetcher
	normalizer *normalizer.Normalizer
	logger     logging.Logger

	loc           *time.Location
	emptyIDPolicy string
	workers       int
	now           func() time.Time

	cycleMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithEmptyIDPolicy decides what happens to records without an identifier.
func WithEmptyIDPolicy(policy string) Option {
	return func(s *Service) { s.emptyIDPolicy = policy }
}

// WithWorkers bounds the number of goroutines used to pre-extract a batch.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLocation sets the gateway zone used to read webhook timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the orchestrator. fetcher may be nil when only push and
// import ingestion are used.
func NewService(st store.Store, ex parser.Extractor, fetcher gateway.Fetcher, norm *normalizer.Normalizer, logger logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	s := &Service{
		store:         st,
		extractor:     ex,
		fetcher:       fetcher,
		normalizer:    norm,
		logger:        logger,
		loc:           dateutils.FixedOffset(3),
		emptyIDPolicy: config.EmptyIDReject,
		workers:       4,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalizer.NewNormalizer(logger, s.loc)
	}
	return s
}

// Ingest runs the per-record state machine. It never panics and never
// returns a bare error: failures are reported in the outcome.
func (s *Service) Ingest(ctx context.Context, rec models.CanonicalRecord) Outcome {
	return s.ingest(ctx, rec, nil)
}

// IngestBatch ingests records in order. A failure on one record does not stop
// the remaining ones.
func (s *Service) IngestBatch(ctx context.Context, recs []models.CanonicalRecord) BatchResult {
	drafts := s.preExtract(recs)
	result := BatchResult{Outcomes: make([]Outcome, 0, len(recs))}
	for i := range recs {
		if err := ctx.Err(); err != nil {
			result.add(Outcome{MessageID: recs[i].ExternalID, State: StateError, Err: err})
			continue
		}
		result.add(s.ingest(ctx, recs[i], drafts[i]))
	}

	s.logger.Info("Batch ingested",
		logging.F(logging.FieldCount, len(recs)),
		logging.F("stored", result.Stored),
		logging.F("skipped", result.Skipped),
		logging.F("failed", result.Failed))
	return result
}

func (s *Service) ingest(ctx context.Context, rec models.CanonicalRecord, pre *models.Draft) Outcome {
	id := rec.ExternalID
	if id == "" {
		if s.emptyIDPolicy != config.EmptyIDInsert {
			err := &parsererror.ValidationError{Field: "guid", Reason: "record has no identifier"}
			s.logger.Warn("Rejected record without identifier", logging.F(logging.FieldAddress, rec.Address))
			return Outcome{State: StateError, Err: err}
		}
		id = uuid.NewString()
	}
	logger := s.logger.WithField(logging.FieldMessageID, id)

	if _, err := s.store.FindMessage(ctx, id); err == nil {
		logger.Debug("Message already stored, skipping")
		return Outcome{MessageID: id, State: StateSkipped}
	} else if !errors.Is(err, store.ErrMessageNotFound) {
		return s.failed(logger, id, "find", err)
	}

	now := s.now().UTC()
	msg := models.Message{
		ID:         id,
		Address:    rec.Address,
		Body:       rec.Body,
		OccurredAt: rec.ReceivedAt,
		Direction:  models.MessageIncoming,
		Status:     models.StatusReceived,
		DeviceID:   rec.DeviceID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.Raw != nil {
		raw, err := json.Marshal(rec.Raw)
		if err != nil {
			logger.WithError(err).Warn("Raw payload is not serializable, storing without it")
		} else {
			msg.RawSource = raw
		}
	}

	if err := s.store.CreateMessage(ctx, &msg); err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			logger.Debug("Message stored concurrently, skipping")
			return Outcome{MessageID: id, State: StateSkipped}
		}
		return s.failed(logger, id, "create message", err)
	}

	if !s.extractor.IsCandidate(rec.Body, rec.Address) {
		if err := s.store.MarkProcessed(ctx, id, models.NoteNotCandidate, s.now().UTC()); err != nil {
			return s.failed(logger, id, "mark processed", err)
		}
		logger.Debug("Stored non-MPESA message")
		return Outcome{MessageID: id, State: StateStored, MessageStatus: models.StatusProcessed}
	}

	var draft models.Draft
	if pre != nil {
		draft = *pre
	} else {
		draft = s.extractor.Parse(rec.Body, rec.Address)
	}

	if !draft.Matched() {
		notes := models.NoteParseFailed
		if len(draft.ParseErrors) > 0 {
			notes += ": " + strings.Join(draft.ParseErrors, "; ")
		}
		if err := s.store.MarkFailed(ctx, id, notes, s.now().UTC()); err != nil {
			return s.failed(logger, id, "mark failed", err)
		}
		logger.Info("MPESA message could not be parsed", logging.F("parse_errors", draft.ParseErrors))
		return Outcome{MessageID: id, State: StateStored, MessageStatus: models.StatusFailed}
	}

	tx, err := models.NewTransactionBuilder(id).
		FromDraft(draft).
		WithCreatedAt(s.now().UTC()).
		Build()
	if err != nil {
		return s.failed(logger, id, "build transaction", err)
	}
	if err := s.store.CreateTransaction(ctx, &tx); err != nil {
		return s.failed(logger, id, "create transaction", err)
	}
	if err := s.store.MarkProcessed(ctx, id, models.NoteParsed, s.now().UTC()); err != nil {
		return s.failed(logger, id, "mark processed", err)
	}

	logger.Info("Stored MPESA transaction",
		logging.F(logging.FieldTransactionID, tx.ID),
		logging.F(logging.FieldDirection, string(tx.Direction)),
		logging.F(logging.FieldConfidence, tx.Confidence))
	return Outcome{MessageID: id, State: StateStored, MessageStatus: models.StatusProcessed, TransactionID: tx.ID}
}

func (s *Service) failed(logger logging.Logger, id, op string, err error) Outcome {
	wrapped := &parsererror.StorageError{Op: op, MessageID: id, Err: err}
	logger.WithError(err).Error("Failed to ingest message", logging.F(logging.FieldOperation, op))
	return Outcome{MessageID: id, State: StateError, Err: wrapped}
}

// Errors returns the errors of failed outcomes.
func (r BatchResult) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.MessageID, o.Err))
		}
	}
	return errs
}
