package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger logging.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL, verifies the connection and
// applies pending migrations.
func NewPostgresStore(ctx context.Context, databaseURL string, opts PoolOptions, logger logging.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url parse failed: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &PostgresStore{db: pool, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

// Migrate applies every embedded migration newer than the recorded version.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	migrations, err := loadMigrations(DialectPostgres)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		s.logger.Info("Applying migration",
			logging.F("version", m.Version),
			logging.F("description", m.Description))

		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_version (version, description) VALUES ($1, $2)",
				m.Version, m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *PostgresStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	var (
		msg       models.Message
		direction string
		status    string
		rawSource *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, address, body, occurred_at, direction, status, raw_source::text,
			device_id, processed_at, processing_notes, created_at, updated_at
		FROM messages WHERE id = $1`, id).Scan(
		&msg.ID, &msg.Address, &msg.Body, &msg.OccurredAt, &direction, &status, &rawSource,
		&msg.DeviceID, &msg.ProcessedAt, &msg.ProcessingNotes, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	msg.Direction = models.MessageDirection(direction)
	msg.Status = models.MessageStatus(status)
	if rawSource != nil {
		msg.RawSource = json.RawMessage(*rawSource)
	}
	return &msg, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	var rawSource *string
	if len(msg.RawSource) > 0 {
		raw := string(msg.RawSource)
		rawSource = &raw
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, address, body, occurred_at, direction, status, raw_source,
			device_id, processed_at, processing_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12)`,
		msg.ID, msg.Address, msg.Body, msg.OccurredAt, string(msg.Direction), string(msg.Status), rawSource,
		msg.DeviceID, msg.ProcessedAt, msg.ProcessingNotes, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id, notes string, at time.Time) error {
	return s.updateStatus(ctx, id, models.StatusProcessed, notes, at)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, notes string, at time.Time) error {
	return s.updateStatus(ctx, id, models.StatusFailed, notes, at)
}

func (s *PostgresStore) updateStatus(ctx context.Context, id string, to models.MessageStatus, notes string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE messages
		SET status = $2, processing_notes = $3, processed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`,
		id, string(to), notes, at, string(models.StatusReceived))
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.FindMessage(ctx, id); err != nil {
			return err
		}
		return ErrMessageFinal
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	parseErrors, err := json.Marshal(nonNilStrings(tx.ParseErrors))
	if err != nil {
		return fmt.Errorf("encode parse errors: %w", err)
	}
	var amount *string
	if tx.Amount != nil {
		a := tx.Amount.StringFixed(models.AmountDecimals)
		amount = &a
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO transactions (id, message_id, provider, direction, amount, counterparty_name,
			counterparty_phone, transaction_code, raw_date, raw_time, occurred_at_local,
			confidence, parse_errors, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)`,
		tx.ID, tx.MessageID, tx.Provider, string(tx.Direction), amount, tx.CounterpartyName,
		tx.CounterpartyPhone, tx.TransactionCode, tx.RawDate, tx.RawTime, tx.OccurredAtLocal,
		tx.Confidence, string(parseErrors), tx.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return ErrDuplicateTransaction
		case pgForeignKeyViolation:
			return ErrMessageNotFound
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTransactionByMessage(ctx context.Context, messageID string) (*models.Transaction, error) {
	var (
		tx          models.Transaction
		direction   string
		amount      *string
		parseErrors string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, message_id, provider, direction, amount::text, counterparty_name, counterparty_phone,
			transaction_code, raw_date, raw_time, occurred_at_local, confidence, parse_errors::text, created_at
		FROM transactions WHERE message_id = $1`, messageID).Scan(
		&tx.ID, &tx.MessageID, &tx.Provider, &direction, &amount, &tx.CounterpartyName, &tx.CounterpartyPhone,
		&tx.TransactionCode, &tx.RawDate, &tx.RawTime, &tx.OccurredAtLocal, &tx.Confidence, &parseErrors, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	tx.Direction = models.TransactionDirection(direction)
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", *amount, err)
		}
		tx.Amount = &d
	}
	if err := json.Unmarshal([]byte(parseErrors), &tx.ParseErrors); err != nil {
		return nil, fmt.Errorf("decode parse errors: %w", err)
	}
	return &tx, nil
}

func (s *PostgresStore) LatestMessageTime(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	if err := s.db.QueryRow(ctx, "SELECT MAX(occurred_at) FROM messages").Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest message time: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return latest.UTC(), true, nil
}

func (s *PostgresStore) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateWebhookLog(ctx context.Context, e *models.WebhookLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_logs (id, endpoint, method, status, status_code, headers, body,
			remote_ip, response_body, processing_time, error_message, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Endpoint, e.Method, e.Status, e.StatusCode, e.Headers, e.Body,
		e.RemoteIP, e.ResponseBody, e.ProcessingTime, e.ErrorMessage, e.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
