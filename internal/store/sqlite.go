package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"fjacquet/sms-ledger/internal/fileutils"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store on a single-file SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(ctx context.Context, dbPath string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	if err := fileutils.EnsureDirectoryExists(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("cannot create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

// Migrate applies every embedded migration newer than the recorded version.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current := 0
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	migrations, err := loadMigrations(DialectSQLite)
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

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

const sqliteMessageColumns = `id, address, body, occurred_at, direction, status, raw_source,
	device_id, processed_at, processing_notes, created_at, updated_at`

func (s *SQLiteStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	var (
		msg         models.Message
		occurredAt  int64
		rawSource   sql.NullString
		processedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteMessageColumns+" FROM messages WHERE id = ?", id).Scan(
		&msg.ID, &msg.Address, &msg.Body, &occurredAt, &msg.Direction, &msg.Status, &rawSource,
		&msg.DeviceID, &processedAt, &msg.ProcessingNotes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	msg.OccurredAt = fromNanos(occurredAt)
	msg.CreatedAt = fromNanos(createdAt)
	msg.UpdatedAt = fromNanos(updatedAt)
	if rawSource.Valid {
		msg.RawSource = json.RawMessage(rawSource.String)
	}
	if processedAt.Valid {
		t := fromNanos(processedAt.Int64)
		msg.ProcessedAt = &t
	}
	return &msg, nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	var rawSource any
	if len(msg.RawSource) > 0 {
		rawSource = string(msg.RawSource)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages ("+sqliteMessageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.Address, msg.Body, toNanos(msg.OccurredAt), string(msg.Direction), string(msg.Status), rawSource,
		msg.DeviceID, nullableNanos(msg.ProcessedAt), msg.ProcessingNotes, toNanos(msg.CreatedAt), toNanos(msg.UpdatedAt))
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id, notes string, at time.Time) error {
	return s.updateStatus(ctx, id, models.StatusProcessed, notes, at)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id, notes string, at time.Time) error {
	return s.updateStatus(ctx, id, models.StatusFailed, notes, at)
}

func (s *SQLiteStore) updateStatus(ctx context.Context, id string, to models.MessageStatus, notes string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET status = ?, processing_notes = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), notes, toNanos(at), toNanos(at), id, string(models.StatusReceived))
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if n == 0 {
		if _, err := s.FindMessage(ctx, id); err != nil {
			return err
		}
		return ErrMessageFinal
	}
	return nil
}

func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	parseErrors, err := json.Marshal(nonNilStrings(tx.ParseErrors))
	if err != nil {
		return fmt.Errorf("encode parse errors: %w", err)
	}
	var amount any
	if tx.Amount != nil {
		amount = tx.Amount.StringFixed(models.AmountDecimals)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, message_id, provider, direction, amount, counterparty_name,
			counterparty_phone, transaction_code, raw_date, raw_time, occurred_at_local,
			confidence, parse_errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.MessageID, tx.Provider, string(tx.Direction), amount, tx.CounterpartyName,
		tx.CounterpartyPhone, tx.TransactionCode, tx.RawDate, tx.RawTime, nullableNanos(tx.OccurredAtLocal),
		tx.Confidence, string(parseErrors), toNanos(tx.CreatedAt))
	if err != nil {
		switch {
		case isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE):
			return ErrDuplicateTransaction
		case isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
			return ErrMessageNotFound
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindTransactionByMessage(ctx context.Context, messageID string) (*models.Transaction, error) {
	var (
		tx          models.Transaction
		amount      sql.NullString
		name        sql.NullString
		phone       sql.NullString
		code        sql.NullString
		occurredAt  sql.NullInt64
		parseErrors string
		createdAt   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, provider, direction, amount, counterparty_name, counterparty_phone,
			transaction_code, raw_date, raw_time, occurred_at_local, confidence, parse_errors, created_at
		FROM transactions WHERE message_id = ?`, messageID).Scan(
		&tx.ID, &tx.MessageID, &tx.Provider, &tx.Direction, &amount, &name, &phone,
		&code, &tx.RawDate, &tx.RawTime, &occurredAt, &tx.Confidence, &parseErrors, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}

	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", amount.String, err)
		}
		tx.Amount = &d
	}
	tx.CounterpartyName = nullString(name)
	tx.CounterpartyPhone = nullString(phone)
	tx.TransactionCode = nullString(code)
	if occurredAt.Valid {
		t := fromNanos(occurredAt.Int64)
		tx.OccurredAtLocal = &t
	}
	if err := json.Unmarshal([]byte(parseErrors), &tx.ParseErrors); err != nil {
		return nil, fmt.Errorf("decode parse errors: %w", err)
	}
	tx.CreatedAt = fromNanos(createdAt)
	return &tx, nil
}

func (s *SQLiteStore) LatestMessageTime(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(occurred_at) FROM messages").Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest message time: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return fromNanos(latest.Int64), true, nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CreateWebhookLog(ctx context.Context, e *models.WebhookLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_logs (id, endpoint, method, status, status_code, headers, body,
			remote_ip, response_body, processing_time, error_message, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Endpoint, e.Method, e.Status, e.StatusCode, e.Headers, e.Body,
		e.RemoteIP, e.ResponseBody, e.ProcessingTime, e.ErrorMessage, toNanos(e.ReceivedAt))
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteConstraint(err error, codes ...int) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toNanos(*t)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
