package models

import (
	"time"

	"fjacquet/sms-ledger/internal/currencyutils"

	"github.com/shopspring/decimal"
)

// Transaction is the structured record derived from an MPESA message. At most
// one exists per message and it is never mutated after creation.
type Transaction struct {
	ID                string               `json:"id" yaml:"id"`
	MessageID         string               `json:"message_id" yaml:"message_id"`
	Provider          string               `json:"provider" yaml:"provider"`
	Direction         TransactionDirection `json:"direction" yaml:"direction"`
	Amount            *decimal.Decimal     `json:"amount" yaml:"amount"`
	CounterpartyName  *string              `json:"counterparty_name" yaml:"counterparty_name"`
	CounterpartyPhone *string              `json:"counterparty_phone" yaml:"counterparty_phone"`
	TransactionCode   *string              `json:"transaction_code" yaml:"transaction_code"`
	RawDate           string               `json:"raw_date,omitempty" yaml:"raw_date,omitempty"`
	RawTime           string               `json:"raw_time,omitempty" yaml:"raw_time,omitempty"`
	OccurredAtLocal   *time.Time           `json:"occurred_at_local" yaml:"occurred_at_local"`
	Confidence        float64              `json:"confidence" yaml:"confidence"`
	ParseErrors       []string             `json:"parse_errors" yaml:"parse_errors"`
	CreatedAt         time.Time            `json:"created_at" yaml:"created_at"`
}

// IsValid is true when the transaction has a code, an amount and a direction.
func (t Transaction) IsValid() bool {
	return t.TransactionCode != nil && *t.TransactionCode != "" &&
		t.Amount != nil &&
		t.Direction != ""
}

// FormattedAmount renders the amount as "Ksh 5,000.00", or "Unknown".
func (t Transaction) FormattedAmount() string {
	if t.Amount == nil {
		return UnknownAmount
	}
	return currencyutils.FormatAmount(*t.Amount, CurrencyLabel)
}

// TxDate returns the local calendar date of the transaction, if resolved.
func (t Transaction) TxDate() string {
	if t.OccurredAtLocal == nil {
		return ""
	}
	return t.OccurredAtLocal.Format("2006-01-02")
}

// TxTime returns the local wall-clock time of the transaction, if resolved.
func (t Transaction) TxTime() string {
	if t.OccurredAtLocal == nil {
		return ""
	}
	return t.OccurredAtLocal.Format("15:04:05")
}
