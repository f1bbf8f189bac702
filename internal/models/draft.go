package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Draft is the output of the extractor. A nil Direction means no template
// matched and no transaction may be created from it.
type Draft struct {
	Provider          string                `json:"provider" yaml:"provider"`
	Template          string                `json:"template,omitempty" yaml:"template,omitempty"`
	Direction         *TransactionDirection `json:"direction" yaml:"direction"`
	Amount            *decimal.Decimal      `json:"amount" yaml:"amount"`
	CounterpartyName  *string               `json:"counterparty_name" yaml:"counterparty_name"`
	CounterpartyPhone *string               `json:"counterparty_phone" yaml:"counterparty_phone"`
	TransactionCode   *string               `json:"transaction_code" yaml:"transaction_code"`
	RawDate           string                `json:"raw_date,omitempty" yaml:"raw_date,omitempty"`
	RawTime           string                `json:"raw_time,omitempty" yaml:"raw_time,omitempty"`
	OccurredAtLocal   *time.Time            `json:"occurred_at_local" yaml:"occurred_at_local"`
	Confidence        float64               `json:"confidence" yaml:"confidence"`
	ParseErrors       []string              `json:"parse_errors" yaml:"parse_errors"`
}

// Matched reports whether a template produced a direction.
func (d Draft) Matched() bool {
	return d.Direction != nil
}
