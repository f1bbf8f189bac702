// Package parser defines the contract shared by message extractors.
package parser

import "fjacquet/sms-ledger/internal/models"

// Extractor turns a free-text message body into a transaction draft.
// Implementations must be safe for concurrent use and must never panic on
// malformed input; problems are reported through Draft.ParseErrors.
type Extractor interface {
	// Parse extracts a draft from body. senderHint is the message address
	// and may be empty.
	Parse(body, senderHint string) models.Draft

	// IsCandidate reports whether the message is worth extracting at all.
	IsCandidate(body, senderHint string) bool

	// Provider names the money-transfer network the extractor understands.
	Provider() string
}
