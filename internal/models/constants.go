package models

// MessageDirection tells whether the handset received or sent the SMS.
type MessageDirection string

// MessageIncoming is the only direction the gateway inbox delivers.
const MessageIncoming MessageDirection = "incoming"

// MessageStatus is the processing state of a stored message.
type MessageStatus string

// Message statuses
const (
	StatusReceived  MessageStatus = "received"
	StatusProcessed MessageStatus = "processed"
	StatusFailed    MessageStatus = "failed"
)

// TransactionDirection is the money flow relative to the account holder.
type TransactionDirection string

const (
	DirectionReceived TransactionDirection = "received"
	DirectionSent     TransactionDirection = "sent"
	DirectionPaid     TransactionDirection = "paid"
)

// Provider and currency of the supported mobile-money network
const (
	ProviderMPESA  = "MPESA"
	CurrencyLabel  = "Ksh"
	UnknownAmount  = "Unknown"
	AmountDecimals = 2
)

// Processing notes attached to messages
const (
	NoteNotCandidate = "SMS received (not MPESA)"
	NoteParsed       = "Successfully parsed as MPESA transaction"
	NoteParseFailed  = "Failed to parse MPESA transaction"
)

// Webhook log statuses
const (
	WebhookSuccess = "success"
	WebhookInvalid = "invalid"
	WebhookError   = "error"
)

// Timestamp sources reported by the source record normalizer
const (
	TimestampFromEpochField    = "epoch_field"
	TimestampFromDateHour      = "date_hour"
	TimestampFromMillis        = "time_received_ms"
	TimestampFromSeconds       = "time_received_s"
	TimestampFromCompact       = "time_received_compact"
	TimestampFromClockFallback = "clock_fallback"
	TimestampFromWebhook       = "webhook"
)
