package logging

// Field names shared by every component so log lines from the webhook, the
// poller and the importer can be filtered the same way.
const (
	FieldMessageID     = "message_id"
	FieldTransactionID = "transaction_id"
	FieldAddress       = "address"
	FieldDirection     = "direction"
	FieldConfidence    = "confidence"
	FieldOperation     = "operation"
	FieldStatus        = "status"
	FieldState         = "state"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
	FieldSource        = "source"
	FieldEndpoint      = "endpoint"
	FieldRemoteIP      = "remote_ip"
	FieldInputFile     = "input_file"
)
