package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/parsererror"
)

// Webhook payload fields, in the order they are reported when missing.
var WebhookRequiredFields = []string{"date", "hour", "time_received", "message", "number", "guid"}

const minGUIDLength = 5

// WebhookAck is the success acknowledgment returned to the gateway.
type WebhookAck struct {
	Status        string `json:"status"`
	GUID          string `json:"guid"`
	State         State  `json:"state,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// IngestWebhook validates one pushed record and ingests it. Validation
// failures are *parsererror.ValidationError and happen before any write;
// storage failures are *parsererror.StorageError. A duplicate push is
// acknowledged like a new one.
func (s *Service) IngestWebhook(ctx context.Context, payload map[string]any) (WebhookAck, error) {
	rec, err := s.webhookRecord(payload)
	if err != nil {
		return WebhookAck{}, err
	}

	outcome := s.Ingest(ctx, rec)
	if outcome.State == StateError {
		return WebhookAck{}, outcome.Err
	}
	return WebhookAck{
		Status:        models.WebhookSuccess,
		GUID:          outcome.MessageID,
		State:         outcome.State,
		TransactionID: outcome.TransactionID,
	}, nil
}

func (s *Service) webhookRecord(payload map[string]any) (models.CanonicalRecord, error) {
	if payload == nil {
		return models.CanonicalRecord{}, &parsererror.ValidationError{Reason: "payload must be a JSON object"}
	}

	values := make(map[string]string, len(WebhookRequiredFields))
	var missing []string
	for _, field := range WebhookRequiredFields {
		v, ok := payload[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, field)
			continue
		}
		values[field] = strings.TrimSpace(v)
	}
	if len(missing) > 0 {
		return models.CanonicalRecord{}, &parsererror.ValidationError{
			Reason: fmt.Sprintf("Missing required fields: [%s]", strings.Join(missing, ", ")),
		}
	}

	guid := values["guid"]
	if len(guid) < minGUIDLength {
		return models.CanonicalRecord{}, &parsererror.ValidationError{
			Field:  "guid",
			Reason: fmt.Sprintf("GUID must be at least %d characters", minGUIDLength),
		}
	}
	if _, err := time.ParseInLocation(dateutils.DateLayoutISO, values["date"], s.loc); err != nil {
		return models.CanonicalRecord{}, &parsererror.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if _, err := time.ParseInLocation(dateutils.TimeLayoutISO, values["hour"], s.loc); err != nil {
		return models.CanonicalRecord{}, &parsererror.ValidationError{Field: "hour", Reason: "expected HH:MM:SS"}
	}
	received, err := time.ParseInLocation(dateutils.DateLayoutFull, values["time_received"], s.loc)
	if err != nil {
		return models.CanonicalRecord{}, &parsererror.ValidationError{Field: "time_received", Reason: "expected YYYY-MM-DD HH:MM:SS"}
	}
	if !dateutils.InStorableRange(received) {
		return models.CanonicalRecord{}, &parsererror.ValidationError{Field: "time_received", Reason: "out of range"}
	}

	deviceID, _ := payload["device_id"].(string)
	return models.CanonicalRecord{
		ReceivedAt:      received.UTC(),
		Address:         values["number"],
		Body:            payload["message"].(string),
		ExternalID:      guid,
		DeviceID:        deviceID,
		TimestampEpoch:  received.Unix(),
		Raw:             payload,
		TimestampSource: models.TimestampFromWebhook,
	}, nil
}
