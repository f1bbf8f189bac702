package models

import "time"

// CanonicalRecord is a gateway record after field and timestamp
// normalization, ready for ingestion.
type CanonicalRecord struct {
	ReceivedAt      time.Time      `json:"received_at"`
	Address         string         `json:"address"`
	Body            string         `json:"body"`
	ExternalID      string         `json:"external_id"`
	DeviceID        string         `json:"device_id,omitempty"`
	TimestampEpoch  int64          `json:"timestamp_epoch"`
	Raw             map[string]any `json:"raw"`
	TimestampSource string         `json:"timestamp_source"`
	Issues          []string       `json:"issues,omitempty"`
}

// WebhookLog is the audit row written for every webhook call.
type WebhookLog struct {
	ID             string    `json:"id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	Status         string    `json:"status"`
	StatusCode     int       `json:"status_code"`
	Headers        string    `json:"headers"`
	Body           string    `json:"body"`
	RemoteIP       string    `json:"remote_ip"`
	ResponseBody   string    `json:"response_body"`
	ProcessingTime float64   `json:"processing_time"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}
