package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/ingest"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/parsererror"
	"fjacquet/sms-ledger/internal/store"

	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

// Ingester is the part of the ingestion service the handlers use.
type Ingester interface {
	IngestWebhook(ctx context.Context, payload map[string]any) (ingest.WebhookAck, error)
	FetchCycle(ctx context.Context, opts gateway.FetchOptions) (ingest.BatchResult, error)
	AutoFetch(ctx context.Context, opts gateway.FetchOptions) (ingest.BatchResult, error)
	Preview(ctx context.Context, opts gateway.FetchOptions) (ingest.Summary, error)
}

// Handlers serves the HTTP routes.
type Handlers struct {
	svc      Ingester
	auditLog store.Store
	logger   logging.Logger
	defaults gateway.FetchOptions
}

// NewHandlers creates the handlers. auditLog receives one WebhookLog per
// webhook call and may be nil. defaults seed the fetch options of the
// trigger endpoints.
func NewHandlers(svc Ingester, auditLog store.Store, logger logging.Logger, defaults gateway.FetchOptions) *Handlers {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Handlers{svc: svc, auditLog: auditLog, logger: logger, defaults: defaults}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Webhook ingests one pushed SMS.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		Endpoint:   r.URL.Path,
		Method:     r.Method,
		Status:     models.WebhookSuccess,
		StatusCode: http.StatusOK,
		Headers:    headersJSON(r.Header),
		RemoteIP:   r.RemoteAddr,
		ReceivedAt: start.UTC(),
	}

	status, response := h.handleWebhook(r, entry)

	body, _ := json.Marshal(response)
	entry.StatusCode = status
	entry.ResponseBody = string(body)
	entry.ProcessingTime = time.Since(start).Seconds()
	h.writeWebhookLog(r.Context(), entry)

	writeJSON(w, status, response)
}

func (h *Handlers) handleWebhook(r *http.Request, entry *models.WebhookLog) (int, any) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		entry.Status = models.WebhookError
		entry.ErrorMessage = err.Error()
		return http.StatusBadRequest, errorBody("Could not read request body")
	}
	entry.Body = string(raw)

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		msg := fmt.Sprintf("Invalid JSON payload: %v", err)
		entry.Status = models.WebhookError
		entry.ErrorMessage = msg
		h.logger.Warn(msg, logging.F(logging.FieldRemoteIP, r.RemoteAddr))
		return http.StatusBadRequest, errorBody(msg)
	}

	ack, err := h.svc.IngestWebhook(r.Context(), payload)
	if err != nil {
		var vErr *parsererror.ValidationError
		if errors.As(err, &vErr) {
			entry.Status = models.WebhookInvalid
			entry.ErrorMessage = vErr.Error()
			h.logger.Warn("Rejected webhook payload", logging.F(logging.FieldError, vErr.Error()))
			return http.StatusBadRequest, errorBody(vErr.Error())
		}
		entry.Status = models.WebhookError
		entry.ErrorMessage = fmt.Sprintf("Error processing webhook: %v", err)
		h.logger.WithError(err).Error("Webhook processing failed")
		return http.StatusInternalServerError, errorBody("Internal server error")
	}

	h.logger.Info("Webhook processed",
		logging.F(logging.FieldMessageID, ack.GUID),
		logging.F(logging.FieldState, string(ack.State)))
	return http.StatusOK, ack
}

func (h *Handlers) writeWebhookLog(ctx context.Context, entry *models.WebhookLog) {
	if h.auditLog == nil {
		return
	}
	// the audit row outlives a cancelled request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.auditLog.CreateWebhookLog(ctx, entry); err != nil {
		h.logger.WithError(err).Warn("Failed to write webhook log")
	}
}

// FetchSMS runs one full fetch cycle.
func (h *Handlers) FetchSMS(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.FetchCycle(r.Context(), h.fetchOptions(r))
	if err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse(result, fmt.Sprintf("Successfully fetched %d new SMS messages", result.Stored)))
}

// AutoFetchSMS fetches only messages newer than the latest stored one.
func (h *Handlers) AutoFetchSMS(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.AutoFetch(r.Context(), h.fetchOptions(r))
	if err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse(result, fmt.Sprintf("Found %d new SMS messages", result.Stored)))
}

// Summary previews the gateway inbox without storing anything.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Preview(r.Context(), h.fetchOptions(r))
	if err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// fetchOptions overlays the unread_only and device_id query parameters on
// the configured defaults.
func (h *Handlers) fetchOptions(r *http.Request) gateway.FetchOptions {
	opts := h.defaults
	q := r.URL.Query()
	if v := q.Get("unread_only"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.UnreadOnly = b
		}
	}
	if v := q.Get("device_id"); v != "" {
		opts.DeviceID = v
	}
	return opts
}

func (h *Handlers) writeFetchError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	h.logger.WithError(err).Error("Fetch request failed", logging.F(logging.FieldStatus, status))
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	var (
		vErr  *parsererror.ValidationError
		upErr *parsererror.UpstreamError
	)
	switch {
	case errors.Is(err, ingest.ErrCycleInProgress):
		return http.StatusConflict
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fetchResponse(result ingest.BatchResult, message string) map[string]any {
	return map[string]any{
		"success": true,
		"count":   result.Stored,
		"stored":  result.Stored,
		"skipped": result.Skipped,
		"failed":  result.Failed,
		"message": message,
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func headersJSON(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}
