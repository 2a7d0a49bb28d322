package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"quimera/internal/platform/config"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

// Result is what a delivery attempt reports back. Transport and HTTP
// failures are folded into it; Deliver never returns an error.
type Result struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Deliverer struct {
	webhooks *repositories.WebhookRepository
	logs     *repositories.DeliveryLogRepository
	client   *http.Client
	maxBody  int
}

func NewDeliverer(webhooks *repositories.WebhookRepository, logs *repositories.DeliveryLogRepository, cfg config.WebhooksConfig) *Deliverer {
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = 1000
	}
	return &Deliverer{
		webhooks: webhooks,
		logs:     logs,
		client:   &http.Client{Timeout: timeout},
		maxBody:  maxBody,
	}
}

// Deliver performs a single signed POST to the config's URL. Whatever the
// outcome, it appends one delivery-log row and refreshes the config's
// last_triggered_at/last_status.
func (d *Deliverer) Deliver(ctx context.Context, cfg *models.WebhookConfig, event string, data interface{}, attempt int) Result {
	payload := models.WebhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TenantID:  cfg.TenantID,
		Data:      data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return d.finish(cfg, event, attempt, 0, Result{Success: false, Error: "marshal payload: " + err.Error()}, "")
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return d.finish(cfg, event, attempt, 0, Result{Success: false, Error: err.Error()}, "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", Sign(cfg.Secret, body))
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Timestamp", payload.Timestamp)

	resp, err := d.client.Do(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return d.finish(cfg, event, attempt, duration, Result{Success: false, Error: err.Error()}, "")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBody)))

	result := Result{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}
	if !result.Success {
		result.Error = "HTTP " + resp.Status
	}

	return d.finish(cfg, event, attempt, duration, result, string(respBody))
}

func (d *Deliverer) finish(cfg *models.WebhookConfig, event string, attempt int, durationMs int64, result Result, respBody string) Result {
	status := models.DeliveryStatusSuccess
	if !result.Success {
		status = models.DeliveryStatusFailed
	}

	entry := &models.WebhookDeliveryLog{
		WebhookID:     cfg.ID,
		TenantID:      cfg.TenantID,
		Event:         event,
		URL:           cfg.URL,
		Status:        status,
		ResponseBody:  respBody,
		Error:         result.Error,
		DurationMs:    durationMs,
		AttemptNumber: attempt,
	}
	if result.StatusCode != 0 {
		code := result.StatusCode
		entry.StatusCode = &code
	}

	if err := d.logs.Append(entry); err != nil {
		log.Error().Err(err).Str("webhook_id", cfg.ID).Msg("failed to append delivery log")
	}
	if err := d.webhooks.UpdateLastDelivery(cfg.ID, status, time.Now().Unix()); err != nil {
		log.Error().Err(err).Str("webhook_id", cfg.ID).Msg("failed to update webhook status")
	}

	log.Debug().
		Str("webhook_id", cfg.ID).
		Str("event", event).
		Int("attempt", attempt).
		Bool("success", result.Success).
		Int("status_code", result.StatusCode).
		Msg("webhook delivery attempt")

	return result
}
