package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"quimera/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *models.WebhookConfig) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	webhook.CreatedAt = time.Now().Unix()
	webhook.UpdatedAt = webhook.CreatedAt

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO webhook_configs (id, tenant_id, url, secret, events, enabled, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.TenantID, webhook.URL, webhook.Secret, string(eventsJSON), webhook.Enabled,
		webhook.RetryCount, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

func (r *WebhookRepository) GetByID(id string) (*models.WebhookConfig, error) {
	row := r.db.QueryRow(`
		SELECT id, tenant_id, url, secret, events, enabled, retry_count, last_triggered_at, last_status, created_at, updated_at
		FROM webhook_configs WHERE id = ?
	`, id)
	return scanWebhook(row.Scan)
}

func (r *WebhookRepository) ListByTenant(tenantID string) ([]*models.WebhookConfig, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, url, secret, events, enabled, retry_count, last_triggered_at, last_status, created_at, updated_at
		FROM webhook_configs WHERE tenant_id = ? ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

// ListEnabledForEvent returns the tenant's enabled configs subscribed to the
// event. The events column is a JSON array; with the expected handful of
// configs per tenant, filtering in the application is fine.
func (r *WebhookRepository) ListEnabledForEvent(tenantID, event string) ([]*models.WebhookConfig, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, url, secret, events, enabled, retry_count, last_triggered_at, last_status, created_at, updated_at
		FROM webhook_configs WHERE tenant_id = ? AND enabled = 1
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := collectWebhooks(rows)
	if err != nil {
		return nil, err
	}

	var matched []*models.WebhookConfig
	for _, w := range all {
		for _, e := range w.Events {
			if e == event {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, nil
}

func (r *WebhookRepository) Update(webhook *models.WebhookConfig) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	_, err = r.db.Exec(`
		UPDATE webhook_configs SET url = ?, events = ?, enabled = ?, updated_at = ? WHERE id = ?
	`, webhook.URL, string(eventsJSON), webhook.Enabled, webhook.UpdatedAt, webhook.ID)
	return err
}

func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_configs WHERE id = ?`, id)
	return err
}

func (r *WebhookRepository) UpdateLastDelivery(id, status string, triggeredAt int64) error {
	_, err := r.db.Exec(`
		UPDATE webhook_configs SET last_triggered_at = ?, last_status = ? WHERE id = ?
	`, triggeredAt, status, id)
	return err
}

func collectWebhooks(rows *sql.Rows) ([]*models.WebhookConfig, error) {
	var webhooks []*models.WebhookConfig
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func scanWebhook(scan func(dest ...interface{}) error) (*models.WebhookConfig, error) {
	w := &models.WebhookConfig{}
	var eventsStr string
	var lastTriggeredAt sql.NullInt64
	var lastStatus sql.NullString

	err := scan(&w.ID, &w.TenantID, &w.URL, &w.Secret, &eventsStr, &w.Enabled, &w.RetryCount,
		&lastTriggeredAt, &lastStatus, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastTriggeredAt.Valid {
		w.LastTriggeredAt = &lastTriggeredAt.Int64
	}
	if lastStatus.Valid {
		w.LastStatus = lastStatus.String
	}
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		log.Error().Err(err).Str("webhook_id", w.ID).Msg("corrupt events column, treating as empty")
	}

	return w, nil
}
