package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"quimera/internal/platform/models"
)

// DeliveryLogRepository appends and reads webhook delivery attempt records.
// Rows are never updated or deleted here.
type DeliveryLogRepository struct {
	db *sql.DB
}

func NewDeliveryLogRepository(db *sql.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

func (r *DeliveryLogRepository) Append(entry *models.WebhookDeliveryLog) error {
	if entry.ID == "" {
		entry.ID = "whl_" + uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	_, err := r.db.Exec(`
		INSERT INTO webhook_delivery_logs (id, webhook_id, tenant_id, event, url, status, status_code,
			response_body, error, duration_ms, attempt_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.WebhookID, entry.TenantID, entry.Event, entry.URL, entry.Status, entry.StatusCode,
		entry.ResponseBody, entry.Error, entry.DurationMs, entry.AttemptNumber, entry.CreatedAt)
	return err
}

func (r *DeliveryLogRepository) ListByWebhook(webhookID string, limit int) ([]*models.WebhookDeliveryLog, error) {
	rows, err := r.db.Query(`
		SELECT id, webhook_id, tenant_id, event, url, status, status_code, response_body, error,
			duration_ms, attempt_number, created_at
		FROM webhook_delivery_logs WHERE webhook_id = ? ORDER BY created_at DESC, attempt_number DESC LIMIT ?
	`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.WebhookDeliveryLog
	for rows.Next() {
		entry := &models.WebhookDeliveryLog{}
		var statusCode sql.NullInt64
		var responseBody, errMsg sql.NullString
		if err := rows.Scan(&entry.ID, &entry.WebhookID, &entry.TenantID, &entry.Event, &entry.URL,
			&entry.Status, &statusCode, &responseBody, &errMsg, &entry.DurationMs, &entry.AttemptNumber,
			&entry.CreatedAt); err != nil {
			return nil, err
		}
		if statusCode.Valid {
			code := int(statusCode.Int64)
			entry.StatusCode = &code
		}
		entry.ResponseBody = responseBody.String
		entry.Error = errMsg.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (r *DeliveryLogRepository) CountByWebhook(webhookID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM webhook_delivery_logs WHERE webhook_id = ?`, webhookID).Scan(&n)
	return n, err
}
