package models

// Webhook event vocabulary. Only a subset has wired producers today; the
// rest are reserved names subscribers may already register for.
const (
	EventClientCreated      = "client.created"
	EventClientUpdated      = "client.updated"
	EventClientDeleted      = "client.deleted"
	EventProjectPublished   = "project.published"
	EventProjectUnpublished = "project.unpublished"
	EventLeadCaptured       = "lead.captured"
	EventPaymentReceived    = "payment.received"
	EventSubscriptionChange = "subscription.changed"
	EventAiCreditsLow       = "ai_credits.low"
	EventInvoiceCreated     = "invoice.created"
)

var WebhookEvents = []string{
	EventClientCreated,
	EventClientUpdated,
	EventClientDeleted,
	EventProjectPublished,
	EventProjectUnpublished,
	EventLeadCaptured,
	EventPaymentReceived,
	EventSubscriptionChange,
	EventAiCreditsLow,
	EventInvoiceCreated,
}

func IsKnownEvent(event string) bool {
	for _, e := range WebhookEvents {
		if e == event {
			return true
		}
	}
	return false
}

type WebhookConfig struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenant_id"`
	URL             string   `json:"url"`
	Secret          string   `json:"secret,omitempty"` // returned once, on create
	Events          []string `json:"events"`           // JSON array in DB
	Enabled         bool     `json:"enabled"`
	RetryCount      int      `json:"retry_count"` // max delivery attempts per dispatch
	LastTriggeredAt *int64   `json:"last_triggered_at,omitempty"`
	LastStatus      string   `json:"last_status,omitempty"` // success, failed
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// Redacted returns a copy safe for read APIs: the signing secret is only
// ever exposed by the create response.
func (w *WebhookConfig) Redacted() *WebhookConfig {
	c := *w
	c.Secret = ""
	return &c
}

const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
)

// WebhookDeliveryLog is an append-only record of one delivery attempt.
type WebhookDeliveryLog struct {
	ID            string `json:"id"`
	WebhookID     string `json:"webhook_id"`
	TenantID      string `json:"tenant_id"`
	Event         string `json:"event"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	StatusCode    *int   `json:"status_code,omitempty"`
	ResponseBody  string `json:"response_body,omitempty"` // truncated
	Error         string `json:"error,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	AttemptNumber int    `json:"attempt_number"`
	CreatedAt     int64  `json:"created_at"`
}

// WebhookPayload is the wire format POSTed to subscriber endpoints.
type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"` // ISO-8601
	TenantID  string      `json:"tenantId"`
	Data      interface{} `json:"data"`
}
