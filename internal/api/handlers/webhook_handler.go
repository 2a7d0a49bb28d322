package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/julienschmidt/httprouter"
	apiContext "quimera/internal/api/context"
	"quimera/internal/engine/webhooks"
	"quimera/internal/pkg/errors"
	"quimera/internal/platform/audit"
	"quimera/internal/platform/auth"
	"quimera/internal/platform/authz"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

type WebhookHandler struct {
	webhooks       *repositories.WebhookRepository
	logs           *repositories.DeliveryLogRepository
	deliverer      *webhooks.Deliverer
	authorizer     *authz.Authorizer
	audit          *audit.Logger
	defaultRetries int
}

func NewWebhookHandler(webhookRepo *repositories.WebhookRepository, logRepo *repositories.DeliveryLogRepository,
	deliverer *webhooks.Deliverer, authorizer *authz.Authorizer, auditLog *audit.Logger, defaultRetries int) *WebhookHandler {
	if defaultRetries < 1 {
		defaultRetries = 3
	}
	return &WebhookHandler{
		webhooks:       webhookRepo,
		logs:           logRepo,
		deliverer:      deliverer,
		authorizer:     authorizer,
		audit:          auditLog,
		defaultRetries: defaultRetries,
	}
}

type CreateWebhookRequest struct {
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	TenantID string   `json:"tenant_id,omitempty"`
}

type CreateWebhookResponse struct {
	Success   bool   `json:"success"`
	WebhookID string `json:"webhook_id"`
	Secret    string `json:"secret"` // shown once, never returned again
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "Invalid request body", nil)
		return
	}

	if !validWebhookURL(req.URL) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "url must be a valid http(s) URL", nil)
		return
	}
	if len(req.Events) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "events must not be empty", nil)
		return
	}
	for _, e := range req.Events {
		if !models.IsKnownEvent(e) {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "unknown event type: "+e, nil)
			return
		}
	}

	tenantID, ok := h.resolveTargetTenant(w, claims, req.TenantID)
	if !ok {
		return
	}

	secret, err := webhooks.GenerateSecret()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
		return
	}

	webhook := &models.WebhookConfig{
		TenantID:   tenantID,
		URL:        req.URL,
		Secret:     secret,
		Events:     req.Events,
		Enabled:    true,
		RetryCount: h.defaultRetries,
	}
	if err := h.webhooks.Create(webhook); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create webhook", nil)
		return
	}

	h.audit.Log(tenantID, claims.UserID, "webhook.create", "webhook", webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": webhook.Events,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateWebhookResponse{
		Success:   true,
		WebhookID: webhook.ID,
		Secret:    secret,
	})
}

// resolveTargetTenant applies the create authorization rule: platform admins
// name the tenant explicitly, everyone else must manage exactly one tenant
// which becomes the target.
func (h *WebhookHandler) resolveTargetTenant(w http.ResponseWriter, claims *auth.Claims, requested string) (string, bool) {
	if claims.Role == models.RolePlatformAdmin {
		if requested == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "tenant_id is required for platform admins", nil)
			return "", false
		}
		return requested, true
	}

	if requested != "" {
		allowed, err := h.authorizer.CanManageWebhooks(claims, requested)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Authorization lookup failed", nil)
			return "", false
		}
		if !allowed {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodePermissionDenied, "Not authorized for this tenant", nil)
			return "", false
		}
		return requested, true
	}

	tenantID, err := h.authorizer.ResolveManagedTenant(claims)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Authorization lookup failed", nil)
		return "", false
	}
	if tenantID == "" {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodePermissionDenied, "Caller does not manage exactly one tenant", nil)
		return "", false
	}
	return tenantID, true
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	tenantID := r.URL.Query().Get("tenant_id")
	resolved, ok := h.resolveTargetTenant(w, claims, tenantID)
	if !ok {
		return
	}

	configs, err := h.webhooks.ListByTenant(resolved)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list webhooks", nil)
		return
	}

	redacted := make([]*models.WebhookConfig, 0, len(configs))
	for _, c := range configs {
		redacted = append(redacted, c.Redacted())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(redacted)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, _, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhook.Redacted())
}

type UpdateWebhookRequest struct {
	URL     *string   `json:"url,omitempty"`
	Events  *[]string `json:"events,omitempty"`
	Enabled *bool     `json:"enabled,omitempty"`
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	webhook, claims, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	var req UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "Invalid request body", nil)
		return
	}

	if req.URL != nil {
		if !validWebhookURL(*req.URL) {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "url must be a valid http(s) URL", nil)
			return
		}
		webhook.URL = *req.URL
	}
	if req.Events != nil {
		for _, e := range *req.Events {
			if !models.IsKnownEvent(e) {
				errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "unknown event type: "+e, nil)
				return
			}
		}
		webhook.Events = *req.Events
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	if err := h.webhooks.Update(webhook); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update webhook", nil)
		return
	}

	h.audit.Log(webhook.TenantID, claims.UserID, "webhook.update", "webhook", webhook.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhook.Redacted())
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhook, claims, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	if err := h.webhooks.Delete(webhook.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete webhook", nil)
		return
	}

	h.audit.Log(webhook.TenantID, claims.UserID, "webhook.delete", "webhook", webhook.ID, nil)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Test fires a synthetic client.created delivery synchronously and returns
// the raw result, for "send test" buttons.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	webhook, _, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	result := h.deliverer.Deliver(r.Context(), webhook, models.EventClientCreated, map[string]interface{}{
		"test":      true,
		"message":   "Test webhook delivery",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, 1)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	webhook, _, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	logs, err := h.logs.ListByWebhook(webhook.ID, 50)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// loadAuthorized fetches the webhook from the path parameter and runs the
// shared authorization predicate against its tenant.
func (h *WebhookHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*models.WebhookConfig, *auth.Claims, bool) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	webhook, err := h.webhooks.GetByID(id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load webhook", nil)
		return nil, nil, false
	}
	if webhook == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return nil, nil, false
	}

	allowed, err := h.authorizer.CanManageWebhooks(claims, webhook.TenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Authorization lookup failed", nil)
		return nil, nil, false
	}
	if !allowed {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodePermissionDenied, "Not authorized for this webhook", nil)
		return nil, nil, false
	}

	return webhook, claims, true
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
