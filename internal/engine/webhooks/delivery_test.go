package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"quimera/internal/platform/config"
	"quimera/internal/platform/database"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

func testWebhooksConfig() config.WebhooksConfig {
	return config.WebhooksConfig{
		DeliveryTimeout:  200 * time.Millisecond,
		RetryBackoff:     time.Millisecond,
		DefaultRetries:   3,
		MaxResponseBytes: 1000,
	}
}

func createConfig(t *testing.T, repo *repositories.WebhookRepository, tenantID, url string, events []string, retries int) *models.WebhookConfig {
	cfg := &models.WebhookConfig{
		TenantID:   tenantID,
		URL:        url,
		Secret:     "test-secret",
		Events:     events,
		Enabled:    true,
		RetryCount: retries,
	}
	if err := repo.Create(cfg); err != nil {
		t.Fatalf("Failed to create webhook config: %v", err)
	}
	return cfg
}

func TestDeliverer_Success(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	var gotSig, gotEvent, gotTimestamp string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotTimestamp = r.Header.Get("X-Webhook-Timestamp")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)

	result := deliverer.Deliver(context.Background(), cfg, models.EventLeadCaptured, map[string]interface{}{"email": "a@b.com"}, 1)
	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}

	// Signature verifiable by an independent receiver.
	if !Verify(cfg.Secret, gotBody, gotSig) {
		t.Error("Delivered signature does not verify against the body")
	}
	if gotEvent != models.EventLeadCaptured {
		t.Errorf("X-Webhook-Event = %q", gotEvent)
	}
	if _, err := time.Parse(time.RFC3339, gotTimestamp); err != nil {
		t.Errorf("X-Webhook-Timestamp not ISO-8601: %q", gotTimestamp)
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("Body not valid JSON: %v", err)
	}
	if payload.TenantID != "tn_1" || payload.Event != models.EventLeadCaptured {
		t.Errorf("Unexpected payload envelope: %+v", payload)
	}

	// One log row, success status mirrored on the config.
	logs, err := logRepo.ListByWebhook(cfg.ID, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("Expected 1 log row, got %d (%v)", len(logs), err)
	}
	if logs[0].Status != models.DeliveryStatusSuccess || logs[0].AttemptNumber != 1 {
		t.Errorf("Unexpected log row: %+v", logs[0])
	}

	updated, _ := webhookRepo.GetByID(cfg.ID)
	if updated.LastStatus != models.DeliveryStatusSuccess || updated.LastTriggeredAt == nil {
		t.Errorf("Config status not updated: %+v", updated)
	}
}

func TestDeliverer_HTTPFailure(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)

	result := deliverer.Deliver(context.Background(), cfg, models.EventLeadCaptured, nil, 1)
	if result.Success {
		t.Fatal("Expected failure for HTTP 500")
	}

	logs, _ := logRepo.ListByWebhook(cfg.ID, 10)
	if len(logs) != 1 || logs[0].Status != models.DeliveryStatusFailed {
		t.Fatalf("Expected 1 failed log row, got %+v", logs)
	}
	if logs[0].StatusCode == nil || *logs[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status code 500 in log, got %+v", logs[0].StatusCode)
	}
	if logs[0].ResponseBody != "boom" {
		t.Errorf("Expected response body captured, got %q", logs[0].ResponseBody)
	}

	updated, _ := webhookRepo.GetByID(cfg.ID)
	if updated.LastStatus != models.DeliveryStatusFailed {
		t.Errorf("Expected last_status failed, got %q", updated.LastStatus)
	}
}

func TestDeliverer_Timeout(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)

	result := deliverer.Deliver(context.Background(), cfg, models.EventLeadCaptured, nil, 1)
	if result.Success {
		t.Fatal("Expected timeout to fail the delivery")
	}
	if result.Error == "" {
		t.Error("Expected a transport error message")
	}

	logs, _ := logRepo.ListByWebhook(cfg.ID, 10)
	if len(logs) != 1 || logs[0].Status != models.DeliveryStatusFailed {
		t.Fatalf("Expected 1 failed log row, got %+v", logs)
	}
}

func TestDeliverer_TruncatesResponseBody(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)
	deliverer.Deliver(context.Background(), cfg, models.EventLeadCaptured, nil, 1)

	logs, _ := logRepo.ListByWebhook(cfg.ID, 10)
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log row, got %d", len(logs))
	}
	if len(logs[0].ResponseBody) != 1000 {
		t.Errorf("Expected response body truncated to 1000 chars, got %d", len(logs[0].ResponseBody))
	}
}

func TestDeliverer_BadURLDoesNotPanic(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())

	cfg := createConfig(t, webhookRepo, "tn_1", "http://127.0.0.1:1/unreachable", []string{models.EventLeadCaptured}, 1)

	result := deliverer.Deliver(context.Background(), cfg, models.EventLeadCaptured, nil, 1)
	if result.Success {
		t.Fatal("Expected failure for unreachable endpoint")
	}

	logs, _ := logRepo.ListByWebhook(cfg.ID, 10)
	if len(logs) != 1 || logs[0].Error == "" {
		t.Fatalf("Expected failed log row with error, got %+v", logs)
	}
}
