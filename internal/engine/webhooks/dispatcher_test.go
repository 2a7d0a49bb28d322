package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *repositories.WebhookRepository, *repositories.DeliveryLogRepository) {
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	deliverer := NewDeliverer(webhookRepo, logRepo, testWebhooksConfig())
	return NewDispatcher(webhookRepo, deliverer, testWebhooksConfig()), webhookRepo, logRepo
}

// One subscriber timing out, one returning 500 and one returning 200 must
// yield three independent outcomes and never an error to the caller.
func TestDispatch_FanOutIsolation(t *testing.T) {
	dispatcher, webhookRepo, logRepo := newTestDispatcher(t)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	events := []string{models.EventLeadCaptured}
	cfgSlow := createConfig(t, webhookRepo, "tn_1", slow.URL, events, 1)
	cfgFail := createConfig(t, webhookRepo, "tn_1", failing.URL, events, 1)
	cfgOK := createConfig(t, webhookRepo, "tn_1", healthy.URL, events, 1)

	dispatcher.Dispatch(context.Background(), "tn_1", models.EventLeadCaptured, map[string]interface{}{"x": 1})

	expected := map[string]string{
		cfgSlow.ID: models.DeliveryStatusFailed,
		cfgFail.ID: models.DeliveryStatusFailed,
		cfgOK.ID:   models.DeliveryStatusSuccess,
	}
	for id, want := range expected {
		logs, err := logRepo.ListByWebhook(id, 10)
		if err != nil {
			t.Fatalf("ListByWebhook: %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("Webhook %s: expected 1 attempt logged, got %d", id, len(logs))
		}
		if logs[0].Status != want {
			t.Errorf("Webhook %s: expected status %s, got %s", id, want, logs[0].Status)
		}

		cfg, _ := webhookRepo.GetByID(id)
		if cfg.LastStatus != want {
			t.Errorf("Webhook %s: expected last_status %s, got %s", id, want, cfg.LastStatus)
		}
	}
}

func TestDispatch_EventFilter(t *testing.T) {
	dispatcher, webhookRepo, _ := newTestDispatcher(t)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)

	dispatcher.Dispatch(context.Background(), "tn_1", models.EventProjectPublished, nil)
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("Subscriber to lead.captured received %d project.published deliveries", n)
	}

	dispatcher.Dispatch(context.Background(), "tn_1", models.EventLeadCaptured, nil)
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected exactly 1 delivery, got %d", n)
	}
}

func TestDispatch_TenantIsolation(t *testing.T) {
	dispatcher, webhookRepo, _ := newTestDispatcher(t)

	var hitsA, hitsB int32
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hitsA, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hitsB, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer serverB.Close()

	events := []string{models.EventLeadCaptured}
	createConfig(t, webhookRepo, "tn_a", serverA.URL, events, 1)
	createConfig(t, webhookRepo, "tn_b", serverB.URL, events, 1)

	dispatcher.Dispatch(context.Background(), "tn_a", models.EventLeadCaptured, nil)

	if atomic.LoadInt32(&hitsA) != 1 {
		t.Errorf("Tenant A subscriber: expected 1 delivery, got %d", hitsA)
	}
	if atomic.LoadInt32(&hitsB) != 0 {
		t.Errorf("Tenant B subscriber received tenant A's event %d times", hitsB)
	}
}

func TestDispatch_DisabledConfigSkipped(t *testing.T) {
	dispatcher, webhookRepo, _ := newTestDispatcher(t)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 1)
	cfg.Enabled = false
	if err := webhookRepo.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	dispatcher.Dispatch(context.Background(), "tn_1", models.EventLeadCaptured, nil)
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("Disabled config still received a delivery")
	}
}

// A config with a retry budget keeps attempting until success, logging each
// attempt with its own number.
func TestDispatch_RetriesHonorRetryCount(t *testing.T) {
	dispatcher, webhookRepo, logRepo := newTestDispatcher(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := createConfig(t, webhookRepo, "tn_1", server.URL, []string{models.EventLeadCaptured}, 3)

	dispatcher.Dispatch(context.Background(), "tn_1", models.EventLeadCaptured, nil)

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("Expected 3 attempts, got %d", n)
	}

	logs, _ := logRepo.ListByWebhook(cfg.ID, 10)
	if len(logs) != 3 {
		t.Fatalf("Expected 3 log rows, got %d", len(logs))
	}
	attempts := map[int]string{}
	for _, entry := range logs {
		attempts[entry.AttemptNumber] = entry.Status
	}
	if attempts[1] != models.DeliveryStatusFailed || attempts[2] != models.DeliveryStatusFailed || attempts[3] != models.DeliveryStatusSuccess {
		t.Errorf("Unexpected attempt outcomes: %v", attempts)
	}

	updated, _ := webhookRepo.GetByID(cfg.ID)
	if updated.LastStatus != models.DeliveryStatusSuccess {
		t.Errorf("Expected last_status success after retry, got %q", updated.LastStatus)
	}
}

func TestDispatch_NoConfigsIsNoop(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)

	done := make(chan struct{})
	go func() {
		dispatcher.Dispatch(context.Background(), "tn_none", models.EventLeadCaptured, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch with no configs did not return promptly")
	}
}
