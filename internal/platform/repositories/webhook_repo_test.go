package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"quimera/internal/platform/models"
)

var webhookColumns = []string{
	"id", "tenant_id", "url", "secret", "events", "enabled", "retry_count",
	"last_triggered_at", "last_status", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*WebhookRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWebhookRepository(db), mock
}

func TestWebhookRepo_GetByID_NotFoundIsNilNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM webhook_configs WHERE id = ?").
		WithArgs("wh_missing").
		WillReturnError(sql.ErrNoRows)

	webhook, err := repo.GetByID("wh_missing")
	if err != nil {
		t.Errorf("Expected nil error for missing row, got %v", err)
	}
	if webhook != nil {
		t.Errorf("Expected nil webhook, got %+v", webhook)
	}
}

func TestWebhookRepo_GetByID_ScansNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(webhookColumns).
		AddRow("wh_1", "tn_1", "https://example.com", "secret", `["lead.captured","project.published"]`,
			true, 3, nil, nil, int64(100), int64(100))
	mock.ExpectQuery("SELECT (.+) FROM webhook_configs WHERE id = ?").
		WithArgs("wh_1").
		WillReturnRows(rows)

	webhook, err := repo.GetByID("wh_1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if webhook.LastTriggeredAt != nil || webhook.LastStatus != "" {
		t.Errorf("Expected never-triggered config, got %+v", webhook)
	}
	if len(webhook.Events) != 2 || webhook.Events[0] != "lead.captured" {
		t.Errorf("Events not decoded: %v", webhook.Events)
	}
}

func TestWebhookRepo_GetByID_CorruptEventsColumn(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(webhookColumns).
		AddRow("wh_1", "tn_1", "https://example.com", "secret", `not-json`,
			true, 3, nil, nil, int64(100), int64(100))
	mock.ExpectQuery("SELECT (.+) FROM webhook_configs WHERE id = ?").
		WithArgs("wh_1").
		WillReturnRows(rows)

	// Corruption degrades to an empty subscription set, never an error.
	webhook, err := repo.GetByID("wh_1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(webhook.Events) != 0 {
		t.Errorf("Expected empty events for corrupt column, got %v", webhook.Events)
	}
}

func TestWebhookRepo_ListEnabledForEvent_FiltersOnEvents(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(webhookColumns).
		AddRow("wh_1", "tn_1", "https://a.example.com", "s1", `["lead.captured"]`,
			true, 3, nil, nil, int64(100), int64(100)).
		AddRow("wh_2", "tn_1", "https://b.example.com", "s2", `["project.published"]`,
			true, 3, nil, nil, int64(100), int64(100))
	mock.ExpectQuery("SELECT (.+) FROM webhook_configs WHERE tenant_id = \\? AND enabled = 1").
		WithArgs("tn_1").
		WillReturnRows(rows)

	matched, err := repo.ListEnabledForEvent("tn_1", "lead.captured")
	if err != nil {
		t.Fatalf("ListEnabledForEvent failed: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != "wh_1" {
		t.Errorf("Expected only wh_1 to match, got %+v", matched)
	}
}

func TestWebhookRepo_Update_TouchesMutableColumnsOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE webhook_configs SET url = \\?, events = \\?, enabled = \\?, updated_at = \\? WHERE id = \\?").
		WithArgs("https://new.example.com", `["lead.captured"]`, false, sqlmock.AnyArg(), "wh_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(&models.WebhookConfig{
		ID:      "wh_1",
		URL:     "https://new.example.com",
		Events:  []string{"lead.captured"},
		Enabled: false,
	})
	if err != nil {
		t.Errorf("Update failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWebhookRepo_Delete_PropagatesError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM webhook_configs WHERE id = ?").
		WithArgs("wh_1").
		WillReturnError(errors.New("disk I/O error"))

	if err := repo.Delete("wh_1"); err == nil {
		t.Error("Expected error from Delete")
	}
}
