package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	apiContext "quimera/internal/api/context"
	"quimera/internal/engine/triggers"
	"quimera/internal/pkg/errors"
	"quimera/internal/pkg/validator"
	"quimera/internal/platform/docstore"
	"quimera/internal/platform/repositories"
)

// LeadHandler accepts public landing-page form submissions. It is the wired
// producer for lead.captured.
type LeadHandler struct {
	tenants  *repositories.TenantRepository
	docs     *docstore.Store
	notifier *triggers.Notifier
}

func NewLeadHandler(tenants *repositories.TenantRepository, docs *docstore.Store, notifier *triggers.Notifier) *LeadHandler {
	return &LeadHandler{tenants: tenants, docs: docs, notifier: notifier}
}

func (h *LeadHandler) Capture(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	tenant, err := h.tenants.GetByID(tenantID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load tenant", nil)
		return
	}
	if tenant == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Tenant not found", nil)
		return
	}

	var lead map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, "Invalid request body", nil)
		return
	}

	email, _ := lead["email"].(string)
	if err := validator.ValidEmail(email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidArgument, err.Error(), nil)
		return
	}

	leadID := "ld_" + uuid.New().String()
	lead["id"] = leadID

	if err := h.docs.Put(r.Context(), "tenants/"+tenantID+"/leads/"+leadID, lead); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to store lead", nil)
		return
	}

	h.notifier.LeadCaptured(r.Context(), tenantID, lead)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "lead_id": leadID})
}
