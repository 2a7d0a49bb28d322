// Package triggers translates platform document events into webhook
// dispatches. Every producer resolves the billing tenant the same way: one
// level up via owner_tenant_id when set, the tenant itself otherwise.
//
// LeadCaptured is wired to the public lead-capture endpoint. TenantCreated
// and ProjectChanged are the hooks for the services that own tenant and
// project writes; this module exposes no endpoints for those writes, so
// whatever performs them must call the matching Notifier method.
package triggers

import (
	"context"

	"github.com/rs/zerolog/log"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, tenantID, event string, data interface{})
}

type Notifier struct {
	tenants    *repositories.TenantRepository
	dispatcher EventDispatcher
}

func NewNotifier(tenants *repositories.TenantRepository, dispatcher EventDispatcher) *Notifier {
	return &Notifier{tenants: tenants, dispatcher: dispatcher}
}

// TenantCreated fires client.created for sub-tenants only: a top-level
// agency creating itself has no owner to notify. Call it after persisting
// a new tenant.
func (n *Notifier) TenantCreated(ctx context.Context, tenant *models.Tenant) {
	if tenant.OwnerTenantID == "" {
		return
	}
	n.dispatcher.Dispatch(ctx, tenant.OwnerTenantID, models.EventClientCreated, map[string]interface{}{
		"clientId":   tenant.ID,
		"clientName": tenant.Name,
		"slug":       tenant.Slug,
		"plan":       tenant.SubscriptionPlan,
	})
}

// ProjectChanged fires project.published on a non-published to published
// transition, and project.unpublished on the reverse. Call it with the
// document states before and after a project write.
func (n *Notifier) ProjectChanged(ctx context.Context, tenantID string, before, after map[string]interface{}) {
	prev, _ := before["status"].(string)
	next, _ := after["status"].(string)
	if prev == next {
		return
	}

	var event string
	switch {
	case next == "published":
		event = models.EventProjectPublished
	case prev == "published":
		event = models.EventProjectUnpublished
	default:
		return
	}

	owner := n.resolveOwner(tenantID)
	n.dispatcher.Dispatch(ctx, owner, event, map[string]interface{}{
		"projectId":   after["id"],
		"projectName": after["name"],
		"tenantId":    tenantID,
		"status":      next,
	})
}

func (n *Notifier) LeadCaptured(ctx context.Context, tenantID string, lead map[string]interface{}) {
	owner := n.resolveOwner(tenantID)
	n.dispatcher.Dispatch(ctx, owner, models.EventLeadCaptured, lead)
}

// resolveOwner walks up exactly one level. Lookup failures fall back to the
// tenant itself so an event is never dropped on a read error.
func (n *Notifier) resolveOwner(tenantID string) string {
	tenant, err := n.tenants.GetByID(tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to resolve owner tenant")
		return tenantID
	}
	if tenant == nil || tenant.OwnerTenantID == "" {
		return tenantID
	}
	return tenant.OwnerTenantID
}
