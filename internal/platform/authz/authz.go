// Package authz holds the authorization predicates shared by the management
// API. Keeping the checks in one place stops the per-endpoint copies from
// drifting apart.
package authz

import (
	"quimera/internal/platform/auth"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

type Authorizer struct {
	members *repositories.TenantMemberRepository
}

func New(members *repositories.TenantMemberRepository) *Authorizer {
	return &Authorizer{members: members}
}

// CanManageWebhooks reports whether the caller may manage webhook configs
// belonging to tenantID: platform admins always may, everyone else needs a
// manager-role membership on the tenant.
func (a *Authorizer) CanManageWebhooks(claims *auth.Claims, tenantID string) (bool, error) {
	if claims.Role == models.RolePlatformAdmin {
		return true, nil
	}

	member, err := a.members.GetByTenantAndUser(tenantID, claims.UserID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, nil
	}
	return models.IsManagerRole(member.Role), nil
}

// ResolveManagedTenant finds the single tenant the caller manages. It is
// used when a create request does not name a tenant explicitly; ambiguity
// (zero or several managed tenants) resolves to "".
func (a *Authorizer) ResolveManagedTenant(claims *auth.Claims) (string, error) {
	memberships, err := a.members.ListManagedByUser(claims.UserID)
	if err != nil {
		return "", err
	}
	if len(memberships) != 1 {
		return "", nil
	}
	return memberships[0].TenantID, nil
}
