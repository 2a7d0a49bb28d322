package models

type Tenant struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Slug             string       `json:"slug"`
	Type             string       `json:"type"` // individual, agency
	OwnerUserID      string       `json:"owner_user_id"`
	OwnerTenantID    string       `json:"owner_tenant_id,omitempty"` // set for agency sub-tenants
	SubscriptionPlan string       `json:"subscription_plan"`
	Status           string       `json:"status"`
	Limits           TenantLimits `json:"limits"`
	CreatedAt        int64        `json:"created_at"`
	UpdatedAt        int64        `json:"updated_at"`
}

type TenantLimits struct {
	MaxProjects  int `json:"max_projects"`
	MaxUsers     int `json:"max_users"`
	MaxStorageGB int `json:"max_storage_gb"`
	MaxAiCredits int `json:"max_ai_credits"`
}

// PlanLimits maps a subscription plan to its resource limits. Plans not
// listed here fall back to the free tier.
var PlanLimits = map[string]TenantLimits{
	"free":       {MaxProjects: 3, MaxUsers: 1, MaxStorageGB: 5, MaxAiCredits: 100},
	"pro":        {MaxProjects: 20, MaxUsers: 5, MaxStorageGB: 50, MaxAiCredits: 1000},
	"enterprise": {MaxProjects: 100, MaxUsers: 50, MaxStorageGB: 500, MaxAiCredits: 10000},
}

func LimitsForPlan(plan string) TenantLimits {
	if limits, ok := PlanLimits[plan]; ok {
		return limits
	}
	return PlanLimits["free"]
}

type TenantMember struct {
	ID          string   `json:"id"` // {tenant_id}_{user_id}
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"` // owner, agency_owner, agency_admin, member
	Permissions []string `json:"permissions"`
	InvitedBy   string   `json:"invited_by"`
	JoinedAt    int64    `json:"joined_at"`
	UserName    string   `json:"user_name,omitempty"`
	UserEmail   string   `json:"user_email,omitempty"`
}

// ManagerRoles are the membership roles allowed to manage tenant resources
// such as webhooks.
var ManagerRoles = []string{"owner", "agency_owner", "agency_admin"}

func IsManagerRole(role string) bool {
	for _, r := range ManagerRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
	PasswordHash          string `json:"-"`
	Role                  string `json:"role"` // user, platform_admin
	SubscriptionPlan      string `json:"subscription_plan"`
	TenantID              string `json:"tenant_id,omitempty"`
	MigratedToMultiTenant bool   `json:"migrated_to_multi_tenant"`
	MigratedAt            *int64 `json:"migrated_at,omitempty"`
	CreatedAt             int64  `json:"created_at"`
	UpdatedAt             int64  `json:"updated_at"`
}

const RolePlatformAdmin = "platform_admin"
