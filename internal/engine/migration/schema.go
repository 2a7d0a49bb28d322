package migration

// legacyCollections is the fixed processing order of a user's top-level
// collections. Completeness of a migration run is defined by this list plus
// nestedCollections.
var legacyCollections = []string{"projects", "posts", "leads", "files", "stores", "domains"}

// nestedCollections names the subcollections carried under each parent
// entity type. The generic copier consults this table instead of having one
// hand-written walker per entity.
var nestedCollections = map[string][]string{
	"projects": {"ecommerce", "settings", "emailAudiences", "emailCampaigns", "emailLogs"},
	"leads":    {"activities"},
	"stores":   {"settings", "products", "categories", "orders", "customers", "discounts", "shippingZones", "reviews", "analytics"},
}

// ownerPermissions is the full-access set granted to the synthesized owner
// membership. Granting everything unconditionally mirrors the legacy
// behavior; keep the policy in this one place.
func ownerPermissions() []string {
	return []string{
		"projects.manage",
		"posts.manage",
		"leads.manage",
		"files.manage",
		"stores.manage",
		"domains.manage",
		"members.manage",
		"webhooks.manage",
		"billing.manage",
		"settings.manage",
	}
}
