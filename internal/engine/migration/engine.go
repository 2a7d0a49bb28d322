// Package migration copies a user's legacy flat subtree
// (users/{uid}/projects, posts, leads, ...) into the multi-tenant layout
// under tenants/{tid}, synthesizing the tenant and owner membership records
// along the way. The copy is additive: source documents are never deleted,
// target document IDs are reused, so a re-run converges instead of
// duplicating.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"quimera/internal/platform/docstore"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

type Options struct {
	DryRun    bool
	UserID    string // single-user mode when set
	BatchSize int
}

// claimTTL bounds how long a crashed run can hold a user's migration claim
// before another run may take it over.
const claimTTL = time.Hour

type Engine struct {
	users   *repositories.UserRepository
	tenants *repositories.TenantRepository
	members *repositories.TenantMemberRepository
	docs    *docstore.Store
}

func NewEngine(users *repositories.UserRepository, tenants *repositories.TenantRepository,
	members *repositories.TenantMemberRepository, docs *docstore.Store) *Engine {
	return &Engine{users: users, tenants: tenants, members: members, docs: docs}
}

// Run executes one migration pass and returns the folded report. Per-user
// and per-collection failures land in the report; only infrastructure
// failures (store unreachable, unknown user) are returned as errors.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	report := newReport(opts.DryRun)

	var users []*models.User
	if opts.UserID != "" {
		user, err := e.users.GetByID(opts.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, errors.New("user not found: " + opts.UserID)
		}
		if user.MigratedToMultiTenant {
			log.Info().Str("user_id", user.ID).Msg("user already migrated, skipping")
			report.fold(UserResult{UserID: user.ID, Skipped: true})
			return report, nil
		}
		users = []*models.User{user}
	} else {
		batch := opts.BatchSize
		if batch <= 0 {
			batch = 10
		}
		var err error
		users, err = e.users.ListUnmigrated(batch)
		if err != nil {
			return nil, err
		}
	}

	for _, user := range users {
		if !opts.DryRun {
			claimed, err := e.users.ClaimForMigration(user.ID, time.Now().Add(-claimTTL).Unix())
			if err != nil {
				return nil, err
			}
			if !claimed {
				log.Warn().Str("user_id", user.ID).Msg("user claimed by another migration run, skipping")
				report.fold(UserResult{UserID: user.ID, Skipped: true})
				continue
			}
		}

		result := e.migrateUser(ctx, user, opts.DryRun)
		if result.Err != nil && !opts.DryRun {
			// A failed user must be retryable on the next run.
			if err := e.users.ReleaseClaim(user.ID); err != nil {
				log.Error().Err(err).Str("user_id", user.ID).Msg("failed to release migration claim")
			}
		}
		report.fold(result)
	}

	return report, nil
}

// migrateUser processes one user end to end. A collection failure is
// recorded and the remaining collections still run; only tenant or
// membership synthesis failures abort the user.
func (e *Engine) migrateUser(ctx context.Context, user *models.User, dryRun bool) UserResult {
	tenantID := tenantIDFor(user.ID)
	result := UserResult{UserID: user.ID, TenantID: tenantID}

	log.Info().Str("user_id", user.ID).Str("tenant_id", tenantID).Bool("dry_run", dryRun).Msg("migrating user")

	if !dryRun {
		if err := e.ensureTenant(user, tenantID); err != nil {
			result.Err = fmt.Errorf("create tenant: %w", err)
			return result
		}
		if err := e.ensureMembership(user, tenantID); err != nil {
			result.Err = fmt.Errorf("create membership: %w", err)
			return result
		}
	}

	for _, collection := range legacyCollections {
		src := "users/" + user.ID + "/" + collection
		dst := "tenants/" + tenantID + "/" + collection

		copied, err := e.copyCollection(ctx, src, dst, nestedCollections[collection], dryRun)
		result.Collections = append(result.Collections, CollectionResult{
			Collection: collection,
			Copied:     copied,
			Err:        err,
		})
	}

	if !dryRun {
		if err := e.users.MarkMigrated(user.ID, tenantID); err != nil {
			result.Err = fmt.Errorf("mark migrated: %w", err)
		}
	}

	return result
}

// copyCollection copies every document under src to dst, reusing document
// IDs and stamping provenance fields, then recurses into the declared
// subcollections of each copied document. Returns the total documents
// copied, including nested ones.
func (e *Engine) copyCollection(ctx context.Context, src, dst string, nested []string, dryRun bool) (int, error) {
	docs, err := e.docs.List(ctx, src)
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, doc := range docs {
		if dryRun {
			log.Info().Str("from", doc.Path).Str("to", dst+"/"+doc.ID).Msg("would migrate document")
		} else {
			data := make(map[string]interface{}, len(doc.Data)+2)
			for k, v := range doc.Data {
				data[k] = v
			}
			data["migratedAt"] = time.Now().Unix()
			data["originalPath"] = doc.Path

			if err := e.docs.Put(ctx, dst+"/"+doc.ID, data); err != nil {
				return copied, fmt.Errorf("copy %s: %w", doc.Path, err)
			}
		}
		copied++

		for _, sub := range nested {
			// Subcollections below the first level have no further nesting.
			n, err := e.copyCollection(ctx, doc.Path+"/"+sub, dst+"/"+doc.ID+"/"+sub, nil, dryRun)
			copied += n
			if err != nil {
				return copied, err
			}
		}
	}

	return copied, nil
}

func (e *Engine) ensureTenant(user *models.User, tenantID string) error {
	existing, err := e.tenants.GetByID(tenantID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return e.tenants.Create(synthesizeTenant(user, tenantID))
}

func (e *Engine) ensureMembership(user *models.User, tenantID string) error {
	return e.members.Create(&models.TenantMember{
		TenantID:    tenantID,
		UserID:      user.ID,
		Role:        "agency_owner",
		Permissions: ownerPermissions(),
		InvitedBy:   "migration",
		UserName:    user.Name,
		UserEmail:   user.Email,
	})
}

func synthesizeTenant(user *models.User, tenantID string) *models.Tenant {
	name := user.Name
	if name == "" {
		name = emailLocalPart(user.Email)
	}

	return &models.Tenant{
		ID:               tenantID,
		Name:             name,
		Slug:             UniqueSlug(name, tenantID),
		Type:             "individual",
		OwnerUserID:      user.ID,
		SubscriptionPlan: user.SubscriptionPlan,
		Status:           "active",
		Limits:           models.LimitsForPlan(user.SubscriptionPlan),
	}
}

// tenantIDFor derives a stable tenant id from the user id so an interrupted
// run resumes into the same tenant instead of minting a second one.
func tenantIDFor(userID string) string {
	return "tn_" + userID
}

func emailLocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
