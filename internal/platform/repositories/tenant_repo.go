package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"quimera/internal/platform/models"
)

type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(tenant *models.Tenant) error {
	now := time.Now().Unix()
	if tenant.CreatedAt == 0 {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO tenants (id, name, slug, type, owner_user_id, owner_tenant_id, subscription_plan, status,
			max_projects, max_users, max_storage_gb, max_ai_credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tenant.ID, tenant.Name, tenant.Slug, tenant.Type, tenant.OwnerUserID, nullString(tenant.OwnerTenantID),
		tenant.SubscriptionPlan, tenant.Status, tenant.Limits.MaxProjects, tenant.Limits.MaxUsers,
		tenant.Limits.MaxStorageGB, tenant.Limits.MaxAiCredits, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

func (r *TenantRepository) GetByID(id string) (*models.Tenant, error) {
	row := r.db.QueryRow(`
		SELECT id, name, slug, type, owner_user_id, owner_tenant_id, subscription_plan, status,
			max_projects, max_users, max_storage_gb, max_ai_credits, created_at, updated_at
		FROM tenants WHERE id = ?
	`, id)
	return scanTenant(row.Scan)
}

func (r *TenantRepository) SlugExists(slug string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM tenants WHERE slug = ?`, slug).Scan(&n)
	return n > 0, err
}

func scanTenant(scan func(dest ...interface{}) error) (*models.Tenant, error) {
	t := &models.Tenant{}
	var ownerTenantID sql.NullString
	err := scan(&t.ID, &t.Name, &t.Slug, &t.Type, &t.OwnerUserID, &ownerTenantID, &t.SubscriptionPlan,
		&t.Status, &t.Limits.MaxProjects, &t.Limits.MaxUsers, &t.Limits.MaxStorageGB, &t.Limits.MaxAiCredits,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if ownerTenantID.Valid {
		t.OwnerTenantID = ownerTenantID.String
	}
	return t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type TenantMemberRepository struct {
	db *sql.DB
}

func NewTenantMemberRepository(db *sql.DB) *TenantMemberRepository {
	return &TenantMemberRepository{db: db}
}

func (r *TenantMemberRepository) Create(member *models.TenantMember) error {
	if member.ID == "" {
		member.ID = member.TenantID + "_" + member.UserID
	}
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}

	permsJSON, err := json.Marshal(member.Permissions)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO tenant_members (id, tenant_id, user_id, role, permissions, invited_by, joined_at, user_name, user_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, member.ID, member.TenantID, member.UserID, member.Role, string(permsJSON), member.InvitedBy,
		member.JoinedAt, member.UserName, member.UserEmail)
	return err
}

func (r *TenantMemberRepository) GetByTenantAndUser(tenantID, userID string) (*models.TenantMember, error) {
	row := r.db.QueryRow(`
		SELECT id, tenant_id, user_id, role, permissions, invited_by, joined_at, user_name, user_email
		FROM tenant_members WHERE tenant_id = ? AND user_id = ?
	`, tenantID, userID)
	return scanMember(row.Scan)
}

// ListManagedByUser returns the memberships in which the user holds a
// manager role.
func (r *TenantMemberRepository) ListManagedByUser(userID string) ([]*models.TenantMember, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, user_id, role, permissions, invited_by, joined_at, user_name, user_email
		FROM tenant_members WHERE user_id = ? ORDER BY joined_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.TenantMember
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		if m != nil && models.IsManagerRole(m.Role) {
			members = append(members, m)
		}
	}
	return members, rows.Err()
}

func scanMember(scan func(dest ...interface{}) error) (*models.TenantMember, error) {
	m := &models.TenantMember{}
	var permsStr string
	var invitedBy, userName, userEmail sql.NullString
	err := scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &permsStr, &invitedBy, &m.JoinedAt, &userName, &userEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(permsStr), &m.Permissions); err != nil {
		log.Error().Err(err).Str("member_id", m.ID).Msg("corrupt permissions column, treating as empty")
	}
	m.InvitedBy = invitedBy.String
	m.UserName = userName.String
	m.UserEmail = userEmail.String
	return m, nil
}
