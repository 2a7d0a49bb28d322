package repositories

import (
	"database/sql"
	"time"

	"quimera/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO users (id, email, name, password_hash, role, subscription_plan, tenant_id,
			migrated_to_multi_tenant, migrated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.SubscriptionPlan,
		nullString(user.TenantID), user.MigratedToMultiTenant, user.MigratedAt, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	row := r.db.QueryRow(`
		SELECT id, email, name, password_hash, role, subscription_plan, tenant_id,
			migrated_to_multi_tenant, migrated_at, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row.Scan)
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	row := r.db.QueryRow(`
		SELECT id, email, name, password_hash, role, subscription_plan, tenant_id,
			migrated_to_multi_tenant, migrated_at, created_at, updated_at
		FROM users WHERE email = ?
	`, email)
	return scanUser(row.Scan)
}

// ListUnmigrated returns up to limit users that have not been moved to the
// multi-tenant layout yet.
func (r *UserRepository) ListUnmigrated(limit int) ([]*models.User, error) {
	rows, err := r.db.Query(`
		SELECT id, email, name, password_hash, role, subscription_plan, tenant_id,
			migrated_to_multi_tenant, migrated_at, created_at, updated_at
		FROM users WHERE migrated_to_multi_tenant != 1 ORDER BY created_at LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// MarkMigrated records the migration outcome on the source user row. The
// source data itself is never touched.
func (r *UserRepository) MarkMigrated(userID, tenantID string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE users SET tenant_id = ?, migrated_to_multi_tenant = 1, migrated_at = ?, updated_at = ?
		WHERE id = ?
	`, tenantID, now, now, userID)
	return err
}

// ClaimForMigration takes the migration lease on a user, closing the
// check-then-act window on concurrent runs. A claim held by another run
// blocks the takeover until it goes stale (claimed_at before staleBefore),
// so a crashed run cannot fence its users out forever.
func (r *UserRepository) ClaimForMigration(userID string, staleBefore int64) (bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO migration_claims (user_id, claimed_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET claimed_at = excluded.claimed_at
		WHERE migration_claims.claimed_at < ?
	`, userID, time.Now().Unix(), staleBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseClaim drops the user's migration claim so a failed run can be
// retried immediately instead of waiting for the lease to expire.
func (r *UserRepository) ReleaseClaim(userID string) error {
	_, err := r.db.Exec(`DELETE FROM migration_claims WHERE user_id = ?`, userID)
	return err
}

func scanUser(scan func(dest ...interface{}) error) (*models.User, error) {
	u := &models.User{}
	var tenantID sql.NullString
	var migratedAt sql.NullInt64
	err := scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.SubscriptionPlan, &tenantID,
		&u.MigratedToMultiTenant, &migratedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if tenantID.Valid {
		u.TenantID = tenantID.String
	}
	if migratedAt.Valid {
		u.MigratedAt = &migratedAt.Int64
	}
	return u, nil
}
