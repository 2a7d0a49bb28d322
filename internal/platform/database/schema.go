package database

import "database/sql"

// Schema is the full DDL for a fresh store. Statements are idempotent so
// EnsureSchema can run at every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	name TEXT,
	password_hash TEXT,
	role TEXT DEFAULT 'user',
	subscription_plan TEXT DEFAULT 'free',
	tenant_id TEXT,
	migrated_to_multi_tenant INTEGER DEFAULT 0,
	migrated_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT UNIQUE NOT NULL,
	type TEXT NOT NULL,
	owner_user_id TEXT NOT NULL,
	owner_tenant_id TEXT,
	subscription_plan TEXT NOT NULL,
	status TEXT NOT NULL,
	max_projects INTEGER NOT NULL,
	max_users INTEGER NOT NULL,
	max_storage_gb INTEGER NOT NULL,
	max_ai_credits INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tenant_members (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	permissions TEXT NOT NULL,
	invited_by TEXT,
	joined_at INTEGER NOT NULL,
	user_name TEXT,
	user_email TEXT
);
CREATE INDEX IF NOT EXISTS idx_tenant_members_user ON tenant_members(user_id);
CREATE INDEX IF NOT EXISTS idx_tenant_members_tenant ON tenant_members(tenant_id);

CREATE TABLE IF NOT EXISTS webhook_configs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	url TEXT NOT NULL,
	secret TEXT NOT NULL,
	events TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	retry_count INTEGER NOT NULL DEFAULT 3,
	last_triggered_at INTEGER,
	last_status TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_webhook_configs_tenant ON webhook_configs(tenant_id);

CREATE TABLE IF NOT EXISTS webhook_delivery_logs (
	id TEXT PRIMARY KEY,
	webhook_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	event TEXT NOT NULL,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	status_code INTEGER,
	response_body TEXT,
	error TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	attempt_number INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delivery_logs_webhook ON webhook_delivery_logs(webhook_id, created_at);

CREATE TABLE IF NOT EXISTS documents (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT,
	user_id TEXT,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT,
	metadata TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS migration_claims (
	user_id TEXT PRIMARY KEY,
	claimed_at INTEGER NOT NULL
);
`

func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
