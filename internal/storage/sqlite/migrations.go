package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultDashboardName is the name given to the dashboard provisioned on
// first boot.
const DefaultDashboardName = "Main"

// schema contains the base database schema DDL.
const schema = `
-- Integrations
CREATE TABLE IF NOT EXISTS integrations (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    config TEXT NOT NULL DEFAULT '{}',
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_integrations_type ON integrations(type);

-- Widgets are not owned by any dashboard
CREATE TABLE IF NOT EXISTS widgets (
    id TEXT PRIMARY KEY,
    integration_id TEXT REFERENCES integrations(id) ON DELETE SET NULL,
    widget_type TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    config TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Dashboards
CREATE TABLE IF NOT EXISTS dashboards (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_default INTEGER NOT NULL DEFAULT 0,
    kiosk_slug TEXT UNIQUE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Standalone widget placement
CREATE TABLE IF NOT EXISTS dashboard_layouts (
    dashboard_id TEXT NOT NULL REFERENCES dashboards(id),
    widget_id TEXT NOT NULL REFERENCES widgets(id),
    x INTEGER NOT NULL DEFAULT 0,
    y INTEGER NOT NULL DEFAULT 0,
    w INTEGER NOT NULL DEFAULT 4,
    h INTEGER NOT NULL DEFAULT 3,
    PRIMARY KEY (dashboard_id, widget_id)
);

-- Groups
CREATE TABLE IF NOT EXISTS widget_groups (
    id TEXT PRIMARY KEY,
    dashboard_id TEXT NOT NULL REFERENCES dashboards(id),
    title TEXT NOT NULL DEFAULT '',
    config TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_widget_groups_dashboard ON widget_groups(dashboard_id);

CREATE TABLE IF NOT EXISTS group_layouts (
    dashboard_id TEXT NOT NULL REFERENCES dashboards(id),
    group_id TEXT NOT NULL REFERENCES widget_groups(id),
    x INTEGER NOT NULL DEFAULT 0,
    y INTEGER NOT NULL DEFAULT 0,
    w INTEGER NOT NULL DEFAULT 4,
    h INTEGER NOT NULL DEFAULT 3,
    PRIMARY KEY (dashboard_id, group_id)
);

-- A widget belongs to at most one group per dashboard
CREATE TABLE IF NOT EXISTS group_members (
    dashboard_id TEXT NOT NULL REFERENCES dashboards(id),
    group_id TEXT NOT NULL REFERENCES widget_groups(id),
    widget_id TEXT NOT NULL REFERENCES widgets(id),
    x INTEGER NOT NULL DEFAULT 0,
    y INTEGER NOT NULL DEFAULT 0,
    w INTEGER NOT NULL DEFAULT 4,
    h INTEGER NOT NULL DEFAULT 3,
    PRIMARY KEY (dashboard_id, widget_id)
);
CREATE INDEX IF NOT EXISTS idx_group_members_group ON group_members(group_id);
`

// Schema version tracking (PRAGMA user_version):
// 1 - base schema
// 2 - at most one default dashboard, enforced by a partial unique index
const currentSchemaVersion = 2

type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, apply: func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	}},
	{version: 2, apply: func(ctx context.Context, tx *sql.Tx) error {
		// Older snapshots may carry several defaults; keep the oldest.
		_, err := tx.ExecContext(ctx, `
			UPDATE dashboards SET is_default = 0
			WHERE is_default = 1 AND rowid NOT IN (
				SELECT rowid FROM dashboards WHERE is_default = 1
				ORDER BY created_at ASC, rowid ASC LIMIT 1
			)
		`)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_dashboards_single_default
			ON dashboards(is_default) WHERE is_default = 1
		`)
		return err
	}},
}

// migrate brings the schema forward to currentSchemaVersion and makes sure a
// default dashboard exists. It is idempotent.
func migrate(ctx context.Context, db *sql.DB, now time.Time) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	from := version

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(ctx, tx); err != nil {
			return 0, fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		version = m.version
	}

	if err := ensureDefaultDashboard(ctx, tx, now); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return 0, fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return from, nil
}

// ensureDefaultDashboard provisions the first-boot dashboard, or promotes the
// oldest dashboard when none is marked default.
func ensureDefaultDashboard(ctx context.Context, tx *sql.Tx, now time.Time) error {
	var defaults, total int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(is_default), 0), COUNT(*) FROM dashboards
	`).Scan(&defaults, &total)
	if err != nil {
		return fmt.Errorf("count dashboards: %w", err)
	}

	switch {
	case defaults > 0:
		return nil
	case total == 0:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dashboards (id, name, description, is_default, created_at, updated_at)
			VALUES (?, ?, '', 1, ?, ?)
		`, uuid.NewString(), DefaultDashboardName, now, now)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE dashboards SET is_default = 1
			WHERE rowid = (SELECT rowid FROM dashboards ORDER BY created_at ASC, rowid ASC LIMIT 1)
		`)
	}
	if err != nil {
		return fmt.Errorf("provision default dashboard: %w", err)
	}
	return nil
}
