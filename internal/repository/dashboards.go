package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Dashboards manages dashboards, the default-dashboard invariant, kiosk
// slugs, duplication and export/import.
type Dashboards struct {
	base
}

// widget_count counts each widget once whether it is standalone, grouped,
// or (in legacy data) both.
const dashboardColumns = `
	d.id, d.name, d.description, d.is_default, d.kiosk_slug, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM dashboard_layouts l WHERE l.dashboard_id = d.id)
	+ (SELECT COUNT(*) FROM group_members m WHERE m.dashboard_id = d.id
		AND NOT EXISTS (SELECT 1 FROM dashboard_layouts l2
			WHERE l2.dashboard_id = m.dashboard_id AND l2.widget_id = m.widget_id)) AS widget_count,
	(SELECT COUNT(*) FROM widget_groups g WHERE g.dashboard_id = d.id) AS group_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDashboard(row rowScanner) (*domain.Dashboard, error) {
	var d domain.Dashboard
	var slug sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.IsDefault, &slug,
		&d.CreatedAt, &d.UpdatedAt, &d.WidgetCount, &d.GroupCount)
	if err != nil {
		return nil, err
	}
	d.KioskSlug = nullString(slug)
	return &d, nil
}

func getDashboard(ctx context.Context, q storage.Querier, key, where string, args ...any) (*domain.Dashboard, error) {
	d, err := scanDashboard(q.QueryRowContext(ctx,
		"SELECT "+dashboardColumns+" FROM dashboards d WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "dashboard", ID: key}
	}
	return d, err
}

func getDashboardByID(ctx context.Context, q storage.Querier, id string) (*domain.Dashboard, error) {
	return getDashboard(ctx, q, id, "d.id = ?", id)
}

// List returns every dashboard with its widget and group counts.
func (r *Dashboards) List(ctx context.Context) ([]*domain.Dashboard, error) {
	var dashboards []*domain.Dashboard
	err := r.db.View(ctx, func(q storage.Querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT "+dashboardColumns+" FROM dashboards d ORDER BY d.created_at ASC, d.rowid ASC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			d, err := scanDashboard(rows)
			if err != nil {
				return err
			}
			dashboards = append(dashboards, d)
		}
		return rows.Err()
	})
	return dashboards, err
}

// GetByID returns one dashboard.
func (r *Dashboards) GetByID(ctx context.Context, id string) (*domain.Dashboard, error) {
	var d *domain.Dashboard
	err := r.db.View(ctx, func(q storage.Querier) error {
		var err error
		d, err = getDashboardByID(ctx, q, id)
		return err
	})
	return d, err
}

// GetDefault returns the default dashboard.
func (r *Dashboards) GetDefault(ctx context.Context) (*domain.Dashboard, error) {
	var d *domain.Dashboard
	err := r.db.View(ctx, func(q storage.Querier) error {
		var err error
		d, err = getDashboard(ctx, q, "default", "d.is_default = 1")
		return err
	})
	return d, err
}

// GetBySlug looks a dashboard up by kiosk slug, case-insensitively.
func (r *Dashboards) GetBySlug(ctx context.Context, slug string) (*domain.Dashboard, error) {
	norm := domain.NormalizeKioskSlug(slug)
	var d *domain.Dashboard
	err := r.db.View(ctx, func(q storage.Querier) error {
		var err error
		d, err = getDashboard(ctx, q, slug, "d.kiosk_slug = ?", norm)
		return err
	})
	return d, err
}

// checkSlug normalizes and validates a slug for dashboard selfID (empty for
// new dashboards). An empty slug yields nil.
func checkSlug(ctx context.Context, q storage.Querier, raw, selfID string) (*string, error) {
	slug := domain.NormalizeKioskSlug(raw)
	if slug == "" {
		return nil, nil
	}
	if !domain.ValidKioskSlug(slug) {
		return nil, storage.Invalidf("kiosk slug %q may only contain lowercase letters, digits, '-' and '_'", raw)
	}
	taken, err := exists(ctx, q, "SELECT 1 FROM dashboards WHERE kiosk_slug = ? AND id != ?", slug, selfID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, storage.Invalidf("kiosk slug %q is already in use", slug)
	}
	return &slug, nil
}

// Create adds a new, non-default dashboard.
func (r *Dashboards) Create(ctx context.Context, in domain.DashboardInput) (*domain.Dashboard, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, storage.Invalidf("dashboard name is required")
	}

	var d *domain.Dashboard
	err := r.db.Update(ctx, func(q storage.Querier) error {
		slug, err := checkSlug(ctx, q, in.KioskSlug, "")
		if err != nil {
			return err
		}

		id := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO dashboards (id, name, description, is_default, kiosk_slug, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?)
		`, id, name, in.Description, slug, now, now); err != nil {
			return fmt.Errorf("failed to insert dashboard: %w", err)
		}

		d, err = getDashboardByID(ctx, q, id)
		return err
	})
	return d, err
}

// Update applies a partial update.
func (r *Dashboards) Update(ctx context.Context, id string, patch domain.DashboardPatch) (*domain.Dashboard, error) {
	var d *domain.Dashboard
	err := r.db.Update(ctx, func(q storage.Querier) error {
		current, err := getDashboardByID(ctx, q, id)
		if err != nil {
			return err
		}

		name, description, slug := current.Name, current.Description, current.KioskSlug
		if patch.Name != nil {
			name = strings.TrimSpace(*patch.Name)
			if name == "" {
				return storage.Invalidf("dashboard name cannot be empty")
			}
		}
		if patch.Description != nil {
			description = *patch.Description
		}
		if patch.KioskSlug != nil {
			if slug, err = checkSlug(ctx, q, *patch.KioskSlug, id); err != nil {
				return err
			}
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE dashboards SET name = ?, description = ?, kiosk_slug = ?, updated_at = ?
			WHERE id = ?
		`, name, description, slug, r.now(), id); err != nil {
			return fmt.Errorf("failed to update dashboard: %w", err)
		}

		d, err = getDashboardByID(ctx, q, id)
		return err
	})
	return d, err
}

// Delete removes a dashboard and all of its layout and group rows. Widgets
// are left alone since other dashboards may show them. The default
// dashboard cannot be deleted.
func (r *Dashboards) Delete(ctx context.Context, id string) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		d, err := getDashboardByID(ctx, q, id)
		if err != nil {
			return err
		}
		if d.IsDefault {
			return storage.Invalidf("cannot delete the default dashboard")
		}

		for _, stmt := range []string{
			"DELETE FROM group_members WHERE dashboard_id = ?",
			"DELETE FROM group_layouts WHERE dashboard_id = ?",
			"DELETE FROM widget_groups WHERE dashboard_id = ?",
			"DELETE FROM dashboard_layouts WHERE dashboard_id = ?",
			"DELETE FROM dashboards WHERE id = ?",
		} {
			if _, err := q.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete dashboard: %w", err)
			}
		}
		return nil
	})
}

// SetDefault makes id the one default dashboard.
func (r *Dashboards) SetDefault(ctx context.Context, id string) (*domain.Dashboard, error) {
	var d *domain.Dashboard
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, id); err != nil {
			return err
		}
		now := r.now()
		if _, err := q.ExecContext(ctx,
			"UPDATE dashboards SET is_default = 0, updated_at = ? WHERE is_default = 1 AND id != ?", now, id); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"UPDATE dashboards SET is_default = 1, updated_at = ? WHERE id = ?", now, id); err != nil {
			return err
		}

		var err error
		d, err = getDashboardByID(ctx, q, id)
		return err
	})
	return d, err
}

// Duplicate deep-copies a dashboard's layout and group structure under new
// ids. Widgets themselves are shared with the source, not copied.
func (r *Dashboards) Duplicate(ctx context.Context, id, name string) (*domain.Dashboard, error) {
	var d *domain.Dashboard
	err := r.db.Update(ctx, func(q storage.Querier) error {
		src, err := getDashboardByID(ctx, q, id)
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = src.Name + " (Copy)"
		}

		newID := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO dashboards (id, name, description, is_default, kiosk_slug, created_at, updated_at)
			VALUES (?, ?, ?, 0, NULL, ?, ?)
		`, newID, name, src.Description, now, now); err != nil {
			return fmt.Errorf("failed to insert dashboard: %w", err)
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO dashboard_layouts (dashboard_id, widget_id, x, y, w, h)
			SELECT ?, widget_id, x, y, w, h FROM dashboard_layouts WHERE dashboard_id = ?
		`, newID, id); err != nil {
			return fmt.Errorf("failed to copy layouts: %w", err)
		}

		copies, err := copyGroups(ctx, q, id, newID, now)
		if err != nil {
			return err
		}

		for _, c := range copies {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO group_layouts (dashboard_id, group_id, x, y, w, h)
				SELECT ?, ?, x, y, w, h FROM group_layouts WHERE dashboard_id = ? AND group_id = ?
			`, newID, c.to, id, c.from); err != nil {
				return fmt.Errorf("failed to copy group layouts: %w", err)
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO group_members (dashboard_id, group_id, widget_id, x, y, w, h)
				SELECT ?, ?, widget_id, x, y, w, h FROM group_members WHERE dashboard_id = ? AND group_id = ?
				ORDER BY rowid
			`, newID, c.to, id, c.from); err != nil {
				return fmt.Errorf("failed to copy group members: %w", err)
			}
		}

		d, err = getDashboardByID(ctx, q, newID)
		return err
	})
	return d, err
}

// groupCopy pairs a source group id with the id of its clone.
type groupCopy struct {
	from, to string
}

// copyGroups clones the group rows of one dashboard onto another, oldest
// first, and returns the id pairs in that order.
func copyGroups(ctx context.Context, q storage.Querier, fromID, toID string, now time.Time) ([]groupCopy, error) {
	groups, err := queryRecords(ctx, q, `
		SELECT id, title, config FROM widget_groups WHERE dashboard_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, fromID)
	if err != nil {
		return nil, err
	}

	copies := make([]groupCopy, 0, len(groups))
	for _, g := range groups {
		newID := uuid.NewString()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO widget_groups (id, dashboard_id, title, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, newID, toID, g.String("title"), g.String("config"), now, now); err != nil {
			return nil, fmt.Errorf("failed to copy group: %w", err)
		}
		copies = append(copies, groupCopy{from: g.String("id"), to: newID})
	}
	return copies, nil
}
