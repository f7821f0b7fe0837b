package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Groups manages groups, their grid position and their members.
type Groups struct {
	base
}

// listGroups loads the groups of a dashboard (or just groupID when set) with
// their layouts and members, using one query for groups and one for members.
func listGroups(ctx context.Context, q storage.Querier, dashboardID, groupID string) ([]*domain.Group, error) {
	filter, args := "g.dashboard_id = ?", []any{dashboardID}
	if groupID != "" {
		filter, args = "g.dashboard_id = ? AND g.id = ?", []any{dashboardID, groupID}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT g.id, g.dashboard_id, g.title, g.config, g.created_at, g.updated_at,
			gl.x, gl.y, gl.w, gl.h
		FROM widget_groups g
		LEFT JOIN group_layouts gl ON gl.group_id = g.id AND gl.dashboard_id = g.dashboard_id
		WHERE `+filter+`
		ORDER BY g.created_at ASC, g.rowid ASC
	`, args...)
	if err != nil {
		return nil, err
	}

	var groups []*domain.Group
	byID := make(map[string]*domain.Group)
	for rows.Next() {
		var g domain.Group
		var config string
		var x, y, w, h sql.NullInt64
		if err := rows.Scan(&g.ID, &g.DashboardID, &g.Title, &config, &g.CreatedAt, &g.UpdatedAt,
			&x, &y, &w, &h); err != nil {
			rows.Close()
			return nil, err
		}
		if g.Config, err = decodeConfig(config); err != nil {
			rows.Close()
			return nil, err
		}
		if x.Valid {
			g.Layout = &domain.Rect{X: int(x.Int64), Y: int(y.Int64), W: int(w.Int64), H: int(h.Int64)}
		}
		g.Members = []domain.GroupMember{}
		groups = append(groups, &g)
		byID[g.ID] = &g
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberFilter, memberArgs := "m.dashboard_id = ?", []any{dashboardID}
	if groupID != "" {
		memberFilter, memberArgs = "m.dashboard_id = ? AND m.group_id = ?", []any{dashboardID, groupID}
	}
	members, err := queryRecords(ctx, q, `
		SELECT m.group_id, m.widget_id, w.title, w.widget_type, w.integration_id, m.x, m.y, m.w, m.h
		FROM group_members m
		JOIN widgets w ON w.id = m.widget_id
		WHERE `+memberFilter+`
		ORDER BY m.y ASC, m.x ASC, m.rowid ASC
	`, memberArgs...)
	if err != nil {
		return nil, err
	}

	for _, rec := range members {
		g, ok := byID[rec.String("group_id")]
		if !ok {
			continue
		}
		g.Members = append(g.Members, domain.GroupMember{
			WidgetID:      rec.String("widget_id"),
			Title:         rec.String("title"),
			WidgetType:    rec.String("widget_type"),
			IntegrationID: rec.NullString("integration_id"),
			Rect:          domain.Rect{X: rec.Int("x"), Y: rec.Int("y"), W: rec.Int("w"), H: rec.Int("h")},
		})
	}
	return groups, nil
}

func getGroup(ctx context.Context, q storage.Querier, dashboardID, groupID string) (*domain.Group, error) {
	groups, err := listGroups(ctx, q, dashboardID, groupID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, storage.ErrNotFound{Resource: "group", ID: groupID}
	}
	return groups[0], nil
}

func putGroupLayout(ctx context.Context, q storage.Querier, dashboardID, groupID string, r domain.Rect) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO group_layouts (dashboard_id, group_id, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?)
	`, dashboardID, groupID, r.X, r.Y, r.W, r.H)
	return err
}

// List returns every group on a dashboard with its layout and members.
func (r *Groups) List(ctx context.Context, dashboardID string) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := r.db.View(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}
		var err error
		groups, err = listGroups(ctx, q, dashboardID, "")
		return err
	})
	return groups, err
}

// Get returns a group by id, whichever dashboard it is on.
func (r *Groups) Get(ctx context.Context, id string) (*domain.Group, error) {
	var g *domain.Group
	err := r.db.View(ctx, func(q storage.Querier) error {
		var dashboardID string
		err := q.QueryRowContext(ctx, "SELECT dashboard_id FROM widget_groups WHERE id = ?", id).Scan(&dashboardID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound{Resource: "group", ID: id}
		}
		if err != nil {
			return err
		}
		g, err = getGroup(ctx, q, dashboardID, id)
		return err
	})
	return g, err
}

// Create adds an empty group. Any members in the input are ignored.
func (r *Groups) Create(ctx context.Context, dashboardID string, in domain.GroupInput) (*domain.Group, error) {
	in.Members = nil
	return r.CreateWithMembers(ctx, dashboardID, in)
}

// CreateWithMembers adds a group and moves the listed widgets into it.
// Members referencing unknown widgets are skipped.
func (r *Groups) CreateWithMembers(ctx context.Context, dashboardID string, in domain.GroupInput) (*domain.Group, error) {
	cfg, err := encodeConfig(in.Config)
	if err != nil {
		return nil, err
	}

	var g *domain.Group
	err = r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}

		id := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO widget_groups (id, dashboard_id, title, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, dashboardID, strings.TrimSpace(in.Title), cfg, now, now); err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
		if in.Layout != nil {
			if err := putGroupLayout(ctx, q, dashboardID, id, *in.Layout); err != nil {
				return err
			}
		}

		for _, m := range in.Members {
			found, err := exists(ctx, q, "SELECT 1 FROM widgets WHERE id = ?", m.WidgetID)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := putMember(ctx, q, dashboardID, id, m.WidgetID, m.Rect); err != nil {
				return fmt.Errorf("failed to add member: %w", err)
			}
		}

		var err error
		g, err = getGroup(ctx, q, dashboardID, id)
		return err
	})
	return g, err
}

// Update changes a group's title and config.
func (r *Groups) Update(ctx context.Context, id string, patch domain.GroupPatch) (*domain.Group, error) {
	var g *domain.Group
	err := r.db.Update(ctx, func(q storage.Querier) error {
		var dashboardID, title, config string
		err := q.QueryRowContext(ctx,
			"SELECT dashboard_id, title, config FROM widget_groups WHERE id = ?", id).Scan(&dashboardID, &title, &config)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound{Resource: "group", ID: id}
		}
		if err != nil {
			return err
		}

		if patch.Title != nil {
			title = strings.TrimSpace(*patch.Title)
		}
		if patch.Config != nil {
			if config, err = encodeConfig(patch.Config); err != nil {
				return err
			}
		}
		if _, err := q.ExecContext(ctx,
			"UPDATE widget_groups SET title = ?, config = ?, updated_at = ? WHERE id = ?",
			title, config, r.now(), id); err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}

		g, err = getGroup(ctx, q, dashboardID, id)
		return err
	})
	return g, err
}

// Delete removes a group. Its members are put back on the dashboard as
// standalone widgets, stacked below the remaining content in member order.
func (r *Groups) Delete(ctx context.Context, dashboardID, id string) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		g, err := getGroup(ctx, q, dashboardID, id)
		if err != nil {
			return err
		}

		for _, stmt := range []string{
			"DELETE FROM group_members WHERE dashboard_id = ? AND group_id = ?",
			"DELETE FROM group_layouts WHERE dashboard_id = ? AND group_id = ?",
			"DELETE FROM widget_groups WHERE dashboard_id = ? AND id = ?",
		} {
			if _, err := q.ExecContext(ctx, stmt, dashboardID, id); err != nil {
				return fmt.Errorf("failed to delete group: %w", err)
			}
		}

		for _, m := range g.Members {
			if _, err := appendStandalone(ctx, q, dashboardID, m.WidgetID); err != nil {
				return fmt.Errorf("failed to restore member: %w", err)
			}
		}
		return nil
	})
}

// AddMember moves a widget into a group. Without a rectangle the widget is
// placed below the group's existing members.
func (r *Groups) AddMember(ctx context.Context, dashboardID, groupID, widgetID string, rect *domain.Rect) (domain.Rect, error) {
	var placed domain.Rect
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireGroup(ctx, q, dashboardID, groupID); err != nil {
			return err
		}
		if err := requireWidget(ctx, q, widgetID); err != nil {
			return err
		}

		if rect != nil {
			placed = *rect
		} else {
			var maxY int
			if err := q.QueryRowContext(ctx, `
				SELECT COALESCE(MAX(y + h), 0) FROM group_members
				WHERE dashboard_id = ? AND group_id = ? AND widget_id != ?
			`, dashboardID, groupID, widgetID).Scan(&maxY); err != nil {
				return err
			}
			placed = domain.AppendedRect(maxY)
		}
		return putMember(ctx, q, dashboardID, groupID, widgetID, placed)
	})
	return placed, err
}

// RemoveMember takes a widget out of a group and reflows it onto the
// dashboard at the left edge, below everything else.
func (r *Groups) RemoveMember(ctx context.Context, dashboardID, groupID, widgetID string) (domain.Rect, error) {
	var placed domain.Rect
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireGroup(ctx, q, dashboardID, groupID); err != nil {
			return err
		}

		res, err := q.ExecContext(ctx, `
			DELETE FROM group_members WHERE dashboard_id = ? AND group_id = ? AND widget_id = ?
		`, dashboardID, groupID, widgetID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return storage.ErrNotFound{Resource: "group member", ID: widgetID}
		}

		placed, err = appendStandalone(ctx, q, dashboardID, widgetID)
		return err
	})
	return placed, err
}

// SetMemberLayouts updates member rectangles inside a group. Rows for
// widgets that are not members are ignored. It returns the number updated.
func (r *Groups) SetMemberLayouts(ctx context.Context, dashboardID, groupID string, rects []domain.WidgetRect) (int, error) {
	var updated int
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireGroup(ctx, q, dashboardID, groupID); err != nil {
			return err
		}
		for _, wr := range rects {
			res, err := q.ExecContext(ctx, `
				UPDATE group_members SET x = ?, y = ?, w = ?, h = ?
				WHERE dashboard_id = ? AND group_id = ? AND widget_id = ?
			`, wr.X, wr.Y, wr.W, wr.H, dashboardID, groupID, wr.WidgetID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += int(n)
		}
		return nil
	})
	return updated, err
}

// SetGroupLayout sets the group's own rectangle on the dashboard grid.
func (r *Groups) SetGroupLayout(ctx context.Context, dashboardID, groupID string, rect domain.Rect) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireGroup(ctx, q, dashboardID, groupID); err != nil {
			return err
		}
		return putGroupLayout(ctx, q, dashboardID, groupID, rect)
	})
}
