package repository

import (
	"context"
	"fmt"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Layouts manages standalone widget placement on dashboard grids.
type Layouts struct {
	base
}

// Get returns every widget visible on a dashboard. Standalone widgets carry
// their rectangle. Grouped widgets carry a placeholder rectangle and their
// GroupID; their real position is the group membership.
func (r *Layouts) Get(ctx context.Context, dashboardID string) ([]domain.Placement, error) {
	var placements []domain.Placement
	err := r.db.View(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}

		var err error
		placements, err = listStandalone(ctx, q, dashboardID)
		if err != nil {
			return err
		}

		rows, err := q.QueryContext(ctx, `
			SELECT `+widgetColumns+`, m.group_id
			FROM group_members m
			JOIN widgets w ON w.id = m.widget_id
			LEFT JOIN integrations i ON i.id = w.integration_id
			WHERE m.dashboard_id = ?
				AND NOT EXISTS (SELECT 1 FROM dashboard_layouts l
					WHERE l.dashboard_id = m.dashboard_id AND l.widget_id = m.widget_id)
			ORDER BY m.rowid ASC
		`, dashboardID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row widgetRow
			var groupID string
			if err := rows.Scan(row.dest(&groupID)...); err != nil {
				return err
			}
			w, err := row.widget()
			if err != nil {
				return err
			}
			placements = append(placements, domain.Placement{
				Widget:  w,
				Layout:  domain.AppendedRect(0),
				GroupID: &groupID,
			})
		}
		return rows.Err()
	})
	if placements == nil && err == nil {
		placements = []domain.Placement{}
	}
	return placements, err
}

// Set places a widget directly on the dashboard grid. A widget that was in
// a group on this dashboard leaves the group.
func (r *Layouts) Set(ctx context.Context, dashboardID, widgetID string, rect domain.Rect) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}
		if err := requireWidget(ctx, q, widgetID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"DELETE FROM group_members WHERE dashboard_id = ? AND widget_id = ?", dashboardID, widgetID); err != nil {
			return err
		}
		return putStandalone(ctx, q, dashboardID, widgetID, rect)
	})
}

// BatchSet upserts many standalone rectangles at once. Rows naming unknown
// widgets are skipped. It returns the number of rows written.
func (r *Layouts) BatchSet(ctx context.Context, dashboardID string, rects []domain.WidgetRect) (int, error) {
	var written int
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}
		for _, wr := range rects {
			if _, err := q.ExecContext(ctx,
				"DELETE FROM group_members WHERE dashboard_id = ? AND widget_id = ?", dashboardID, wr.WidgetID); err != nil {
				return err
			}
			res, err := q.ExecContext(ctx, `
				INSERT OR REPLACE INTO dashboard_layouts (dashboard_id, widget_id, x, y, w, h)
				SELECT ?, id, ?, ?, ?, ? FROM widgets WHERE id = ?
			`, dashboardID, wr.X, wr.Y, wr.W, wr.H, wr.WidgetID)
			if err != nil {
				return fmt.Errorf("failed to write layout: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			written += int(n)
		}
		return nil
	})
	return written, err
}

// Attach puts a widget on a dashboard. Without a rectangle it goes below
// all existing content. A widget already on the dashboard, standalone or
// grouped, is rejected.
func (r *Layouts) Attach(ctx context.Context, dashboardID, widgetID string, rect *domain.Rect) (domain.Rect, error) {
	var placed domain.Rect
	err := r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}
		if err := requireWidget(ctx, q, widgetID); err != nil {
			return err
		}

		present, err := exists(ctx, q, `
			SELECT 1 FROM dashboard_layouts WHERE dashboard_id = ? AND widget_id = ?
			UNION ALL
			SELECT 1 FROM group_members WHERE dashboard_id = ? AND widget_id = ?
		`, dashboardID, widgetID, dashboardID, widgetID)
		if err != nil {
			return err
		}
		if present {
			return storage.Invalidf("widget %s is already on this dashboard", widgetID)
		}

		if rect == nil {
			placed, err = appendStandalone(ctx, q, dashboardID, widgetID)
			return err
		}
		placed = *rect
		return putStandalone(ctx, q, dashboardID, widgetID, placed)
	})
	return placed, err
}

// Detach removes a widget from a dashboard whether it was standalone or in
// a group. The widget row itself is kept.
func (r *Layouts) Detach(ctx context.Context, dashboardID, widgetID string) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireDashboard(ctx, q, dashboardID); err != nil {
			return err
		}
		for _, stmt := range []string{
			"DELETE FROM dashboard_layouts WHERE dashboard_id = ? AND widget_id = ?",
			"DELETE FROM group_members WHERE dashboard_id = ? AND widget_id = ?",
		} {
			if _, err := q.ExecContext(ctx, stmt, dashboardID, widgetID); err != nil {
				return err
			}
		}
		return nil
	})
}
