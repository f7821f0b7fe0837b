package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Export flattens a dashboard into a portable document. Standalone widgets
// are listed first, then group members, and groups refer to their members
// by position in that list.
func (r *Dashboards) Export(ctx context.Context, id string) (*domain.Document, error) {
	doc := &domain.Document{
		Version:    domain.DocumentVersion,
		ExportedAt: r.now(),
		Widgets:    []domain.DocumentWidget{},
		Groups:     []domain.DocumentGroup{},
	}

	err := r.db.View(ctx, func(q storage.Querier) error {
		d, err := getDashboardByID(ctx, q, id)
		if err != nil {
			return err
		}
		doc.Dashboard = domain.DocumentDashboard{Name: d.Name, Description: d.Description}

		standalone, err := listStandalone(ctx, q, id)
		if err != nil {
			return err
		}
		groups, err := listGroups(ctx, q, id, "")
		if err != nil {
			return err
		}
		members, err := memberWidgets(ctx, q, id)
		if err != nil {
			return err
		}

		index := make(map[string]int)
		for _, p := range standalone {
			layout := p.Layout
			index[p.ID] = len(doc.Widgets)
			doc.Widgets = append(doc.Widgets, documentWidget(p.Widget, &layout))
		}

		for _, g := range groups {
			dg := domain.DocumentGroup{
				Title:   g.Title,
				Config:  g.Config,
				Layout:  g.Layout,
				Members: []domain.DocumentMember{},
			}
			for _, m := range g.Members {
				i, ok := index[m.WidgetID]
				if !ok {
					i = len(doc.Widgets)
					index[m.WidgetID] = i
					doc.Widgets = append(doc.Widgets, documentWidget(members[m.WidgetID], nil))
				}
				dg.Members = append(dg.Members, domain.DocumentMember{
					WidgetIndex: i, X: m.X, Y: m.Y, W: m.W, H: m.H,
				})
			}
			doc.Groups = append(doc.Groups, dg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func documentWidget(w domain.Widget, layout *domain.Rect) domain.DocumentWidget {
	cfg := w.Config
	if cfg == nil {
		cfg = domain.Config{}
	}
	return domain.DocumentWidget{
		WidgetType:      w.WidgetType,
		Title:           w.Title,
		Config:          cfg,
		IntegrationType: w.IntegrationType,
		Layout:          layout,
	}
}

// memberWidgets loads every widget that is a group member on the dashboard.
func memberWidgets(ctx context.Context, q storage.Querier, dashboardID string) (map[string]domain.Widget, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+widgetColumns+`
		FROM group_members m
		JOIN widgets w ON w.id = m.widget_id
		LEFT JOIN integrations i ON i.id = w.integration_id
		WHERE m.dashboard_id = ?
	`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	widgets := make(map[string]domain.Widget)
	for rows.Next() {
		var row widgetRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		w, err := row.widget()
		if err != nil {
			return nil, err
		}
		widgets[w.ID] = w
	}
	return widgets, rows.Err()
}

// Import creates a new dashboard from a document. integrationIDs maps an
// integration type to the id of the integration that should back widgets of
// that type here. Widgets whose type is unmapped, or mapped to an
// integration that does not exist, are skipped with a warning, as are group
// members that point at skipped widgets.
func (r *Dashboards) Import(ctx context.Context, doc *domain.Document, integrationIDs map[string]string) (*domain.ImportResult, error) {
	if doc == nil {
		return nil, storage.Invalidf("import document is required")
	}
	if doc.Version < 1 || doc.Version > domain.DocumentVersion {
		return nil, storage.Invalidf("unsupported document version %d", doc.Version)
	}
	name := strings.TrimSpace(doc.Dashboard.Name)
	if name == "" {
		return nil, storage.Invalidf("dashboard name is required")
	}

	result := &domain.ImportResult{Warnings: []string{}}
	warn := func(fields logrus.Fields, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		result.Warnings = append(result.Warnings, msg)
		r.log.WithFields(fields).Warn(msg)
	}

	err := r.db.Update(ctx, func(q storage.Querier) error {
		result.Warnings = result.Warnings[:0]

		dashboardID := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO dashboards (id, name, description, is_default, kiosk_slug, created_at, updated_at)
			VALUES (?, ?, ?, 0, NULL, ?, ?)
		`, dashboardID, name, doc.Dashboard.Description, now, now); err != nil {
			return fmt.Errorf("failed to insert dashboard: %w", err)
		}

		grouped := make(map[int]bool)
		for _, g := range doc.Groups {
			for _, m := range g.Members {
				grouped[m.WidgetIndex] = true
			}
		}

		widgetIDs := make(map[int]string, len(doc.Widgets))
		var loose []int
		for i, dw := range doc.Widgets {
			var integrationID *string
			if dw.IntegrationType != nil && *dw.IntegrationType != "" {
				typ := *dw.IntegrationType
				fields := logrus.Fields{"widget_index": i, "integration_type": typ}
				mapped, ok := integrationIDs[typ]
				if !ok || mapped == "" {
					warn(fields, "skipped widget %d (%q): no integration mapped for type %q", i, dw.Title, typ)
					continue
				}
				found, err := exists(ctx, q, "SELECT 1 FROM integrations WHERE id = ?", mapped)
				if err != nil {
					return err
				}
				if !found {
					warn(fields, "skipped widget %d (%q): integration %s does not exist", i, dw.Title, mapped)
					continue
				}
				integrationID = &mapped
			}

			cfg, err := encodeConfig(dw.Config)
			if err != nil {
				return err
			}
			widgetID := uuid.NewString()
			if _, err := q.ExecContext(ctx, `
				INSERT INTO widgets (id, integration_id, widget_type, title, config, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, widgetID, integrationID, dw.WidgetType, dw.Title, cfg, now, now); err != nil {
				return fmt.Errorf("failed to insert widget: %w", err)
			}
			widgetIDs[i] = widgetID

			if grouped[i] {
				continue
			}
			if dw.Layout == nil {
				loose = append(loose, i)
				continue
			}
			if err := putStandalone(ctx, q, dashboardID, widgetID, *dw.Layout); err != nil {
				return err
			}
		}

		for gi, g := range doc.Groups {
			cfg, err := encodeConfig(g.Config)
			if err != nil {
				return err
			}
			groupID := uuid.NewString()
			if _, err := q.ExecContext(ctx, `
				INSERT INTO widget_groups (id, dashboard_id, title, config, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, groupID, dashboardID, g.Title, cfg, now, now); err != nil {
				return fmt.Errorf("failed to insert group: %w", err)
			}
			if g.Layout != nil {
				if err := putGroupLayout(ctx, q, dashboardID, groupID, *g.Layout); err != nil {
					return err
				}
			}
			for _, m := range g.Members {
				widgetID, ok := widgetIDs[m.WidgetIndex]
				if !ok {
					warn(logrus.Fields{"group_index": gi, "widget_index": m.WidgetIndex},
						"skipped member %d of group %q: widget was not imported", m.WidgetIndex, g.Title)
					continue
				}
				if err := putMember(ctx, q, dashboardID, groupID, widgetID, m.Rect()); err != nil {
					return err
				}
			}
		}

		// Widgets without a recorded rectangle go below everything else.
		for _, i := range loose {
			if _, err := appendStandalone(ctx, q, dashboardID, widgetIDs[i]); err != nil {
				return err
			}
		}

		var err error
		result.Dashboard, err = getDashboardByID(ctx, q, dashboardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// listStandalone returns the standalone widgets of a dashboard in grid
// order.
func listStandalone(ctx context.Context, q storage.Querier, dashboardID string) ([]domain.Placement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+widgetColumns+`, l.x, l.y, l.w, l.h
		FROM dashboard_layouts l
		JOIN widgets w ON w.id = l.widget_id
		LEFT JOIN integrations i ON i.id = w.integration_id
		WHERE l.dashboard_id = ?
		ORDER BY l.y ASC, l.x ASC, l.rowid ASC
	`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var placements []domain.Placement
	for rows.Next() {
		var row widgetRow
		var rect domain.Rect
		if err := rows.Scan(row.dest(&rect.X, &rect.Y, &rect.W, &rect.H)...); err != nil {
			return nil, err
		}
		w, err := row.widget()
		if err != nil {
			return nil, err
		}
		placements = append(placements, domain.Placement{Widget: w, Layout: rect})
	}
	return placements, rows.Err()
}
