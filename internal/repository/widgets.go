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

// Widgets manages widget rows. Widgets are shared between dashboards.
type Widgets struct {
	base
}

func getWidget(ctx context.Context, q storage.Querier, id string) (*domain.Widget, error) {
	var row widgetRow
	err := q.QueryRowContext(ctx, `
		SELECT `+widgetColumns+`
		FROM widgets w LEFT JOIN integrations i ON i.id = w.integration_id
		WHERE w.id = ?
	`, id).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "widget", ID: id}
	}
	if err != nil {
		return nil, err
	}
	w, err := row.widget()
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func requireIntegration(ctx context.Context, q storage.Querier, id string) error {
	ok, err := exists(ctx, q, "SELECT 1 FROM integrations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound{Resource: "integration", ID: id}
	}
	return nil
}

// List returns all widgets.
func (r *Widgets) List(ctx context.Context) ([]*domain.Widget, error) {
	widgets := []*domain.Widget{}
	err := r.db.View(ctx, func(q storage.Querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT `+widgetColumns+`
			FROM widgets w LEFT JOIN integrations i ON i.id = w.integration_id
			ORDER BY w.created_at ASC, w.rowid ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row widgetRow
			if err := rows.Scan(row.dest()...); err != nil {
				return err
			}
			w, err := row.widget()
			if err != nil {
				return err
			}
			widgets = append(widgets, &w)
		}
		return rows.Err()
	})
	return widgets, err
}

// Get returns one widget.
func (r *Widgets) Get(ctx context.Context, id string) (*domain.Widget, error) {
	var w *domain.Widget
	err := r.db.View(ctx, func(q storage.Querier) error {
		var err error
		w, err = getWidget(ctx, q, id)
		return err
	})
	return w, err
}

// Create adds a widget. It is not placed on any dashboard.
func (r *Widgets) Create(ctx context.Context, in domain.WidgetInput) (*domain.Widget, error) {
	widgetType := strings.TrimSpace(in.WidgetType)
	if widgetType == "" {
		return nil, storage.Invalidf("widget_type is required")
	}
	cfg, err := encodeConfig(in.Config)
	if err != nil {
		return nil, err
	}
	integrationID := in.IntegrationID
	if integrationID != nil && *integrationID == "" {
		integrationID = nil
	}

	var w *domain.Widget
	err = r.db.Update(ctx, func(q storage.Querier) error {
		if integrationID != nil {
			if err := requireIntegration(ctx, q, *integrationID); err != nil {
				return err
			}
		}

		id := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO widgets (id, integration_id, widget_type, title, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, integrationID, widgetType, in.Title, cfg, now, now); err != nil {
			return fmt.Errorf("failed to insert widget: %w", err)
		}

		var err error
		w, err = getWidget(ctx, q, id)
		return err
	})
	return w, err
}

// Update applies a partial update.
func (r *Widgets) Update(ctx context.Context, id string, patch domain.WidgetPatch) (*domain.Widget, error) {
	var w *domain.Widget
	err := r.db.Update(ctx, func(q storage.Querier) error {
		current, err := getWidget(ctx, q, id)
		if err != nil {
			return err
		}

		integrationID, widgetType, title, config := current.IntegrationID, current.WidgetType, current.Title, current.Config
		if patch.IntegrationID != nil {
			integrationID = nil
			if *patch.IntegrationID != "" {
				if err := requireIntegration(ctx, q, *patch.IntegrationID); err != nil {
					return err
				}
				integrationID = patch.IntegrationID
			}
		}
		if patch.WidgetType != nil {
			widgetType = strings.TrimSpace(*patch.WidgetType)
			if widgetType == "" {
				return storage.Invalidf("widget_type cannot be empty")
			}
		}
		if patch.Title != nil {
			title = *patch.Title
		}
		if patch.Config != nil {
			config = patch.Config
		}
		cfg, err := encodeConfig(config)
		if err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE widgets SET integration_id = ?, widget_type = ?, title = ?, config = ?, updated_at = ?
			WHERE id = ?
		`, integrationID, widgetType, title, cfg, r.now(), id); err != nil {
			return fmt.Errorf("failed to update widget: %w", err)
		}

		w, err = getWidget(ctx, q, id)
		return err
	})
	return w, err
}

// Delete removes a widget and its placements on every dashboard.
func (r *Widgets) Delete(ctx context.Context, id string) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireWidget(ctx, q, id); err != nil {
			return err
		}
		for _, stmt := range []string{
			"DELETE FROM group_members WHERE widget_id = ?",
			"DELETE FROM dashboard_layouts WHERE widget_id = ?",
			"DELETE FROM widgets WHERE id = ?",
		} {
			if _, err := q.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete widget: %w", err)
			}
		}
		return nil
	})
}
