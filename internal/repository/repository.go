// Package repository implements the dashboard, layout and group data model
// on top of the storage engine.
//
// Invariants kept here:
//   - exactly one dashboard is the default;
//   - kiosk slugs are unique, lowercase and URL safe;
//   - a widget is either standalone or a group member on a given dashboard,
//     never both;
//   - removing a dashboard or group never deletes widget rows.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Options configures the repositories.
type Options struct {
	Clock  quartz.Clock
	Logger logrus.FieldLogger
}

// Set bundles every repository around one engine.
type Set struct {
	Dashboards   *Dashboards
	Layouts      *Layouts
	Groups       *Groups
	Widgets      *Widgets
	Integrations *Integrations
}

type base struct {
	db    storage.Engine
	clock quartz.Clock
	log   logrus.FieldLogger
}

func (b base) now() time.Time {
	return b.clock.Now().UTC()
}

// New creates all repositories sharing db.
func New(db storage.Engine, opts Options) *Set {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	b := base{db: db, clock: opts.Clock, log: opts.Logger.WithField("component", "repository")}
	return &Set{
		Dashboards:   &Dashboards{base: b},
		Layouts:      &Layouts{base: b},
		Groups:       &Groups{base: b},
		Widgets:      &Widgets{base: b},
		Integrations: &Integrations{base: b},
	}
}

func encodeConfig(c domain.Config) (string, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func decodeConfig(s string) (domain.Config, error) {
	c := domain.Config{}
	if s == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if c == nil {
		c = domain.Config{}
	}
	return c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// queryRecords runs a read and returns its rows through the record adapter.
func queryRecords(ctx context.Context, q storage.Querier, query string, args ...any) ([]storage.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return storage.ScanRecords(rows)
}

func exists(ctx context.Context, q storage.Querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func requireDashboard(ctx context.Context, q storage.Querier, id string) error {
	ok, err := exists(ctx, q, "SELECT 1 FROM dashboards WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound{Resource: "dashboard", ID: id}
	}
	return nil
}

func requireWidget(ctx context.Context, q storage.Querier, id string) error {
	ok, err := exists(ctx, q, "SELECT 1 FROM widgets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound{Resource: "widget", ID: id}
	}
	return nil
}

func requireGroup(ctx context.Context, q storage.Querier, dashboardID, groupID string) error {
	ok, err := exists(ctx, q, "SELECT 1 FROM widget_groups WHERE id = ? AND dashboard_id = ?", groupID, dashboardID)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound{Resource: "group", ID: groupID}
	}
	return nil
}

// bottomEdge is the first free row below every standalone widget and group
// on the dashboard.
func bottomEdge(ctx context.Context, q storage.Querier, dashboardID string) (int, error) {
	records, err := queryRecords(ctx, q, `
		SELECT COALESCE(MAX(bottom), 0) AS bottom FROM (
			SELECT y + h AS bottom FROM dashboard_layouts WHERE dashboard_id = ?
			UNION ALL
			SELECT y + h AS bottom FROM group_layouts WHERE dashboard_id = ?
		)
	`, dashboardID, dashboardID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute bottom edge: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return records[0].Int("bottom"), nil
}

// appendStandalone places a widget below all existing content.
func appendStandalone(ctx context.Context, q storage.Querier, dashboardID, widgetID string) (domain.Rect, error) {
	maxY, err := bottomEdge(ctx, q, dashboardID)
	if err != nil {
		return domain.Rect{}, err
	}
	rect := domain.AppendedRect(maxY)
	if err := putStandalone(ctx, q, dashboardID, widgetID, rect); err != nil {
		return domain.Rect{}, err
	}
	return rect, nil
}

func putStandalone(ctx context.Context, q storage.Querier, dashboardID, widgetID string, r domain.Rect) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO dashboard_layouts (dashboard_id, widget_id, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?)
	`, dashboardID, widgetID, r.X, r.Y, r.W, r.H)
	return err
}

// putMember moves a widget into a group, dropping any other membership or
// standalone placement it had on the dashboard.
func putMember(ctx context.Context, q storage.Querier, dashboardID, groupID, widgetID string, r domain.Rect) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM group_members WHERE dashboard_id = ? AND widget_id = ?", dashboardID, widgetID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM dashboard_layouts WHERE dashboard_id = ? AND widget_id = ?", dashboardID, widgetID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO group_members (dashboard_id, group_id, widget_id, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dashboardID, groupID, widgetID, r.X, r.Y, r.W, r.H)
	return err
}

// widgetColumns selects a widget joined with its integration type. Queries
// using it must alias widgets as w and LEFT JOIN integrations as i.
const widgetColumns = `w.id, w.integration_id, i.type, w.widget_type, w.title, w.config, w.created_at, w.updated_at`

type widgetRow struct {
	w               domain.Widget
	integrationID   sql.NullString
	integrationType sql.NullString
	config          string
}

func (r *widgetRow) dest(extra ...any) []any {
	return append([]any{
		&r.w.ID, &r.integrationID, &r.integrationType, &r.w.WidgetType,
		&r.w.Title, &r.config, &r.w.CreatedAt, &r.w.UpdatedAt,
	}, extra...)
}

func (r *widgetRow) widget() (domain.Widget, error) {
	cfg, err := decodeConfig(r.config)
	if err != nil {
		return domain.Widget{}, err
	}
	w := r.w
	w.Config = cfg
	w.IntegrationID = nullString(r.integrationID)
	w.IntegrationType = nullString(r.integrationType)
	return w, nil
}
