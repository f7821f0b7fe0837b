package repository

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage/sqlite"
)

type fixture struct {
	*Set
	engine *sqlite.Engine
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	engine, err := sqlite.NewMemoryEngine(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	logger, _ := logtest.NewNullLogger()
	return &fixture{
		Set:    New(engine, Options{Logger: logger}),
		engine: engine,
		ctx:    ctx,
	}
}

func (f *fixture) defaultDashboard(t *testing.T) *domain.Dashboard {
	d, err := f.Dashboards.GetDefault(f.ctx)
	require.NoError(t, err)
	return d
}

func (f *fixture) dashboard(t *testing.T, name string) *domain.Dashboard {
	d, err := f.Dashboards.Create(f.ctx, domain.DashboardInput{Name: name})
	require.NoError(t, err)
	return d
}

func (f *fixture) widget(t *testing.T, title string) *domain.Widget {
	w, err := f.Widgets.Create(f.ctx, domain.WidgetInput{WidgetType: "note", Title: title})
	require.NoError(t, err)
	return w
}

func (f *fixture) placed(t *testing.T, dashboardID, title string, rect domain.Rect) *domain.Widget {
	w := f.widget(t, title)
	_, err := f.Layouts.Attach(f.ctx, dashboardID, w.ID, &rect)
	require.NoError(t, err)
	return w
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	records, err := f.engine.Query(f.ctx, "SELECT COUNT(*) AS n FROM "+query, args...)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0].Int("n")
}

func (f *fixture) standaloneRect(t *testing.T, dashboardID, widgetID string) (domain.Rect, bool) {
	records, err := f.engine.Query(f.ctx,
		"SELECT x, y, w, h FROM dashboard_layouts WHERE dashboard_id = ? AND widget_id = ?", dashboardID, widgetID)
	require.NoError(t, err)
	if len(records) == 0 {
		return domain.Rect{}, false
	}
	r := records[0]
	return domain.Rect{X: r.Int("x"), Y: r.Int("y"), W: r.Int("w"), H: r.Int("h")}, true
}

// requireInvariants checks the cross-table rules that must hold after any
// sequence of operations.
func (f *fixture) requireInvariants(t *testing.T) {
	t.Helper()
	require.Equal(t, 1, f.count(t, "dashboards WHERE is_default = 1"), "exactly one default dashboard")
	require.Zero(t, f.count(t, `dashboard_layouts l JOIN group_members m
		ON m.dashboard_id = l.dashboard_id AND m.widget_id = l.widget_id`), "widget both standalone and grouped")
	require.Zero(t, f.count(t, `group_members m JOIN widget_groups g ON g.id = m.group_id
		WHERE g.dashboard_id != m.dashboard_id`), "member on a group of another dashboard")
}
