package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// buildLobby creates a dashboard with two standalone widgets and a group
// holding two more.
func buildLobby(t *testing.T, f *fixture) *domain.Dashboard {
	d, err := f.Dashboards.Create(f.ctx, domain.DashboardInput{Name: "Lobby", Description: "Front desk"})
	require.NoError(t, err)

	weather, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "weather"})
	require.NoError(t, err)

	forecast, err := f.Widgets.Create(f.ctx, domain.WidgetInput{
		IntegrationID: &weather.ID,
		WidgetType:    "weather",
		Title:         "Forecast",
		Config:        domain.Config{"city": "Oslo"},
	})
	require.NoError(t, err)
	welcome, err := f.Widgets.Create(f.ctx, domain.WidgetInput{WidgetType: "note", Title: "Welcome"})
	require.NoError(t, err)
	utc, err := f.Widgets.Create(f.ctx, domain.WidgetInput{
		WidgetType: "clock", Title: "UTC", Config: domain.Config{"tz": "UTC"},
	})
	require.NoError(t, err)
	tokyo, err := f.Widgets.Create(f.ctx, domain.WidgetInput{
		WidgetType: "clock", Title: "Tokyo", Config: domain.Config{"tz": "Asia/Tokyo"},
	})
	require.NoError(t, err)

	// Inserted out of grid order on purpose.
	_, err = f.Layouts.BatchSet(f.ctx, d.ID, []domain.WidgetRect{
		{WidgetID: welcome.ID, Rect: domain.Rect{X: 6, W: 6, H: 2}},
		{WidgetID: forecast.ID, Rect: domain.Rect{W: 6, H: 3}},
	})
	require.NoError(t, err)

	_, err = f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Title:  "Clocks",
		Config: domain.Config{"collapsed": false},
		Layout: &domain.Rect{Y: 3, W: 12, H: 4},
		Members: []domain.WidgetRect{
			{WidgetID: tokyo.ID, Rect: domain.Rect{X: 3, W: 3, H: 2}},
			{WidgetID: utc.ID, Rect: domain.Rect{W: 3, H: 2}},
		},
	})
	require.NoError(t, err)
	return d
}

func TestExportGolden(t *testing.T) {
	f := newFixture(t)
	d := buildLobby(t, f)

	doc, err := f.Dashboards.Export(f.ctx, d.ID)
	require.NoError(t, err)
	doc.ExportedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "export", append(data, '\n'))
}

func TestExportUnknownDashboard(t *testing.T) {
	f := newFixture(t)

	_, err := f.Dashboards.Export(f.ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestExportEmptyDashboard(t *testing.T) {
	f := newFixture(t)

	doc, err := f.Dashboards.Export(f.ctx, f.defaultDashboard(t).ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", doc.Dashboard.Name)
	assert.NotNil(t, doc.Widgets)
	assert.Empty(t, doc.Widgets)
	assert.NotNil(t, doc.Groups)
	assert.Empty(t, doc.Groups)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	src := buildLobby(t, f)

	exported, err := f.Dashboards.Export(f.ctx, src.ID)
	require.NoError(t, err)

	types, err := f.Integrations.TypeMap(f.ctx)
	require.NoError(t, err)

	result, err := f.Dashboards.Import(f.ctx, exported, types)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Dashboard)
	assert.NotEqual(t, src.ID, result.Dashboard.ID)
	assert.False(t, result.Dashboard.IsDefault)
	assert.Equal(t, 4, result.Dashboard.WidgetCount)
	assert.Equal(t, 1, result.Dashboard.GroupCount)

	reexported, err := f.Dashboards.Export(f.ctx, result.Dashboard.ID)
	require.NoError(t, err)
	assert.Equal(t, exported.Dashboard, reexported.Dashboard)
	assert.Equal(t, exported.Widgets, reexported.Widgets)
	assert.Equal(t, exported.Groups, reexported.Groups)

	// Import creates fresh widgets rather than reusing the source ones.
	assert.Equal(t, 8, f.count(t, "widgets"))
	f.requireInvariants(t)
}

func TestImportThroughJSON(t *testing.T) {
	f := newFixture(t)
	src := buildLobby(t, f)

	exported, err := f.Dashboards.Export(f.ctx, src.ID)
	require.NoError(t, err)
	data, err := json.Marshal(exported)
	require.NoError(t, err)

	var doc domain.Document
	require.NoError(t, json.Unmarshal(data, &doc))

	types, err := f.Integrations.TypeMap(f.ctx)
	require.NoError(t, err)
	result, err := f.Dashboards.Import(f.ctx, &doc, types)
	require.NoError(t, err)

	reexported, err := f.Dashboards.Export(f.ctx, result.Dashboard.ID)
	require.NoError(t, err)
	assert.Equal(t, exported.Widgets, reexported.Widgets)
	assert.Equal(t, exported.Groups, reexported.Groups)
}

func TestImportSkipsUnmappedIntegrations(t *testing.T) {
	f := newFixture(t)
	radar := "radar"
	doc := &domain.Document{
		Version:   1,
		Dashboard: domain.DocumentDashboard{Name: "Imported"},
		Widgets: []domain.DocumentWidget{
			{WidgetType: "radar", Title: "Rain", IntegrationType: &radar, Layout: &domain.Rect{W: 4, H: 4}},
			{WidgetType: "note", Title: "Hello", Layout: &domain.Rect{X: 4, W: 2, H: 2}},
			{WidgetType: "radar", Title: "Grouped rain", IntegrationType: &radar},
		},
		Groups: []domain.DocumentGroup{{
			Title: "Weather",
			Members: []domain.DocumentMember{
				{WidgetIndex: 2, W: 2, H: 2},
				{WidgetIndex: 1, Y: 2, W: 2, H: 2},
			},
		}},
	}

	result, err := f.Dashboards.Import(f.ctx, doc, map[string]string{})
	require.NoError(t, err)
	assert.Len(t, result.Warnings, 3, "two skipped widgets and one skipped member: %v", result.Warnings)
	assert.Contains(t, result.Warnings[0], `"Rain"`)
	assert.Equal(t, 1, result.Dashboard.WidgetCount)
	assert.Equal(t, 1, f.count(t, "widgets"))

	groups, err := f.Groups.List(f.ctx, result.Dashboard.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 1)
	assert.Equal(t, "Hello", groups[0].Members[0].Title)
	assert.Equal(t, domain.Rect{Y: 2, W: 2, H: 2}, groups[0].Members[0].Rect)
	f.requireInvariants(t)
}

func TestImportSkipsMissingIntegration(t *testing.T) {
	f := newFixture(t)
	typ := "weather"
	doc := &domain.Document{
		Version:   1,
		Dashboard: domain.DocumentDashboard{Name: "Imported"},
		Widgets: []domain.DocumentWidget{
			{WidgetType: "weather", IntegrationType: &typ, Layout: &domain.Rect{W: 4, H: 3}},
		},
	}

	result, err := f.Dashboards.Import(f.ctx, doc, map[string]string{"weather": "gone"})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not exist")
	assert.Zero(t, result.Dashboard.WidgetCount)
}

func TestImportAppendsWidgetsWithoutLayout(t *testing.T) {
	f := newFixture(t)
	doc := &domain.Document{
		Version:   1,
		Dashboard: domain.DocumentDashboard{Name: "Loose"},
		Widgets: []domain.DocumentWidget{
			{WidgetType: "note", Title: "Floating"},
			{WidgetType: "note", Title: "Placed", Layout: &domain.Rect{W: 2, H: 5}},
		},
		Groups: []domain.DocumentGroup{{Title: "G", Layout: &domain.Rect{X: 2, W: 2, H: 7}}},
	}

	result, err := f.Dashboards.Import(f.ctx, doc, nil)
	require.NoError(t, err)

	placements, err := f.Layouts.Get(f.ctx, result.Dashboard.ID)
	require.NoError(t, err)
	rects := make(map[string]domain.Rect)
	for _, p := range placements {
		rects[p.Title] = p.Layout
	}
	assert.Equal(t, domain.Rect{W: 2, H: 5}, rects["Placed"])
	assert.Equal(t, domain.Rect{X: 0, Y: 7, W: 4, H: 3}, rects["Floating"])
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		doc  *domain.Document
	}{
		{"nil", nil},
		{"version zero", &domain.Document{Dashboard: domain.DocumentDashboard{Name: "X"}}},
		{"future version", &domain.Document{Version: domain.DocumentVersion + 1, Dashboard: domain.DocumentDashboard{Name: "X"}}},
		{"blank name", &domain.Document{Version: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Dashboards.Import(f.ctx, tt.doc, nil)
			assert.True(t, storage.IsInvalid(err))
		})
	}
	assert.Equal(t, 1, f.count(t, "dashboards"))
}
