package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

func TestCreateWidget(t *testing.T) {
	f := newFixture(t)
	in, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "calendar", Name: "Work"})
	require.NoError(t, err)

	w, err := f.Widgets.Create(f.ctx, domain.WidgetInput{
		IntegrationID: &in.ID,
		WidgetType:    "agenda",
		Title:         "Today",
		Config:        domain.Config{"days": 1},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	require.NotNil(t, w.IntegrationID)
	assert.Equal(t, in.ID, *w.IntegrationID)
	require.NotNil(t, w.IntegrationType)
	assert.Equal(t, "calendar", *w.IntegrationType)
	assert.Equal(t, 1, w.Config.GetInt("days", 0))

	_, err = f.Widgets.Create(f.ctx, domain.WidgetInput{Title: "No type"})
	assert.True(t, storage.IsInvalid(err))

	ghost := "ghost"
	_, err = f.Widgets.Create(f.ctx, domain.WidgetInput{WidgetType: "x", IntegrationID: &ghost})
	assert.True(t, storage.IsNotFound(err))
}

func TestUpdateWidget(t *testing.T) {
	f := newFixture(t)
	in, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "weather"})
	require.NoError(t, err)
	w := f.widget(t, "Before")

	title := "After"
	updated, err := f.Widgets.Update(f.ctx, w.ID, domain.WidgetPatch{Title: &title, IntegrationID: &in.ID})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, "note", updated.WidgetType)
	require.NotNil(t, updated.IntegrationID)

	empty := ""
	updated, err = f.Widgets.Update(f.ctx, w.ID, domain.WidgetPatch{IntegrationID: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.IntegrationID)

	blank := " "
	_, err = f.Widgets.Update(f.ctx, w.ID, domain.WidgetPatch{WidgetType: &blank})
	assert.True(t, storage.IsInvalid(err))

	_, err = f.Widgets.Update(f.ctx, "missing", domain.WidgetPatch{Title: &title})
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteWidgetRemovesPlacements(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	other := f.dashboard(t, "Other")
	w := f.placed(t, d.ID, "Shared", domain.Rect{W: 1, H: 1})
	_, err := f.Groups.CreateWithMembers(f.ctx, other.ID, domain.GroupInput{
		Members: []domain.WidgetRect{{WidgetID: w.ID, Rect: domain.Rect{W: 1, H: 1}}},
	})
	require.NoError(t, err)

	require.NoError(t, f.Widgets.Delete(f.ctx, w.ID))

	assert.Zero(t, f.count(t, "dashboard_layouts"))
	assert.Zero(t, f.count(t, "group_members"))
	_, err = f.Widgets.Get(f.ctx, w.ID)
	assert.True(t, storage.IsNotFound(err))
	assert.True(t, storage.IsNotFound(f.Widgets.Delete(f.ctx, w.ID)))
}

func TestListWidgets(t *testing.T) {
	f := newFixture(t)

	widgets, err := f.Widgets.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, widgets)

	f.widget(t, "One")
	f.widget(t, "Two")
	widgets, err = f.Widgets.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, widgets, 2)
	assert.Equal(t, "One", widgets[0].Title)
	assert.Equal(t, "Two", widgets[1].Title)
}

func TestIntegrations(t *testing.T) {
	f := newFixture(t)

	disabled := false
	first, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: " weather "})
	require.NoError(t, err)
	assert.Equal(t, "weather", first.Type)
	assert.Equal(t, "weather", first.Name, "name defaults to the type")
	assert.True(t, first.Enabled)

	second, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "weather", Name: "Backup", Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, second.Enabled)
	cal, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "calendar"})
	require.NoError(t, err)

	_, err = f.Integrations.Create(f.ctx, domain.IntegrationInput{})
	assert.True(t, storage.IsInvalid(err))

	all, err := f.Integrations.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	types, err := f.Integrations.TypeMap(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"weather": first.ID, "calendar": cal.ID}, types)

	got, err := f.Integrations.Get(f.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backup", got.Name)
}

func TestDeleteIntegrationDetachesWidgets(t *testing.T) {
	f := newFixture(t)
	in, err := f.Integrations.Create(f.ctx, domain.IntegrationInput{Type: "weather"})
	require.NoError(t, err)
	w, err := f.Widgets.Create(f.ctx, domain.WidgetInput{IntegrationID: &in.ID, WidgetType: "weather"})
	require.NoError(t, err)

	require.NoError(t, f.Integrations.Delete(f.ctx, in.ID))

	got, err := f.Widgets.Get(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, got.IntegrationID)
	assert.Nil(t, got.IntegrationType)

	assert.True(t, storage.IsNotFound(f.Integrations.Delete(f.ctx, in.ID)))
	_, err = f.Integrations.Get(f.ctx, in.ID)
	assert.True(t, storage.IsNotFound(err))
}
