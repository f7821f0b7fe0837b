package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

func TestGetLayoutsIncludesGroupedWidgets(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	loose := f.placed(t, d.ID, "Loose", domain.Rect{X: 2, Y: 1, W: 5, H: 2})
	member := f.widget(t, "Member")
	g, err := f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Title:   "G",
		Members: []domain.WidgetRect{{WidgetID: member.ID, Rect: domain.Rect{X: 1, Y: 1, W: 1, H: 1}}},
	})
	require.NoError(t, err)

	placements, err := f.Layouts.Get(f.ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, placements, 2)

	assert.Equal(t, loose.ID, placements[0].ID)
	assert.Equal(t, domain.Rect{X: 2, Y: 1, W: 5, H: 2}, placements[0].Layout)
	assert.Nil(t, placements[0].GroupID)

	assert.Equal(t, member.ID, placements[1].ID)
	assert.Equal(t, "Member", placements[1].Title)
	require.NotNil(t, placements[1].GroupID)
	assert.Equal(t, g.ID, *placements[1].GroupID)
}

func TestGetLayoutsEmptyDashboard(t *testing.T) {
	f := newFixture(t)

	placements, err := f.Layouts.Get(f.ctx, f.defaultDashboard(t).ID)
	require.NoError(t, err)
	assert.NotNil(t, placements)
	assert.Empty(t, placements)

	_, err = f.Layouts.Get(f.ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestSetLayoutUpserts(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	w := f.widget(t, "W")

	require.NoError(t, f.Layouts.Set(f.ctx, d.ID, w.ID, domain.Rect{W: 2, H: 2}))
	require.NoError(t, f.Layouts.Set(f.ctx, d.ID, w.ID, domain.Rect{X: 3, Y: 4, W: 5, H: 6}))

	rect, ok := f.standaloneRect(t, d.ID, w.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Rect{X: 3, Y: 4, W: 5, H: 6}, rect)
	assert.Equal(t, 1, f.count(t, "dashboard_layouts"))

	assert.True(t, storage.IsNotFound(f.Layouts.Set(f.ctx, d.ID, "missing", domain.Rect{})))
	assert.True(t, storage.IsNotFound(f.Layouts.Set(f.ctx, "missing", w.ID, domain.Rect{})))
}

func TestSetLayoutTakesWidgetOutOfGroup(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	w := f.widget(t, "W")
	_, err := f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Members: []domain.WidgetRect{{WidgetID: w.ID, Rect: domain.Rect{W: 1, H: 1}}},
	})
	require.NoError(t, err)

	require.NoError(t, f.Layouts.Set(f.ctx, d.ID, w.ID, domain.Rect{W: 2, H: 2}))

	assert.Zero(t, f.count(t, "group_members"))
	_, ok := f.standaloneRect(t, d.ID, w.ID)
	assert.True(t, ok)
	f.requireInvariants(t)
}

func TestBatchSetLayouts(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	a := f.widget(t, "A")
	b := f.placed(t, d.ID, "B", domain.Rect{W: 1, H: 1})
	c := f.widget(t, "C")
	_, err := f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Members: []domain.WidgetRect{{WidgetID: c.ID, Rect: domain.Rect{W: 1, H: 1}}},
	})
	require.NoError(t, err)

	n, err := f.Layouts.BatchSet(f.ctx, d.ID, []domain.WidgetRect{
		{WidgetID: a.ID, Rect: domain.Rect{W: 4, H: 4}},
		{WidgetID: b.ID, Rect: domain.Rect{X: 4, W: 4, H: 4}},
		{WidgetID: "ghost", Rect: domain.Rect{X: 8, W: 4, H: 4}},
		{WidgetID: c.ID, Rect: domain.Rect{Y: 4, W: 4, H: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rect, ok := f.standaloneRect(t, d.ID, b.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Rect{X: 4, W: 4, H: 4}, rect)
	_, ok = f.standaloneRect(t, d.ID, "ghost")
	assert.False(t, ok)
	assert.Zero(t, f.count(t, "group_members"), "c left its group")
	f.requireInvariants(t)
}

func TestBatchSetUnknownDashboard(t *testing.T) {
	f := newFixture(t)

	_, err := f.Layouts.BatchSet(f.ctx, "missing", nil)
	assert.True(t, storage.IsNotFound(err))
}

func TestAttachWidget(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	f.placed(t, d.ID, "Top", domain.Rect{W: 12, H: 5})
	_, err := f.Groups.Create(f.ctx, d.ID, domain.GroupInput{Title: "Tall", Layout: &domain.Rect{Y: 5, W: 6, H: 3}})
	require.NoError(t, err)

	w := f.widget(t, "New")
	rect, err := f.Layouts.Attach(f.ctx, d.ID, w.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Rect{X: 0, Y: 8, W: 4, H: 3}, rect)

	_, err = f.Layouts.Attach(f.ctx, d.ID, w.ID, nil)
	assert.True(t, storage.IsInvalid(err), "already standalone")

	other := f.dashboard(t, "Other")
	explicit := domain.Rect{X: 1, Y: 1, W: 2, H: 2}
	rect, err = f.Layouts.Attach(f.ctx, other.ID, w.ID, &explicit)
	require.NoError(t, err, "the same widget may appear on another dashboard")
	assert.Equal(t, explicit, rect)

	_, err = f.Layouts.Attach(f.ctx, d.ID, "missing", nil)
	assert.True(t, storage.IsNotFound(err))
	_, err = f.Layouts.Attach(f.ctx, "missing", w.ID, nil)
	assert.True(t, storage.IsNotFound(err))
}

func TestAttachRejectsGroupedWidget(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	w := f.widget(t, "W")
	_, err := f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Members: []domain.WidgetRect{{WidgetID: w.ID, Rect: domain.Rect{W: 1, H: 1}}},
	})
	require.NoError(t, err)

	_, err = f.Layouts.Attach(f.ctx, d.ID, w.ID, nil)
	assert.True(t, storage.IsInvalid(err))
	f.requireInvariants(t)
}

func TestDetachWidget(t *testing.T) {
	f := newFixture(t)
	d := f.defaultDashboard(t)
	loose := f.placed(t, d.ID, "Loose", domain.Rect{W: 1, H: 1})
	member := f.widget(t, "Member")
	_, err := f.Groups.CreateWithMembers(f.ctx, d.ID, domain.GroupInput{
		Members: []domain.WidgetRect{{WidgetID: member.ID, Rect: domain.Rect{W: 1, H: 1}}},
	})
	require.NoError(t, err)

	require.NoError(t, f.Layouts.Detach(f.ctx, d.ID, loose.ID))
	require.NoError(t, f.Layouts.Detach(f.ctx, d.ID, member.ID))
	require.NoError(t, f.Layouts.Detach(f.ctx, d.ID, member.ID), "detaching twice is harmless")

	placements, err := f.Layouts.Get(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, placements)
	assert.Equal(t, 2, f.count(t, "widgets"))
}
