package domain

import "time"

// Group is a titled sub-grid owned by one dashboard.
type Group struct {
	ID          string        `json:"id"`
	DashboardID string        `json:"dashboard_id"`
	Title       string        `json:"title"`
	Config      Config        `json:"config"`
	Layout      *Rect         `json:"layout"`
	Members     []GroupMember `json:"members"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// GroupMember is a widget positioned inside a group's internal grid.
type GroupMember struct {
	WidgetID      string  `json:"widget_id"`
	Title         string  `json:"title"`
	WidgetType    string  `json:"widget_type"`
	IntegrationID *string `json:"integration_id"`
	Rect
}

// GroupInput describes a group to create, optionally with members.
type GroupInput struct {
	Title   string       `json:"title"`
	Config  Config       `json:"config"`
	Layout  *Rect        `json:"layout"`
	Members []WidgetRect `json:"members"`
}

// GroupPatch is a metadata-only update.
type GroupPatch struct {
	Title  *string `json:"title"`
	Config Config  `json:"config"`
}
