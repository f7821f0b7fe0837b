package domain

import (
	"encoding/json"
	"time"
)

// Config is an opaque configuration blob attached to widgets and groups.
type Config map[string]any

// GetString returns a string setting or the default value.
func (c Config) GetString(key, defaultValue string) string {
	if c == nil {
		return defaultValue
	}
	if val, ok := c[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultValue
}

// GetInt returns an int setting or the default value.
func (c Config) GetInt(key string, defaultValue int) int {
	if c == nil {
		return defaultValue
	}
	if val, ok := c[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultValue
}

// Widget is a dashboard-agnostic content unit. The same widget may be placed
// on several dashboards.
type Widget struct {
	ID              string    `json:"id"`
	IntegrationID   *string   `json:"integration_id"`
	IntegrationType *string   `json:"integration_type,omitempty"`
	WidgetType      string    `json:"widget_type"`
	Title           string    `json:"title"`
	Config          Config    `json:"config"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WidgetInput carries the writable fields of a widget.
type WidgetInput struct {
	IntegrationID *string `json:"integration_id"`
	WidgetType    string  `json:"widget_type"`
	Title         string  `json:"title"`
	Config        Config  `json:"config"`
}

// Placement is a widget as seen on one dashboard's grid.
type Placement struct {
	Widget
	Layout Rect `json:"layout"`
	// GroupID is set when the widget lives inside a group. Layout is then a
	// placeholder; the real rectangle belongs to the group membership.
	GroupID *string `json:"group_id,omitempty"`
}

// WidgetRect pairs a widget with a rectangle in batch layout updates.
type WidgetRect struct {
	WidgetID string `json:"widget_id" validate:"required"`
	Rect
}

// Integration is a configured third-party service connection.
type Integration struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Config    Config    `json:"config"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WidgetPatch is a partial widget update. An empty IntegrationID detaches
// the widget from its integration.
type WidgetPatch struct {
	IntegrationID *string `json:"integration_id"`
	WidgetType    *string `json:"widget_type"`
	Title         *string `json:"title"`
	Config        Config  `json:"config"`
}

// IntegrationInput carries the fields accepted when creating an integration.
type IntegrationInput struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Config  Config `json:"config"`
	Enabled *bool  `json:"enabled"`
}
