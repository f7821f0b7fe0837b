// Package domain contains core domain types for the dashboard system.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// Default placement for a widget that has no explicit rectangle.
const (
	DefaultWidgetWidth  = 4
	DefaultWidgetHeight = 3
)

// Dashboard is a named grid surface hosting standalone widgets and groups.
type Dashboard struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsDefault   bool      `json:"is_default"`
	KioskSlug   *string   `json:"kiosk_slug"`
	WidgetCount int       `json:"widget_count"`
	GroupCount  int       `json:"group_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DashboardInput carries the fields accepted when creating a dashboard.
type DashboardInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	KioskSlug   string `json:"kiosk_slug"`
}

// DashboardPatch is a partial update. Nil fields are left unchanged; an
// empty KioskSlug clears the slug.
type DashboardPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	KioskSlug   *string `json:"kiosk_slug"`
}

// Rect is a rectangle on a grid, in grid units.
type Rect struct {
	X int `json:"x" yaml:"x" validate:"gte=0"`
	Y int `json:"y" yaml:"y" validate:"gte=0"`
	W int `json:"w" yaml:"w" validate:"gt=0"`
	H int `json:"h" yaml:"h" validate:"gt=0"`
}

// Bottom returns the first row below the rectangle.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// AppendedRect returns the default-sized rectangle placed at the left edge of
// row y.
func AppendedRect(y int) Rect {
	return Rect{X: 0, Y: y, W: DefaultWidgetWidth, H: DefaultWidgetHeight}
}

var kioskSlugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeKioskSlug trims and lowercases a slug.
func NormalizeKioskSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidKioskSlug reports whether a normalized slug is URL safe.
func ValidKioskSlug(slug string) bool {
	return kioskSlugPattern.MatchString(slug)
}
