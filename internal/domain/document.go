package domain

import "time"

// DocumentVersion is the export format version written by this build.
const DocumentVersion = 1

// Document is the portable form of a dashboard. Widgets are referenced by
// position in Widgets instead of by id, since ids do not survive moving
// between installations.
type Document struct {
	Version    int               `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Dashboard  DocumentDashboard `json:"dashboard" yaml:"dashboard"`
	Widgets    []DocumentWidget  `json:"widgets" yaml:"widgets"`
	Groups     []DocumentGroup   `json:"groups" yaml:"groups"`
}

// DocumentDashboard holds the exported dashboard metadata.
type DocumentDashboard struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// DocumentWidget is one exported widget. Layout is nil for widgets that only
// appear as group members.
type DocumentWidget struct {
	WidgetType      string  `json:"widget_type" yaml:"widget_type"`
	Title           string  `json:"title" yaml:"title"`
	Config          Config  `json:"config" yaml:"config"`
	IntegrationType *string `json:"integration_type" yaml:"integration_type"`
	Layout          *Rect   `json:"layout" yaml:"layout"`
}

// DocumentGroup is one exported group.
type DocumentGroup struct {
	Title   string           `json:"title" yaml:"title"`
	Config  Config           `json:"config" yaml:"config"`
	Layout  *Rect            `json:"layout" yaml:"layout"`
	Members []DocumentMember `json:"members" yaml:"members"`
}

// DocumentMember places Widgets[WidgetIndex] inside a group.
type DocumentMember struct {
	WidgetIndex int `json:"widget_index" yaml:"widget_index"`
	X           int `json:"x" yaml:"x"`
	Y           int `json:"y" yaml:"y"`
	W           int `json:"w" yaml:"w"`
	H           int `json:"h" yaml:"h"`
}

// Rect returns the member rectangle.
func (m DocumentMember) Rect() Rect {
	return Rect{X: m.X, Y: m.Y, W: m.W, H: m.H}
}

// ImportResult reports the dashboard created by an import and anything that
// was skipped along the way.
type ImportResult struct {
	Dashboard *Dashboard `json:"dashboard"`
	Warnings  []string   `json:"warnings"`
}
