package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widgetConfig decodes a stored config blob the way the repository does.
func widgetConfig(t *testing.T, blob string) Config {
	t.Helper()
	var c Config
	require.NoError(t, json.Unmarshal([]byte(blob), &c))
	return c
}

func TestConfigAccessors(t *testing.T) {
	c := widgetConfig(t, `{"city":"Oslo","refresh_seconds":60,"opacity":0.5,"units":{"temp":"C"}}`)

	tests := []struct {
		key     string
		wantStr string
		wantInt int
	}{
		{key: "city", wantStr: "Oslo", wantInt: -1},
		{key: "refresh_seconds", wantStr: "-", wantInt: 60},
		{key: "opacity", wantStr: "-", wantInt: 0},
		{key: "units", wantStr: "-", wantInt: -1},
		{key: "absent", wantStr: "-", wantInt: -1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.wantStr, c.GetString(tt.key, "-"))
			assert.Equal(t, tt.wantInt, c.GetInt(tt.key, -1))
		})
	}
}

func TestConfigGetIntFromNumberDecoder(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"columns":12}`))
	dec.UseNumber()
	var c Config
	require.NoError(t, dec.Decode(&c))

	assert.Equal(t, 12, c.GetInt("columns", 0))
}

func TestNilConfigDefaults(t *testing.T) {
	var config Config

	assert.Equal(t, "x", config.GetString("a", "x"))
	assert.Equal(t, 7, config.GetInt("a", 7))
}

func TestPlacementJSONFlattensWidget(t *testing.T) {
	groupID := "g-1"
	p := Placement{
		Widget:  Widget{ID: "w-1", WidgetType: "clock", Title: "Clock"},
		Layout:  Rect{X: 1, Y: 2, W: 3, H: 4},
		GroupID: &groupID,
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "w-1", decoded["id"])
	assert.Equal(t, "g-1", decoded["group_id"])
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "w": 3.0, "h": 4.0}, decoded["layout"])
}

func TestWidgetRectJSON(t *testing.T) {
	var wr WidgetRect
	require.NoError(t, json.Unmarshal([]byte(`{"widget_id":"w-9","x":2,"y":5,"w":6,"h":1}`), &wr))

	assert.Equal(t, "w-9", wr.WidgetID)
	assert.Equal(t, Rect{X: 2, Y: 5, W: 6, H: 1}, wr.Rect)
}
