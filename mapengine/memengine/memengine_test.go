package memengine

import (
	"encoding/json"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/mlexpress/mapengine"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayer(t *testing.T, id string, layerType mapboxglstyle.LayerType, properties mapboxglstyle.Properties) *mapboxglstyle.Layer {
	style, diagnostics := mapboxglstyle.Compile(layerType, properties)
	require.True(t, diagnostics.IsEmpty(), diagnostics.String())
	return mapboxglstyle.NewLayer(id, layerType, style)
}

func TestMemEngine_OnLoad(t *testing.T) {
	engine := NewMemEngine("test")
	assert.False(t, engine.Loaded())

	var calls []string
	engine.OnLoad(func() { calls = append(calls, "first") })
	engine.OnLoad(func() { calls = append(calls, "second") })
	assert.Empty(t, calls)

	engine.MarkLoaded()
	assert.True(t, engine.Loaded())
	assert.Equal(t, []string{"first", "second"}, calls)

	// callbacks only run once
	engine.MarkLoaded()
	assert.Equal(t, []string{"first", "second"}, calls)

	// and straight away once loaded
	engine.OnLoad(func() { calls = append(calls, "third") })
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestMemEngine_AddLayer(t *testing.T) {
	engine := NewMemEngine("test")

	err := engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, mapboxglstyle.Properties{"color": "red"}), "")
	require.NoError(t, err)

	err = engine.AddLayer(newLayer(t, "water", mapboxglstyle.LayerTypeFill, mapboxglstyle.Properties{"color": "blue"}), "roads")
	require.NoError(t, err)

	err = engine.AddLayer(newLayer(t, "labels", mapboxglstyle.LayerTypeText, mapboxglstyle.Properties{"source": "roads", "field": "{name}"}), "")
	require.NoError(t, err)

	document := engine.Document()
	assert.Equal(t, []string{"water", "roads", "labels"}, document.GetLayerIDs())

	// inline sources are hoisted out under the layer ID
	require.Contains(t, document.Sources, "roads")
	assert.Equal(t, "geojson", document.Sources["roads"].Type)
	roads, ok := engine.GetLayer("roads")
	require.True(t, ok)
	assert.Nil(t, roads.Source)
	ref, ok := roads.SourceReference()
	assert.True(t, ok)
	assert.Equal(t, "roads", ref)

	labels, ok := engine.GetLayer("labels")
	require.True(t, ok)
	assert.Equal(t, mapboxglstyle.LayerTypeSymbol, labels.Type)
	assert.Equal(t, mapboxglstyle.Properties{"text-field": "{name}"}, labels.Layout)
}

func TestMemEngine_AddLayer_errors(t *testing.T) {
	engine := NewMemEngine("test")
	require.NoError(t, engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, nil), ""))

	err := engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, nil), "")
	require.Error(t, err)
	assert.Equal(t, mapengine.ErrLayerExists, errorsx.Cause(err))

	err = engine.AddLayer(newLayer(t, "rivers", mapboxglstyle.LayerTypeLine, nil), "missing")
	require.Error(t, err)
	assert.Equal(t, mapengine.ErrLayerNotFound, errorsx.Cause(err))

	err = engine.AddLayer(newLayer(t, "buildings", mapboxglstyle.LayerTypeFill, mapboxglstyle.Properties{"source": "openmaptiles"}), "")
	require.Error(t, err)
	assert.Equal(t, mapengine.ErrSourceNotFound, errorsx.Cause(err))

	err = engine.AddLayer(newLayer(t, "zoomy", mapboxglstyle.LayerTypeLine, mapboxglstyle.Properties{"minzoom": 30}), "")
	assert.Error(t, err)

	assert.Equal(t, []string{"roads"}, engine.Document().GetLayerIDs())
}

func TestMemEngine_RemoveLayer(t *testing.T) {
	engine := NewMemEngine("test")
	require.NoError(t, engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, nil), ""))

	require.NoError(t, engine.RemoveLayer("roads"))
	_, ok := engine.GetLayer("roads")
	assert.False(t, ok)

	err := engine.RemoveLayer("roads")
	require.Error(t, err)
	assert.Equal(t, mapengine.ErrLayerNotFound, errorsx.Cause(err))
}

func TestMemEngine_SetProperties(t *testing.T) {
	engine := NewMemEngine("test")
	require.NoError(t, engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, mapboxglstyle.Properties{"color": "red", "cap": "butt"}), ""))

	require.NoError(t, engine.SetPaintProperty("roads", "line-color", "green"))
	require.NoError(t, engine.SetLayoutProperty("roads", "line-cap", nil))
	require.NoError(t, engine.SetFilter("roads", []interface{}{"==", "class", "primary"}))
	require.NoError(t, engine.SetLayerZoomRange("roads", 4, 12))

	roads, ok := engine.GetLayer("roads")
	require.True(t, ok)
	assert.Equal(t, mapboxglstyle.Properties{"line-color": "green"}, roads.Paint)
	assert.Empty(t, roads.Layout)
	assert.Equal(t, []interface{}{"==", "class", "primary"}, roads.Root["filter"])
	assert.Equal(t, 4.0, roads.Root["minzoom"])
	assert.Equal(t, 12.0, roads.Root["maxzoom"])

	assert.Error(t, engine.SetFilter("roads", "primary"))
	assert.Error(t, engine.SetLayerZoomRange("roads", 12, 4))
	assert.Error(t, engine.SetPaintProperty("missing", "line-color", "green"))

	require.NoError(t, engine.SetFilter("roads", nil))
	roads, _ = engine.GetLayer("roads")
	assert.NotContains(t, roads.Root, "filter")
	assert.Equal(t, 4.0, roads.Root["minzoom"])
}

func TestMemEngine_GetLayer_returnsACopy(t *testing.T) {
	engine := NewMemEngine("test")
	require.NoError(t, engine.AddLayer(newLayer(t, "roads", mapboxglstyle.LayerTypeLine, mapboxglstyle.Properties{"color": "red"}), ""))

	roads, _ := engine.GetLayer("roads")
	roads.Paint["line-color"] = "blue"

	again, _ := engine.GetLayer("roads")
	assert.Equal(t, "red", again.Paint["line-color"])
}

func TestMemEngine_Sources(t *testing.T) {
	engine := NewMemEngine("test")

	require.NoError(t, engine.AddSource("points", &mapboxglstyle.Source{Type: "geojson", Data: "https://example.com/a.geojson"}))
	require.NoError(t, engine.AddSource("tiles", &mapboxglstyle.Source{Type: "vector", Data: "https://example.com/tiles.json"}))
	assert.Error(t, engine.AddSource("points", &mapboxglstyle.Source{Type: "geojson"}))

	source, ok := engine.GetSource("points")
	require.True(t, ok)
	assert.Equal(t, "geojson", source.Type())
	require.NoError(t, source.SetData("https://example.com/b.geojson"))
	assert.Equal(t, "https://example.com/b.geojson", engine.Document().Sources["points"].Data)

	tiles, ok := engine.GetSource("tiles")
	require.True(t, ok)
	assert.Error(t, tiles.SetData("https://example.com/c.geojson"))

	_, ok = engine.GetSource("missing")
	assert.False(t, ok)
}

func TestMemEngine_Document_json(t *testing.T) {
	engine := NewMemEngine("test")
	require.NoError(t, engine.AddLayer(newLayer(t, "bg", mapboxglstyle.LayerTypeBackground, mapboxglstyle.Properties{"color": "white"}), ""))

	b, err := json.Marshal(engine.Document())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": 8,
		"name": "test",
		"glyphs": "https://demotiles.maplibre.org/font/{fontstack}/{range}.pbf",
		"sources": {"bg": {"type": "geojson", "data": {"type": "FeatureCollection", "features": []}}},
		"layers": [{"id": "bg", "type": "background", "source": "bg", "paint": {"background-color": "white"}}]
	}`, string(b))
}
