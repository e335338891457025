package mapboxglstyle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerType_EngineType(t *testing.T) {
	assert.Equal(t, LayerTypeSymbol, LayerTypeText.EngineType())
	assert.Equal(t, LayerTypeSymbol, LayerTypeIcon.EngineType())
	assert.Equal(t, LayerTypeLine, LayerTypeLine.EngineType())
}

func TestLayer_MarshalJSON(t *testing.T) {
	style, _ := Compile(LayerTypeLine, Properties{"color": "red", "cap": "round", "maxzoom": 12})

	b, err := json.Marshal(NewLayer("roads", LayerTypeLine, style))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "roads",
		"type": "line",
		"maxzoom": 12,
		"source": {"type": "geojson", "data": {"type": "FeatureCollection", "features": []}},
		"layout": {"line-cap": "round"},
		"paint": {"line-color": "red"}
	}`, string(b))
}

func TestLayer_MarshalJSON_omitsEmptyBuckets(t *testing.T) {
	style, _ := Compile(LayerTypeBackground, Properties{"color": "white"})
	style.Source = nil

	b, err := json.Marshal(NewLayer("background", LayerTypeBackground, style))
	require.NoError(t, err)

	assert.JSONEq(t, `{"id": "background", "type": "background", "paint": {"background-color": "white"}}`, string(b))
}

func TestLayer_UnmarshalJSON(t *testing.T) {
	layer := new(Layer)
	err := json.Unmarshal([]byte(`{
		"id": "water",
		"type": "fill",
		"source": "openmaptiles",
		"source-layer": "water",
		"minzoom": 3,
		"paint": {"fill-color": "#aad3df"}
	}`), layer)
	require.NoError(t, err)

	assert.Equal(t, "water", layer.ID)
	assert.Equal(t, LayerTypeFill, layer.Type)
	assert.Nil(t, layer.Source)
	ref, ok := layer.SourceReference()
	assert.True(t, ok)
	assert.Equal(t, "openmaptiles", ref)
	assert.Equal(t, Properties{"source": "openmaptiles", "source-layer": "water", "minzoom": 3.0}, layer.Root)
	assert.Equal(t, Properties{"fill-color": "#aad3df"}, layer.Paint)

	inline := new(Layer)
	err = json.Unmarshal([]byte(`{"id": "points", "type": "circle", "source": {"type": "geojson", "data": "https://example.com/points.geojson"}}`), inline)
	require.NoError(t, err)
	require.NotNil(t, inline.Source)
	assert.Equal(t, "geojson", inline.Source.Type)
	assert.Equal(t, "https://example.com/points.geojson", inline.Source.Data)
}

func TestLayer_Validate(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		layerType  LayerType
		properties Properties
		wantErr    bool
	}{
		{"valid", "roads", LayerTypeLine, Properties{"minzoom": 2, "maxzoom": 14, "filter": []interface{}{"==", "class", "primary"}}, false},
		{"empty id", "", LayerTypeLine, nil, true},
		{"unknown type", "sky", LayerType("sky"), nil, true},
		{"max zoom below min zoom", "roads", LayerTypeLine, Properties{"minzoom": 10, "maxzoom": 4}, true},
		{"zoom out of range", "roads", LayerTypeLine, Properties{"maxzoom": 30}, true},
		{"negative zoom", "roads", LayerTypeLine, Properties{"minzoom": -1.5}, true},
		{"zoom not a number", "roads", LayerTypeLine, Properties{"minzoom": "4"}, true},
		{"bad filter", "roads", LayerTypeLine, Properties{"filter": "class == primary"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style, _ := Compile(tt.layerType, tt.properties)
			err := NewLayer(tt.id, tt.layerType, style).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompiledStyle_ZoomRange(t *testing.T) {
	style, _ := Compile(LayerTypeLine, Properties{"minzoom": 6})
	minZoom, maxZoom, err := style.ZoomRange()
	require.NoError(t, err)
	assert.Equal(t, 6.0, minZoom)
	assert.Equal(t, 24.0, maxZoom)

	style, _ = Compile(LayerTypeLine, Properties{"maxzoom": "high"})
	_, _, err = style.ZoomRange()
	assert.Error(t, err)
}
