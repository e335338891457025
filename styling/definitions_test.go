package styling

import (
	"testing"

	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cityMapYAML = `
id: city
name: City
layers:
  - id: water
    type: fill
    properties:
      geojson: https://example.com/water.geojson
      color: "#aad3df"
  - id: labels
    type: text
    properties:
      field: "{name}"
      size: 12
      sort-key: 2
`

func TestParseMapDefinition(t *testing.T) {
	definition, err := ParseMapDefinition([]byte(cityMapYAML))
	require.NoError(t, err)

	assert.Equal(t, "city", definition.ID)
	assert.Equal(t, "City", definition.Name)
	require.Len(t, definition.Layers, 2)

	assert.Equal(t, "water", definition.Layers[0].ID)
	assert.Equal(t, mapboxglstyle.LayerTypeFill, definition.Layers[0].Type)
	assert.Equal(t, "#aad3df", definition.Layers[0].Properties["color"])

	assert.Equal(t, mapboxglstyle.LayerTypeText, definition.Layers[1].Type)
	assert.Equal(t, 12, definition.Layers[1].Properties["size"])
}

func TestParseMapDefinition_json(t *testing.T) {
	definition, err := ParseMapDefinition([]byte(`{"id": "json-map", "layers": [{"id": "bg", "type": "background", "properties": {"color": "white"}}]}`))
	require.NoError(t, err)

	assert.Equal(t, "json-map", definition.ID)
	require.Len(t, definition.Layers, 1)
	assert.Equal(t, "white", definition.Layers[0].Properties["color"])
}

func TestParseMapDefinition_invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no map id", `layers: []`},
		{"no layer id", "id: m\nlayers:\n  - type: line\n"},
		{"empty layer", "id: m\nlayers:\n  - ~\n"},
		{"empty layer in json", `{"id": "m", "layers": [{"id": "a", "type": "line"}, null]}`},
		{"no layer type", "id: m\nlayers:\n  - id: a\n"},
		{"duplicate layer id", "id: m\nlayers:\n  - {id: a, type: line}\n  - {id: a, type: fill}\n"},
		{"not yaml", "id: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapDefinition([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseProperties(t *testing.T) {
	properties, err := ParseProperties([]byte("color: red\ncap: round\nwidth: 2.5\n"))
	require.NoError(t, err)

	assert.Equal(t, mapboxglstyle.Properties{"color": "red", "cap": "round", "width": 2.5}, properties)
}

func TestLoadMapDefinitionsFromDir(t *testing.T) {
	fs := mockfs.NewMockFs()
	require.NoError(t, fs.MkdirAll("/maps", 0755))
	require.NoError(t, fs.WriteFile("/maps/city.yaml", []byte(cityMapYAML), 0644))
	require.NoError(t, fs.WriteFile("/maps/a-country.json", []byte(`{"id": "country", "layers": []}`), 0644))
	require.NoError(t, fs.WriteFile("/maps/broken.yml", []byte(`layers: []`), 0644))
	require.NoError(t, fs.WriteFile("/maps/city-copy.yml", []byte(cityMapYAML), 0644))
	require.NoError(t, fs.WriteFile("/maps/README.md", []byte(`# maps`), 0644))

	definitions, failures, err := LoadMapDefinitionsFromDir(fs, "/maps")
	require.NoError(t, err)

	require.Len(t, definitions, 2)
	assert.Equal(t, "city", definitions[0].ID)
	assert.Equal(t, "country", definitions[1].ID)

	require.Len(t, failures, 2)
	var failedPaths []string
	for _, failure := range failures {
		failedPaths = append(failedPaths, failure.FilePath)
	}
	assert.ElementsMatch(t, []string{"/maps/broken.yml", "/maps/city.yaml"}, failedPaths)
}

func TestLoadMapDefinitionsFromDir_missingDir(t *testing.T) {
	_, _, err := LoadMapDefinitionsFromDir(mockfs.NewMockFs(), "/nowhere")
	assert.Error(t, err)
}

func TestParseClassificationRules(t *testing.T) {
	rules, err := ParseClassificationRules([]byte("symbolLayerTypes: [text, icon, label]\nsourceProperties: [geojson, vector, raster-dem]\n"))
	require.NoError(t, err)

	config := rules.Config()
	assert.Equal(t, []mapboxglstyle.LayerType{"icon", "label", "text"}, config.SymbolLayerTypes)
	assert.Equal(t, []string{"geojson", "raster-dem", "vector"}, config.SourceProperties)
	assert.Equal(t, mapboxglstyle.DefaultClassificationRulesConfig().RootMarkers, config.RootMarkers)

	assert.Equal(t, "label-field", rules.PrefixedKey("label", "field"))
	assert.Equal(t, mapboxglstyle.PropertyBucketSource, rules.Classify(mapboxglstyle.LayerTypeHillshade, "raster-dem"))

	_, err = ParseClassificationRules([]byte("rootMarkers: {"))
	assert.Error(t, err)
}
