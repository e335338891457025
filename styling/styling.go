package styling

import (
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

const (
	StyleSpecVersion = 8
	DefaultGlyphsURL = "https://demotiles.maplibre.org/font/{fontstack}/{range}.pbf"
)

// Document is a complete GL style: what the engine renders from
type Document struct {
	Version int                              `json:"version"`
	Name    string                           `json:"name,omitempty"`
	Glyphs  string                           `json:"glyphs"`
	Sprite  string                           `json:"sprite,omitempty"`
	Sources map[string]*mapboxglstyle.Source `json:"sources"`
	Layers  []*mapboxglstyle.Layer           `json:"layers"`
}

// NewBlankDocument returns a style with no sources and no layers, which maps start out with
func NewBlankDocument(name string) *Document {
	return &Document{
		Version: StyleSpecVersion,
		Name:    name,
		Glyphs:  DefaultGlyphsURL,
		Sources: make(map[string]*mapboxglstyle.Source),
		Layers:  []*mapboxglstyle.Layer{},
	}
}

func (d *Document) LayerIndex(id string) int {
	for i, layer := range d.Layers {
		if layer.ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) GetLayerIDs() []string {
	ids := make([]string, len(d.Layers))
	for i, layer := range d.Layers {
		ids[i] = layer.ID
	}
	return ids
}
