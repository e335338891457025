package mapboxglstyle

import (
	"encoding/json"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
)

type LayerType string

const (
	LayerTypeBackground    LayerType = "background"
	LayerTypeFill          LayerType = "fill"
	LayerTypeLine          LayerType = "line"
	LayerTypeSymbol        LayerType = "symbol"
	LayerTypeRaster        LayerType = "raster"
	LayerTypeCircle        LayerType = "circle"
	LayerTypeFillExtrusion LayerType = "fill-extrusion"
	LayerTypeHeatmap       LayerType = "heatmap"
	LayerTypeHillshade     LayerType = "hillshade"

	// text and icon are sub-roles of the symbol layer. They only exist on this side of the engine,
	// to choose property prefixes; the engine sees them as "symbol" layers.
	LayerTypeText LayerType = "text"
	LayerTypeIcon LayerType = "icon"
)

// AllLayerTypes lists every layer type the compiler accepts
var AllLayerTypes = []LayerType{
	LayerTypeBackground,
	LayerTypeCircle,
	LayerTypeLine,
	LayerTypeFill,
	LayerTypeSymbol,
	LayerTypeText,
	LayerTypeIcon,
	LayerTypeRaster,
	LayerTypeFillExtrusion,
	LayerTypeHeatmap,
	LayerTypeHillshade,
}

func (lt LayerType) IsKnown() bool {
	for _, known := range AllLayerTypes {
		if lt == known {
			return true
		}
	}
	return false
}

// EngineType is the type the rendering engine knows this layer by
func (lt LayerType) EngineType() LayerType {
	switch lt {
	case LayerTypeText, LayerTypeIcon:
		return LayerTypeSymbol
	default:
		return lt
	}
}

// Properties is a flat set of style properties, keyed by property name
type Properties map[string]interface{}

// Keys returns the property names in sorted order
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type Source struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	minZoomKey = "minzoom"
	maxZoomKey = "maxzoom"
	filterKey  = "filter"
	sourceKey  = "source"

	minAllowedZoom = 0
	maxAllowedZoom = 24
)

// CompiledStyle is the nested form of a layer's style, as the engine expects it.
// Root holds the top-level fields (zoom range, filter, source reference...).
type CompiledStyle struct {
	Root   Properties
	Source *Source
	Layout Properties
	Paint  Properties
}

func newCompiledStyle() *CompiledStyle {
	return &CompiledStyle{
		Root:   make(Properties),
		Layout: make(Properties),
		Paint:  make(Properties),
	}
}

// SourceReference returns the id of the engine source this layer draws from, if it references one by id
func (cs *CompiledStyle) SourceReference() (string, bool) {
	ref, ok := cs.Root[sourceKey].(string)
	return ref, ok
}

// ZoomRange returns the zooms the layer is visible between. Bounds that aren't set are the widest allowed.
func (cs *CompiledStyle) ZoomRange() (float64, float64, errorsx.Error) {
	minZoom, ok, err := zoomFromRoot(cs.Root, minZoomKey)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		minZoom = minAllowedZoom
	}

	maxZoom, ok, err := zoomFromRoot(cs.Root, maxZoomKey)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		maxZoom = maxAllowedZoom
	}

	return minZoom, maxZoom, nil
}

type Layer struct {
	ID   string
	Type LayerType
	*CompiledStyle
}

func NewLayer(id string, layerType LayerType, style *CompiledStyle) *Layer {
	if style == nil {
		style = newCompiledStyle()
	}
	return &Layer{id, layerType.EngineType(), style}
}

// MarshalJSON writes the layer out as {id, type, source?, layout?, paint?, ...rootFields}
func (l *Layer) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{})
	if l.CompiledStyle != nil {
		for key, value := range l.Root {
			obj[key] = value
		}
		if l.Source != nil {
			obj[sourceKey] = l.Source
		}
		if len(l.Layout) > 0 {
			obj["layout"] = l.Layout
		}
		if len(l.Paint) > 0 {
			obj["paint"] = l.Paint
		}
	}
	obj["id"] = l.ID
	obj["type"] = l.Type

	return json.Marshal(obj)
}

func (l *Layer) UnmarshalJSON(b []byte) error {
	obj := make(map[string]json.RawMessage)
	err := json.Unmarshal(b, &obj)
	if err != nil {
		return err
	}

	style := newCompiledStyle()
	for key, raw := range obj {
		switch key {
		case "id":
			err = json.Unmarshal(raw, &l.ID)
		case "type":
			err = json.Unmarshal(raw, &l.Type)
		case "layout":
			err = json.Unmarshal(raw, &style.Layout)
		case "paint":
			err = json.Unmarshal(raw, &style.Paint)
		case sourceKey:
			var ref string
			if json.Unmarshal(raw, &ref) == nil {
				style.Root[sourceKey] = ref
				continue
			}
			style.Source = new(Source)
			err = json.Unmarshal(raw, style.Source)
		default:
			var value interface{}
			err = json.Unmarshal(raw, &value)
			style.Root[key] = value
		}
		if err != nil {
			return err
		}
	}

	l.CompiledStyle = style
	return nil
}

func (l *Layer) Validate() errorsx.Error {
	if l.ID == "" {
		return errorsx.Errorf("layer id is empty")
	}

	if !l.Type.IsKnown() {
		return errorsx.Errorf("unknown layer type: %q", l.Type)
	}

	if l.CompiledStyle == nil {
		return nil
	}

	minZoom, hasMinZoom, err := zoomFromRoot(l.Root, minZoomKey)
	if err != nil {
		return err
	}

	maxZoom, hasMaxZoom, err := zoomFromRoot(l.Root, maxZoomKey)
	if err != nil {
		return err
	}

	if hasMinZoom && hasMaxZoom && maxZoom < minZoom {
		return errorsx.Errorf("max zoom is smaller than min zoom")
	}

	filter, ok := l.Root[filterKey]
	if ok {
		err = ValidateFilter(filter)
		if err != nil {
			return errorsx.Wrap(err, "layer", l.ID)
		}
	}

	return nil
}

func zoomFromRoot(root Properties, key string) (float64, bool, errorsx.Error) {
	raw, ok := root[key]
	if !ok {
		return 0, false, nil
	}

	zoom, ok := toFloat64(raw)
	if !ok {
		return 0, false, errorsx.Errorf("%s must be a number but was %T", key, raw)
	}

	if zoom < minAllowedZoom || zoom > maxAllowedZoom {
		return 0, false, errorsx.Errorf("%s must be between %d and %d (inclusive) but was %f", key, minAllowedZoom, maxAllowedZoom, zoom)
	}

	return zoom, true, nil
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
