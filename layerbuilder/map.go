package layerbuilder

import (
	"sync/atomic"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/mapengine"
	"github.com/jamesrr39/mlexpress/styling"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

const (
	geojsonKey = "geojson"
	sourceKey  = "source"
	filterKey  = "filter"
	minZoomKey = "minzoom"
	maxZoomKey = "maxzoom"
)

// Map adds, restyles and removes layers on a GL engine, from flat properties.
// Changes made before the engine has loaded are queued until it has.
type Map struct {
	id     string
	engine mapengine.Engine
	rules  *mapboxglstyle.ClassificationRules
	logger *logpkg.Logger

	// seenLoaded is set once the engine has been seen loaded. Engines can report not loaded
	// again while they fetch new tiles, which shouldn't hold changes back.
	seenLoaded int32
}

func NewMap(id string, engine mapengine.Engine, rules *mapboxglstyle.ClassificationRules, logger *logpkg.Logger) *Map {
	if rules == nil {
		rules = mapboxglstyle.DefaultClassificationRules()
	}

	return &Map{
		id:     id,
		engine: engine,
		rules:  rules,
		logger: logger,
	}
}

func (m *Map) GetMapID() string {
	return m.id
}

type documentEngine interface {
	Document() *styling.Document
}

// Style returns the engine's style document, if the engine can provide one
func (m *Map) Style() (*styling.Document, bool) {
	engine, ok := m.engine.(documentEngine)
	if !ok {
		return nil, false
	}

	return engine.Document(), true
}

func (m *Map) AddBackground(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeBackground, id, properties, beforeID)
}

func (m *Map) AddCircle(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeCircle, id, properties, beforeID)
}

func (m *Map) AddLine(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeLine, id, properties, beforeID)
}

func (m *Map) AddFill(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeFill, id, properties, beforeID)
}

func (m *Map) AddSymbol(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeSymbol, id, properties, beforeID)
}

func (m *Map) AddText(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeText, id, properties, beforeID)
}

func (m *Map) AddIcon(id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	return m.AddLayer(mapboxglstyle.LayerTypeIcon, id, properties, beforeID)
}

// AddLayer compiles the properties and adds the layer to the engine, before the layer beforeID
// (or on top, if beforeID is empty).
// The returned diagnostics are for the compile step; the error is for adding the layer.
// If the engine hasn't loaded yet, the layer is added once it has and any error from that is logged.
func (m *Map) AddLayer(layerType mapboxglstyle.LayerType, id string, properties mapboxglstyle.Properties, beforeID string) (mapboxglstyle.Diagnostics, errorsx.Error) {
	properties, err := normaliseGeometry(properties)
	if err != nil {
		return mapboxglstyle.Diagnostics{}, errorsx.Wrap(err, "layerID", id)
	}

	style, diagnostics := m.rules.Compile(layerType, properties)
	diagnostics = diagnostics.ForLayer(id)
	m.logDiagnostics(diagnostics)

	if layerType == mapboxglstyle.LayerTypeBackground {
		// background layers draw no data
		style.Source = nil
		delete(style.Root, sourceKey)
	}

	layer := mapboxglstyle.NewLayer(id, layerType, style)

	err = m.whenLoaded(func() errorsx.Error {
		return m.engine.AddLayer(layer, beforeID)
	})
	if err != nil {
		return diagnostics, errorsx.Wrap(err, "layerID", id)
	}

	return diagnostics, nil
}

// Restyle applies the properties to a layer already on the map.
// Properties that set where the layer's data comes from can't be changed, and are reported instead.
func (m *Map) Restyle(id string, layerType mapboxglstyle.LayerType, properties mapboxglstyle.Properties) (mapboxglstyle.Diagnostics, errorsx.Error) {
	var diagnostics mapboxglstyle.Diagnostics
	if len(properties) == 0 {
		return diagnostics, nil
	}

	style, diagnostics := m.rules.Compile(layerType, properties)

	for _, property := range properties.Keys() {
		if m.rules.Classify(layerType, property) == mapboxglstyle.PropertyBucketSource {
			diagnostics.AddWarning(mapboxglstyle.CodeNotRestyleable, property, "the source of a layer can't be changed once it is on the map")
		}
	}

	for _, property := range style.Root.Keys() {
		switch property {
		case filterKey, minZoomKey, maxZoomKey:
		default:
			diagnostics.AddWarning(mapboxglstyle.CodeNotRestyleable, property, "this property can't be changed once the layer is on the map")
		}
	}

	diagnostics = diagnostics.ForLayer(id)
	m.logDiagnostics(diagnostics)

	err := m.whenLoaded(func() errorsx.Error {
		return m.applyStyle(id, style)
	})
	if err != nil {
		return diagnostics, errorsx.Wrap(err, "layerID", id)
	}

	return diagnostics, nil
}

func (m *Map) applyStyle(id string, style *mapboxglstyle.CompiledStyle) errorsx.Error {
	existing, ok := m.engine.GetLayer(id)
	if !ok {
		m.logger.Warn("restyle: no layer %q on map %q", id, m.id)
		return errorsx.Wrap(mapengine.ErrLayerNotFound, "layerID", id)
	}

	for _, name := range style.Layout.Keys() {
		err := m.engine.SetLayoutProperty(id, name, style.Layout[name])
		if err != nil {
			return errorsx.Wrap(err, "property", name)
		}
	}

	for _, name := range style.Paint.Keys() {
		err := m.engine.SetPaintProperty(id, name, style.Paint[name])
		if err != nil {
			return errorsx.Wrap(err, "property", name)
		}
	}

	filter, ok := style.Root[filterKey]
	if ok {
		err := m.engine.SetFilter(id, filter)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	_, hasMinZoom := style.Root[minZoomKey]
	_, hasMaxZoom := style.Root[maxZoomKey]
	if !hasMinZoom && !hasMaxZoom {
		return nil
	}

	// keep the bound that wasn't given as it was
	minZoom, maxZoom, err := existing.ZoomRange()
	if err != nil {
		return errorsx.Wrap(err)
	}

	newMinZoom, newMaxZoom, err := style.ZoomRange()
	if err != nil {
		return errorsx.Wrap(err)
	}

	if hasMinZoom {
		minZoom = newMinZoom
	}
	if hasMaxZoom {
		maxZoom = newMaxZoom
	}

	return m.engine.SetLayerZoomRange(id, minZoom, maxZoom)
}

// Remove takes the layer off the map. The layer's source, if it has its own, stays.
func (m *Map) Remove(id string) errorsx.Error {
	return m.whenLoaded(func() errorsx.Error {
		_, ok := m.engine.GetLayer(id)
		if !ok {
			m.logger.Warn("remove: no layer %q on map %q", id, m.id)
			return errorsx.Wrap(mapengine.ErrLayerNotFound, "layerID", id)
		}

		return m.engine.RemoveLayer(id)
	})
}

// SetSourceData replaces the data of a GeoJSON source. data goes through FormatGeoJSON first.
func (m *Map) SetSourceData(sourceID string, data interface{}) errorsx.Error {
	formatted, err := FormatGeoJSON(data)
	if err != nil {
		return errorsx.Wrap(err, "sourceID", sourceID)
	}

	return m.whenLoaded(func() errorsx.Error {
		source, ok := m.engine.GetSource(sourceID)
		if !ok {
			m.logger.Warn("set source data: no source %q on map %q", sourceID, m.id)
			return errorsx.Wrap(mapengine.ErrSourceNotFound, "sourceID", sourceID)
		}

		return source.SetData(formatted)
	})
}

// whenLoaded runs fn now if the engine has loaded, or queues it until the engine has.
// Errors from queued calls have no caller to go back to, so they are logged.
func (m *Map) whenLoaded(fn func() errorsx.Error) errorsx.Error {
	if atomic.LoadInt32(&m.seenLoaded) == 1 || m.engine.Loaded() {
		atomic.StoreInt32(&m.seenLoaded, 1)
		return fn()
	}

	m.logger.Debug("map %q not loaded yet, queueing change", m.id)
	m.engine.OnLoad(func() {
		atomic.StoreInt32(&m.seenLoaded, 1)
		err := fn()
		if err != nil {
			m.logger.Error("queued change to map %q failed. Error: %q\nStack:\n%s", m.id, err.Error(), err.Stack())
		}
	})

	return nil
}

func (m *Map) logDiagnostics(diagnostics mapboxglstyle.Diagnostics) {
	for _, item := range diagnostics.Errors {
		m.logger.Error("map %q: %s", m.id, item)
	}
	for _, item := range diagnostics.Warnings {
		m.logger.Warn("map %q: %s", m.id, item)
	}
}

// normaliseGeometry returns a copy of properties with its GeoJSON payload (if any) run through FormatGeoJSON
func normaliseGeometry(properties mapboxglstyle.Properties) (mapboxglstyle.Properties, errorsx.Error) {
	raw, ok := properties[geojsonKey]
	if !ok {
		return properties, nil
	}

	formatted, err := FormatGeoJSON(raw)
	if err != nil {
		return nil, errorsx.Wrap(err, "property", geojsonKey)
	}

	normalised := make(mapboxglstyle.Properties, len(properties))
	for key, value := range properties {
		normalised[key] = value
	}
	normalised[geojsonKey] = formatted

	return normalised, nil
}
