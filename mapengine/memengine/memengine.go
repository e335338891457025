package memengine

import (
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/mlexpress/mapengine"
	"github.com/jamesrr39/mlexpress/styling"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

var (
	// compile-time check to check interface satisfaction
	_ mapengine.Engine = &MemEngine{}
	_ mapengine.Source = &memSource{}
)

// MemEngine keeps a style document in memory and applies layer and source changes to it,
// following the rules of a GL engine's style API.
type MemEngine struct {
	mu            *sync.RWMutex
	document      *styling.Document
	loaded        bool
	loadCallbacks []func()
}

func NewMemEngine(name string) *MemEngine {
	return &MemEngine{
		mu:       new(sync.RWMutex),
		document: styling.NewBlankDocument(name),
	}
}

func (e *MemEngine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

func (e *MemEngine) OnLoad(fn func()) {
	e.mu.Lock()
	if !e.loaded {
		e.loadCallbacks = append(e.loadCallbacks, fn)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	fn()
}

// MarkLoaded marks the engine as loaded and runs the queued OnLoad callbacks, in the order they were queued.
// Calling it again has no effect.
func (e *MemEngine) MarkLoaded() {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return
	}
	e.loaded = true
	callbacks := e.loadCallbacks
	e.loadCallbacks = nil
	e.mu.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}

func (e *MemEngine) AddLayer(layer *mapboxglstyle.Layer, beforeID string) errorsx.Error {
	err := layer.Validate()
	if err != nil {
		return errorsx.Wrap(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.document.LayerIndex(layer.ID) >= 0 {
		return errorsx.Wrap(mapengine.ErrLayerExists, "layerID", layer.ID)
	}

	insertAt := len(e.document.Layers)
	if beforeID != "" {
		insertAt = e.document.LayerIndex(beforeID)
		if insertAt < 0 {
			return errorsx.Wrap(mapengine.ErrLayerNotFound, "beforeID", beforeID)
		}
	}

	stored := copyLayer(layer)
	if stored.Source != nil {
		// an inline source is added as a source in its own right, under the layer ID
		_, ok := e.document.Sources[stored.ID]
		if ok {
			return errorsx.Wrap(mapengine.ErrSourceExists, "sourceID", stored.ID)
		}
		e.document.Sources[stored.ID] = stored.Source
		stored.Source = nil
		stored.Root["source"] = stored.ID
	} else if ref, ok := stored.SourceReference(); ok {
		_, ok = e.document.Sources[ref]
		if !ok {
			return errorsx.Wrap(mapengine.ErrSourceNotFound, "sourceID", ref, "layerID", stored.ID)
		}
	}

	e.document.Layers = append(e.document.Layers, nil)
	copy(e.document.Layers[insertAt+1:], e.document.Layers[insertAt:])
	e.document.Layers[insertAt] = stored

	return nil
}

func (e *MemEngine) GetLayer(id string) (*mapboxglstyle.Layer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := e.document.LayerIndex(id)
	if idx < 0 {
		return nil, false
	}

	return copyLayer(e.document.Layers[idx]), true
}

func (e *MemEngine) RemoveLayer(id string) errorsx.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.document.LayerIndex(id)
	if idx < 0 {
		return errorsx.Wrap(mapengine.ErrLayerNotFound, "layerID", id)
	}

	e.document.Layers = append(e.document.Layers[:idx], e.document.Layers[idx+1:]...)
	return nil
}

func (e *MemEngine) SetLayoutProperty(layerID, name string, value interface{}) errorsx.Error {
	return e.updateLayer(layerID, func(layer *mapboxglstyle.Layer) errorsx.Error {
		setOrDelete(layer.Layout, name, value)
		return nil
	})
}

func (e *MemEngine) SetPaintProperty(layerID, name string, value interface{}) errorsx.Error {
	return e.updateLayer(layerID, func(layer *mapboxglstyle.Layer) errorsx.Error {
		setOrDelete(layer.Paint, name, value)
		return nil
	})
}

func (e *MemEngine) SetFilter(layerID string, filter mapboxglstyle.Filter) errorsx.Error {
	return e.updateLayer(layerID, func(layer *mapboxglstyle.Layer) errorsx.Error {
		if filter == nil {
			delete(layer.Root, "filter")
			return nil
		}

		err := mapboxglstyle.ValidateFilter(filter)
		if err != nil {
			return errorsx.Wrap(err)
		}

		layer.Root["filter"] = filter
		return nil
	})
}

func (e *MemEngine) SetLayerZoomRange(layerID string, minZoom, maxZoom float64) errorsx.Error {
	return e.updateLayer(layerID, func(layer *mapboxglstyle.Layer) errorsx.Error {
		updated := copyLayer(layer)
		updated.Root["minzoom"] = minZoom
		updated.Root["maxzoom"] = maxZoom

		err := updated.Validate()
		if err != nil {
			return errorsx.Wrap(err)
		}

		layer.Root["minzoom"] = minZoom
		layer.Root["maxzoom"] = maxZoom
		return nil
	})
}

// updateLayer runs fn on the stored layer, under the write lock
func (e *MemEngine) updateLayer(layerID string, fn func(layer *mapboxglstyle.Layer) errorsx.Error) errorsx.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.document.LayerIndex(layerID)
	if idx < 0 {
		return errorsx.Wrap(mapengine.ErrLayerNotFound, "layerID", layerID)
	}

	return fn(e.document.Layers[idx])
}

func (e *MemEngine) AddSource(id string, source *mapboxglstyle.Source) errorsx.Error {
	if id == "" {
		return errorsx.Errorf("source id is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.document.Sources[id]
	if ok {
		return errorsx.Wrap(mapengine.ErrSourceExists, "sourceID", id)
	}

	e.document.Sources[id] = &mapboxglstyle.Source{Type: source.Type, Data: source.Data}
	return nil
}

func (e *MemEngine) GetSource(id string) (mapengine.Source, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.document.Sources[id]
	if !ok {
		return nil, false
	}

	return &memSource{e, id}, true
}

// Document returns a snapshot of the current style document
func (e *MemEngine) Document() *styling.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := &styling.Document{
		Version: e.document.Version,
		Name:    e.document.Name,
		Glyphs:  e.document.Glyphs,
		Sprite:  e.document.Sprite,
		Sources: make(map[string]*mapboxglstyle.Source, len(e.document.Sources)),
		Layers:  make([]*mapboxglstyle.Layer, len(e.document.Layers)),
	}

	for id, source := range e.document.Sources {
		snapshot.Sources[id] = &mapboxglstyle.Source{Type: source.Type, Data: source.Data}
	}

	for i, layer := range e.document.Layers {
		snapshot.Layers[i] = copyLayer(layer)
	}

	return snapshot
}

type memSource struct {
	engine *MemEngine
	id     string
}

func (s *memSource) Type() string {
	s.engine.mu.RLock()
	defer s.engine.mu.RUnlock()

	source, ok := s.engine.document.Sources[s.id]
	if !ok {
		return ""
	}
	return source.Type
}

func (s *memSource) SetData(data interface{}) errorsx.Error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	source, ok := s.engine.document.Sources[s.id]
	if !ok {
		return errorsx.Wrap(mapengine.ErrSourceNotFound, "sourceID", s.id)
	}

	if source.Type != mapboxglstyle.SourceTypeGeoJSON {
		return errorsx.Errorf("can only set data on a %q source, but source %q is a %q source", mapboxglstyle.SourceTypeGeoJSON, s.id, source.Type)
	}

	source.Data = data
	return nil
}

// copyLayer copies the layer and its property maps. Property values are shared.
func copyLayer(layer *mapboxglstyle.Layer) *mapboxglstyle.Layer {
	if layer.CompiledStyle == nil {
		return mapboxglstyle.NewLayer(layer.ID, layer.Type, nil)
	}

	style := &mapboxglstyle.CompiledStyle{
		Root:   copyProperties(layer.Root),
		Layout: copyProperties(layer.Layout),
		Paint:  copyProperties(layer.Paint),
	}
	if layer.Source != nil {
		style.Source = &mapboxglstyle.Source{Type: layer.Source.Type, Data: layer.Source.Data}
	}

	return &mapboxglstyle.Layer{ID: layer.ID, Type: layer.Type, CompiledStyle: style}
}

func copyProperties(properties mapboxglstyle.Properties) mapboxglstyle.Properties {
	copied := make(mapboxglstyle.Properties, len(properties))
	for key, value := range properties {
		copied[key] = value
	}
	return copied
}

func setOrDelete(properties mapboxglstyle.Properties, name string, value interface{}) {
	if value == nil {
		delete(properties, name)
		return
	}
	properties[name] = value
}
