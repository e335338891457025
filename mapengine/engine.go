package mapengine

import (
	"errors"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

var (
	ErrLayerExists    = errors.New("layer already exists")
	ErrLayerNotFound  = errors.New("layer not found")
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
)

// Engine is the part of a GL map engine that layers are built on
type Engine interface {
	// Loaded is true once the engine can take style changes
	Loaded() bool
	// OnLoad runs fn once the engine has loaded
	OnLoad(fn func())

	// AddLayer inserts a layer before the layer with beforeID, or on top if beforeID is empty.
	// It fails with ErrLayerExists if the layer ID is taken.
	AddLayer(layer *mapboxglstyle.Layer, beforeID string) errorsx.Error
	GetLayer(id string) (*mapboxglstyle.Layer, bool)
	RemoveLayer(id string) errorsx.Error

	SetLayoutProperty(layerID, name string, value interface{}) errorsx.Error
	SetPaintProperty(layerID, name string, value interface{}) errorsx.Error
	SetFilter(layerID string, filter mapboxglstyle.Filter) errorsx.Error
	SetLayerZoomRange(layerID string, minZoom, maxZoom float64) errorsx.Error

	AddSource(id string, source *mapboxglstyle.Source) errorsx.Error
	GetSource(id string) (Source, bool)
}

type Source interface {
	Type() string
	// SetData replaces the data of a GeoJSON source. data is a URL or a GeoJSON object.
	SetData(data interface{}) errorsx.Error
}
