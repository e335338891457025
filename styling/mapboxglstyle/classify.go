package mapboxglstyle

import (
	"sort"
	"strings"
)

type PropertyBucket int

const (
	PropertyBucketUnresolved PropertyBucket = iota
	PropertyBucketRoot
	PropertyBucketSource
	PropertyBucketLayout
	PropertyBucketPaint
)

var propertyBucketNames = []string{
	"unresolved",
	"root",
	"source",
	"layout",
	"paint",
}

func (pb PropertyBucket) String() string {
	if int(pb) < 0 || int(pb) >= len(propertyBucketNames) {
		return "unknown"
	}
	return propertyBucketNames[pb]
}

// ClassificationRules decides which part of a layer object a flat property belongs to.
// Rules are read-only once built.
type ClassificationRules struct {
	rootMarkers            []string
	sourceProperties       map[string]struct{}
	layoutMarkers          []string
	symbolPaintMarkers     []string
	symbolLayerTypes       map[LayerType]struct{}
	obligateSymbolPrefixes map[string]struct{}
}

type ClassificationRulesConfig struct {
	// RootMarkers: a property containing any of these goes on the top level of the layer
	RootMarkers []string `yaml:"rootMarkers" json:"rootMarkers"`
	// SourceProperties: exact property names that describe the layer's data source. The property name becomes the source type.
	SourceProperties []string `yaml:"sourceProperties" json:"sourceProperties"`
	// LayoutMarkers: for non-symbol layers, a property containing any of these is a layout property, everything else is paint
	LayoutMarkers []string `yaml:"layoutMarkers" json:"layoutMarkers"`
	// SymbolPaintMarkers: for symbol layers, a property containing any of these is a paint property, everything else is layout
	SymbolPaintMarkers []string `yaml:"symbolPaintMarkers" json:"symbolPaintMarkers"`
	// SymbolLayerTypes: sub-roles of the symbol layer. "symbol" itself is always part of the family.
	SymbolLayerTypes []LayerType `yaml:"symbolLayerTypes" json:"symbolLayerTypes"`
	// ObligateSymbolPrefixes: properties that take the "symbol-" prefix even on text or icon layers
	ObligateSymbolPrefixes []string `yaml:"obligateSymbolPrefixes" json:"obligateSymbolPrefixes"`
}

// DefaultClassificationRulesConfig matches the property taxonomy of MapLibre/Mapbox GL styles
func DefaultClassificationRulesConfig() ClassificationRulesConfig {
	return ClassificationRulesConfig{
		RootMarkers:      []string{"minzoom", "maxzoom", "source", "source-layer", "filter"},
		SourceProperties: []string{"geojson", "vector"},
		LayoutMarkers: []string{
			"cap", "join", "miter", "round-limit", "sort", // lines
			"visibility",
		},
		SymbolPaintMarkers:     []string{"color", "opacity", "halo", "translate"},
		SymbolLayerTypes:       []LayerType{LayerTypeText, LayerTypeIcon},
		ObligateSymbolPrefixes: []string{"placement", "sort-key", "avoid-edges", "spacing", "z-order"},
	}
}

var defaultRules = NewClassificationRules(DefaultClassificationRulesConfig())

// DefaultClassificationRules returns the shared default rules. They are never mutated, so they are safe to share.
func DefaultClassificationRules() *ClassificationRules {
	return defaultRules
}

func NewClassificationRules(config ClassificationRulesConfig) *ClassificationRules {
	return &ClassificationRules{
		rootMarkers:            copyStrings(config.RootMarkers),
		sourceProperties:       toSet(config.SourceProperties),
		layoutMarkers:          copyStrings(config.LayoutMarkers),
		symbolPaintMarkers:     copyStrings(config.SymbolPaintMarkers),
		symbolLayerTypes:       toLayerTypeSet(config.SymbolLayerTypes),
		obligateSymbolPrefixes: toSet(config.ObligateSymbolPrefixes),
	}
}

// Config returns a copy of the tables these rules were built from
func (r *ClassificationRules) Config() ClassificationRulesConfig {
	symbolLayerTypes := make([]LayerType, 0, len(r.symbolLayerTypes))
	for layerType := range r.symbolLayerTypes {
		symbolLayerTypes = append(symbolLayerTypes, layerType)
	}
	sort.Slice(symbolLayerTypes, func(a, b int) bool {
		return symbolLayerTypes[a] < symbolLayerTypes[b]
	})

	return ClassificationRulesConfig{
		RootMarkers:            copyStrings(r.rootMarkers),
		SourceProperties:       sortedKeys(r.sourceProperties),
		LayoutMarkers:          copyStrings(r.layoutMarkers),
		SymbolPaintMarkers:     copyStrings(r.symbolPaintMarkers),
		SymbolLayerTypes:       symbolLayerTypes,
		ObligateSymbolPrefixes: sortedKeys(r.obligateSymbolPrefixes),
	}
}

// IsSymbolFamily is true for symbol layers and their text/icon sub-roles
func (r *ClassificationRules) IsSymbolFamily(layerType LayerType) bool {
	if layerType == LayerTypeSymbol {
		return true
	}
	_, ok := r.symbolLayerTypes[layerType]
	return ok
}

// Classify resolves which bucket of the layer object a property belongs to.
// It returns PropertyBucketUnresolved for an empty property name or a layer type it doesn't know.
func (r *ClassificationRules) Classify(layerType LayerType, property string) PropertyBucket {
	if property == "" {
		return PropertyBucketUnresolved
	}

	if containsAny(property, r.rootMarkers) {
		return PropertyBucketRoot
	}

	if _, ok := r.sourceProperties[property]; ok {
		return PropertyBucketSource
	}

	switch {
	case r.IsSymbolFamily(layerType):
		if containsAny(property, r.symbolPaintMarkers) {
			return PropertyBucketPaint
		}
		return PropertyBucketLayout
	case layerType.IsKnown():
		// the inverse of the symbol test: without a layout marker, it's paint
		if containsAny(property, r.layoutMarkers) {
			return PropertyBucketLayout
		}
		return PropertyBucketPaint
	default:
		return PropertyBucketUnresolved
	}
}

// PrefixedKey is the name of the property as the engine knows it, in the layout or paint object
func (r *ClassificationRules) PrefixedKey(layerType LayerType, property string) string {
	if _, ok := r.obligateSymbolPrefixes[property]; ok && r.IsSymbolFamily(layerType) {
		return string(LayerTypeSymbol) + "-" + property
	}

	return string(layerType) + "-" + property
}

func containsAny(property string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(property, marker) {
			return true
		}
	}
	return false
}

func copyStrings(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func toLayerTypeSet(items []LayerType) map[LayerType]struct{} {
	set := make(map[LayerType]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
