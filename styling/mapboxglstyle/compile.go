package mapboxglstyle

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

const SourceTypeGeoJSON = "geojson"

// DefaultStyle is the style of a layer that was given no properties: an empty GeoJSON source and no layout or paint
func DefaultStyle() *CompiledStyle {
	style := newCompiledStyle()
	style.Source = &Source{
		Type: SourceTypeGeoJSON,
		Data: geojson.NewFeatureCollection(),
	}
	return style
}

// Compile builds the nested layer style from flat properties, with the default rules
func Compile(layerType LayerType, properties Properties) (*CompiledStyle, Diagnostics) {
	return defaultRules.Compile(layerType, properties)
}

// Compile builds the nested layer style from flat properties.
// Every property ends up in exactly one place of the result; properties that can't be classified
// are reported and kept as paint properties.
func (r *ClassificationRules) Compile(layerType LayerType, properties Properties) (*CompiledStyle, Diagnostics) {
	var diagnostics Diagnostics

	style := DefaultStyle()
	if properties == nil {
		return style, diagnostics
	}

	if !layerType.IsKnown() && !r.IsSymbolFamily(layerType) {
		diagnostics.AddWarning(CodeUnknownLayerType, "", fmt.Sprintf("unknown layer type %q", layerType))
	}

	// the property the current source descriptor came from, empty while it is the default
	var sourceProperty string

	for _, property := range properties.Keys() {
		value := properties[property]

		bucket := r.Classify(layerType, property)
		if bucket == PropertyBucketUnresolved {
			diagnostics.AddWarning(
				CodeUnresolvedProperty,
				property,
				fmt.Sprintf("unknown property for layer type %q, treating it as a paint property", layerType),
			)
			bucket = PropertyBucketPaint
		}

		switch bucket {
		case PropertyBucketSource:
			if sourceProperty != "" {
				diagnostics.AddWarning(CodeSourceOverridden, sourceProperty, fmt.Sprintf("source replaced by %q", property))
			}
			if _, ok := style.Root[sourceKey]; ok {
				diagnostics.AddWarning(CodeSourceOverridden, sourceKey, fmt.Sprintf("source reference replaced by %q", property))
				delete(style.Root, sourceKey)
			}
			style.Source = &Source{Type: property, Data: value}
			sourceProperty = property
		case PropertyBucketRoot:
			style.Root[property] = value
			if property == sourceKey {
				// a reference to an existing source replaces the inline descriptor
				if sourceProperty != "" {
					diagnostics.AddWarning(CodeSourceOverridden, sourceProperty, fmt.Sprintf("source replaced by the reference to %v", value))
				}
				style.Source = nil
				sourceProperty = ""
			}
		case PropertyBucketLayout:
			style.Layout[r.PrefixedKey(layerType, property)] = value
		default:
			style.Paint[r.PrefixedKey(layerType, property)] = value
		}
	}

	return style, diagnostics
}
