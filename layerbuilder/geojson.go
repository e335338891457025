package layerbuilder

import (
	"errors"
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/orb/geojson"
)

var ErrMalformedGeometryPayload = errors.New("malformed geometry payload: expected a URL, an array of features or a GeoJSON object")

const (
	typeKey     = "type"
	featuresKey = "features"

	typeFeatureCollection = "FeatureCollection"
)

// FormatGeoJSON turns the geometry payload forms accepted from users into something a GeoJSON source takes:
//   - a URL is kept as it is
//   - an array of features becomes a FeatureCollection of them
//   - a GeoJSON object (FeatureCollection, Feature or geometry) is kept as it is
//
// The features themselves are not checked.
func FormatGeoJSON(raw interface{}) (interface{}, errorsx.Error) {
	switch data := raw.(type) {
	case string:
		if data == "" {
			return nil, errorsx.Wrap(ErrMalformedGeometryPayload, "reason", "empty URL")
		}
		return data, nil
	case *geojson.FeatureCollection:
		if data == nil {
			return nil, errorsx.Wrap(ErrMalformedGeometryPayload, "reason", "nil feature collection")
		}
		return data, nil
	case geojson.FeatureCollection:
		return &data, nil
	case *geojson.Feature:
		if data == nil {
			return nil, errorsx.Wrap(ErrMalformedGeometryPayload, "reason", "nil feature")
		}
		return data, nil
	case []*geojson.Feature:
		fc := geojson.NewFeatureCollection()
		for _, feature := range data {
			fc.Append(feature)
		}
		return fc, nil
	case []interface{}:
		return newFeatureCollectionObject(data), nil
	case []map[string]interface{}:
		features := make([]interface{}, len(data))
		for i, feature := range data {
			features[i] = feature
		}
		return newFeatureCollectionObject(features), nil
	case map[string]interface{}:
		_, ok := data[typeKey].(string)
		if !ok {
			return nil, errorsx.Wrap(ErrMalformedGeometryPayload, "reason", "object has no GeoJSON type")
		}
		return data, nil
	default:
		return nil, errorsx.Wrap(ErrMalformedGeometryPayload, "type", fmt.Sprintf("%T", raw))
	}
}

func newFeatureCollectionObject(features []interface{}) map[string]interface{} {
	if features == nil {
		features = []interface{}{}
	}

	return map[string]interface{}{
		typeKey:     typeFeatureCollection,
		featuresKey: features,
	}
}
