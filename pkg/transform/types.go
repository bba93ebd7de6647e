// Package transform turns raw provider payloads into typed rows ready for
// the bulk upsert engine, through a stateless shape-check, normalization,
// and field-mapping pipeline, scoring each row's quality as it goes.
package transform

import "encoding/json"

// Row is one normalized record ready for upsert, tagged with the raw
// archive row it was derived from and a quality score in [0, 1].
type Row struct {
	RawDataID    string
	Table        string
	Fields       map[string]any
	QualityScore float64
	Issues       []string
}

// ShapeError indicates a raw item failed the structural shape check before
// any field mapping was attempted — missing required keys, wrong JSON
// types, or an unknown content type. Coordinates outside the Korea
// bounding box are not a shape error: the row keeps going without them
// and carries an issue instead.
type ShapeError struct {
	Reason string
	Raw    json.RawMessage
}

func (e *ShapeError) Error() string { return "transform: shape check failed: " + e.Reason }

// korea bounding box used to sanity-check KTO mapX/mapY coordinates.
// Anything outside this box is almost certainly a unit
// or parsing mistake rather than a legitimate coordinate.
const (
	koreaMinLat = 33.0
	koreaMaxLat = 38.7
	koreaMinLon = 124.5
	koreaMaxLon = 132.0
)

func withinKorea(lat, lon float64) bool {
	return lat >= koreaMinLat && lat <= koreaMaxLat && lon >= koreaMinLon && lon <= koreaMaxLon
}
