package geom

import "encoding/json"

// Feature is a GeoJSON feature with a single Polygon geometry.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON Polygon: one closed outer ring.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// FeatureCollection is the top-level GeoJSON object.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty collection ready for Add.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// Add appends b as a Polygon feature. Malformed boxes are skipped and Add
// reports false.
func (fc *FeatureCollection) Add(b Box, props map[string]any) bool {
	if !b.Valid() {
		return false
	}
	ring := make([][2]float64, 0, Corners+1)
	for _, p := range b {
		ring = append(ring, [2]float64(p))
	}
	ring = append(ring, [2]float64(b[0]))
	if props == nil {
		props = map[string]any{}
	}
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Polygon", Coordinates: [][][2]float64{ring}},
		Properties: props,
	})
	return true
}

// Marshal encodes the collection with two-space indentation.
func (fc *FeatureCollection) Marshal() ([]byte, error) {
	return json.MarshalIndent(fc, "", "  ")
}
