package export

import "ocrlabel/internal/geom"

// GeoJSON encodes assigned fields as Polygon features in image pixel space.
func GeoJSON(rows []Row) ([]byte, error) {
	fc := geom.NewFeatureCollection()
	for _, r := range rows {
		if !r.Assigned() {
			continue
		}
		fc.Add(r.Box, map[string]any{
			"image_id": r.ImageID,
			"field":    r.Field,
			"color":    r.Color(),
		})
	}
	return fc.Marshal()
}
