package geom

import (
	"encoding/json"
	"fmt"
)

// Point is an (x, y) pair in image pixel coordinates.
type Point [2]float64

// UnmarshalJSON accepts exactly two numbers. encoding/json would otherwise
// pad or truncate the fixed-size array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("point: want 2 coordinates, got %d", len(xy))
	}
	p[0], p[1] = xy[0], xy[1]
	return nil
}

// X returns the horizontal coordinate.
func (p Point) X() float64 { return p[0] }

// Y returns the vertical coordinate.
func (p Point) Y() float64 { return p[1] }

// Box is a quadrilateral given by its corners in drawing order. A nil Box
// encodes JSON null; a well-formed Box has exactly 4 points.
type Box []Point

type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width of the bounding box.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height of the bounding box.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }
