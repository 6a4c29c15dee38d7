package geom

// Corners is the number of vertices in a well-formed Box.
const Corners = 4

// Valid reports whether b is non-nil with exactly 4 points.
func (b Box) Valid() bool {
	return b != nil && len(b) == Corners
}

// Clone returns a copy that shares no memory with b.
func (b Box) Clone() Box {
	if b == nil {
		return nil
	}
	out := make(Box, len(b))
	copy(out, b)
	return out
}

// Centroid is the vertex average. For a convex quad it lies inside.
func (b Box) Centroid() Point {
	if len(b) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range b {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(b))
	return Point{sx / n, sy / n}
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (b Box) Bounds() BBox {
	if len(b) == 0 {
		return BBox{}
	}
	bb := BBox{MinX: b[0][0], MinY: b[0][1], MaxX: b[0][0], MaxY: b[0][1]}
	for _, p := range b[1:] {
		if p[0] < bb.MinX {
			bb.MinX = p[0]
		}
		if p[1] < bb.MinY {
			bb.MinY = p[1]
		}
		if p[0] > bb.MaxX {
			bb.MaxX = p[0]
		}
		if p[1] > bb.MaxY {
			bb.MaxY = p[1]
		}
	}
	return bb
}

// PointInPolygon runs the even-odd ray cast over the 4 vertices of b, with the
// last vertex closing back to the first. Self-intersecting quads get whatever
// parity the ray produces.
func PointInPolygon(p Point, b Box) bool {
	if !b.Valid() {
		return false
	}
	x, y := p[0], p[1]
	inside := false
	for i, j := 0, Corners-1; i < Corners; j, i = i, i+1 {
		xi, yi := b[i][0], b[i][1]
		xj, yj := b[j][0], b[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// BoxesEqual compares two well-formed boxes coordinate by coordinate with no
// tolerance. Boxes under comparison always come from the same OCR list.
func BoxesEqual(a, b Box) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	for i := 0; i < Corners; i++ {
		if a[i][0] != b[i][0] || a[i][1] != b[i][1] {
			return false
		}
	}
	return true
}

// FindBoxAt returns the first box in list order containing p, or nil.
func FindBoxAt(p Point, boxes []Box) Box {
	for _, b := range boxes {
		if PointInPolygon(p, b) {
			return b
		}
	}
	return nil
}
