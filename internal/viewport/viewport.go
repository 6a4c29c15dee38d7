// Package viewport holds the pan/zoom transform between the canvas and the
// image. Rendering applies translate(pan) then scale(zoom); hit-testing inverts
// the same transform.
package viewport

import (
	"fmt"

	"golang.org/x/image/math/f64"

	"ocrlabel/internal/geom"
)

const (
	MinZoom = 0.1
	MaxZoom = 10.0

	zoomInFactor  = 1.1
	zoomOutFactor = 0.9
)

// Direction selects the zoom factor for ZoomAt.
type Direction int

const (
	In Direction = iota
	Out
)

// Viewport is the zoom level and pan offset in buffer (device) pixels, plus the
// backing-buffer and displayed sizes of the canvas.
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64

	bufW, bufH   float64
	dispW, dispH float64
}

// New returns a viewport at zoom 1 with no pan.
func New() *Viewport {
	return &Viewport{Zoom: 1.0}
}

// Reset returns to zoom 1 and no pan. Surface sizes are kept.
func (v *Viewport) Reset() {
	v.Zoom = 1.0
	v.PanX, v.PanY = 0, 0
}

// SetSurface records the canvas backing-buffer size and the size it is shown
// at. Screen points are scaled by buffer/display per axis before the pan/zoom
// inverse.
func (v *Viewport) SetSurface(bufferW, bufferH int, displayW, displayH float64) {
	v.bufW, v.bufH = float64(bufferW), float64(bufferH)
	v.dispW, v.dispH = displayW, displayH
}

// BufferSize is the backing-buffer size last set by SetSurface.
func (v *Viewport) BufferSize() (int, int) {
	return int(v.bufW), int(v.bufH)
}

// Scale returns the buffer/display ratio per axis, 1 where either is unset.
func (v *Viewport) Scale() (sx, sy float64) {
	sx, sy = 1, 1
	if v.bufW > 0 && v.dispW > 0 {
		sx = v.bufW / v.dispW
	}
	if v.bufH > 0 && v.dispH > 0 {
		sy = v.bufH / v.dispH
	}
	return sx, sy
}

// ScreenToBuffer maps a displayed point to backing-buffer pixels.
func (v *Viewport) ScreenToBuffer(p geom.Point) geom.Point {
	sx, sy := v.Scale()
	return geom.Point{p[0] * sx, p[1] * sy}
}

// ScreenToImage maps a displayed point to image coordinates.
func (v *Viewport) ScreenToImage(p geom.Point) geom.Point {
	b := v.ScreenToBuffer(p)
	return v.BufferToImage(b)
}

// BufferToImage inverts the render transform for a buffer pixel.
func (v *Viewport) BufferToImage(b geom.Point) geom.Point {
	return geom.Point{(b[0] - v.PanX) / v.Zoom, (b[1] - v.PanY) / v.Zoom}
}

// ImageToBuffer applies the render transform.
func (v *Viewport) ImageToBuffer(p geom.Point) geom.Point {
	return geom.Point{p[0]*v.Zoom + v.PanX, p[1]*v.Zoom + v.PanY}
}

// ImageToScreen maps an image point to display coordinates.
func (v *Viewport) ImageToScreen(p geom.Point) geom.Point {
	b := v.ImageToBuffer(p)
	sx, sy := v.Scale()
	return geom.Point{b[0] / sx, b[1] / sy}
}

// ZoomAt scales by 1.1 (In) or 0.9 (Out) around a displayed anchor, clamped to
// [MinZoom, MaxZoom]. The image point under the anchor does not move.
func (v *Viewport) ZoomAt(anchor geom.Point, dir Direction) {
	factor := zoomInFactor
	if dir == Out {
		factor = zoomOutFactor
	}
	v.zoomTo(v.ScreenToBuffer(anchor), v.Zoom*factor)
}

func (v *Viewport) zoomTo(a geom.Point, target float64) {
	newZoom := clamp(target, MinZoom, MaxZoom)
	if newZoom == v.Zoom {
		return
	}
	ratio := newZoom / v.Zoom
	v.PanX = a[0] - (a[0]-v.PanX)*ratio
	v.PanY = a[1] - (a[1]-v.PanY)*ratio
	v.Zoom = newZoom
}

// Pan shifts by buffer pixels.
func (v *Viewport) Pan(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// PanScreen shifts by a displayed delta, e.g. a mouse drag.
func (v *Viewport) PanScreen(dx, dy float64) {
	sx, sy := v.Scale()
	v.Pan(dx*sx, dy*sy)
}

// Matrix is the image-to-buffer affine transform in x/image row-major form.
func (v *Viewport) Matrix() f64.Aff3 {
	return f64.Aff3{
		v.Zoom, 0, v.PanX,
		0, v.Zoom, v.PanY,
	}
}

func (v *Viewport) String() string {
	return fmt.Sprintf("zoom %.2fx pan (%.0f, %.0f)", v.Zoom, v.PanX, v.PanY)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
