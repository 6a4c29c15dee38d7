// Package render draws the raster image and its box overlays into an RGBA
// canvas under a viewport transform.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/geom"
	"ocrlabel/internal/viewport"
)

type Options struct {
	Background color.Color
	OCRColor   color.RGBA
	TextColor  color.RGBA
	Palette    []color.RGBA

	OCRStroke   float64
	FieldStroke float64

	// label font size is ImageHeight*FontFraction, at least MinFontSize
	FontFraction float64
	MinFontSize  float64
	LabelPadding float64
}

func DefaultOptions() Options {
	pal, _ := Palette(FieldColors)
	return Options{
		Background:   color.Transparent,
		OCRColor:     mustHex(OCRColorHex),
		TextColor:    mustHex(TextColorHex),
		Palette:      pal,
		OCRStroke:    4,
		FieldStroke:  5,
		FontFraction: 0.02,
		MinFontSize:  14,
		LabelPadding: 6,
	}
}

const (
	maxCachedFaces = 32
	minFaceSize    = 1.0
)

type Renderer struct {
	opts  Options
	font  *opentype.Font
	faces map[float64]font.Face
	z     *vector.Rasterizer
}

func New(opts Options) (*Renderer, error) {
	if len(opts.Palette) == 0 {
		opts.Palette = DefaultOptions().Palette
	}
	if opts.Background == nil {
		opts.Background = color.Transparent
	}
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		opts:  opts,
		font:  f,
		faces: map[float64]font.Face{},
		z:     vector.NewRasterizer(0, 0),
	}, nil
}

// Options returns the options in effect.
func (r *Renderer) Options() Options { return r.opts }

// ColorFor is the palette color of the field at position index.
func (r *Renderer) ColorFor(index int) color.RGBA {
	n := len(r.opts.Palette)
	return r.opts.Palette[((index%n)+n)%n]
}

// FontSize is the label size in image pixels for an image of height h.
func (r *Renderer) FontSize(h int) float64 {
	return math.Max(math.Max(float64(h)*r.opts.FontFraction, r.opts.MinFontSize), minFaceSize)
}

// Render redraws dst: clear, then the image, OCR boxes and field boxes with
// labels, all under vp's translate-then-scale transform. src and doc may be nil.
func (r *Renderer) Render(dst *image.RGBA, src image.Image, doc *annotate.Document, vp *viewport.Viewport) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	imgH := 0
	if src != nil {
		xdraw.ApproxBiLinear.Transform(dst, vp.Matrix(), src, src.Bounds(), xdraw.Over, nil)
		imgH = src.Bounds().Dy()
	} else {
		_, imgH = vp.BufferSize()
	}
	if doc == nil {
		return
	}

	for _, b := range doc.OCR {
		if b.Valid() {
			r.strokeBox(dst, vp, b, r.opts.OCRStroke, r.opts.OCRColor)
		}
	}
	size := r.FontSize(imgH)
	for i, f := range doc.Fields() {
		if !f.Box.Valid() {
			continue
		}
		c := r.ColorFor(i)
		r.strokeBox(dst, vp, f.Box, r.opts.FieldStroke, c)
		r.drawLabel(dst, vp, f.Box[0], f.Name, size, c)
	}
}

func (r *Renderer) strokeBox(dst *image.RGBA, vp *viewport.Viewport, b geom.Box, width float64, c color.RGBA) {
	pts := make([]geom.Point, len(b))
	for i, p := range b {
		pts[i] = vp.ImageToBuffer(p)
	}
	hw := width * vp.Zoom / 2

	bb := geom.Box(pts).Bounds()
	rect := image.Rect(
		int(math.Floor(bb.MinX-hw)), int(math.Floor(bb.MinY-hw)),
		int(math.Ceil(bb.MaxX+hw)), int(math.Ceil(bb.MaxY+hw)),
	).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	ox, oy := float64(rect.Min.X), float64(rect.Min.Y)
	r.z.Reset(rect.Dx(), rect.Dy())
	r.z.DrawOp = draw.Src
	move := func(x, y float64) { r.z.MoveTo(float32(x-ox), float32(y-oy)) }
	line := func(x, y float64) { r.z.LineTo(float32(x-ox), float32(y-oy)) }

	// one quad per edge plus a square per corner, all with the same winding
	for i := range pts {
		a, e := pts[i], pts[(i+1)%len(pts)]
		dx, dy := e[0]-a[0], e[1]-a[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		move(a[0]+nx, a[1]+ny)
		line(e[0]+nx, e[1]+ny)
		line(e[0]-nx, e[1]-ny)
		line(a[0]-nx, a[1]-ny)
		r.z.ClosePath()
	}
	for _, p := range pts {
		move(p[0]-hw, p[1]-hw)
		line(p[0]-hw, p[1]+hw)
		line(p[0]+hw, p[1]+hw)
		line(p[0]+hw, p[1]-hw)
		r.z.ClosePath()
	}

	mask := image.NewAlpha(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	r.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

// drawLabel fills a tag whose bottom-left corner sits on at and writes name on
// it. Geometry is in image pixels and goes through the viewport like the boxes.
func (r *Renderer) drawLabel(dst *image.RGBA, vp *viewport.Viewport, at geom.Point, name string, size float64, c color.RGBA) {
	pad := r.opts.LabelPadding
	textH := size * 1.25
	textW := float64(font.MeasureString(r.face(size), name)) / 64

	tl := vp.ImageToBuffer(geom.Point{at[0], at[1] - textH - pad})
	br := vp.ImageToBuffer(geom.Point{at[0] + textW + 2*pad, at[1]})
	bg := image.Rect(int(math.Round(tl[0])), int(math.Round(tl[1])), int(math.Round(br[0])), int(math.Round(br[1])))
	draw.Draw(dst, bg, image.NewUniform(c), image.Point{}, draw.Over)

	scaled := size * vp.Zoom
	if scaled < 1 {
		return
	}
	face := r.face(scaled)
	top := vp.ImageToBuffer(geom.Point{at[0] + pad, at[1] - textH - pad/2})
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.opts.TextColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(top[0] * 64),
			Y: fixed.Int26_6(top[1]*64) + face.Metrics().Ascent,
		},
	}
	d.DrawString(name)
}

func (r *Renderer) face(size float64) font.Face {
	key := math.Max(math.Round(size*4)/4, minFaceSize)
	if f, ok := r.faces[key]; ok {
		return f
	}
	if len(r.faces) >= maxCachedFaces {
		for k, f := range r.faces {
			_ = f.Close()
			delete(r.faces, k)
		}
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    key,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	r.faces[key] = f
	return f
}

// RenderImage draws doc over src at native size with no pan or zoom.
func RenderImage(src image.Image, doc *annotate.Document, opts Options) (*image.RGBA, error) {
	r, err := New(opts)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	vp := viewport.New()
	vp.SetSurface(b.Dx(), b.Dy(), float64(b.Dx()), float64(b.Dy()))
	r.Render(dst, src, doc, vp)
	return dst, nil
}

// Fit downsamples src into dst's bounds.
func Fit(dst *image.RGBA, src image.Image) {
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}
