package tui

import (
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/geom"
	"ocrlabel/internal/render"
	"ocrlabel/internal/viewport"
)

// grid is how many display pixels one terminal cell holds.
type grid struct{ x, y int }

var (
	halfBlockGrid = grid{1, 2}
	brailleGrid   = grid{2, 4}
)

func (m Model) grid() grid {
	if m.wireframe {
		return brailleGrid
	}
	return halfBlockGrid
}

// cellToDisplay maps a canvas cell to the display pixel at its center.
func (g grid) cellToDisplay(cx, cy int) geom.Point {
	return geom.Point{float64(cx*g.x) + float64(g.x)/2, float64(cy*g.y) + float64(g.y)/2}
}

// frameKey is everything a canvas frame depends on.
type frameKey struct {
	doc        *annotate.Document
	img        image.Image
	rev        uint64
	zoom       float64
	panX, panY float64
	w, h       int
	wireframe  bool
}

// frameCache lives behind a pointer so the value-receiver View can fill it.
type frameCache struct {
	key   frameKey
	lines []string
	ok    bool
}

// displayViewport is vp expressed in display pixels: the buffer transform
// followed by the buffer/display downscale.
func displayViewport(vp *viewport.Viewport) *viewport.Viewport {
	sx, _ := vp.Scale()
	dv := viewport.New()
	dv.Zoom = vp.Zoom / sx
	dv.PanX = vp.PanX / sx
	dv.PanY = vp.PanY / sx
	return dv
}

// renderCanvas draws the current image into a w x h cell block.
func (m Model) renderCanvas(w, h int) string {
	doc, img := m.sess.Document(), m.sess.Image()
	if doc == nil || img == nil {
		msg := "no image"
		if len(m.sess.Catalog()) > 0 {
			msg = "loading…"
		}
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, dimStyle.Render(msg))
	}
	vp := m.sess.Viewport
	key := frameKey{
		doc: doc, img: img, rev: m.sess.Revision(),
		zoom: vp.Zoom, panX: vp.PanX, panY: vp.PanY,
		w: w, h: h, wireframe: m.wireframe,
	}
	if m.frame.ok && m.frame.key == key {
		return strings.Join(m.frame.lines, "\n")
	}
	var lines []string
	if m.wireframe {
		lines = m.wireLines(doc, displayViewport(vp), w, h)
	} else {
		g := halfBlockGrid
		dst := image.NewRGBA(image.Rect(0, 0, w*g.x, h*g.y))
		m.rnd.Render(dst, img, doc, displayViewport(vp))
		lines = halfBlocks(dst)
	}
	*m.frame = frameCache{key: key, lines: lines, ok: true}
	return strings.Join(lines, "\n")
}

// halfBlocks renders two pixel rows per text row with ▀: the foreground is
// the upper pixel, the background the lower.
func halfBlocks(img *image.RGBA) []string {
	b := img.Bounds()
	rows := (b.Dy() + 1) / 2
	out := make([]string, rows)
	for cy := 0; cy < rows; cy++ {
		var sb strings.Builder
		y0 := b.Min.Y + cy*2
		runStart := b.Min.X
		var runFg, runBg color.RGBA
		flush := func(end int) {
			if end <= runStart {
				return
			}
			st := lipgloss.NewStyle().
				Foreground(lipgloss.Color(render.Hex(runFg))).
				Background(lipgloss.Color(render.Hex(runBg)))
			sb.WriteString(st.Render(strings.Repeat("▀", end-runStart)))
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			fg := img.RGBAAt(x, y0)
			bg := canvasBg
			if y0+1 < b.Max.Y {
				bg = img.RGBAAt(x, y0+1)
			}
			fg, bg = opaque(fg), opaque(bg)
			if x == b.Min.X {
				runFg, runBg = fg, bg
				continue
			}
			if fg != runFg || bg != runBg {
				flush(x)
				runStart, runFg, runBg = x, fg, bg
			}
		}
		flush(b.Max.X)
		out[cy] = sb.String()
	}
	return out
}

// opaque composites a premultiplied pixel over the canvas background.
func opaque(c color.RGBA) color.RGBA {
	if c.A == 0xff {
		return c
	}
	k := uint32(0xff - c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) + uint32(canvasBg.R)*k/0xff),
		G: uint8(uint32(c.G) + uint32(canvasBg.G)*k/0xff),
		B: uint8(uint32(c.B) + uint32(canvasBg.B)*k/0xff),
		A: 0xff,
	}
}

// wireLines draws box outlines only, in braille dots.
func (m Model) wireLines(doc *annotate.Document, dv *viewport.Viewport, w, h int) []string {
	br := newBrailleBuf(w, h)
	outline := func(b geom.Box, ink string) {
		for i := range b {
			a := dv.ImageToBuffer(b[i])
			e := dv.ImageToBuffer(b[(i+1)%len(b)])
			br.drawLineMicro(round(a[0]), round(a[1]), round(e[0]), round(e[1]), ink)
		}
	}
	ocrInk := render.Hex(m.rnd.Options().OCRColor)
	for _, b := range doc.OCR {
		if b.Valid() {
			outline(b, ocrInk)
		}
	}
	for i, f := range doc.Fields() {
		if f.Box.Valid() {
			outline(f.Box, render.Hex(m.rnd.ColorFor(i)))
		}
	}
	return br.toLines()
}
