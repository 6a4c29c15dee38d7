package tui

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/session"
	"ocrlabel/internal/store"
)

const sidecar = `{"ocr":[[[0,0],[10,0],[10,5],[0,5]],[[20,10],[30,10],[30,15],[20,15]]],"fields":{"total":null,"date":null}}`

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func runCmd(c tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- c() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(time.Second):
		return nil, false
	}
}

// drive feeds cmd and everything it produces back into m.
func drive(m Model, cmd tea.Cmd) Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg, ok := runCmd(c)
		if !ok {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if _, ok := msg.(tea.QuitMsg); ok {
			continue
		}
		next, cmd := m.Update(msg)
		m = next.(Model)
		queue = append(queue, cmd)
	}
	return m
}

func send(m Model, msg tea.Msg) Model {
	next, cmd := m.Update(msg)
	return drive(next.(Model), cmd)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(x, y int, action tea.MouseAction, button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: button}
}

func newTestModel(t *testing.T) (Model, string) {
	t.Helper()
	dir := t.TempDir()
	for _, id := range []string{"inv001", "inv002"} {
		writePNG(t, filepath.Join(dir, id+".png"), 40, 20)
		if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(sidecar), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sess := session.New(store.NewDir(dir, nil, nil), nil)
	m, err := New(sess, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.noticeTTL = 0
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = drive(m, m.Init())
	if sess.State() != session.Displaying {
		t.Fatalf("state = %v", sess.State())
	}
	return m, dir
}

// cell (4,1) of the canvas shows image point ~(2.5, 1.7), inside the first box
func boxClick(m Model) Model {
	lay := m.layout()
	m = send(m, mouse(lay.canvasX+4, lay.canvasY+1, tea.MouseActionPress, tea.MouseButtonLeft))
	return send(m, mouse(lay.canvasX+4, lay.canvasY+1, tea.MouseActionRelease, tea.MouseButtonLeft))
}

func TestClickWithoutFieldBlocks(t *testing.T) {
	m, _ := newTestModel(t)
	m = boxClick(m)
	if !m.hasNotice || m.notice.Level != session.Blocking {
		t.Fatalf("want blocking notice, got %+v", m.notice)
	}
	if !strings.Contains(m.View(), session.ErrNoFieldSelected.Error()) {
		t.Fatalf("notice not shown")
	}
	m = send(m, key("z"))
	if m.hasNotice {
		t.Fatalf("any key should dismiss a blocking notice")
	}
	if m.sess.Dirty() {
		t.Fatalf("document changed")
	}
}

func TestSelectAndAssign(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(m, key("1"))
	if m.sess.Selected() != "total" {
		t.Fatalf("selected = %q", m.sess.Selected())
	}
	m = boxClick(m)
	if box, _ := m.sess.Document().Box("total"); box == nil {
		t.Fatalf("click did not assign, status %q", m.status)
	}

	m = send(m, key("tab"))
	if m.sess.Selected() != "date" {
		t.Fatalf("tab selected %q", m.sess.Selected())
	}
	m = boxClick(m)
	if box, _ := m.sess.Document().Box("total"); box != nil {
		t.Fatalf("total should have lost the box")
	}
	m = send(m, key("x"))
	if box, _ := m.sess.Document().Box("date"); box != nil {
		t.Fatalf("clear did not empty date")
	}
}

func TestPanelClickSelects(t *testing.T) {
	m, _ := newTestModel(t)
	lay := m.layout()
	m = send(m, mouse(lay.panelX+2, lay.canvasY+2, tea.MouseActionPress, tea.MouseButtonLeft))
	if m.sess.Selected() != "date" {
		t.Fatalf("selected = %q", m.sess.Selected())
	}
}

func TestWheelAndDrag(t *testing.T) {
	m, _ := newTestModel(t)
	lay := m.layout()
	m = send(m, mouse(lay.canvasX+10, lay.canvasY+5, tea.MouseActionPress, tea.MouseButtonWheelUp))
	if z := m.sess.Viewport.Zoom; z < 1.0999 || z > 1.1001 {
		t.Fatalf("zoom = %v", z)
	}
	m = send(m, key("0"))

	m = send(m, key("1"))
	m = send(m, mouse(lay.canvasX+4, lay.canvasY+1, tea.MouseActionPress, tea.MouseButtonLeft))
	m = send(m, mouse(lay.canvasX+6, lay.canvasY+1, tea.MouseActionMotion, tea.MouseButtonLeft))
	m = send(m, mouse(lay.canvasX+6, lay.canvasY+1, tea.MouseActionRelease, tea.MouseButtonLeft))
	if m.sess.Viewport.PanX <= 0 || m.sess.Viewport.PanY != 0 {
		t.Fatalf("drag did not pan: %v", m.sess.Viewport)
	}
	if box, _ := m.sess.Document().Box("total"); box != nil {
		t.Fatalf("a drag must not assign")
	}

	m = send(m, mouse(lay.canvasX+4, lay.canvasY+1, tea.MouseActionPress, tea.MouseButtonLeft))
	m = send(m, mouse(0, 0, tea.MouseActionMotion, tea.MouseButtonLeft))
	if m.drag.active {
		t.Fatalf("leaving the canvas should end the drag")
	}
}

func TestSaveAndNavigate(t *testing.T) {
	m, dir := newTestModel(t)
	m = send(m, key("1"))
	m = boxClick(m)
	m = send(m, key("s"))
	if !m.hasNotice || m.notice.Level != session.Info {
		t.Fatalf("notice = %+v", m.notice)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "inv001.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\"total\": [\n") {
		t.Fatalf("assignment not saved:\n%s", raw)
	}
	if !strings.HasPrefix(strings.TrimSpace(m.l.Items()[0].(catalogItem).title), "●") {
		t.Fatalf("catalog should show inv001 as updated: %q", m.l.Items()[0].(catalogItem).title)
	}

	m = send(m, key("n"))
	if m.sess.Index() != 1 || !strings.Contains(m.View(), "Image 2 of 2") {
		t.Fatalf("navigate failed, index %d", m.sess.Index())
	}
	if m.sess.Selected() != "total" {
		t.Fatalf("selection should carry over when the field exists")
	}
}

func TestViewModes(t *testing.T) {
	m, _ := newTestModel(t)
	if v := m.View(); !strings.Contains(v, "▀") || !strings.Contains(v, "Fields") {
		t.Fatalf("half-block view missing parts")
	}
	m = send(m, key("w"))
	v := m.View()
	if !m.frame.key.wireframe || !hasBraille(v) {
		t.Fatalf("wireframe view has no braille dots")
	}
	m = send(m, key("a"))
	if !strings.Contains(m.View(), "Centroid") {
		t.Fatalf("fields table not shown")
	}
	m = send(m, key("esc"))
	m = send(m, key("c"))
	if m.layout().sidebarW == 0 || !strings.Contains(m.View(), "inv002.png") {
		t.Fatalf("catalog sidebar not shown")
	}
}

func hasBraille(s string) bool {
	for _, r := range s {
		if r > 0x2800 && r <= 0x28FF {
			return true
		}
	}
	return false
}

func TestBrailleBuf(t *testing.T) {
	b := newBrailleBuf(2, 1)
	b.drawLineMicro(0, 0, 3, 0, "#FFFFFF")
	b.setPixel(-1, 0, "#FFFFFF")
	b.setPixel(9, 9, "#FFFFFF")
	if b.m[0][0] != 0x09 || b.m[0][1] != 0x09 {
		t.Fatalf("masks = %x %x", b.m[0][0], b.m[0][1])
	}
	lines := newBrailleBuf(1, 1).toLines()
	if lines[0] != " " {
		t.Fatalf("empty cell = %q", lines[0])
	}
}

func TestFrameCache(t *testing.T) {
	m, _ := newTestModel(t)
	first := m.View()
	key1 := m.frame.key
	_ = m.View()
	if m.frame.key != key1 {
		t.Fatalf("unchanged state should reuse the frame")
	}
	m = send(m, key("+"))
	if second := m.View(); second == first || m.frame.key == key1 {
		t.Fatalf("zoom should produce a new frame")
	}
}
