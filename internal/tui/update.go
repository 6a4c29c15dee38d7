package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/geom"
	"ocrlabel/internal/session"
	"ocrlabel/internal/viewport"
)

type noticeExpiredMsg struct{ seq int }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.syncDisplay()
		return m, nil

	case session.CatalogLoadedMsg:
		cmd := m.sess.Update(msg)
		m.refreshCatalog()
		m.status = fmt.Sprintf("%d images", len(m.sess.Catalog()))
		return m, cmd
	case session.DisplayedMsg:
		m.syncDisplay()
		m.refreshCatalog()
		if m.showFields {
			m.refreshFieldsTable()
		}
		m.inspectPopup = ""
		m.status = "loaded " + msg.ID
		return m, nil
	case session.DocumentLoadedMsg, session.ImageLoadedMsg, session.SavedMsg:
		return m, m.sess.Update(msg)
	case session.ProgressMarkedMsg:
		cmd := m.sess.Update(msg)
		m.refreshCatalog()
		return m, cmd

	case session.NoticeMsg:
		return m, m.setNotice(msg)
	case noticeExpiredMsg:
		if m.hasNotice && msg.seq == m.noticeSeq && m.notice.Level != session.Blocking {
			m.hasNotice = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	// Pass messages to list when visible
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setNotice(n session.NoticeMsg) tea.Cmd {
	m.notice, m.hasNotice = n, true
	m.noticeSeq++
	if n.Level == session.Blocking || m.noticeTTL <= 0 {
		return nil
	}
	seq := m.noticeSeq
	return tea.Tick(m.noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func (m *Model) block(err error) tea.Cmd {
	return m.setNotice(session.NoticeMsg{Level: session.Blocking, Text: err.Error()})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// a blocking notice swallows the next key
	if m.hasNotice && m.notice.Level == session.Blocking {
		m.hasNotice = false
		return m, nil
	}
	if m.gotoMode {
		switch msg.String() {
		case "esc":
			m.gotoMode = false
			m.ti.Blur()
			return m, nil
		case "enter":
			id := strings.TrimSpace(m.ti.Value())
			m.gotoMode = false
			m.ti.Blur()
			if id == "" {
				return m, nil
			}
			return m, m.sess.GoTo(id)
		}
		var cmd tea.Cmd
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd
	}
	// If list is visible and filtering, send keys to list and ignore global commands
	if m.showSidebar && m.l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}

	lay := m.layout()
	g := m.grid()
	switch key := msg.String(); key {
	case "q":
		return m, tea.Quit
	case "esc":
		m.inspectPopup = ""
		m.showFields = false
		m.hasNotice = false
	case "n", "pgdown":
		return m, m.sess.Navigate(1)
	case "p", "pgup":
		return m, m.sess.Navigate(-1)
	case "s", "ctrl+s":
		m.status = "saving…"
		return m, m.sess.Save()
	case "tab":
		m.sess.CycleField(1)
		m.status = "field: " + m.sess.Selected()
	case "shift+tab":
		m.sess.CycleField(-1)
		m.status = "field: " + m.sess.Selected()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i, _ := strconv.Atoi(key)
		m.selectFieldIndex(i - 1)
	case "x", "backspace", "delete":
		if m.sess.Selected() == "" {
			return m, m.block(session.ErrNoFieldSelected)
		}
		m.sess.ClearSelected()
		m.status = "cleared " + m.sess.Selected()
		if m.showFields {
			m.refreshFieldsTable()
		}
	case "0", "r":
		m.sess.ResetView()
		m.status = "view reset"
	case "+", "=":
		m.sess.Viewport.ZoomAt(m.canvasCenter(lay, g), viewport.In)
		m.status = m.sess.Viewport.String()
	case "-", "_":
		m.sess.Viewport.ZoomAt(m.canvasCenter(lay, g), viewport.Out)
		m.status = m.sess.Viewport.String()
	case "up":
		m.sess.Viewport.PanScreen(0, float64(lay.canvasH*g.y)*keyPanStep)
	case "down":
		m.sess.Viewport.PanScreen(0, -float64(lay.canvasH*g.y)*keyPanStep)
	case "left":
		m.sess.Viewport.PanScreen(float64(lay.canvasW*g.x)*keyPanStep, 0)
	case "right":
		m.sess.Viewport.PanScreen(-float64(lay.canvasW*g.x)*keyPanStep, 0)
	case "c":
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.refreshCatalog()
		}
		m.syncDisplay()
	case "enter":
		if m.showSidebar {
			return m, m.sess.LoadImage(m.openSelected())
		}
	case "a":
		m.showFields = !m.showFields
		if m.showFields {
			m.refreshFieldsTable()
		}
	case "w":
		m.wireframe = !m.wireframe
		m.syncDisplay()
		m.status = "wireframe: " + strconv.FormatBool(m.wireframe)
	case "g":
		m.gotoMode = true
		m.ti.SetValue("")
		return m, m.ti.Focus()
	case "i":
		m.inspectPopup = m.inspect()
	case "h", "?":
		m.helpVisible = !m.helpVisible
	default:
		if m.showSidebar {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if m.showFields {
			var cmd tea.Cmd
			m.tbl, cmd = m.tbl.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) selectFieldIndex(i int) {
	doc := m.sess.Document()
	if doc == nil || i < 0 || i >= doc.Len() {
		return
	}
	name := doc.Names()[i]
	if err := m.sess.SelectField(name); err == nil {
		m.status = "field: " + name
	}
}

func (m Model) canvasCenter(lay layout, g grid) geom.Point {
	return geom.Point{float64(lay.canvasW*g.x) / 2, float64(lay.canvasH*g.y) / 2}
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	lay := m.layout()
	g := m.grid()

	if lay.inPanel(msg.X, msg.Y) && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		// first panel row is the title
		m.selectFieldIndex(msg.Y - lay.canvasY - 1)
		return m, nil
	}
	if !lay.inCanvas(msg.X, msg.Y) {
		// leaving the canvas ends any drag
		m.drag = dragState{}
		m.hovering = false
		if m.showSidebar && msg.X < lay.sidebarW {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	cx, cy := msg.X-lay.canvasX, msg.Y-lay.canvasY
	at := g.cellToDisplay(cx, cy)
	m.hovering = true
	m.hoverImg = m.sess.Viewport.ScreenToImage(at)

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.sess.Viewport.ZoomAt(at, viewport.In)
		m.status = m.sess.Viewport.String()
	case msg.Button == tea.MouseButtonWheelDown:
		m.sess.Viewport.ZoomAt(at, viewport.Out)
		m.status = m.sess.Viewport.String()
	case msg.Action == tea.MouseActionPress:
		m.drag = dragState{active: true, button: msg.Button, lastX: cx, lastY: cy}
	case msg.Action == tea.MouseActionMotion && m.drag.active:
		dx, dy := cx-m.drag.lastX, cy-m.drag.lastY
		if dx != 0 || dy != 0 {
			m.sess.Viewport.PanScreen(float64(dx*g.x), float64(dy*g.y))
			m.drag.moved = true
			m.drag.lastX, m.drag.lastY = cx, cy
		}
	case msg.Action == tea.MouseActionRelease:
		wasClick := m.drag.active && !m.drag.moved && m.drag.button == tea.MouseButtonLeft
		m.drag = dragState{}
		if wasClick {
			return m, m.click(at)
		}
	}
	return m, nil
}

// click assigns the box under at to the selected field.
func (m *Model) click(at geom.Point) tea.Cmd {
	hit, err := m.sess.ClickAt(at)
	switch {
	case err != nil:
		return m.block(err)
	case hit:
		box, _ := m.sess.Document().Box(m.sess.Selected())
		m.status = fmt.Sprintf("%s ← %s", m.sess.Selected(), box.WKT())
		if m.showFields {
			m.refreshFieldsTable()
		}
	default:
		m.status = "no OCR box here"
	}
	return nil
}

// inspect describes the OCR box under the cursor, or the selected field.
func (m Model) inspect() string {
	doc := m.sess.Document()
	if doc == nil {
		return "no document"
	}
	var box geom.Box
	if m.hovering {
		box = geom.FindBoxAt(m.hoverImg, doc.OCR)
	}
	if box == nil && m.sess.Selected() != "" {
		box, _ = doc.Box(m.sess.Selected())
	}
	if box == nil {
		return "no box under cursor"
	}
	holder, held := doc.HolderOf(box)
	if !held {
		holder = "—"
	}
	c := box.Centroid()
	bb := box.Bounds()
	meta := []string{
		fmt.Sprintf("field: %s", holder),
		fmt.Sprintf("centroid: %.1f, %.1f", c.X(), c.Y()),
		fmt.Sprintf("bounds: [%.0f, %.0f, %.0f, %.0f]", bb.MinX, bb.MinY, bb.MaxX, bb.MaxY),
		"wkt: " + box.WKT(),
	}
	if held {
		meta = append(meta, "color: "+m.fieldHex(doc.Index(holder)))
	}
	return strings.Join(meta, "\n")
}
