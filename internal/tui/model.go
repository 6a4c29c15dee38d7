// Package tui is the terminal client: a bubbletea model that shows the image
// with its boxes, maps mouse and keys onto the session, and lists catalog and
// fields.
package tui

import (
	"log/slog"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/geom"
	"ocrlabel/internal/render"
	"ocrlabel/internal/session"
)

const (
	sidebarWidth = 30
	panelWidth   = 28
	headerHeight = 1
	footerHeight = 2

	defaultNoticeTTL = 4 * time.Second
	keyPanStep       = 0.1 // of the canvas size
)

type dragState struct {
	active bool
	moved  bool
	button tea.MouseButton
	lastX  int
	lastY  int
}

type Model struct {
	width  int
	height int

	sess   *session.Session
	rnd    *render.Renderer
	logger *slog.Logger
	frame  *frameCache

	showSidebar bool
	helpVisible bool
	showFields  bool
	wireframe   bool

	status string

	// notice
	notice    session.NoticeMsg
	hasNotice bool
	noticeSeq int
	noticeTTL time.Duration

	// catalog sidebar
	l list.Model

	// fields table
	tbl table.Model

	// goto-id prompt
	gotoMode bool
	ti       textinput.Model

	// inspect popup
	inspectPopup string

	drag dragState

	// hover state
	hovering bool
	hoverImg geom.Point
}

// New builds the model around sess. A nil renderer gets the default one.
func New(sess *session.Session, rnd *render.Renderer, logger *slog.Logger) (Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rnd == nil {
		opts := render.DefaultOptions()
		opts.Background = canvasBg
		var err error
		if rnd, err = render.New(opts); err != nil {
			return Model{}, err
		}
	}
	m := Model{
		sess:        sess,
		rnd:         rnd,
		logger:      logger,
		frame:       &frameCache{},
		helpVisible: true,
		status:      "ocrlabel ready",
		noticeTTL:   defaultNoticeTTL,
	}
	// list setup
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Images"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	// goto prompt
	m.ti = textinput.New()
	m.ti.Placeholder = "image id"
	m.ti.Prompt = "go to: "
	m.ti.CharLimit = 128
	// fields table
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	return m, nil
}

func (m Model) Init() tea.Cmd { return m.sess.LoadCatalog() }

// layout is the geometry shared by View and mouse hit-testing.
type layout struct {
	bodyH            int
	sidebarW         int
	canvasX, canvasY int
	canvasW, canvasH int
	panelX, panelW   int
}

func (m Model) layout() layout {
	var lay layout
	lay.bodyH = max(4, m.height-headerHeight-footerHeight)
	contentW := max(10, m.width)
	if m.showSidebar {
		lay.sidebarW = sidebarWidth
	}
	if contentW >= 60 {
		lay.panelW = panelWidth
	}
	lay.canvasX = lay.sidebarW
	if lay.sidebarW > 0 {
		lay.canvasX++
	}
	lay.canvasY = headerHeight
	lay.canvasW = max(8, contentW-lay.canvasX-lay.panelW-boolInt(lay.panelW > 0))
	lay.canvasH = lay.bodyH
	lay.panelX = lay.canvasX + lay.canvasW + 1
	return lay
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (l layout) inCanvas(x, y int) bool {
	return x >= l.canvasX && x < l.canvasX+l.canvasW && y >= l.canvasY && y < l.canvasY+l.canvasH
}

func (l layout) inPanel(x, y int) bool {
	return l.panelW > 0 && x >= l.panelX && x < l.panelX+l.panelW && y >= l.canvasY && y < l.canvasY+l.bodyH
}

// displaySize fits the image into the canvas pixel grid keeping its aspect.
func (m Model) displaySize() (float64, float64) {
	lay := m.layout()
	g := m.grid()
	pw, ph := float64(lay.canvasW*g.x), float64(lay.canvasH*g.y)
	img := m.sess.Image()
	if img == nil {
		return pw, ph
	}
	b := img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	if iw == 0 || ih == 0 {
		return pw, ph
	}
	s := max(iw/pw, ih/ph)
	return iw / s, ih / s
}

// syncDisplay tells the session how large the canvas buffer is shown.
func (m *Model) syncDisplay() {
	w, h := m.displaySize()
	m.sess.SetDisplay(w, h)
	m.l.SetSize(sidebarWidth-2, m.layout().bodyH-2)
}
