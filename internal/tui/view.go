package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ocrlabel/internal/render"
	"ocrlabel/internal/session"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	lay := m.layout()
	contentWidth := max(10, m.width)

	header := lipgloss.NewStyle().Width(contentWidth).Render(m.renderHeader())

	// Canvas, or an overlay in its place
	var canvas string
	switch {
	case m.hasNotice && m.notice.Level == session.Blocking:
		box := blockingStyle.Render(m.notice.Text + "\n\n" + dimStyle.Render("press any key"))
		canvas = lipgloss.Place(lay.canvasW, lay.canvasH, lipgloss.Center, lipgloss.Center, box)
	case m.gotoMode:
		box := boxStyle.Width(min(lay.canvasW-2, 48)).Render(m.ti.View())
		canvas = lipgloss.Place(lay.canvasW, lay.canvasH, lipgloss.Center, lipgloss.Center, box)
	case m.showFields:
		m.tbl.SetWidth(min(lay.canvasW-4, 70))
		m.tbl.SetHeight(min(lay.canvasH-2, 20))
		box := boxStyle.Render(m.tbl.View())
		canvas = lipgloss.Place(lay.canvasW, lay.canvasH, lipgloss.Center, lipgloss.Center, box)
	case m.inspectPopup != "":
		box := boxStyle.MaxWidth(min(lay.canvasW, 60)).Render(m.inspectPopup)
		canvas = lipgloss.Place(lay.canvasW, lay.canvasH, lipgloss.Left, lipgloss.Center, box)
	default:
		canvas = m.renderCanvas(lay.canvasW, lay.canvasH)
	}
	canvas = lipgloss.NewStyle().Width(lay.canvasW).Height(lay.canvasH).MaxHeight(lay.canvasH).Render(canvas)

	cols := []string{}
	if lay.sidebarW > 0 {
		m.l.SetSize(sidebarWidth-2, lay.bodyH-2)
		cols = append(cols, lipgloss.NewStyle().Width(lay.sidebarW).Height(lay.bodyH).Render(m.l.View()), " ")
	}
	cols = append(cols, canvas)
	if lay.panelW > 0 {
		cols = append(cols, " ", m.renderFieldPanel(lay.panelW, lay.bodyH))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	footer := lipgloss.NewStyle().Width(contentWidth).Render(m.renderFooter(contentWidth))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render(" ocrlabel ")
	cat := m.sess.Catalog()
	if len(cat) == 0 {
		return title + dimStyle.Render(" no images")
	}
	cur, ok := m.sess.Current()
	if !ok {
		return title + dimStyle.Render(fmt.Sprintf(" %d images", len(cat)))
	}
	parts := []string{
		fmt.Sprintf("Image %d of %d", m.sess.Index()+1, len(cat)),
		cur.ImagePath,
		m.sess.Status(m.sess.Index()).String(),
	}
	if m.sess.Dirty() {
		parts = append(parts, "modified")
	}
	if m.sess.State() == session.Loading {
		parts = append(parts, fmt.Sprintf("loading %d…", m.sess.LoadingIndex()+1))
	}
	nav := ""
	if m.sess.CanPrev() {
		nav += " ‹p"
	}
	if m.sess.CanNext() {
		nav += " n›"
	}
	return title + " " + strings.Join(parts, " · ") + dimStyle.Render(nav)
}

func (m Model) fieldHex(i int) string {
	return render.Hex(m.rnd.ColorFor(i))
}

// renderFieldPanel is the field selector: swatch, number and name per field.
func (m Model) renderFieldPanel(w, h int) string {
	lines := []string{titleStyle.Render("Fields")}
	doc := m.sess.Document()
	switch {
	case doc == nil:
		lines = append(lines, dimStyle.Render("no document"))
	case doc.Len() == 0:
		lines = append(lines, dimStyle.Render("No fields defined in JSON"))
	default:
		for i, f := range doc.Fields() {
			swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(m.fieldHex(i))).Render("■")
			mark := " "
			if f.Box.Valid() {
				mark = "✓"
			}
			label := truncate(f.Name, w-8)
			num := " "
			if i < 9 {
				num = fmt.Sprintf("%d", i+1)
			}
			text := fmt.Sprintf("%s %s %s", num, label, mark)
			if f.Name == m.sess.Selected() {
				text = selectedStyle.Render("▸" + text)
			} else {
				text = " " + text
			}
			lines = append(lines, swatch+text)
		}
	}
	if len(lines) > h {
		lines = lines[:h]
	}
	return lipgloss.NewStyle().Width(w).Height(h).Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter(width int) string {
	status := " " + m.status + " "
	if m.hasNotice && m.notice.Level != session.Blocking {
		switch m.notice.Level {
		case session.Error:
			status = errorStyle.Render(" " + m.notice.Text + " ")
		default:
			status = infoStyle.Render(" " + m.notice.Text + " ")
		}
	} else {
		status = dimStyle.Render(status)
	}
	coords := ""
	if m.hovering {
		coords = fmt.Sprintf("x=%d y=%d  %s", round(m.hoverImg.X()), round(m.hoverImg.Y()), m.sess.Viewport.String())
	}
	spacer := max(1, width-lipgloss.Width(status)-lipgloss.Width(coords))
	first := status + padRight("", spacer) + dimStyle.Render(coords)
	return lipgloss.JoinVertical(lipgloss.Left, first, m.renderHelp())
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"click assign",
		"drag/←→ pan",
		"wheel/+- zoom",
		"tab/1-9 field",
		"x clear",
		"s save",
		"n/p image",
		"0 reset",
		"c images",
		"a fields",
		"g goto",
		"i inspect",
		"w wire",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
