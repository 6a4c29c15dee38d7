package tui

import (
	list "github.com/charmbracelet/bubbles/list"

	"ocrlabel/internal/progress"
)

type catalogItem struct {
	title, desc string
	index       int
}

func (c catalogItem) Title() string       { return c.title }
func (c catalogItem) Description() string { return c.desc }
func (c catalogItem) FilterValue() string { return c.title }

func statusGlyph(s progress.Status) string {
	switch s {
	case progress.Updated:
		return "●"
	case progress.Viewed:
		return "◐"
	default:
		return "○"
	}
}

// refreshCatalog rebuilds the sidebar from the session catalog and progress.
func (m *Model) refreshCatalog() {
	cat := m.sess.Catalog()
	items := make([]list.Item, 0, len(cat))
	for i, e := range cat {
		st := m.sess.Status(i)
		items = append(items, catalogItem{
			title: statusGlyph(st) + " " + e.ImagePath,
			desc:  st.String(),
			index: i,
		})
	}
	m.l.SetItems(items)
	if cur := m.sess.Index(); cur >= 0 && m.l.FilterState() == list.Unfiltered {
		m.l.Select(cur)
	}
}

// openSelected loads the catalog entry under the sidebar cursor.
func (m *Model) openSelected() int {
	if it, ok := m.l.SelectedItem().(catalogItem); ok {
		return it.index
	}
	return -1
}
