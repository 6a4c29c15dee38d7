package tui

import (
	"fmt"

	table "github.com/charmbracelet/bubbles/table"

	"ocrlabel/internal/geom"
)

// refreshFieldsTable rebuilds the fields table from the current document.
func (m *Model) refreshFieldsTable() bool {
	doc := m.sess.Document()
	if doc == nil || doc.Len() == 0 {
		m.showFields = false
		m.status = "no fields in current document"
		return false
	}
	cols := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Field", Width: 20},
		{Title: "Color", Width: 8},
		{Title: "Centroid", Width: 16},
		{Title: "Size", Width: 12},
	}
	rows := make([]table.Row, 0, doc.Len())
	for i, f := range doc.Fields() {
		centroid, size := "—", "—"
		if f.Box.Valid() {
			c := f.Box.Centroid()
			centroid = fmt.Sprintf("%.0f, %.0f", c.X(), c.Y())
			size = boxSize(f.Box)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			truncate(f.Name, 20),
			m.fieldHex(i),
			centroid,
			size,
		})
	}
	// clear rows before columns so the two never disagree in width
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(cols)
	m.tbl.SetRows(rows)
	return true
}

func boxSize(b geom.Box) string {
	bb := b.Bounds()
	return fmt.Sprintf("%.0fx%.0f", bb.Width(), bb.Height())
}
