// Package export flattens field assignments of every catalog image into rows
// and writes them as CSV, XLSX or GeoJSON.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/geom"
	"ocrlabel/internal/render"
	"ocrlabel/internal/store"
)

// Row is one field of one image.
type Row struct {
	ImageID string
	Field   string
	Index   int
	Box     geom.Box
}

// Assigned reports whether the field holds a well-formed box.
func (r Row) Assigned() bool { return r.Box.Valid() }

// Color is the field's overlay color as drawn by the renderer.
func (r Row) Color() string {
	return render.FieldColors[r.Index%len(render.FieldColors)]
}

// DocumentRows returns one row per field of doc, in field order.
func DocumentRows(id string, doc *annotate.Document) []Row {
	fields := doc.Fields()
	rows := make([]Row, 0, len(fields))
	for i, f := range fields {
		rows = append(rows, Row{ImageID: id, Field: f.Name, Index: i, Box: f.Box})
	}
	return rows
}

// Collect loads every catalog document from st. Documents that fail to load
// are logged and skipped.
func Collect(ctx context.Context, st store.Store, logger *slog.Logger) ([]Row, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := st.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var rows []Row
	for _, e := range entries {
		data, err := st.Document(ctx, e.ID)
		if err != nil {
			logger.Warn("export.skip", "id", e.ID, "error", err)
			continue
		}
		doc, err := annotate.Parse(data)
		if err != nil {
			logger.Warn("export.skip", "id", e.ID, "error", err)
			continue
		}
		rows = append(rows, DocumentRows(e.ID, doc)...)
	}
	logger.Info("export.collect.ok", "images", len(entries), "rows", len(rows))
	return rows, nil
}
