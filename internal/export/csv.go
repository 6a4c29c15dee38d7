package export

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"image_id", "field", "color", "assigned", "wkt"}

// WriteCSV writes rows with the box as WKT.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		wkt := ""
		if r.Assigned() {
			wkt = r.Box.WKT()
		}
		rec := []string{r.ImageID, r.Field, r.Color(), strconv.FormatBool(r.Assigned()), wkt}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
