package geom

import (
	"strconv"
	"strings"
)

// WKT renders b as a closed POLYGON ring. Malformed boxes render as
// "POLYGON EMPTY".
func (b Box) WKT() string {
	if !b.Valid() {
		return "POLYGON EMPTY"
	}
	var sb strings.Builder
	sb.WriteString("POLYGON((")
	ring := append(b.Clone(), b[0])
	for i, p := range ring {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(p[0], 'g', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p[1], 'g', -1, 64))
	}
	sb.WriteString("))")
	return sb.String()
}
