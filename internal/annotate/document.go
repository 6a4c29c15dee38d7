// Package annotate owns the per-image document: the OCR boxes and the
// field-to-box mapping, with the rule that a box belongs to at most one field.
package annotate

import (
	"errors"
	"fmt"

	"ocrlabel/internal/geom"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidBox   = errors.New("box must have exactly 4 corners")
)

const (
	keyOCR    = "ocr"
	keyFields = "fields"
)

// Field is a named slot holding at most one box.
type Field struct {
	Name string
	Box  geom.Box

	// raw is an undecodable source value, written back until the field changes
	raw []byte
}

// Document is the annotation state of one image.
type Document struct {
	OCR []geom.Box

	fields []Field
	index  map[string]int

	// source layout, kept so that a save writes back what was loaded
	keys   []string
	extra  map[string][]byte
	ocrRaw []byte
}

// New builds a document with the given OCR boxes and empty fields, in order.
func New(ocr []geom.Box, names ...string) *Document {
	d := &Document{
		OCR:   ocr,
		index: make(map[string]int, len(names)),
		keys:  []string{keyOCR, keyFields},
	}
	for _, n := range names {
		d.addField(n, nil, nil)
	}
	return d
}

func (d *Document) addField(name string, box geom.Box, raw []byte) {
	if i, ok := d.index[name]; ok {
		d.fields[i].Box, d.fields[i].raw = box, raw
		return
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, Field{Name: name, Box: box, raw: raw})
}

// Len is the number of fields.
func (d *Document) Len() int { return len(d.fields) }

// Names returns field names in document order.
func (d *Document) Names() []string {
	out := make([]string, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.Name
	}
	return out
}

// Fields returns a copy of the fields in document order.
func (d *Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Has reports whether name is one of the document's fields.
func (d *Document) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Index is the position of name in field order, or -1.
func (d *Document) Index(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Box returns the box held by name. ok is false for unknown fields.
func (d *Document) Box(name string) (box geom.Box, ok bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.fields[i].Box, true
}

// HolderOf returns the first field whose box equals box.
func (d *Document) HolderOf(box geom.Box) (string, bool) {
	for _, f := range d.fields {
		if geom.BoxesEqual(f.Box, box) {
			return f.Name, true
		}
	}
	return "", false
}

// Assigned counts fields holding a well-formed box.
func (d *Document) Assigned() int {
	n := 0
	for _, f := range d.fields {
		if f.Box.Valid() {
			n++
		}
	}
	return n
}

// Assign gives box to name. Any other field holding an equal box is cleared
// first, so reassigning a box moves it.
func (d *Document) Assign(name string, box geom.Box) error {
	i, ok := d.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if !box.Valid() {
		return ErrInvalidBox
	}
	for j := range d.fields {
		if geom.BoxesEqual(d.fields[j].Box, box) {
			d.fields[j].Box, d.fields[j].raw = nil, nil
		}
	}
	d.fields[i].Box, d.fields[i].raw = box.Clone(), nil
	return nil
}

// Clear empties name. Clearing an empty field is a no-op.
func (d *Document) Clear(name string) error {
	i, ok := d.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	d.fields[i].Box, d.fields[i].raw = nil, nil
	return nil
}

// Normalized is the document as the canvas sees it: only well-formed OCR
// boxes, fields holding a well-formed box or nothing, and no other keys.
func (d *Document) Normalized() *Document {
	n := New(nil, d.Names()...)
	for _, b := range d.OCR {
		if b.Valid() {
			n.OCR = append(n.OCR, b.Clone())
		}
	}
	for i, f := range d.fields {
		if f.Box.Valid() {
			n.fields[i].Box = f.Box.Clone()
		}
	}
	return n
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		OCR:    make([]geom.Box, len(d.OCR)),
		fields: make([]Field, len(d.fields)),
		index:  make(map[string]int, len(d.index)),
		keys:   append([]string(nil), d.keys...),
		ocrRaw: append([]byte(nil), d.ocrRaw...),
	}
	for i, b := range d.OCR {
		c.OCR[i] = b.Clone()
	}
	for i, f := range d.fields {
		c.fields[i] = Field{Name: f.Name, Box: f.Box.Clone(), raw: f.raw}
		c.index[f.Name] = i
	}
	if d.extra != nil {
		c.extra = make(map[string][]byte, len(d.extra))
		for k, v := range d.extra {
			c.extra[k] = v
		}
	}
	return c
}
