package annotate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ocrlabel/internal/geom"
)

// Parse decodes a sidecar document. Key order of the top level and of fields
// is preserved. A missing or malformed fields value becomes an empty mapping;
// a missing or malformed ocr value becomes an empty list for hit-testing and
// drawing, and its source text is written back unchanged.
func Parse(data []byte) (*Document, error) {
	d := &Document{index: map[string]int{}}
	err := eachMember(data, func(key string, raw json.RawMessage) error {
		if !d.hasKey(key) {
			d.keys = append(d.keys, key)
		}
		switch key {
		case keyOCR:
			d.ocrRaw = append([]byte(nil), raw...)
			d.OCR = decodeBoxes(raw)
		case keyFields:
			d.fields, d.index = nil, map[string]int{}
			_ = eachMember(raw, func(name string, v json.RawMessage) error {
				box, bad := decodeBox(v)
				d.addField(name, box, bad)
				return nil
			})
		default:
			if d.extra == nil {
				d.extra = map[string][]byte{}
			}
			d.extra[key] = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if !d.hasKey(keyFields) {
		d.keys = append(d.keys, keyFields)
	}
	return d, nil
}

// UnmarshalJSON implements json.Unmarshaler with Parse semantics.
func (d *Document) UnmarshalJSON(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *p
	return nil
}

// MarshalJSON writes the document in source key order, fields included even
// when null.
func (d *Document) MarshalJSON() ([]byte, error) {
	keys := d.keys
	if len(keys) == 0 {
		keys = []string{keyOCR, keyFields}
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		switch k {
		case keyOCR:
			if d.ocrRaw != nil {
				buf.Write(d.ocrRaw)
				continue
			}
			ocr := d.OCR
			if ocr == nil {
				ocr = []geom.Box{}
			}
			b, err := json.Marshal(ocr)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		case keyFields:
			if err := d.writeFields(&buf); err != nil {
				return nil, err
			}
		default:
			buf.Write(d.extra[k])
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) writeFields(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(f.Name)
		buf.Write(kb)
		buf.WriteByte(':')
		if f.raw != nil {
			buf.Write(f.raw)
			continue
		}
		b, err := json.Marshal(f.Box)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return nil
}

func (d *Document) hasKey(k string) bool {
	for _, have := range d.keys {
		if have == k {
			return true
		}
	}
	return false
}

// eachMember walks the members of a JSON object in source order. Values that
// are not objects yield an error.
func eachMember(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeBoxes keeps every element that decodes as a box. Anything else
// yields an empty list.
func decodeBoxes(raw json.RawMessage) []geom.Box {
	var all []geom.Box
	if err := json.Unmarshal(raw, &all); err == nil {
		return all
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]geom.Box, 0, len(elems))
	for _, e := range elems {
		var b geom.Box
		if err := json.Unmarshal(e, &b); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// decodeBox returns the box in raw, or the raw bytes themselves when they do
// not decode.
func decodeBox(raw json.RawMessage) (geom.Box, []byte) {
	var b geom.Box
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, append([]byte(nil), raw...)
	}
	return b, nil
}
