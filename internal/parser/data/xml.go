package data

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// decodeXML flattens an XML document into the same generic value shape the
// other formats produce: elements become objects keyed by child name (with
// "@attr" keys for attributes), repeated children become arrays, and
// text-only elements collapse to strings.
func decodeXML(content []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false

	var root any
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			elem, err := decodeElement(dec, start)
			if err != nil {
				return nil, err
			}
			root = map[string]any{start.Name.Local: elem}
			break
		}
	}
	return root, nil
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	obj := map[string]any{}
	for _, a := range start.Attr {
		obj["@"+a.Name.Local] = a.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			if existing, ok := obj[name]; ok {
				if arr, isArr := existing.([]any); isArr {
					obj[name] = append(arr, child)
				} else {
					obj[name] = []any{existing, child}
				}
			} else {
				obj[name] = child
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			trimmed := strings.TrimSpace(text.String())
			if len(obj) == 0 {
				return trimmed, nil
			}
			if trimmed != "" {
				obj["#text"] = trimmed
			}
			return obj, nil
		}
	}
}
