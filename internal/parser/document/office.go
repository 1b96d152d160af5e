package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/rohankatakam/codegraph/internal/parser"
)

// DOCX and XLSX are ZIP containers of OOXML parts; the text lives in
// word/document.xml and xl/sharedStrings.xml respectively.

func (p *Parser) parseDOCX(df *parser.DocumentFile, content []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("open docx container: %w", err)
	}

	part := findPart(zr, "word/document.xml")
	if part == nil {
		return fmt.Errorf("no word/document.xml in container")
	}
	data, err := readPart(part)
	if err != nil {
		return err
	}

	text, err := extractElementText(data, map[string]bool{"t": true}, map[string]bool{"p": true, "br": true})
	if err != nil {
		return fmt.Errorf("decode document.xml: %w", err)
	}
	df.Format = "docx"
	df.Text = strings.TrimSpace(text)
	return nil
}

func (p *Parser) parseXLSX(df *parser.DocumentFile, content []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("open xlsx container: %w", err)
	}

	// Sheet names from the workbook part.
	if wb := findPart(zr, "xl/workbook.xml"); wb != nil {
		if data, rerr := readPart(wb); rerr == nil {
			df.SheetNames = extractSheetNames(data)
		}
	}

	part := findPart(zr, "xl/sharedStrings.xml")
	if part == nil {
		return fmt.Errorf("no xl/sharedStrings.xml in container")
	}
	data, err := readPart(part)
	if err != nil {
		return err
	}
	text, err := extractElementText(data, map[string]bool{"t": true}, map[string]bool{"si": true})
	if err != nil {
		return fmt.Errorf("decode sharedStrings.xml: %w", err)
	}
	df.Format = "xlsx"
	df.Text = strings.TrimSpace(text)
	return nil
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// extractElementText streams an OOXML part, keeping character data inside
// textElems and inserting newlines when a breakElem closes.
func extractElementText(data []byte, textElems, breakElems map[string]bool) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sb strings.Builder
	inText := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if textElems[t.Name.Local] {
				inText++
			}
		case xml.EndElement:
			if textElems[t.Name.Local] && inText > 0 {
				inText--
			}
			if breakElems[t.Name.Local] {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func extractSheetNames(data []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var names []string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "sheet" {
			for _, a := range start.Attr {
				if a.Name.Local == "name" {
					names = append(names, a.Value)
				}
			}
		}
	}
	return names
}
