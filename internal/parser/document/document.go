// Package document extracts text from PDF, DOCX, XLSX and CSV files. PDFs
// whose pages yield no text are queued for vision OCR by flagging the node.
package document

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

func init() {
	parser.Register(detect.ParserDocument, func() parser.Parser { return NewParser() })
}

// Parser handles document formats.
type Parser struct{}

// NewParser creates the document parser.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	format := detect.Detect(in.Path, in.Content)
	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath, Format: format}

	df := &parser.DocumentFile{
		Format: format.Name,
		Hash:   ids.ShortHash(in.Content),
	}

	var err error
	switch format.Name {
	case "pdf":
		err = p.parsePDF(df, in)
	case "docx":
		err = p.parseDOCX(df, in.Content)
	case "xlsx":
		err = p.parseXLSX(df, in.Content)
	case "zip":
		// Sniffed ZIP container without an extension: the archive listing
		// decides whether it is an office document.
		if err = p.parseDOCX(df, in.Content); err != nil {
			err = p.parseXLSX(df, in.Content)
		}
	case "csv":
		err = p.parseCSV(df, in.Content)
	case "xls":
		// Legacy binary workbooks carry no extractable text here; the node
		// still records size and hash.
		res.Warnings = append(res.Warnings, fmt.Sprintf("legacy xls not extracted: %s", in.Path))
	default:
		err = fmt.Errorf("document parser: unsupported format %q for %s", format.Name, in.Path)
	}
	if err != nil {
		res.Err = fmt.Errorf("parse %s %s: %w", format.Name, in.Path, err)
		return res
	}

	res.Document = df
	return res
}

// parsePDF pulls plain text out of the page tree. An empty extraction from a
// non-empty document is the image-only case: flag for OCR instead of failing.
func (p *Parser) parsePDF(df *parser.DocumentFile, in parser.Input) error {
	reader, err := pdf.NewReader(bytes.NewReader(in.Content), int64(len(in.Content)))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	df.PageCount = reader.NumPage()

	if !in.Options.ExtractText {
		return nil
	}

	var sb strings.Builder
	maxPages := reader.NumPage()
	if in.Options.MaxOCRPages > 0 && maxPages > in.Options.MaxOCRPages {
		maxPages = in.Options.MaxOCRPages
	}
	for i := 1; i <= maxPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	df.Text = strings.TrimSpace(sb.String())
	if df.Text == "" && df.PageCount > 0 && in.Options.UseOCR {
		df.NeedsGeminiVision = true
	}
	return nil
}

func (p *Parser) parseCSV(df *parser.DocumentFile, content []byte) error {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var sb strings.Builder
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		if rows == 0 {
			df.Headers = record
		}
		rows++
		sb.WriteString(strings.Join(record, " "))
		sb.WriteByte('\n')
	}
	df.RowCount = rows
	df.Text = strings.TrimSpace(sb.String())
	return nil
}
