// Package markdown parses markdown documents into a section tree plus fenced
// code blocks. Headings and fences are located through the goldmark AST so
// that hashes inside code fences or HTML blocks are never mistaken for
// headings; section content is then sliced out of the raw source by line.
package markdown

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

func init() {
	parser.Register(detect.ParserMarkdown, func() parser.Parser { return NewParser() })
}

// Parser is the markdown document parser.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates the markdown parser.
func NewParser() *Parser {
	return &Parser{md: goldmark.New()}
}

type headingInfo struct {
	title string
	level int
	line  int // 1-based line of the heading itself
}

func (p *Parser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	res := &parser.Result{
		Path:    in.Path,
		AbsPath: in.AbsPath,
		Format:  detect.Format{Category: detect.CategoryCode, Name: "markdown", ParserID: detect.ParserMarkdown},
	}

	source := in.Content
	offsets := lineOffsets(source)
	doc := &parser.MarkdownDocument{Hash: ids.ShortHash(source)}

	root := p.md.Parser().Parse(gtext.NewReader(source))

	var headings []headingInfo
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Lines().Len() == 0 {
				return ast.WalkContinue, nil
			}
			seg := node.Lines().At(0)
			headings = append(headings, headingInfo{
				title: strings.TrimSpace(string(seg.Value(source))),
				level: node.Level,
				line:  lineOf(offsets, seg.Start),
			})
		case *ast.FencedCodeBlock:
			if !in.Options.ParseCodeBlocks {
				return ast.WalkContinue, nil
			}
			lang := string(node.Language(source))
			var sb strings.Builder
			lines := node.Lines()
			start, end := 0, 0
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
				if i == 0 {
					start = lineOf(offsets, seg.Start)
				}
				end = lineOf(offsets, seg.Start)
			}
			codeText := sb.String()
			doc.CodeBlocks = append(doc.CodeBlocks, parser.CodeBlock{
				Language:  lang,
				Code:      codeText,
				StartLine: start,
				EndLine:   end,
				Hash:      ids.ShortHashString(codeText),
			})
		case *ast.Link:
			doc.Links = append(doc.Links, string(node.Destination))
		case *ast.Image:
			doc.ImageRefs = append(doc.ImageRefs, string(node.Destination))
		case *ast.AutoLink:
			doc.Links = append(doc.Links, string(node.URL(source)))
		}
		return ast.WalkContinue, nil
	})

	doc.Sections = buildSections(source, offsets, headings)
	if len(headings) > 0 {
		doc.Title = headings[0].title
	}

	res.Markdown = doc
	return res
}

// buildSections slices the source into heading-delimited sections.
// Own-content runs to the next heading of any level; full content runs to
// the next heading at the same or a shallower level. The parent is the
// nearest preceding heading with a smaller level, linked by title text.
func buildSections(source []byte, offsets []int, headings []headingInfo) []parser.MarkdownSection {
	srcLines := strings.Split(string(source), "\n")
	totalLines := len(srcLines)

	sections := make([]parser.MarkdownSection, 0, len(headings))
	for i, h := range headings {
		ownEnd := totalLines
		if i+1 < len(headings) {
			ownEnd = headings[i+1].line - 1
		}
		fullEnd := totalLines
		for j := i + 1; j < len(headings); j++ {
			if headings[j].level <= h.level {
				fullEnd = headings[j].line - 1
				break
			}
		}

		own := sliceLines(srcLines, h.line, ownEnd)
		full := sliceLines(srcLines, h.line, fullEnd)

		parentTitle := ""
		for j := i - 1; j >= 0; j-- {
			if headings[j].level < h.level {
				parentTitle = headings[j].title
				break
			}
		}

		sections = append(sections, parser.MarkdownSection{
			Title:       h.title,
			Level:       h.level,
			Slug:        Slugify(h.title),
			OwnContent:  own,
			FullContent: full,
			Hash:        ids.ShortHashString(full),
			ParentTitle: parentTitle,
			StartLine:   h.line,
			EndLine:     fullEnd,
		})
	}
	return sections
}

// sliceLines returns the source text between two 1-based line numbers,
// excluding the heading line itself.
func sliceLines(lines []string, headingLine, end int) string {
	lo := headingLine // first content line is the one after the heading
	if lo > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end < lo {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[lo:end], "\n"), "\n")
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9 -]`)

// Slugify lowercases a title and collapses it to a dash-separated anchor.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "-")
	return s
}

// lineOffsets records the byte offset of every line start.
func lineOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineOf maps a byte offset to its 1-based line.
func lineOf(offsets []int, byteOffset int) int {
	idx := sort.Search(len(offsets), func(i int) bool { return offsets[i] > byteOffset })
	return idx
}
