package web

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

// CSSParser counts rules, selectors and properties with the tree-sitter css
// grammar and collects custom properties and imported stylesheet URLs. SCSS
// rides the same grammar; its nesting degrades to error nodes that the
// counters simply skip, so the raw-text scans below back up the structural
// pass for @use and variables.
type CSSParser struct {
	pool sync.Pool
	once sync.Once
}

// NewCSSParser creates the CSS/SCSS parser.
func NewCSSParser() *CSSParser {
	return &CSSParser{}
}

var (
	cssImportRe = regexp.MustCompile(`@(?:import|use)\s+(?:url\()?["']([^"')]+)["']`)
	cssVarRe    = regexp.MustCompile(`(--[A-Za-z0-9_-]+)\s*:`)
	scssVarRe   = regexp.MustCompile(`(?m)^\s*(\$[A-Za-z0-9_-]+)\s*:`)
)

func (p *CSSParser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	p.once.Do(func() {
		p.pool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(css.GetLanguage())
			return sp
		}
	})

	format := detect.Detect(in.Path, in.Content)
	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath, Format: format}

	sheet := &parser.Stylesheet{Hash: ids.ShortHash(in.Content)}

	sp := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(sp)

	tree, err := sp.ParseCtx(ctx, nil, in.Content)
	if err != nil {
		res.Err = fmt.Errorf("parse stylesheet %s: %w", in.Path, err)
		return res
	}
	defer tree.Close()

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "rule_set":
			sheet.RuleCount++
		case "selectors":
			sheet.SelectorCount += int(n.NamedChildCount())
		case "declaration":
			sheet.PropertyCount++
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	text := string(in.Content)
	for _, m := range cssImportRe.FindAllStringSubmatch(text, -1) {
		sheet.ImportedURLs = append(sheet.ImportedURLs, m[1])
	}
	seen := make(map[string]bool)
	for _, m := range cssVarRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			sheet.Variables = append(sheet.Variables, m[1])
		}
	}
	if strings.HasSuffix(in.Path, ".scss") {
		for _, m := range scssVarRe.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				sheet.Variables = append(sheet.Variables, m[1])
			}
		}
	}

	res.Style = sheet
	return res
}
