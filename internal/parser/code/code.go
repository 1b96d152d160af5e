// Package code extracts scopes, imports and identifier references from
// TypeScript, JavaScript and Python sources using tree-sitter grammars.
package code

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/parser"
)

func init() {
	parser.Register(detect.ParserTypeScript, func() parser.Parser { return NewParser() })
	parser.Register(detect.ParserPython, func() parser.Parser { return NewParser() })
	parser.Register(detect.ParserGeneric, func() parser.Parser { return &genericParser{} })
}

// Parser dispatches to the grammar matching the detected format. Tree-sitter
// parsers are not thread-safe, so each language keeps a pool.
type Parser struct {
	tsPool  sync.Pool
	tsxPool sync.Pool
	jsPool  sync.Pool
	pyPool  sync.Pool
	once    sync.Once
}

// NewParser creates the code parser. Grammar pools initialize lazily.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) initPools() {
	p.once.Do(func() {
		p.tsPool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(typescript.GetLanguage())
			return sp
		}
		p.tsxPool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(tsx.GetLanguage())
			return sp
		}
		p.jsPool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(javascript.GetLanguage())
			return sp
		}
		p.pyPool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(python.GetLanguage())
			return sp
		}
	})
}

// Parse parses one source file into the uniform code IR.
func (p *Parser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	p.initPools()

	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath}

	var pool *sync.Pool
	var lang string
	format := detect.Detect(in.Path, in.Content)
	res.Format = format
	switch format.Name {
	case "typescript":
		pool, lang = &p.tsPool, "typescript"
	case "tsx", "jsx":
		pool, lang = &p.tsxPool, "typescript"
	case "javascript":
		pool, lang = &p.jsPool, "javascript"
	case "python":
		pool, lang = &p.pyPool, "python"
	default:
		res.Err = fmt.Errorf("code parser: unsupported format %q for %s", format.Name, in.Path)
		return res
	}

	sp := pool.Get().(*sitter.Parser)
	defer pool.Put(sp)

	tree, err := sp.ParseCtx(ctx, nil, in.Content)
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", in.Path, err)
		return res
	}
	defer tree.Close()

	var cp *parser.CodeParse
	switch lang {
	case "typescript", "javascript":
		cp = extractTypeScript(tree.RootNode(), in.Content, in.AbsPath, lang)
	case "python":
		cp = extractPython(tree.RootNode(), in.Content, in.AbsPath)
	}
	res.Code = cp
	return res
}

// ParseScript runs the TS/JS extractor over an embedded script block
// (Vue/Svelte/Astro), offsetting line numbers so scopes address positions in
// the containing file.
func (p *Parser) ParseScript(ctx context.Context, content []byte, absPath, lang string, lineOffset int) (*parser.CodeParse, error) {
	p.initPools()

	pool := &p.jsPool
	grammar := "javascript"
	if lang == "ts" || lang == "typescript" {
		pool = &p.tsPool
		grammar = "typescript"
	}

	sp := pool.Get().(*sitter.Parser)
	defer pool.Put(sp)

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse embedded script: %w", err)
	}
	defer tree.Close()

	cp := extractTypeScript(tree.RootNode(), content, absPath, grammar)
	if lineOffset != 0 {
		for _, s := range cp.Scopes {
			s.StartLine += lineOffset
			s.EndLine += lineOffset
		}
		for i := range cp.Imports {
			cp.Imports[i].Line += lineOffset
		}
		for i := range cp.References {
			cp.References[i].Line += lineOffset
		}
	}
	return cp, nil
}

// genericParser handles formats without a grammar: it yields an empty code
// parse so the builder still emits a File node.
type genericParser struct{}

func (g *genericParser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	return &parser.Result{
		Path:    in.Path,
		AbsPath: in.AbsPath,
		Format:  detect.Detect(in.Path, in.Content),
		Code:    &parser.CodeParse{Language: "text"},
	}
}

// --- shared helpers ---

func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// contextWindow returns the source line of a node plus one line either side.
func contextWindow(src []byte, line int) string {
	lines := strings.Split(string(src), "\n")
	lo := line - 2
	if lo < 0 {
		lo = 0
	}
	hi := line + 1
	if hi > len(lines) {
		hi = len(lines)
	}
	return strings.Join(lines[lo:hi], "\n")
}

// firstLine trims a scope's source to its first line, for compact signatures.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// localSpecifier reports whether a module specifier points inside the
// project: relative and absolute paths, plus the fixed "@/" and "~/" alias
// prefixes. No alias configuration is consulted here, so any other aliased
// specifier counts as a bare specifier. Bare specifiers are external packages.
func localSpecifier(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") ||
		strings.HasPrefix(spec, "@/") || strings.HasPrefix(spec, "~/")
}
