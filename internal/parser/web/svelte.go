package web

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/svelte"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/parser/code"
)

// SvelteParser walks a component with the tree-sitter svelte grammar: script
// and style elements are located structurally, component usage is read from
// element tag names, and the script body goes through the TypeScript
// extractor with a line offset.
type SvelteParser struct {
	code *code.Parser
	pool sync.Pool
	once sync.Once
}

// NewSvelteParser creates the Svelte parser.
func NewSvelteParser() *SvelteParser {
	return &SvelteParser{code: code.NewParser()}
}

func (p *SvelteParser) initPool() {
	p.once.Do(func() {
		p.pool.New = func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(svelte.GetLanguage())
			return sp
		}
	})
}

func (p *SvelteParser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	p.initPool()

	res := &parser.Result{
		Path:    in.Path,
		AbsPath: in.AbsPath,
		Format:  detect.Format{Category: detect.CategoryCode, Name: "svelte", ParserID: detect.ParserSvelte},
	}

	sp := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(sp)

	tree, err := sp.ParseCtx(ctx, nil, in.Content)
	if err != nil {
		res.Err = fmt.Errorf("parse svelte %s: %w", in.Path, err)
		return res
	}
	defer tree.Close()

	doc := &parser.WebDocument{
		ComponentName: componentName(in.Path),
		Hash:          ids.ShortHash(in.Content),
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "script_element":
			doc.HasScript = true
			lang := scriptLangAttr(n, in.Content)
			doc.ScriptLang = lang
			if raw := rawTextChild(n, in.Content); raw != "" {
				offset := scriptBodyLine(n)
				cp, perr := p.code.ParseScript(ctx, []byte(raw), in.AbsPath, lang, offset)
				if perr != nil {
					res.Warnings = append(res.Warnings, fmt.Sprintf("svelte script parse: %v", perr))
				} else {
					doc.Script = cp
					doc.Imports = append(doc.Imports, cp.Imports...)
				}
			}
		case "style_element":
			doc.HasStyle = true
		case "element":
			doc.HasTemplate = true
			if tag := elementTagName(n, in.Content); tag != "" {
				if isComponentTag(tag) {
					doc.UsedComponents = mergeComponents(doc.UsedComponents, []string{tag})
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	res.Web = doc
	return res
}

// scriptLangAttr reads the lang attribute off a script_element start tag.
func scriptLangAttr(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	if m := langAttrRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "js"
}

// rawTextChild returns the raw_text body of a script/style element.
func rawTextChild(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "raw_text" {
			return c.Content(src)
		}
	}
	return ""
}

// scriptBodyLine is the zero-based line where the script body starts.
func scriptBodyLine(n *sitter.Node) int {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "raw_text" {
			return int(c.StartPoint().Row)
		}
	}
	return int(n.StartPoint().Row)
}

// elementTagName digs the tag name out of an element's start tag.
func elementTagName(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "start_tag" || c.Type() == "self_closing_tag" {
			for j := 0; j < int(c.NamedChildCount()); j++ {
				t := c.NamedChild(j)
				if t.Type() == "tag_name" {
					return t.Content(src)
				}
			}
		}
	}
	return ""
}

func isComponentTag(tag string) bool {
	if tag == "" || htmlVoidOrBuiltin(tag) || strings.HasPrefix(tag, "svelte:") {
		return false
	}
	first := tag[0]
	return first >= 'A' && first <= 'Z'
}
