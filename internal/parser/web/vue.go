// Package web parses HTML/Astro pages, Vue and Svelte single-file
// components, and CSS/SCSS stylesheets.
package web

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/parser/code"
)

func init() {
	parser.Register(detect.ParserVue, func() parser.Parser { return NewVueParser() })
	parser.Register(detect.ParserSvelte, func() parser.Parser { return NewSvelteParser() })
	parser.Register(detect.ParserHTML, func() parser.Parser { return NewHTMLParser() })
	parser.Register(detect.ParserCSS, func() parser.Parser { return NewCSSParser() })
}

// VueParser splits a .vue single-file component into its template, script
// and style blocks, delegating the script body to the TypeScript extractor.
type VueParser struct {
	code *code.Parser
}

// NewVueParser creates the Vue SFC parser.
func NewVueParser() *VueParser {
	return &VueParser{code: code.NewParser()}
}

var (
	vueBlockRe = regexp.MustCompile(`(?s)<(template|script|style)([^>]*)>(.*?)</(?:template|script|style)>`)
	langAttrRe = regexp.MustCompile(`lang=["']([^"']+)["']`)
	// Component usage in templates: PascalCase or kebab-cased custom tags.
	componentTagRe = regexp.MustCompile(`<([A-Z][A-Za-z0-9]*|[a-z][a-z0-9]*(?:-[a-z0-9]+)+)[\s/>]`)
)

func (p *VueParser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	res := &parser.Result{
		Path:    in.Path,
		AbsPath: in.AbsPath,
		Format:  detect.Format{Category: detect.CategoryCode, Name: "vue", ParserID: detect.ParserVue},
	}

	doc := &parser.WebDocument{
		ComponentName: componentName(in.Path),
		Hash:          ids.ShortHash(in.Content),
	}

	text := string(in.Content)
	for _, m := range vueBlockRe.FindAllStringSubmatchIndex(text, -1) {
		tag := text[m[2]:m[3]]
		attrs := text[m[4]:m[5]]
		body := text[m[6]:m[7]]
		switch tag {
		case "template":
			doc.HasTemplate = true
			doc.UsedComponents = mergeComponents(doc.UsedComponents, scanComponents(body))
		case "script":
			doc.HasScript = true
			lang := "js"
			if lm := langAttrRe.FindStringSubmatch(attrs); lm != nil {
				lang = lm[1]
			}
			doc.ScriptLang = lang
			offset := strings.Count(text[:m[6]], "\n")
			cp, err := p.code.ParseScript(ctx, []byte(body), in.AbsPath, lang, offset)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("vue script parse: %v", err))
				continue
			}
			doc.Script = cp
			doc.Imports = append(doc.Imports, cp.Imports...)
		case "style":
			doc.HasStyle = true
		}
	}

	res.Web = doc
	return res
}

// componentName derives the component's name from its file base, preserving
// the author's casing.
func componentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// scanComponents finds custom component tags used in template markup.
func scanComponents(tmpl string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range componentTagRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if htmlVoidOrBuiltin(name) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func mergeComponents(existing, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range more {
		if !seen[c] {
			seen[c] = true
			existing = append(existing, c)
		}
	}
	return existing
}

// htmlVoidOrBuiltin filters framework builtins and kebab-ish standard tags
// out of the component list.
func htmlVoidOrBuiltin(tag string) bool {
	switch tag {
	case "template", "slot", "component", "transition", "keep-alive",
		"router-view", "router-link", "teleport", "suspense",
		"svelte-fragment", "annotation-xml", "color-profile",
		"font-face", "missing-glyph":
		return true
	}
	return false
}
