package web

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/parser/code"
)

// HTMLParser tokenizes HTML and Astro pages, collecting script/style
// presence, linked assets and used component tags. Astro frontmatter is
// delegated to the TypeScript extractor.
type HTMLParser struct {
	code *code.Parser
}

// NewHTMLParser creates the HTML/Astro parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{code: code.NewParser()}
}

func (p *HTMLParser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	format := detect.Detect(in.Path, in.Content)
	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath, Format: format}

	doc := &parser.WebDocument{
		ComponentName: componentName(in.Path),
		Hash:          ids.ShortHash(in.Content),
	}

	content := in.Content
	if format.Name == "astro" {
		frontmatter, rest, offset := splitAstroFrontmatter(content)
		if len(frontmatter) > 0 {
			doc.HasScript = true
			doc.ScriptLang = "ts"
			cp, err := p.code.ParseScript(ctx, frontmatter, in.AbsPath, "ts", offset)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("astro frontmatter parse: %v", err))
			} else {
				doc.Script = cp
				doc.Imports = append(doc.Imports, cp.Imports...)
			}
		}
		content = rest
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		tag := token.Data
		switch tag {
		case "script":
			doc.HasScript = true
			if src := attr(token, "src"); src != "" {
				doc.AssetRefs = append(doc.AssetRefs, src)
			}
		case "style":
			doc.HasStyle = true
		case "link":
			if attr(token, "rel") == "stylesheet" {
				doc.HasStyle = true
			}
			if href := attr(token, "href"); href != "" {
				doc.AssetRefs = append(doc.AssetRefs, href)
			}
		case "img", "source", "video", "audio":
			if src := attr(token, "src"); src != "" {
				doc.AssetRefs = append(doc.AssetRefs, src)
			}
		default:
			doc.HasTemplate = true
			if isComponentTag(tag) || strings.Contains(tag, "-") {
				if !htmlVoidOrBuiltin(tag) {
					doc.UsedComponents = mergeComponents(doc.UsedComponents, []string{tag})
				}
			}
		}
	}

	res.Web = doc
	return res
}

func attr(t html.Token, name string) string {
	for _, a := range t.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// splitAstroFrontmatter separates the leading --- fenced block from the
// markup, returning the frontmatter, the remainder, and the line offset of
// the frontmatter body.
func splitAstroFrontmatter(content []byte) (frontmatter, rest []byte, offset int) {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, content, 0
	}
	lead := len(content) - len(trimmed)
	body := trimmed[3:]
	end := bytes.Index(body, []byte("\n---"))
	if end < 0 {
		return nil, content, 0
	}
	frontmatter = body[:end]
	restStart := lead + 3 + end + len("\n---")
	offset = bytes.Count(content[:lead+3], []byte("\n"))
	return frontmatter, content[restStart:], offset
}
