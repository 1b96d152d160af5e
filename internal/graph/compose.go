package graph

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/resolver"
)

// composeWeb emits the component/document node for HTML, Vue and Svelte
// files, plus embedded script scopes and library edges.
func (b *Builder) composeWeb(c *composer, res *parser.Result, fileUUID string, resolution *resolver.Resolution) {
	web := res.Web

	label := LabelWebDocument
	switch res.Format.Name {
	case "vue":
		label = LabelVueSFC
	case "svelte":
		label = LabelSvelteComponent
	}

	docUUID := ids.DocID(res.AbsPath)
	c.addNode(Node{
		UUID:  docUUID,
		Label: label,
		Properties: map[string]any{
			"componentName":  web.ComponentName,
			"path":           res.Path,
			"absolutePath":   res.AbsPath,
			"contentHash":    web.Hash,
			"hasTemplate":    web.HasTemplate,
			"hasScript":      web.HasScript,
			"hasStyle":       web.HasStyle,
			"scriptLang":     web.ScriptLang,
			"usedComponents": web.UsedComponents,
		},
	})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: docUUID, To: fileUUID})

	if web.Script != nil {
		b.composeScopes(c, res, web.Script, fileUUID, resolution)
		b.composeExternalImports(c, res, web.Script, fileUUID, resolution)
	} else {
		// Imports collected without a full script parse still surface
		// external dependencies.
		for _, imp := range web.Imports {
			if imp.IsLocal || imp.Source == "" {
				continue
			}
			libUUID := c.library(packageName(imp.Source), "npm")
			c.addEdge(Edge{Type: EdgeUsesLibrary, From: docUUID, To: libUUID, Properties: map[string]any{"symbol": imp.Symbol}})
		}
	}
}

// composeStylesheet emits the Stylesheet node.
func (b *Builder) composeStylesheet(c *composer, res *parser.Result, fileUUID string) {
	sheet := res.Style
	uuid := ids.DocID(res.AbsPath)
	c.addNode(Node{
		UUID:  uuid,
		Label: LabelStylesheet,
		Properties: map[string]any{
			"path":          res.Path,
			"absolutePath":  res.AbsPath,
			"contentHash":   sheet.Hash,
			"ruleCount":     sheet.RuleCount,
			"selectorCount": sheet.SelectorCount,
			"propertyCount": sheet.PropertyCount,
			"variables":     sheet.Variables,
			"imports":       sheet.ImportedURLs,
		},
	})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: uuid, To: fileUUID})

	for _, imported := range sheet.ImportedURLs {
		if strings.HasPrefix(imported, "http://") || strings.HasPrefix(imported, "https://") {
			c.addEdge(Edge{Type: EdgeLinksTo, From: uuid, To: c.url(imported)})
		}
	}
}

// composeMarkdown emits the document, its section tree, code blocks, and
// link/image reference edges.
func (b *Builder) composeMarkdown(c *composer, root string, res *parser.Result, fileUUID string) {
	md := res.Markdown
	docUUID := ids.DocID(res.AbsPath)
	c.addNode(Node{
		UUID:  docUUID,
		Label: LabelMarkdownDocument,
		Properties: map[string]any{
			"title":        md.Title,
			"path":         res.Path,
			"absolutePath": res.AbsPath,
			"contentHash":  md.Hash,
			"sectionCount": len(md.Sections),
		},
	})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: docUUID, To: fileUUID})

	sectionUUIDs := make(map[string]string, len(md.Sections))
	for _, s := range md.Sections {
		uuid := ids.SectionID(res.AbsPath, s.Slug)
		sectionUUIDs[s.Title] = uuid
		c.addNode(Node{
			UUID:  uuid,
			Label: LabelMarkdownSection,
			Properties: map[string]any{
				"title":        s.Title,
				"level":        s.Level,
				"slug":         s.Slug,
				"content":      s.OwnContent,
				"fullContent":  s.FullContent,
				"contentHash":  s.Hash,
				"parentTitle":  s.ParentTitle,
				"startLine":    s.StartLine,
				"endLine":      s.EndLine,
				"path":         res.Path,
				"absolutePath": res.AbsPath,
			},
		})
		c.addEdge(Edge{Type: EdgeHasSection, From: docUUID, To: uuid})
	}
	for _, s := range md.Sections {
		if s.ParentTitle == "" {
			continue
		}
		if parentUUID, ok := sectionUUIDs[s.ParentTitle]; ok {
			c.addEdge(Edge{Type: EdgeHasChild, From: parentUUID, To: sectionUUIDs[s.Title]})
		}
	}

	for i, cb := range md.CodeBlocks {
		uuid := ids.SectionID(res.AbsPath, "codeblock-"+cb.Hash)
		c.addNode(Node{
			UUID:  uuid,
			Label: LabelCodeBlock,
			Properties: map[string]any{
				"language":     cb.Language,
				"code":         cb.Code,
				"startLine":    cb.StartLine,
				"endLine":      cb.EndLine,
				"contentHash":  cb.Hash,
				"index":        i,
				"path":         res.Path,
				"absolutePath": res.AbsPath,
			},
		})
		c.addEdge(Edge{Type: EdgeContains, From: docUUID, To: uuid})
	}

	for _, link := range md.Links {
		if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
			c.addEdge(Edge{Type: EdgeLinksTo, From: docUUID, To: c.url(link)})
		}
	}
	for _, img := range md.ImageRefs {
		if target, ok := resolveLocalPath(root, res.AbsPath, img); ok {
			c.addEdge(Edge{Type: EdgeReferencesImage, From: docUUID, To: ids.FileID(target)})
		}
	}
}

// composeData emits the DataFile node, its section tree, and classified
// reference edges. Unresolvable references are dropped, never dangling.
func (b *Builder) composeData(c *composer, root string, res *parser.Result, fileUUID string) {
	df := res.Data
	dataUUID := ids.DataID(res.AbsPath)
	c.addNode(Node{
		UUID:  dataUUID,
		Label: LabelDataFile,
		Properties: map[string]any{
			"format":       df.Format,
			"path":         res.Path,
			"absolutePath": res.AbsPath,
			"contentHash":  df.Hash,
			"keyCount":     df.KeyCount,
		},
	})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: dataUUID, To: fileUUID})

	sectionUUIDs := make(map[string]string, len(df.Sections))
	for _, s := range df.Sections {
		uuid := ids.SectionID(res.AbsPath, s.Path)
		sectionUUIDs[s.Path] = uuid
		c.addNode(Node{
			UUID:  uuid,
			Label: LabelDataSection,
			Properties: map[string]any{
				"sectionPath":  s.Path,
				"key":          s.Key,
				"valueType":    s.ValueType,
				"depth":        s.Depth,
				"content":      s.Content,
				"parentPath":   s.ParentPath,
				"path":         res.Path,
				"absolutePath": res.AbsPath,
			},
		})
		if parentUUID, ok := sectionUUIDs[s.ParentPath]; ok && s.ParentPath != "" {
			c.addEdge(Edge{Type: EdgeHasChild, From: parentUUID, To: uuid})
		} else {
			c.addEdge(Edge{Type: EdgeHasSection, From: dataUUID, To: uuid})
		}
	}

	for _, ref := range df.References {
		switch ref.Kind {
		case parser.DataRefURL:
			c.addEdge(Edge{Type: EdgeLinksTo, From: dataUUID, To: c.url(ref.Value)})
		case parser.DataRefPackage:
			libUUID := c.library(ref.Symbol, "npm")
			c.addEdge(Edge{
				Type: EdgeUsesPackage,
				From: dataUUID,
				To:   libUUID,
				Properties: map[string]any{
					"version": ref.Value,
					"context": ref.ContextPath,
				},
			})
		case parser.DataRefImage:
			if target, ok := resolveLocalPath(root, res.AbsPath, ref.Value); ok {
				c.addEdge(Edge{Type: EdgeReferencesImage, From: dataUUID, To: ids.FileID(target)})
			}
		case parser.DataRefFile, parser.DataRefCode, parser.DataRefConfig:
			if target, ok := resolveLocalPath(root, res.AbsPath, ref.Value); ok {
				c.addEdge(Edge{
					Type:       EdgeReferences,
					From:       dataUUID,
					To:         ids.FileID(target),
					Properties: map[string]any{"kind": ref.Kind},
				})
			}
		case parser.DataRefDirectory:
			if target, ok := resolveLocalDir(root, res.AbsPath, ref.Value); ok {
				c.addEdge(Edge{
					Type:       EdgeReferences,
					From:       dataUUID,
					To:         ids.DirID(target),
					Properties: map[string]any{"kind": ref.Kind},
				})
			}
		}
	}
}

// composeMedia emits the ImageFile or ThreeDFile node.
func (b *Builder) composeMedia(c *composer, res *parser.Result, fileUUID string) {
	mf := res.Media
	label := LabelImageFile
	if mf.Category == "3d" {
		label = LabelThreeDFile
	}

	props := map[string]any{
		"format":       mf.Format,
		"category":     mf.Category,
		"path":         res.Path,
		"absolutePath": res.AbsPath,
		"sizeBytes":    mf.SizeBytes,
		"contentHash":  mf.Hash,
		"analyzed":     mf.Analyzed,
	}
	if mf.Width > 0 {
		props["width"] = mf.Width
		props["height"] = mf.Height
	}
	if mf.Category == "3d" {
		props["meshCount"] = mf.MeshCount
		props["materialCount"] = mf.MaterialCount
		props["nodeCount"] = mf.NodeCount
		if mf.GeneratorTag != "" {
			props["generator"] = mf.GeneratorTag
		}
	}
	if mf.VisionDescription != "" {
		props["visionDescription"] = mf.VisionDescription
	}

	uuid := ids.MediaID(res.AbsPath)
	c.addNode(Node{UUID: uuid, Label: label, Properties: props})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: uuid, To: fileUUID})
}

// composeDocument emits the DocumentFile node.
func (b *Builder) composeDocument(c *composer, res *parser.Result, fileUUID string) {
	df := res.Document
	props := map[string]any{
		"format":       df.Format,
		"path":         res.Path,
		"absolutePath": res.AbsPath,
		"contentHash":  df.Hash,
		"text":         df.Text,
	}
	if df.PageCount > 0 {
		props["pageCount"] = df.PageCount
	}
	if len(df.SheetNames) > 0 {
		props["sheetNames"] = df.SheetNames
	}
	if len(df.Headers) > 0 {
		props["headers"] = df.Headers
		props["rowCount"] = df.RowCount
	}
	if df.NeedsGeminiVision {
		props["needsGeminiVision"] = true
	}

	uuid := ids.DocID(res.AbsPath)
	c.addNode(Node{UUID: uuid, Label: LabelDocumentFile, Properties: props})
	c.addEdge(Edge{Type: EdgeDefinedIn, From: uuid, To: fileUUID})
}

// resolveLocalPath resolves a reference value against the referring file's
// directory (or the project root for root-relative values) and keeps it only
// when the target file exists.
func resolveLocalPath(root, fromAbs, value string) (string, bool) {
	if strings.Contains(value, "://") {
		return "", false
	}
	var candidate string
	if strings.HasPrefix(value, "/") {
		candidate = filepath.Join(root, value)
	} else {
		candidate = filepath.Join(filepath.Dir(fromAbs), value)
	}
	candidate = filepath.Clean(candidate)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}
	return "", false
}

// resolveLocalDir is resolveLocalPath for directory targets.
func resolveLocalDir(root, fromAbs, value string) (string, bool) {
	if strings.Contains(value, "://") {
		return "", false
	}
	var candidate string
	if strings.HasPrefix(value, "/") {
		candidate = filepath.Join(root, value)
	} else {
		candidate = filepath.Join(filepath.Dir(fromAbs), value)
	}
	candidate = filepath.Clean(candidate)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, true
	}
	return "", false
}
