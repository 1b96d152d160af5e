package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/resolver"

	// Per-format parsers register themselves on import.
	_ "github.com/rohankatakam/codegraph/internal/parser/code"
	_ "github.com/rohankatakam/codegraph/internal/parser/data"
	_ "github.com/rohankatakam/codegraph/internal/parser/document"
	_ "github.com/rohankatakam/codegraph/internal/parser/markdown"
	_ "github.com/rohankatakam/codegraph/internal/parser/media"
	_ "github.com/rohankatakam/codegraph/internal/parser/web"
)

// DefaultParseConcurrency bounds the parallel parse phase.
const DefaultParseConcurrency = 10

// BuildOptions parameterize one build. The existing UUID mapping is
// request-scoped: it lives for exactly one Build call and is never shared
// across projects.
type BuildOptions struct {
	ProjectID   string
	ProjectName string
	GitRemote   string
	Existing    map[string][]resolver.Record
	Aliases     resolver.AliasConfig
	ParserOpts  parser.Options
	Concurrency int
}

// Builder turns a file set into a Graph. One Builder may serve many builds;
// all per-build state is local to the call.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{logger: logger}
}

// composer accumulates one build's nodes and edges with dedup maps.
type composer struct {
	graph     *Graph
	nodeSeen  map[string]bool
	edgeSeen  map[string]bool
	libSeen   map[string]string // library name -> node uuid
	urlSeen   map[string]string // url -> node uuid
	dirSeen   map[string]bool
	projectID string
}

func newComposer(projectID string) *composer {
	return &composer{
		graph:     &Graph{ProjectID: projectID},
		nodeSeen:  map[string]bool{},
		edgeSeen:  map[string]bool{},
		libSeen:   map[string]string{},
		urlSeen:   map[string]string{},
		dirSeen:   map[string]bool{},
		projectID: projectID,
	}
}

func (c *composer) addNode(n Node) {
	if n.UUID == "" || c.nodeSeen[n.UUID] {
		return
	}
	c.nodeSeen[n.UUID] = true
	c.graph.Nodes = append(c.graph.Nodes, n)

	// Every non-Project node belongs to its project. The reserved orphan id
	// never gets a Project node, but the edge still records membership.
	if n.Label != LabelProject {
		c.addEdge(Edge{Type: EdgeBelongsTo, From: n.UUID, To: c.projectID})
	}
}

func (c *composer) addEdge(e Edge) {
	if e.From == "" || e.To == "" {
		return
	}
	if c.edgeSeen[e.Key()] {
		return
	}
	c.edgeSeen[e.Key()] = true
	c.graph.Edges = append(c.graph.Edges, e)
}

// library returns the deduped ExternalLibrary node uuid for a package name.
func (c *composer) library(name, registry string) string {
	if uuid, ok := c.libSeen[name]; ok {
		return uuid
	}
	uuid := ids.LibID(name)
	c.libSeen[name] = uuid
	c.addNode(Node{
		UUID:  uuid,
		Label: LabelExternalLibrary,
		Properties: map[string]any{
			"name":     name,
			"registry": registry,
		},
	})
	return uuid
}

// url returns the deduped ExternalURL node uuid.
func (c *composer) url(raw string) string {
	if uuid, ok := c.urlSeen[raw]; ok {
		return uuid
	}
	uuid := ids.URLID(raw)
	c.urlSeen[raw] = uuid
	c.addNode(Node{
		UUID:  uuid,
		Label: LabelExternalURL,
		Properties: map[string]any{
			"url":    raw,
			"domain": urlDomain(raw),
		},
	})
	return uuid
}

func urlDomain(raw string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// Build parses every include file under root with bounded concurrency,
// resolves symbols, and composes the batch graph.
func (b *Builder) Build(ctx context.Context, root string, include []string, opts BuildOptions) (*Graph, *BuildMetadata, error) {
	start := time.Now()
	meta := &BuildMetadata{}

	if opts.ProjectID == "" {
		opts.ProjectID = ids.OrphanProjectID
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultParseConcurrency
	}

	// Parse phase: bounded parallelism, one slot per file.
	results := make([]*parser.Result, len(include))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var mu sync.Mutex
	rawHashes := make(map[string]string, len(include))

	for i, rel := range include {
		g.Go(func() error {
			abs := filepath.Join(root, rel)
			content, err := os.ReadFile(abs)
			if err != nil {
				mu.Lock()
				meta.Warnings = append(meta.Warnings, fmt.Sprintf("read %s: %v", rel, err))
				mu.Unlock()
				return nil
			}

			format := detect.Detect(abs, content)
			p, ok := parser.Get(format.ParserID)
			if !ok {
				p, _ = parser.Get(detect.ParserGeneric)
			}
			if p == nil {
				return nil
			}
			res := p.Parse(gctx, parser.Input{
				Path:    rel,
				AbsPath: abs,
				Content: content,
				Options: opts.ParserOpts,
			})

			mu.Lock()
			rawHashes[abs] = ids.RawContentHash(content)
			if res.Err != nil {
				// ParseFailure: log, emit only the File node, keep going.
				b.logger.WithError(res.Err).WithField("file", rel).Warn("parse failed")
				meta.Warnings = append(meta.Warnings, res.Err.Error())
				results[i] = &parser.Result{Path: rel, AbsPath: abs, Format: format}
			} else {
				meta.Warnings = append(meta.Warnings, res.Warnings...)
				results[i] = res
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, meta, err
	}

	c := newComposer(opts.ProjectID)

	// A single Project node per batch, unless the batch is orphan work.
	if opts.ProjectID != ids.OrphanProjectID {
		c.addNode(Node{
			UUID:  opts.ProjectID,
			Label: LabelProject,
			Properties: map[string]any{
				"name":      opts.ProjectName,
				"gitRemote": opts.GitRemote,
				"rootPath":  root,
				"indexedAt": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	// Collect the batch's code parses (including embedded component
	// scripts) for one resolver pass.
	codeFiles := make(map[string]*parser.CodeParse)
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Code != nil {
			codeFiles[res.AbsPath] = res.Code
		}
		if res.Web != nil && res.Web.Script != nil {
			codeFiles[res.AbsPath] = res.Web.Script
		}
	}

	ir := resolver.NewImportResolver(opts.Aliases)
	resolution, err := resolver.New(ir, opts.Existing, b.logger).Resolve(codeFiles)
	if err != nil {
		// InvariantViolation: duplicate UUIDs fail the batch.
		return nil, meta, err
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		meta.FilesProcessed++
		b.composeFile(c, root, res, rawHashes[res.AbsPath], resolution)
	}
	b.composeEdges(c, resolution)

	meta.NodesGenerated = len(c.graph.Nodes)
	meta.RelationshipsGenerated = len(c.graph.Edges)
	meta.ParseTimeMs = time.Since(start).Milliseconds()
	return c.graph, meta, nil
}

// composeFile emits the File node, its directory chain, and the payload
// nodes for one parse result.
func (b *Builder) composeFile(c *composer, root string, res *parser.Result, rawHash string, resolution *resolver.Resolution) {
	fileUUID := ids.FileID(res.AbsPath)
	contentHash := b.contentHash(res, rawHash)

	var mtime string
	if info, err := os.Stat(res.AbsPath); err == nil {
		mtime = info.ModTime().UTC().Format(time.RFC3339)
	}

	c.addNode(Node{
		UUID:  fileUUID,
		Label: LabelFile,
		Properties: map[string]any{
			"path":           res.Path,
			"absolutePath":   res.AbsPath,
			"name":           filepath.Base(res.Path),
			"extension":      strings.TrimPrefix(filepath.Ext(res.Path), "."),
			"directory":      filepath.Dir(res.Path),
			"rawContentHash": rawHash,
			"contentHash":    contentHash,
			"mtime":          mtime,
			"category":       string(res.Format.Category),
			"format":         res.Format.Name,
		},
	})
	b.directoryChain(c, root, res.Path, fileUUID)

	switch {
	case res.Code != nil:
		b.composeScopes(c, res, res.Code, fileUUID, resolution)
		b.composeExternalImports(c, res, res.Code, fileUUID, resolution)
	case res.Web != nil:
		b.composeWeb(c, res, fileUUID, resolution)
	case res.Style != nil:
		b.composeStylesheet(c, res, fileUUID)
	case res.Markdown != nil:
		b.composeMarkdown(c, root, res, fileUUID)
	case res.Data != nil:
		b.composeData(c, root, res, fileUUID)
	case res.Media != nil:
		b.composeMedia(c, res, fileUUID)
	case res.Document != nil:
		b.composeDocument(c, res, fileUUID)
	}
}

// contentHash derives the semantic hash from the parser payload; the raw
// byte hash backs formats without a semantic parse.
func (b *Builder) contentHash(res *parser.Result, rawHash string) string {
	switch {
	case res.Code != nil:
		var sb strings.Builder
		for _, s := range res.Code.Scopes {
			sb.WriteString(s.Signature)
			sb.WriteByte(0)
			sb.WriteString(s.Source)
			sb.WriteByte(0)
		}
		for _, imp := range res.Code.Imports {
			sb.WriteString(imp.Source + ":" + imp.Symbol)
			sb.WriteByte(0)
		}
		return ids.ShortHashString(sb.String())
	case res.Web != nil:
		return res.Web.Hash
	case res.Style != nil:
		return res.Style.Hash
	case res.Markdown != nil:
		return res.Markdown.Hash
	case res.Data != nil:
		return res.Data.Hash
	case res.Media != nil:
		return res.Media.Hash
	case res.Document != nil:
		return res.Document.Hash
	default:
		return ids.ShortHashString(rawHash)
	}
}

// directoryChain ensures Directory nodes exist from the file up to the
// project root, linked by IN_DIRECTORY and PARENT_OF.
func (b *Builder) directoryChain(c *composer, root, relPath, fileUUID string) {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == "/" {
		return
	}

	childUUID := fileUUID
	childEdge := EdgeInDirectory
	depth := strings.Count(dir, string(filepath.Separator)) + 1

	for dir != "." && dir != "/" && dir != "" {
		absDir := filepath.Join(root, dir)
		dirUUID := ids.DirID(absDir)
		if !c.dirSeen[absDir] {
			c.dirSeen[absDir] = true
			c.addNode(Node{
				UUID:  dirUUID,
				Label: LabelDirectory,
				Properties: map[string]any{
					"path":         dir,
					"absolutePath": absDir,
					"depth":        depth,
				},
			})
		}
		if childEdge == EdgeInDirectory {
			c.addEdge(Edge{Type: EdgeInDirectory, From: childUUID, To: dirUUID})
		} else {
			c.addEdge(Edge{Type: EdgeParentOf, From: dirUUID, To: childUUID})
		}
		childUUID = dirUUID
		childEdge = EdgeParentOf
		depth--
		dir = filepath.Dir(dir)
	}
}

// composeScopes emits Scope nodes with their resolved UUIDs.
func (b *Builder) composeScopes(c *composer, res *parser.Result, cp *parser.CodeParse, fileUUID string, resolution *resolver.Resolution) {
	for _, s := range cp.Scopes {
		uuid := resolution.UUIDs[s]
		if uuid == "" {
			continue
		}
		props := map[string]any{
			"name":         s.Name,
			"kind":         s.Kind,
			"path":         res.Path,
			"absolutePath": s.FilePath,
			"startLine":    s.StartLine,
			"endLine":      s.EndLine,
			"content":      s.Source,
			"signature":    s.Signature,
			"parentName":   s.ParentName,
			"depth":        s.Depth,
			"contentHash":  ids.ShortHashString(s.Source + "\x00" + s.Docstring),
		}
		if s.ReturnType != "" {
			props["returnType"] = s.ReturnType
		}
		if len(s.Parameters) > 0 {
			params := make([]string, len(s.Parameters))
			for i, p := range s.Parameters {
				if p.Type != "" {
					params[i] = p.Name + ": " + p.Type
				} else {
					params[i] = p.Name
				}
			}
			props["parameters"] = params
		}
		if len(s.Modifiers) > 0 {
			props["modifiers"] = s.Modifiers
		}
		if s.Generics != "" {
			props["generics"] = s.Generics
		}
		if len(s.Decorators) > 0 {
			props["decorators"] = s.Decorators
		}
		if len(s.EnumMembers) > 0 {
			props["members"] = s.EnumMembers
		}
		if s.Docstring != "" {
			props["docstring"] = s.Docstring
		}
		if len(s.Heritage) > 0 {
			var her []string
			for _, h := range s.Heritage {
				her = append(her, h.Clause+" "+h.Name)
			}
			props["heritage"] = her
		}

		c.addNode(Node{UUID: uuid, Label: LabelScope, Properties: props})
		c.addEdge(Edge{Type: EdgeDefinedIn, From: uuid, To: fileUUID})
	}
}

// composeExternalImports emits ExternalLibrary nodes and USES_LIBRARY edges
// from the scopes that actually reference each imported binding.
func (b *Builder) composeExternalImports(c *composer, res *parser.Result, cp *parser.CodeParse, fileUUID string, resolution *resolver.Resolution) {
	external := make(map[string]parser.Import) // local binding -> import
	for _, imp := range cp.Imports {
		if imp.IsLocal || imp.Source == "" {
			continue
		}
		local := imp.Alias
		if local == "" {
			local = imp.Symbol
		}
		if local == "" || local == "*" || local == "default" {
			local = imp.Source
		}
		external[local] = imp
	}
	if len(external) == 0 {
		return
	}

	byName := make(map[string]*parser.Scope)
	for _, s := range cp.Scopes {
		if _, ok := byName[s.Name]; !ok {
			byName[s.Name] = s
		}
	}

	registry := registryForLanguage(cp.Language)
	linked := map[string]bool{}
	for _, ref := range cp.References {
		if ref.Kind != parser.RefImport {
			continue
		}
		imp, ok := external[ref.Identifier]
		if !ok {
			continue
		}
		from, ok := byName[ref.FromScope]
		if !ok {
			continue
		}
		libUUID := c.library(packageName(imp.Source), registry)
		c.addEdge(Edge{
			Type: EdgeUsesLibrary,
			From: resolution.UUIDs[from],
			To:   libUUID,
			Properties: map[string]any{
				"symbol": imp.Symbol,
			},
		})
		linked[imp.Source] = true
	}

	// Imports never referenced from a scope still link at file level so the
	// dependency surface stays complete.
	sources := make([]string, 0, len(external))
	for _, imp := range external {
		sources = append(sources, imp.Source)
	}
	sort.Strings(sources)
	for _, src := range sources {
		if linked[src] {
			continue
		}
		libUUID := c.library(packageName(src), registry)
		c.addEdge(Edge{Type: EdgeUsesLibrary, From: fileUUID, To: libUUID})
		linked[src] = true
	}
}

// packageName trims a module specifier to its package root:
// "lodash/fp" -> "lodash", "@scope/pkg/sub" -> "@scope/pkg".
func packageName(specifier string) string {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func registryForLanguage(lang string) string {
	if lang == "python" {
		return "pypi"
	}
	return "npm"
}

// composeEdges converts the resolver's derived edges into graph edges.
func (b *Builder) composeEdges(c *composer, resolution *resolver.Resolution) {
	for _, e := range resolution.Edges {
		c.addEdge(Edge{Type: e.Type, From: e.From, To: e.To, Properties: e.Properties})
	}
}
