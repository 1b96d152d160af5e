package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

// Edge type names emitted by the resolver. String values match the graph
// store's edge vocabulary.
const (
	EdgeHasParent    = "HAS_PARENT"
	EdgeConsumes     = "CONSUMES"
	EdgeInheritsFrom = "INHERITS_FROM"
	EdgeImplements   = "IMPLEMENTS"
)

// Record is one prior-graph scope identity: name, defining file, kind, and
// the UUID it held.
type Record struct {
	Name string
	File string
	Kind string
	UUID string
}

// Edge is a derived relationship between two scope UUIDs.
type Edge struct {
	Type       string
	From       string
	To         string
	Properties map[string]any
}

// Key is the dedup identity of an edge within a batch.
func (e Edge) Key() string {
	return e.Type + "|" + e.From + "|" + e.To
}

// candidate is one known holder of a name.
type candidate struct {
	uuid string
	file string
	kind string
}

// Resolution is the output of a resolve pass: every scope's UUID plus the
// derived edges. All state is request-scoped and discarded with it.
type Resolution struct {
	// UUIDs indexes scope pointers from the input batch.
	UUIDs map[*parser.Scope]string
	Edges []Edge
}

// Resolver derives scope identities and cross-scope edges for one batch.
type Resolver struct {
	imports  *ImportResolver
	existing map[string][]Record
	logger   *logrus.Logger

	index    map[string][]candidate // global name index: batch ∪ existing
	uuids    map[*parser.Scope]string
	edges    []Edge
	edgeSeen map[string]int // edge key -> index into edges
}

// New creates a resolver. existing is the prior-graph UUID mapping
// (name → candidates) supplied by the metadata preserver; it may be nil.
func New(imports *ImportResolver, existing map[string][]Record, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		imports:  imports,
		existing: existing,
		logger:   logger,
	}
}

// Resolve assigns UUIDs and derives HAS_PARENT, CONSUMES, INHERITS_FROM and
// IMPLEMENTS edges across the batch. files maps absolute path → code parse.
// Duplicate UUIDs within one batch are a programming error and fail the
// whole batch.
func (r *Resolver) Resolve(files map[string]*parser.CodeParse) (*Resolution, error) {
	r.index = make(map[string][]candidate)
	r.uuids = make(map[*parser.Scope]string)
	r.edges = nil
	r.edgeSeen = make(map[string]int)

	if err := r.assignUUIDs(files); err != nil {
		return nil, err
	}
	r.buildIndex(files)
	r.linkParents(files)
	r.explicitInheritance(files)
	r.localReferences(files)
	r.importReferences(files)
	r.classMembership(files)
	r.heuristicInheritance(files)

	return &Resolution{UUIDs: r.uuids, Edges: r.edges}, nil
}

// assignUUIDs computes each scope's deterministic UUID, preferring the prior
// graph's UUID when name, file and kind all match an existing record.
func (r *Resolver) assignUUIDs(files map[string]*parser.CodeParse) error {
	seen := make(map[string]*parser.Scope)
	var duplicates []string

	for file, cp := range files {
		for _, s := range cp.Scopes {
			uuid := ""
			for _, rec := range r.existing[s.Name] {
				if rec.File == file && rec.Kind == s.Kind {
					uuid = rec.UUID
					break
				}
			}
			if uuid == "" {
				sigHash := ids.SignatureHash(s.ParentName, s.Signature, s.Name, s.Kind, s.Source, s.StartLine)
				uuid = ids.ScopeUUID(file, s.Name, s.Kind, sigHash)
			}
			if prior, dup := seen[uuid]; dup && prior != s {
				duplicates = append(duplicates, fmt.Sprintf("%s (%s:%d)", s.Name, file, s.StartLine))
				continue
			}
			seen[uuid] = s
			r.uuids[s] = uuid
		}
	}

	if len(duplicates) > 0 {
		return fmt.Errorf("duplicate scope UUIDs in batch: %s", strings.Join(duplicates, ", "))
	}
	return nil
}

// buildIndex unions the batch's scopes with the existing mapping into the
// global name index used by every edge-derivation step.
func (r *Resolver) buildIndex(files map[string]*parser.CodeParse) {
	for file, cp := range files {
		for _, s := range cp.Scopes {
			r.index[s.Name] = append(r.index[s.Name], candidate{
				uuid: r.uuids[s], file: file, kind: s.Kind,
			})
		}
	}
	for name, recs := range r.existing {
		for _, rec := range recs {
			if r.holdsUUID(name, rec.UUID) {
				continue
			}
			r.index[name] = append(r.index[name], candidate{
				uuid: rec.UUID, file: rec.File, kind: rec.Kind,
			})
		}
	}
}

func (r *Resolver) holdsUUID(name, uuid string) bool {
	for _, c := range r.index[name] {
		if c.uuid == uuid {
			return true
		}
	}
	return false
}

// addEdge appends an edge unless an identical (type, from, to) triple is
// already in the batch.
func (r *Resolver) addEdge(e Edge) {
	if e.From == "" || e.To == "" || e.From == e.To {
		return
	}
	if _, dup := r.edgeSeen[e.Key()]; dup {
		return
	}
	r.edgeSeen[e.Key()] = len(r.edges)
	r.edges = append(r.edges, e)
}

// hasEdge checks for an existing (type, from, to) triple.
func (r *Resolver) hasEdge(edgeType, from, to string) bool {
	_, ok := r.edgeSeen[Edge{Type: edgeType, From: from, To: to}.Key()]
	return ok
}

// linkParents emits HAS_PARENT edges to same-file parents. A missing parent
// stays unresolved; the name is retained on the scope node itself.
func (r *Resolver) linkParents(files map[string]*parser.CodeParse) {
	for _, cp := range files {
		byName := scopesByName(cp)
		for _, s := range cp.Scopes {
			if s.ParentName == "" {
				continue
			}
			parent, ok := byName[s.ParentName]
			if !ok {
				continue
			}
			r.addEdge(Edge{
				Type: EdgeHasParent,
				From: r.uuids[s],
				To:   r.uuids[parent],
			})
		}
	}
}

// explicitInheritance emits INHERITS_FROM / IMPLEMENTS from parser heritage
// clauses, marked {explicit: true}. Targets resolve same-file first, then
// through imports with re-export chasing, then by unique global candidate.
func (r *Resolver) explicitInheritance(files map[string]*parser.CodeParse) {
	for file, cp := range files {
		byName := scopesByName(cp)
		for _, s := range cp.Scopes {
			for _, h := range s.Heritage {
				targetUUID := r.resolveHeritageTarget(h.Name, file, cp, byName)
				if targetUUID == "" {
					continue
				}
				edgeType := EdgeInheritsFrom
				if h.Clause == "implements" {
					edgeType = EdgeImplements
				}
				r.addEdge(Edge{
					Type: edgeType,
					From: r.uuids[s],
					To:   targetUUID,
					Properties: map[string]any{
						"explicit": true,
						"clause":   h.Clause,
					},
				})
			}
		}
	}
}

func (r *Resolver) resolveHeritageTarget(name, file string, cp *parser.CodeParse, byName map[string]*parser.Scope) string {
	// Qualified bases (ns.Base) resolve by their last segment.
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if target, ok := byName[name]; ok {
		return r.uuids[target]
	}
	if uuid := r.resolveThroughImports(name, file, cp); uuid != "" {
		return uuid
	}
	// Unique global candidate of a type-like kind.
	var match string
	for _, c := range r.index[name] {
		if c.kind == parser.KindClass || c.kind == parser.KindInterface || c.kind == parser.KindType {
			if match != "" && match != c.uuid {
				return "" // ambiguous, leave unresolved
			}
			match = c.uuid
		}
	}
	return match
}

// localReferences emits CONSUMES for identifier references classified as
// local_scope, restricted to candidates in the same file.
func (r *Resolver) localReferences(files map[string]*parser.CodeParse) {
	for file, cp := range files {
		byName := scopesByName(cp)
		for _, ref := range cp.References {
			if ref.Kind != parser.RefLocalScope {
				continue
			}
			from, ok := byName[ref.FromScope]
			if !ok {
				continue
			}
			var toUUID string
			for _, c := range r.index[ref.Identifier] {
				if c.file == file {
					toUUID = c.uuid
					break
				}
			}
			if toUUID == "" {
				continue
			}
			if r.inheritanceExists(r.uuids[from], toUUID) {
				continue
			}
			r.addEdge(Edge{
				Type: EdgeConsumes,
				From: r.uuids[from],
				To:   toUUID,
				Properties: map[string]any{
					"identifier": ref.Identifier,
					"context":    ref.Context,
				},
			})
		}
	}
}

// importReferences resolves import-kind references to their defining file
// and emits CONSUMES to the matching scope there.
func (r *Resolver) importReferences(files map[string]*parser.CodeParse) {
	for file, cp := range files {
		byName := scopesByName(cp)
		for _, ref := range cp.References {
			if ref.Kind != parser.RefImport {
				continue
			}
			from, ok := byName[ref.FromScope]
			if !ok {
				continue
			}
			toUUID := r.resolveThroughImports(ref.Identifier, file, cp)
			if toUUID == "" {
				continue
			}
			if r.inheritanceExists(r.uuids[from], toUUID) {
				continue
			}
			r.addEdge(Edge{
				Type: EdgeConsumes,
				From: r.uuids[from],
				To:   toUUID,
				Properties: map[string]any{
					"identifier": ref.Identifier,
					"context":    ref.Context,
				},
			})
		}
	}
}

// resolveThroughImports finds the import declaring a local binding, resolves
// its specifier, chases re-exports, and picks the candidate defined in the
// final file. Ties inside one file prefer value kinds over type kinds.
func (r *Resolver) resolveThroughImports(binding, file string, cp *parser.CodeParse) string {
	var imp *parser.Import
	for i := range cp.Imports {
		local := cp.Imports[i].Alias
		if local == "" {
			local = cp.Imports[i].Symbol
		}
		if local == binding && cp.Imports[i].IsLocal {
			imp = &cp.Imports[i]
			break
		}
	}
	if imp == nil || r.imports == nil {
		return ""
	}

	resolved, ok := r.imports.Resolve(imp.Source, file)
	if !ok {
		return ""
	}

	symbol := imp.Symbol
	if symbol == "" || symbol == "default" || symbol == "*" {
		symbol = binding
	}
	defining := r.imports.ChaseReexports(resolved, symbol)

	return r.pickCandidate(binding, symbol, defining)
}

// valueKinds beat type kinds when several candidates share the defining file.
var valueKinds = map[string]bool{
	parser.KindFunction: true,
	parser.KindConstant: true,
	parser.KindClass:    true,
	parser.KindMethod:   true,
}

func (r *Resolver) pickCandidate(binding, symbol, file string) string {
	names := []string{symbol}
	if binding != symbol {
		names = append(names, binding)
	}
	for _, name := range names {
		var typed string
		for _, c := range r.index[name] {
			if c.file != file {
				continue
			}
			if valueKinds[c.kind] {
				return c.uuid
			}
			if typed == "" {
				typed = c.uuid
			}
		}
		if typed != "" {
			return typed
		}
	}
	return ""
}

// classMembership emits CONSUMES from each class to its same-file members.
func (r *Resolver) classMembership(files map[string]*parser.CodeParse) {
	for _, cp := range files {
		for _, s := range cp.Scopes {
			if s.Kind != parser.KindClass {
				continue
			}
			for _, member := range cp.Scopes {
				if member.ParentName != s.Name || member == s {
					continue
				}
				r.addEdge(Edge{
					Type: EdgeConsumes,
					From: r.uuids[s],
					To:   r.uuids[member],
					Properties: map[string]any{
						"membership": true,
					},
				})
			}
		}
	}
}

var pythonClassLineRe = regexp.MustCompile(`^class\s+\w+\s*\(`)

// heuristicInheritance upgrades CONSUMES edges between two classes to
// INHERITS_FROM {explicit: false} when the use-site context carries an
// extends token, the signature matches, or a Python class line names the
// target as a base. Runs strictly after the explicit pass; a pair that
// already has an inheritance edge is untouched.
func (r *Resolver) heuristicInheritance(files map[string]*parser.CodeParse) {
	kindByUUID := make(map[string]string, len(r.uuids))
	scopeByUUID := make(map[string]*parser.Scope, len(r.uuids))
	for s, uuid := range r.uuids {
		kindByUUID[uuid] = s.Kind
		scopeByUUID[uuid] = s
	}
	nameByUUID := func(uuid string) string {
		if s, ok := scopeByUUID[uuid]; ok {
			return s.Name
		}
		return ""
	}

	for i := range r.edges {
		e := &r.edges[i]
		if e.Type != EdgeConsumes {
			continue
		}
		if e.Properties != nil && e.Properties["membership"] == true {
			continue
		}
		if kindByUUID[e.From] != parser.KindClass || kindByUUID[e.To] != parser.KindClass {
			continue
		}
		if r.inheritanceExists(e.From, e.To) {
			continue
		}

		src := scopeByUUID[e.From]
		targetName := nameByUUID(e.To)
		if src == nil || targetName == "" {
			continue
		}

		context := ""
		if e.Properties != nil {
			if c, ok := e.Properties["context"].(string); ok {
				context = c
			}
		}

		fires := strings.Contains(context, "extends")
		if !fires {
			sigRe := regexp.MustCompile(`extends\s+` + regexp.QuoteMeta(targetName) + `\b`)
			fires = sigRe.MatchString(src.Signature)
		}
		if !fires && strings.HasSuffix(src.FilePath, ".py") {
			first := strings.SplitN(src.Source, "\n", 2)[0]
			fires = pythonClassLineRe.MatchString(strings.TrimSpace(first)) &&
				strings.Contains(first, targetName)
		}
		if !fires {
			continue
		}

		delete(r.edgeSeen, e.Key())
		e.Type = EdgeInheritsFrom
		e.Properties = map[string]any{"explicit": false}
		r.edgeSeen[e.Key()] = i
	}
}

// inheritanceExists reports an INHERITS_FROM or IMPLEMENTS edge between two
// scopes, in which case CONSUMES for the same pair is suppressed.
func (r *Resolver) inheritanceExists(from, to string) bool {
	return r.hasEdge(EdgeInheritsFrom, from, to) || r.hasEdge(EdgeImplements, from, to)
}

// scopesByName indexes a file's scopes, first declaration wins.
func scopesByName(cp *parser.CodeParse) map[string]*parser.Scope {
	byName := make(map[string]*parser.Scope, len(cp.Scopes))
	for _, s := range cp.Scopes {
		if _, exists := byName[s.Name]; !exists {
			byName[s.Name] = s
		}
	}
	return byName
}
