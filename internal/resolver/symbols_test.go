package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/parser"
)

func classScope(name, file string, heritage ...parser.HeritageClause) *parser.Scope {
	return &parser.Scope{
		Name: name, Kind: parser.KindClass, FilePath: file,
		StartLine: 1, EndLine: 10,
		Source:    "class " + name + " {}",
		Signature: "class " + name,
		Heritage:  heritage,
	}
}

func methodScope(name, parent, file string) *parser.Scope {
	return &parser.Scope{
		Name: name, Kind: parser.KindMethod, FilePath: file,
		StartLine: 2, EndLine: 4,
		Source:     name + "() {}",
		Signature:  name + "()",
		ParentName: parent,
	}
}

func resolve(t *testing.T, files map[string]*parser.CodeParse, imports *ImportResolver, existing map[string][]Record) *Resolution {
	t.Helper()
	res, err := New(imports, existing, nil).Resolve(files)
	require.NoError(t, err)
	return res
}

func edgesOfType(res *Resolution, edgeType string) []Edge {
	var out []Edge
	for _, e := range res.Edges {
		if e.Type == edgeType {
			out = append(out, e)
		}
	}
	return out
}

func TestUUIDDeterminism(t *testing.T) {
	mk := func() map[string]*parser.CodeParse {
		return map[string]*parser.CodeParse{
			"/repo/a.ts": {Scopes: []*parser.Scope{classScope("A", "/repo/a.ts")}},
		}
	}
	a := resolve(t, mk(), nil, nil)
	b := resolve(t, mk(), nil, nil)

	var uuidA, uuidB string
	for _, u := range a.UUIDs {
		uuidA = u
	}
	for _, u := range b.UUIDs {
		uuidB = u
	}
	assert.Equal(t, uuidA, uuidB)
}

func TestUUIDStableUnderLineMotion(t *testing.T) {
	base := &parser.Scope{
		Name: "bar", Kind: parser.KindFunction, FilePath: "/repo/a.ts",
		StartLine: 10, EndLine: 12,
		Source: "function bar() {}", Signature: "function bar()",
	}
	moved := *base
	moved.StartLine, moved.EndLine = 120, 122

	a := resolve(t, map[string]*parser.CodeParse{"/repo/a.ts": {Scopes: []*parser.Scope{base}}}, nil, nil)
	b := resolve(t, map[string]*parser.CodeParse{"/repo/a.ts": {Scopes: []*parser.Scope{&moved}}}, nil, nil)
	assert.Equal(t, a.UUIDs[base], b.UUIDs[&moved])
}

func TestVariableUUIDMovesWithLine(t *testing.T) {
	mk := func(line int) *parser.Scope {
		return &parser.Scope{
			Name: "limit", Kind: parser.KindConstant, FilePath: "/repo/a.ts",
			StartLine: line, EndLine: line,
			Source: "const limit = 10",
		}
	}
	s1, s2 := mk(5), mk(50)
	a := resolve(t, map[string]*parser.CodeParse{"/repo/a.ts": {Scopes: []*parser.Scope{s1}}}, nil, nil)
	b := resolve(t, map[string]*parser.CodeParse{"/repo/a.ts": {Scopes: []*parser.Scope{s2}}}, nil, nil)
	assert.NotEqual(t, a.UUIDs[s1], b.UUIDs[s2])
}

func TestExistingUUIDReusedOnFileAndKindMatch(t *testing.T) {
	s := classScope("Widget", "/repo/w.ts")
	existing := map[string][]Record{
		"Widget": {
			{Name: "Widget", File: "/repo/other.ts", Kind: parser.KindClass, UUID: "scope:other"},
			{Name: "Widget", File: "/repo/w.ts", Kind: parser.KindClass, UUID: "scope:prior"},
		},
	}
	res := resolve(t, map[string]*parser.CodeParse{"/repo/w.ts": {Scopes: []*parser.Scope{s}}}, nil, existing)
	assert.Equal(t, "scope:prior", res.UUIDs[s])
}

func TestDuplicateUUIDFailsBatch(t *testing.T) {
	a := classScope("Dup", "/repo/a.ts")
	b := classScope("Dup", "/repo/a.ts")
	_, err := New(nil, nil, nil).Resolve(map[string]*parser.CodeParse{
		"/repo/a.ts": {Scopes: []*parser.Scope{a, b}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate scope UUIDs")
}

func TestParentLinking(t *testing.T) {
	cls := classScope("A", "/repo/a.ts")
	m := methodScope("foo", "A", "/repo/a.ts")
	orphan := methodScope("bar", "Missing", "/repo/a.ts")

	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/a.ts": {Scopes: []*parser.Scope{cls, m, orphan}},
	}, nil, nil)

	parents := edgesOfType(res, EdgeHasParent)
	require.Len(t, parents, 1)
	assert.Equal(t, res.UUIDs[m], parents[0].From)
	assert.Equal(t, res.UUIDs[cls], parents[0].To)
	// Unresolved parent name is retained on the scope, no dangling edge.
	assert.Equal(t, "Missing", orphan.ParentName)
}

func TestLocalReferenceConsumes(t *testing.T) {
	helper := &parser.Scope{
		Name: "helper", Kind: parser.KindFunction, FilePath: "/repo/a.ts",
		StartLine: 1, EndLine: 3, Signature: "function helper()",
	}
	caller := &parser.Scope{
		Name: "run", Kind: parser.KindFunction, FilePath: "/repo/a.ts",
		StartLine: 5, EndLine: 9, Signature: "function run()",
	}
	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/a.ts": {
			Scopes: []*parser.Scope{helper, caller},
			References: []parser.Reference{
				{FromScope: "run", Identifier: "helper", Kind: parser.RefLocalScope, Line: 6},
			},
		},
	}, nil, nil)

	consumes := edgesOfType(res, EdgeConsumes)
	require.Len(t, consumes, 1)
	assert.Equal(t, res.UUIDs[caller], consumes[0].From)
	assert.Equal(t, res.UUIDs[helper], consumes[0].To)
}

func TestCrossFileExplicitInheritance(t *testing.T) {
	files := map[string]bool{
		"/repo/base.ts":    true,
		"/repo/derived.ts": true,
	}
	contents := map[string]string{
		"/repo/base.ts": "export class Base {}\n",
	}
	ir := NewImportResolverFS(AliasConfig{},
		func(p string) bool { return files[p] },
		func(p string) ([]byte, error) { return []byte(contents[p]), nil },
	)

	base := classScope("Base", "/repo/base.ts")
	derived := classScope("Derived", "/repo/derived.ts", parser.HeritageClause{Clause: "extends", Name: "Base"})

	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/base.ts": {Scopes: []*parser.Scope{base}},
		"/repo/derived.ts": {
			Scopes: []*parser.Scope{derived},
			Imports: []parser.Import{
				{Source: "./base", Symbol: "Base", IsLocal: true, Line: 1},
			},
			References: []parser.Reference{
				{FromScope: "Derived", Identifier: "Base", Kind: parser.RefImport, TargetFileHint: "./base", Context: "class Derived extends Base {", Line: 1},
			},
		},
	}, ir, nil)

	inherits := edgesOfType(res, EdgeInheritsFrom)
	require.Len(t, inherits, 1)
	assert.Equal(t, res.UUIDs[derived], inherits[0].From)
	assert.Equal(t, res.UUIDs[base], inherits[0].To)
	assert.Equal(t, true, inherits[0].Properties["explicit"])
	assert.Equal(t, "extends", inherits[0].Properties["clause"])

	// No CONSUMES for the same pair.
	for _, e := range edgesOfType(res, EdgeConsumes) {
		assert.False(t, e.From == inherits[0].From && e.To == inherits[0].To)
	}
}

func TestHeuristicInheritanceFromContext(t *testing.T) {
	base := classScope("Base", "/repo/a.ts")
	derived := classScope("Derived", "/repo/a.ts") // no heritage metadata
	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/a.ts": {
			Scopes: []*parser.Scope{base, derived},
			References: []parser.Reference{
				{FromScope: "Derived", Identifier: "Base", Kind: parser.RefLocalScope,
					Context: "class Derived extends Base {", Line: 1},
			},
		},
	}, nil, nil)

	inherits := edgesOfType(res, EdgeInheritsFrom)
	require.Len(t, inherits, 1)
	assert.Equal(t, false, inherits[0].Properties["explicit"])
	assert.Empty(t, edgesOfType(res, EdgeConsumes))
}

func TestPythonHeuristicInheritance(t *testing.T) {
	base := &parser.Scope{
		Name: "Base", Kind: parser.KindClass, FilePath: "/repo/m.py",
		StartLine: 1, EndLine: 3, Source: "class Base:\n    pass", Signature: "class Base",
	}
	derived := &parser.Scope{
		Name: "Derived", Kind: parser.KindClass, FilePath: "/repo/m.py",
		StartLine: 5, EndLine: 8, Source: "class Derived(Base):\n    pass", Signature: "class Derived(Base)",
	}
	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/m.py": {
			Scopes: []*parser.Scope{base, derived},
			References: []parser.Reference{
				{FromScope: "Derived", Identifier: "Base", Kind: parser.RefLocalScope,
					Context: "irrelevant", Line: 5},
			},
		},
	}, nil, nil)

	// Heritage on python classes normally arrives explicit; with the
	// metadata absent, the first-source-line heuristic still fires.
	inherits := edgesOfType(res, EdgeInheritsFrom)
	require.Len(t, inherits, 1)
	assert.Equal(t, false, inherits[0].Properties["explicit"])
}

func TestClassMembership(t *testing.T) {
	cls := classScope("A", "/repo/a.ts")
	m1 := methodScope("foo", "A", "/repo/a.ts")
	m2 := methodScope("bar", "A", "/repo/a.ts")
	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/a.ts": {Scopes: []*parser.Scope{cls, m1, m2}},
	}, nil, nil)

	consumes := edgesOfType(res, EdgeConsumes)
	assert.Len(t, consumes, 2)
	for _, e := range consumes {
		assert.Equal(t, res.UUIDs[cls], e.From)
	}
}

func TestNoDuplicateEdgeTriples(t *testing.T) {
	helper := &parser.Scope{
		Name: "helper", Kind: parser.KindFunction, FilePath: "/repo/a.ts",
		StartLine: 1, EndLine: 2, Signature: "function helper()",
	}
	caller := &parser.Scope{
		Name: "run", Kind: parser.KindFunction, FilePath: "/repo/a.ts",
		StartLine: 4, EndLine: 9, Signature: "function run()",
	}
	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/a.ts": {
			Scopes: []*parser.Scope{helper, caller},
			References: []parser.Reference{
				{FromScope: "run", Identifier: "helper", Kind: parser.RefLocalScope, Line: 5},
				{FromScope: "run", Identifier: "helper", Kind: parser.RefLocalScope, Line: 7},
			},
		},
	}, nil, nil)

	seen := map[string]bool{}
	for _, e := range res.Edges {
		require.False(t, seen[e.Key()], "duplicate edge %s", e.Key())
		seen[e.Key()] = true
	}
}

func TestImportTieBreakPrefersValueKinds(t *testing.T) {
	files := map[string]bool{"/repo/lib.ts": true}
	ir := NewImportResolverFS(AliasConfig{},
		func(p string) bool { return files[p] },
		func(p string) ([]byte, error) { return []byte("export class Thing {}\nexport interface Thing {}\n"), nil },
	)

	thingClass := classScope("Thing", "/repo/lib.ts")
	thingIface := &parser.Scope{
		Name: "Thing", Kind: parser.KindInterface, FilePath: "/repo/lib.ts",
		StartLine: 2, EndLine: 2, Signature: "interface Thing",
	}
	user := &parser.Scope{
		Name: "use", Kind: parser.KindFunction, FilePath: "/repo/app.ts",
		StartLine: 2, EndLine: 5, Signature: "function use()",
	}

	res := resolve(t, map[string]*parser.CodeParse{
		"/repo/lib.ts": {Scopes: []*parser.Scope{thingClass, thingIface}},
		"/repo/app.ts": {
			Scopes: []*parser.Scope{user},
			Imports: []parser.Import{
				{Source: "./lib", Symbol: "Thing", IsLocal: true, Line: 1},
			},
			References: []parser.Reference{
				{FromScope: "use", Identifier: "Thing", Kind: parser.RefImport, Line: 3},
			},
		},
	}, ir, nil)

	consumes := edgesOfType(res, EdgeConsumes)
	require.Len(t, consumes, 1)
	assert.Equal(t, res.UUIDs[thingClass], consumes[0].To, "class (value kind) beats interface")
}
