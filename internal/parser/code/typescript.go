package code

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rohankatakam/codegraph/internal/parser"
)

// tsExtractor walks a TypeScript/JavaScript AST. Scopes are collected with
// unresolved parent names in one pass; identifier references are classified
// in a second pass once the file's full scope and import sets are known.
type tsExtractor struct {
	src     []byte
	absPath string
	lang    string
	cp      *parser.CodeParse
	// tracked holds the AST node backing each scope for the reference pass.
	tracked []trackedScope
}

type trackedScope struct {
	scope *parser.Scope
	node  *sitter.Node
}

func extractTypeScript(root *sitter.Node, src []byte, absPath, lang string) *parser.CodeParse {
	e := &tsExtractor{
		src:     src,
		absPath: absPath,
		lang:    lang,
		cp:      &parser.CodeParse{Language: lang},
	}
	e.walk(root, "", 0, nil, nil)
	e.collectReferences()
	return e.cp
}

func (e *tsExtractor) walk(node *sitter.Node, parentName string, depth int, mods, decorators []string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "import_statement":
		e.extractImport(node)
		return

	case "export_statement":
		childMods := append(append([]string{}, mods...), "export")
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			if c.Type() == "default" {
				childMods = append(childMods, "default")
			}
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			e.walk(node.NamedChild(i), parentName, depth, childMods, e.ownDecorators(node))
		}
		return

	case "function_declaration", "generator_function_declaration":
		e.extractFunction(node, parentName, depth, mods, decorators)
		return

	case "class_declaration", "abstract_class_declaration":
		e.extractClass(node, parentName, depth, mods, decorators)
		return

	case "interface_declaration":
		e.extractInterface(node, parentName, depth, mods)
		return

	case "type_alias_declaration":
		e.extractTypeAlias(node, parentName, depth, mods)
		return

	case "enum_declaration":
		e.extractEnum(node, parentName, depth, mods)
		return

	case "lexical_declaration", "variable_declaration":
		e.extractVariables(node, parentName, depth, mods)
		return

	case "internal_module", "module":
		e.extractNamespace(node, parentName, depth, mods)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i), parentName, depth, nil, nil)
	}
}

// ownDecorators collects decorator children attached to a declaration node.
func (e *tsExtractor) ownDecorators(node *sitter.Node) []string {
	var decs []string
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "decorator" {
			decs = append(decs, strings.TrimPrefix(nodeText(c, e.src), "@"))
		}
	}
	return decs
}

func (e *tsExtractor) add(s *parser.Scope, node *sitter.Node) {
	e.cp.Scopes = append(e.cp.Scopes, s)
	e.tracked = append(e.tracked, trackedScope{scope: s, node: node})
}

func (e *tsExtractor) extractImport(node *sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	source := strings.Trim(nodeText(sourceNode, e.src), "\"'`")
	isLocal := localSpecifier(source)
	line := startLine(node)

	added := false
	var scan func(n *sitter.Node)
	scan = func(n *sitter.Node) {
		switch n.Type() {
		case "import_specifier":
			name := nodeText(n.ChildByFieldName("name"), e.src)
			alias := nodeText(n.ChildByFieldName("alias"), e.src)
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: source, Symbol: name, Alias: alias, IsLocal: isLocal, Line: line,
			})
			added = true
			return
		case "namespace_import":
			// import * as ns from "..."
			var alias string
			for i := 0; i < int(n.NamedChildCount()); i++ {
				alias = nodeText(n.NamedChild(i), e.src)
			}
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: source, Symbol: "*", Alias: alias, IsLocal: isLocal, Line: line,
			})
			added = true
			return
		case "identifier":
			// default import binding
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: source, Symbol: "default", Alias: nodeText(n, e.src), IsLocal: isLocal, Line: line,
			})
			added = true
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			scan(n.NamedChild(i))
		}
	}
	if clause := findChildOfType(node, "import_clause"); clause != nil {
		scan(clause)
	}
	if !added {
		// side-effect import: import "./styles.css"
		e.cp.Imports = append(e.cp.Imports, parser.Import{Source: source, IsLocal: isLocal, Line: line})
	}
}

func (e *tsExtractor) extractFunction(node *sitter.Node, parentName string, depth int, mods, decorators []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	params, paramsText := e.extractParams(node)
	ret := e.returnType(node)
	generics := nodeText(node.ChildByFieldName("type_parameters"), e.src)

	sig := "function " + name + generics + paramsText
	if ret != "" {
		sig += ": " + ret
	}
	if hasMod(node, "async") {
		mods = append(mods, "async")
	}

	kind := parser.KindFunction
	if parentName != "" && isClassParent(parentName) {
		kind = parser.KindMethod
	}

	e.add(&parser.Scope{
		Name:       name,
		Kind:       kind,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  sig,
		Parameters: params,
		ReturnType: ret,
		ParentName: stripParentTag(parentName),
		Depth:      depth,
		Modifiers:  mods,
		Generics:   generics,
		Decorators: decorators,
		Docstring:  e.docstring(node),
	}, node)

	// Nested declarations keep the file-level walk going.
	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, "fn:"+name, depth+1, nil, nil)
	}
}

func (e *tsExtractor) extractClass(node *sitter.Node, parentName string, depth int, mods, decorators []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	if node.Type() == "abstract_class_declaration" {
		mods = append(mods, "abstract")
	}
	generics := nodeText(node.ChildByFieldName("type_parameters"), e.src)
	heritage := e.extractHeritage(node)

	sig := "class " + name + generics
	for _, h := range heritage {
		sig += " " + h.Clause + " " + h.Name
	}

	decs := decorators
	if own := e.ownDecorators(node); len(own) > 0 {
		decs = append(decs, own...)
	}

	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindClass,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  sig,
		ParentName: stripParentTag(parentName),
		Depth:      depth,
		Modifiers:  mods,
		Generics:   generics,
		Decorators: decs,
		Heritage:   heritage,
		Docstring:  e.docstring(node),
	}, node)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			e.extractMethod(member, name, depth+1)
		case "public_field_definition", "field_definition":
			e.extractField(member, name, depth+1)
		}
	}
}

func (e *tsExtractor) extractMethod(node *sitter.Node, className string, depth int) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	params, paramsText := e.extractParams(node)
	ret := e.returnType(node)

	sig := name + paramsText
	if ret != "" {
		sig += ": " + ret
	}

	var mods []string
	for _, m := range []string{"static", "async", "abstract", "readonly", "public", "private", "protected", "get", "set"} {
		if hasMod(node, m) {
			mods = append(mods, m)
		}
	}

	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindMethod,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  sig,
		Parameters: params,
		ReturnType: ret,
		ParentName: className,
		Depth:      depth,
		Modifiers:  mods,
		Decorators: e.ownDecorators(node),
		Docstring:  e.docstring(node),
	}, node)

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, "fn:"+name, depth+1, nil, nil)
	}
}

// extractField lifts arrow-function class fields into method scopes; plain
// fields are not scopes.
func (e *tsExtractor) extractField(node *sitter.Node, className string, depth int) {
	value := node.ChildByFieldName("value")
	if value == nil || (value.Type() != "arrow_function" && value.Type() != "function_expression" && value.Type() != "function") {
		return
	}
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	params, paramsText := e.extractParams(value)
	ret := e.returnType(value)
	sig := name + " = " + paramsText + " =>"
	if ret != "" {
		sig += " " + ret
	}
	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindMethod,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  sig,
		Parameters: params,
		ReturnType: ret,
		ParentName: className,
		Depth:      depth,
		Docstring:  e.docstring(node),
	}, node)
}

func (e *tsExtractor) extractInterface(node *sitter.Node, parentName string, depth int, mods []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	generics := nodeText(node.ChildByFieldName("type_parameters"), e.src)
	heritage := e.extractHeritage(node)
	sig := "interface " + name + generics
	for _, h := range heritage {
		sig += " extends " + h.Name
	}

	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindInterface,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  sig,
		ParentName: stripParentTag(parentName),
		Depth:      depth,
		Modifiers:  mods,
		Generics:   generics,
		Heritage:   heritage,
		Docstring:  e.docstring(node),
	}, node)
}

func (e *tsExtractor) extractTypeAlias(node *sitter.Node, parentName string, depth int, mods []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	value := firstLine(nodeText(node.ChildByFieldName("value"), e.src))
	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindType,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  "type " + name + " = " + value,
		ParentName: stripParentTag(parentName),
		Depth:      depth,
		Modifiers:  mods,
		Generics:   nodeText(node.ChildByFieldName("type_parameters"), e.src),
		Docstring:  e.docstring(node),
	}, node)
}

func (e *tsExtractor) extractEnum(node *sitter.Node, parentName string, depth int, mods []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	var members []string
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			switch m.Type() {
			case "enum_assignment":
				members = append(members, nodeText(m.ChildByFieldName("name"), e.src))
			case "property_identifier":
				members = append(members, nodeText(m, e.src))
			}
		}
	}
	e.add(&parser.Scope{
		Name:        name,
		Kind:        parser.KindEnum,
		FilePath:    e.absPath,
		StartLine:   startLine(node),
		EndLine:     endLine(node),
		Source:      nodeText(node, e.src),
		Signature:   "enum " + name,
		ParentName:  stripParentTag(parentName),
		Depth:       depth,
		Modifiers:   mods,
		EnumMembers: members,
		Docstring:   e.docstring(node),
	}, node)
}

func (e *tsExtractor) extractNamespace(node *sitter.Node, parentName string, depth int, mods []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	e.add(&parser.Scope{
		Name:       name,
		Kind:       parser.KindNamespace,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		Signature:  "namespace " + name,
		ParentName: stripParentTag(parentName),
		Depth:      depth,
		Modifiers:  mods,
	}, node)
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			e.walk(body.NamedChild(i), "ns:"+name, depth+1, nil, nil)
		}
	}
}

func (e *tsExtractor) extractVariables(node *sitter.Node, parentName string, depth int, mods []string) {
	isConst := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "const" {
			isConst = true
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := nodeText(decl.ChildByFieldName("name"), e.src)
		if name == "" {
			continue
		}
		value := decl.ChildByFieldName("value")

		// Arrow and function expressions bound to a name are functions.
		if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
			params, paramsText := e.extractParams(value)
			ret := e.returnType(value)
			sig := "const " + name + " = " + paramsText + " =>"
			if ret != "" {
				sig += " " + ret
			}
			fnMods := mods
			if hasMod(value, "async") {
				fnMods = append(fnMods, "async")
			}
			e.add(&parser.Scope{
				Name:       name,
				Kind:       parser.KindFunction,
				FilePath:   e.absPath,
				StartLine:  startLine(decl),
				EndLine:    endLine(decl),
				Source:     nodeText(decl, e.src),
				Signature:  sig,
				Parameters: params,
				ReturnType: ret,
				ParentName: stripParentTag(parentName),
				Depth:      depth,
				Modifiers:  fnMods,
				Docstring:  e.docstring(node),
			}, decl)
			continue
		}

		// Only top-level bindings become variable/constant scopes; function
		// locals are noise.
		if depth > 0 && !isClassParent(parentName) && parentName != "" {
			continue
		}
		kind := parser.KindVariable
		if isConst {
			kind = parser.KindConstant
		}
		e.add(&parser.Scope{
			Name:       name,
			Kind:       kind,
			FilePath:   e.absPath,
			StartLine:  startLine(decl),
			EndLine:    endLine(decl),
			Source:     nodeText(decl, e.src),
			ParentName: stripParentTag(parentName),
			Depth:      depth,
			Modifiers:  mods,
		}, decl)
	}
}

// extractHeritage walks a declaration's heritage clauses, tracking whether
// the current clause is extends or implements by keyword tokens. Works for
// both the TS grammar (extends_clause/implements_clause) and the JS grammar
// (bare class_heritage).
func (e *tsExtractor) extractHeritage(node *sitter.Node) []parser.HeritageClause {
	var out []parser.HeritageClause
	clause := ""
	var scan func(n *sitter.Node)
	scan = func(n *sitter.Node) {
		switch n.Type() {
		case "extends", "extends_clause", "extends_type_clause":
			clause = "extends"
		case "implements", "implements_clause":
			clause = "implements"
		case "identifier", "type_identifier":
			if clause != "" {
				out = append(out, parser.HeritageClause{Clause: clause, Name: nodeText(n, e.src)})
				return
			}
		case "member_expression", "nested_type_identifier":
			if clause != "" {
				out = append(out, parser.HeritageClause{Clause: clause, Name: nodeText(n, e.src)})
				return
			}
		case "generic_type":
			if clause != "" {
				base := n.NamedChild(0)
				out = append(out, parser.HeritageClause{Clause: clause, Name: nodeText(base, e.src)})
				return
			}
		case "class_body", "interface_body", "object_type":
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			scan(n.Child(i))
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "class_heritage", "extends_clause", "implements_clause", "extends_type_clause":
			scan(c)
		}
	}
	return out
}

func (e *tsExtractor) extractParams(node *sitter.Node) ([]parser.Param, string) {
	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode == nil {
		// single-parameter arrow function without parens
		if p := node.ChildByFieldName("parameter"); p != nil {
			name := nodeText(p, e.src)
			return []parser.Param{{Name: name}}, "(" + name + ")"
		}
		return nil, "()"
	}
	text := nodeText(paramsNode, e.src)
	var params []parser.Param
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		p := paramsNode.NamedChild(i)
		switch p.Type() {
		case "required_parameter", "optional_parameter", "rest_parameter":
			name := nodeText(p.ChildByFieldName("pattern"), e.src)
			typ := strings.TrimPrefix(nodeText(p.ChildByFieldName("type"), e.src), ": ")
			params = append(params, parser.Param{Name: name, Type: strings.TrimPrefix(typ, ":")})
		case "identifier":
			params = append(params, parser.Param{Name: nodeText(p, e.src)})
		case "assignment_pattern":
			params = append(params, parser.Param{Name: nodeText(p.ChildByFieldName("left"), e.src)})
		}
	}
	return params, text
}

func (e *tsExtractor) returnType(node *sitter.Node) string {
	rt := nodeText(node.ChildByFieldName("return_type"), e.src)
	rt = strings.TrimPrefix(rt, ":")
	return strings.TrimSpace(rt)
}

// docstring returns the JSDoc block immediately preceding a declaration.
func (e *tsExtractor) docstring(node *sitter.Node) string {
	prev := node.PrevNamedSibling()
	if prev == nil && node.Parent() != nil && node.Parent().Type() == "export_statement" {
		prev = node.Parent().PrevNamedSibling()
	}
	if prev != nil && prev.Type() == "comment" {
		text := nodeText(prev, e.src)
		if strings.HasPrefix(text, "/**") {
			return text
		}
	}
	return ""
}

// collectReferences classifies identifier uses inside every collected scope
// against the file's imports and sibling scopes.
func (e *tsExtractor) collectReferences() {
	importSyms := make(map[string]string) // local binding -> source
	for _, imp := range e.cp.Imports {
		local := imp.Alias
		if local == "" {
			local = imp.Symbol
		}
		if local != "" && local != "*" && local != "default" {
			importSyms[local] = imp.Source
		}
	}
	scopeNames := make(map[string]bool, len(e.cp.Scopes))
	for _, s := range e.cp.Scopes {
		scopeNames[s.Name] = true
	}

	for _, ts := range e.tracked {
		if ts.scope.Kind == parser.KindVariable || ts.scope.Kind == parser.KindConstant {
			continue
		}
		seen := make(map[string]bool)
		e.scanUses(ts.node, func(name string, line int) {
			if name == ts.scope.Name || seen[name] {
				return
			}
			seen[name] = true
			ref := parser.Reference{
				FromScope:  ts.scope.Name,
				Identifier: name,
				Line:       line,
				Context:    contextWindow(e.src, line),
			}
			if src, ok := importSyms[name]; ok {
				ref.Kind = parser.RefImport
				ref.TargetFileHint = src
			} else if scopeNames[name] {
				ref.Kind = parser.RefLocalScope
			} else {
				ref.Kind = parser.RefGlobal
			}
			e.cp.References = append(e.cp.References, ref)
		})
	}
}

// scanUses visits call sites, constructor calls, heritage names and type
// references inside a scope body.
func (e *tsExtractor) scanUses(node *sitter.Node, visit func(name string, line int)) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				switch fn.Type() {
				case "identifier":
					visit(nodeText(fn, e.src), startLine(fn))
				case "member_expression":
					if obj := fn.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
						visit(nodeText(obj, e.src), startLine(obj))
					}
				}
			}
		case "new_expression":
			if ctor := n.ChildByFieldName("constructor"); ctor != nil && ctor.Type() == "identifier" {
				visit(nodeText(ctor, e.src), startLine(ctor))
			}
		case "extends_clause", "class_heritage", "implements_clause", "extends_type_clause":
			for i := 0; i < int(n.ChildCount()); i++ {
				c := n.Child(i)
				if c.Type() == "identifier" || c.Type() == "type_identifier" {
					visit(nodeText(c, e.src), startLine(c))
				}
			}
		case "type_identifier":
			visit(nodeText(n, e.src), startLine(n))
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
}

func findChildOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func hasMod(node *sitter.Node, mod string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == mod {
			return true
		}
	}
	return false
}

// Parent tags distinguish class parents (plain name) from function and
// namespace enclosures ("fn:"/"ns:" prefixed) during the walk; the prefix is
// stripped before the name lands on the scope.
func isClassParent(parentName string) bool {
	return parentName != "" && !strings.HasPrefix(parentName, "fn:") && !strings.HasPrefix(parentName, "ns:")
}

func stripParentTag(parentName string) string {
	parentName = strings.TrimPrefix(parentName, "fn:")
	return strings.TrimPrefix(parentName, "ns:")
}
