package code

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rohankatakam/codegraph/internal/parser"
)

// pyExtractor walks a Python AST. Mirrors the TypeScript extractor: scopes
// first, reference classification second.
type pyExtractor struct {
	src     []byte
	absPath string
	cp      *parser.CodeParse
	tracked []trackedScope
}

func extractPython(root *sitter.Node, src []byte, absPath string) *parser.CodeParse {
	e := &pyExtractor{
		src:     src,
		absPath: absPath,
		cp:      &parser.CodeParse{Language: "python"},
	}
	e.walk(root, "", 0, nil)
	e.collectReferences()
	return e.cp
}

func (e *pyExtractor) walk(node *sitter.Node, parentName string, depth int, decorators []string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "import_statement":
		e.extractPlainImport(node)
		return
	case "import_from_statement":
		e.extractFromImport(node)
		return
	case "decorated_definition":
		decs := decorators
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.Type() == "decorator" {
				decs = append(decs, strings.TrimPrefix(nodeText(c, e.src), "@"))
			}
		}
		if def := node.ChildByFieldName("definition"); def != nil {
			e.walk(def, parentName, depth, decs)
		}
		return
	case "function_definition":
		e.extractFunction(node, parentName, depth, decorators)
		return
	case "class_definition":
		e.extractClass(node, parentName, depth, decorators)
		return
	case "expression_statement":
		if depth == 0 {
			e.extractAssignment(node, parentName, depth)
		}
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i), parentName, depth, nil)
	}
}

func (e *pyExtractor) add(s *parser.Scope, node *sitter.Node) {
	e.cp.Scopes = append(e.cp.Scopes, s)
	e.tracked = append(e.tracked, trackedScope{scope: s, node: node})
}

// import os, sys  /  import numpy as np
func (e *pyExtractor) extractPlainImport(node *sitter.Node) {
	line := startLine(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case "dotted_name":
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: nodeText(c, e.src), Line: line,
			})
		case "aliased_import":
			name := nodeText(c.ChildByFieldName("name"), e.src)
			alias := nodeText(c.ChildByFieldName("alias"), e.src)
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: name, Alias: alias, Line: line,
			})
		}
	}
}

// from .models import User as U, Role
func (e *pyExtractor) extractFromImport(node *sitter.Node) {
	line := startLine(node)
	moduleNode := node.ChildByFieldName("module_name")
	module := nodeText(moduleNode, e.src)
	isLocal := strings.HasPrefix(module, ".")

	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if moduleNode != nil && c.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: module, Symbol: nodeText(c, e.src), IsLocal: isLocal, Line: line,
			})
		case "aliased_import":
			name := nodeText(c.ChildByFieldName("name"), e.src)
			alias := nodeText(c.ChildByFieldName("alias"), e.src)
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: module, Symbol: name, Alias: alias, IsLocal: isLocal, Line: line,
			})
		case "wildcard_import":
			e.cp.Imports = append(e.cp.Imports, parser.Import{
				Source: module, Symbol: "*", IsLocal: isLocal, Line: line,
			})
		}
	}
}

func (e *pyExtractor) extractFunction(node *sitter.Node, parentName string, depth int, decorators []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}
	params, paramsText := e.extractParams(node)
	ret := strings.TrimSpace(strings.TrimPrefix(nodeText(node.ChildByFieldName("return_type"), e.src), "->"))

	sig := "def " + name + paramsText
	if ret != "" {
		sig += " -> " + ret
	}

	var mods []string
	if hasMod(node, "async") {
		mods = append(mods, "async")
	}

	kind := parser.KindFunction
	if isClassParent(parentName) {
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
		Decorators: decorators,
		Docstring:  e.docstring(node),
	}, node)

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, "fn:"+name, depth+1, nil)
	}
}

func (e *pyExtractor) extractClass(node *sitter.Node, parentName string, depth int, decorators []string) {
	name := nodeText(node.ChildByFieldName("name"), e.src)
	if name == "" {
		return
	}

	var heritage []parser.HeritageClause
	sig := "class " + name
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		sig += nodeText(supers, e.src)
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			switch base.Type() {
			case "identifier", "attribute":
				heritage = append(heritage, parser.HeritageClause{Clause: "extends", Name: nodeText(base, e.src)})
			case "keyword_argument":
				// metaclass=... is not heritage
			}
		}
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
		Decorators: decorators,
		Heritage:   heritage,
		Docstring:  e.docstring(node),
	}, node)

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			e.walk(body.NamedChild(i), name, depth+1, nil)
		}
	}
}

// extractAssignment lifts module-level NAME = value statements into
// variable/constant scopes. ALL_CAPS names are constants by convention.
func (e *pyExtractor) extractAssignment(node *sitter.Node, parentName string, depth int) {
	if node.NamedChildCount() == 0 {
		return
	}
	assign := node.NamedChild(0)
	if assign.Type() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := nodeText(left, e.src)

	kind := parser.KindVariable
	if name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		kind = parser.KindConstant
	}

	e.add(&parser.Scope{
		Name:       name,
		Kind:       kind,
		FilePath:   e.absPath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Source:     nodeText(node, e.src),
		ParentName: stripParentTag(parentName),
		Depth:      depth,
	}, node)
}

func (e *pyExtractor) extractParams(node *sitter.Node) ([]parser.Param, string) {
	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode == nil {
		return nil, "()"
	}
	text := nodeText(paramsNode, e.src)
	var params []parser.Param
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		p := paramsNode.NamedChild(i)
		switch p.Type() {
		case "identifier":
			params = append(params, parser.Param{Name: nodeText(p, e.src)})
		case "typed_parameter", "typed_default_parameter":
			var name string
			if id := p.NamedChild(0); id != nil {
				name = nodeText(id, e.src)
			}
			typ := nodeText(p.ChildByFieldName("type"), e.src)
			params = append(params, parser.Param{Name: name, Type: typ})
		case "default_parameter":
			params = append(params, parser.Param{Name: nodeText(p.ChildByFieldName("name"), e.src)})
		case "list_splat_pattern", "dictionary_splat_pattern":
			params = append(params, parser.Param{Name: nodeText(p, e.src)})
		}
	}
	return params, text
}

// docstring returns the leading string expression of a definition body.
func (e *pyExtractor) docstring(node *sitter.Node) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	text := nodeText(expr, e.src)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func (e *pyExtractor) collectReferences() {
	importSyms := make(map[string]string)
	for _, imp := range e.cp.Imports {
		local := imp.Alias
		if local == "" {
			local = imp.Symbol
		}
		if local == "" {
			local = imp.Source
		}
		if local != "" && local != "*" {
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

// scanUses visits calls and base-class references inside a definition.
func (e *pyExtractor) scanUses(node *sitter.Node, visit func(name string, line int)) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call":
			if fn := n.ChildByFieldName("function"); fn != nil {
				switch fn.Type() {
				case "identifier":
					visit(nodeText(fn, e.src), startLine(fn))
				case "attribute":
					if obj := fn.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
						visit(nodeText(obj, e.src), startLine(obj))
					}
				}
			}
		case "argument_list":
			// superclass list of a class_definition
			if n.Parent() != nil && n.Parent().Type() == "class_definition" {
				for i := 0; i < int(n.NamedChildCount()); i++ {
					c := n.NamedChild(i)
					if c.Type() == "identifier" {
						visit(nodeText(c, e.src), startLine(c))
					}
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
}
