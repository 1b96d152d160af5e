package code

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/parser"
)

func parseTS(t *testing.T, name, src string) *parser.CodeParse {
	t.Helper()
	p := NewParser()
	res := p.Parse(context.Background(), parser.Input{
		Path:    name,
		AbsPath: "/repo/" + name,
		Content: []byte(src),
	})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Code)
	return res.Code
}

func scopeByName(cp *parser.CodeParse, name string) *parser.Scope {
	for _, s := range cp.Scopes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func TestFunctionDeclaration(t *testing.T) {
	cp := parseTS(t, "a.ts", `
export async function fetchUser(id: string): Promise<User> {
  return api.get(id)
}
`)
	fn := scopeByName(cp, "fetchUser")
	require.NotNil(t, fn)
	assert.Equal(t, parser.KindFunction, fn.Kind)
	assert.Contains(t, fn.Signature, "fetchUser")
	assert.Contains(t, fn.Signature, "(id: string)")
	assert.Equal(t, "Promise<User>", fn.ReturnType)
	assert.Contains(t, fn.Modifiers, "export")
	assert.Contains(t, fn.Modifiers, "async")
	require.Len(t, fn.Parameters, 1)
	assert.Equal(t, "id", fn.Parameters[0].Name)
}

func TestClassWithMethodsAndHeritage(t *testing.T) {
	cp := parseTS(t, "svc.ts", `
export class UserService extends BaseService implements Disposable {
  private cache: Map<string, User> = new Map()

  lookup(id: string): User | undefined {
    return this.cache.get(id)
  }

  static create(): UserService {
    return new UserService()
  }
}
`)
	cls := scopeByName(cp, "UserService")
	require.NotNil(t, cls)
	assert.Equal(t, parser.KindClass, cls.Kind)
	require.Len(t, cls.Heritage, 2)
	assert.Equal(t, parser.HeritageClause{Clause: "extends", Name: "BaseService"}, cls.Heritage[0])
	assert.Equal(t, parser.HeritageClause{Clause: "implements", Name: "Disposable"}, cls.Heritage[1])

	lookup := scopeByName(cp, "lookup")
	require.NotNil(t, lookup)
	assert.Equal(t, parser.KindMethod, lookup.Kind)
	assert.Equal(t, "UserService", lookup.ParentName)
	assert.Equal(t, 1, lookup.Depth)

	create := scopeByName(cp, "create")
	require.NotNil(t, create)
	assert.Contains(t, create.Modifiers, "static")
}

func TestInterfaceTypeEnum(t *testing.T) {
	cp := parseTS(t, "types.ts", `
export interface Shape extends Drawable {
  area(): number
}

export type Point = { x: number; y: number }

export enum Color {
  Red,
  Green,
  Blue,
}
`)
	iface := scopeByName(cp, "Shape")
	require.NotNil(t, iface)
	assert.Equal(t, parser.KindInterface, iface.Kind)

	typ := scopeByName(cp, "Point")
	require.NotNil(t, typ)
	assert.Equal(t, parser.KindType, typ.Kind)

	enum := scopeByName(cp, "Color")
	require.NotNil(t, enum)
	assert.Equal(t, parser.KindEnum, enum.Kind)
	assert.Equal(t, []string{"Red", "Green", "Blue"}, enum.EnumMembers)
}

func TestArrowFunctionBinding(t *testing.T) {
	cp := parseTS(t, "fns.ts", `
export const clamp = (value: number, lo: number, hi: number): number =>
  Math.min(Math.max(value, lo), hi)

const LIMIT = 100
let counter = 0
`)
	fn := scopeByName(cp, "clamp")
	require.NotNil(t, fn)
	assert.Equal(t, parser.KindFunction, fn.Kind)
	assert.Len(t, fn.Parameters, 3)

	limit := scopeByName(cp, "LIMIT")
	require.NotNil(t, limit)
	assert.Equal(t, parser.KindConstant, limit.Kind)

	counter := scopeByName(cp, "counter")
	require.NotNil(t, counter)
	assert.Equal(t, parser.KindVariable, counter.Kind)
}

func TestImports(t *testing.T) {
	cp := parseTS(t, "imports.ts", `
import { Base, Helper as H } from "./base"
import * as fs from "node:fs"
import React from "react"
import "./styles.css"
`)
	require.Len(t, cp.Imports, 5)

	byAlias := map[string]parser.Import{}
	for _, imp := range cp.Imports {
		key := imp.Alias
		if key == "" {
			key = imp.Symbol
		}
		byAlias[key] = imp
	}

	base := byAlias["Base"]
	assert.Equal(t, "./base", base.Source)
	assert.True(t, base.IsLocal)

	h := byAlias["H"]
	assert.Equal(t, "Helper", h.Symbol)

	fsImp := byAlias["fs"]
	assert.Equal(t, "*", fsImp.Symbol)
	assert.False(t, fsImp.IsLocal)

	react := byAlias["React"]
	assert.Equal(t, "default", react.Symbol)
}

func TestReferenceClassification(t *testing.T) {
	cp := parseTS(t, "refs.ts", `
import { validate } from "./validator"

function helper(): void {}

export function submit(form: unknown): void {
  helper()
  validate(form)
  console.log("done")
}
`)
	refs := map[string]string{}
	for _, r := range cp.References {
		if r.FromScope == "submit" {
			refs[r.Identifier] = r.Kind
		}
	}
	assert.Equal(t, parser.RefLocalScope, refs["helper"])
	assert.Equal(t, parser.RefImport, refs["validate"])
	assert.Equal(t, parser.RefGlobal, refs["console"])
}

func TestReferenceContextWindow(t *testing.T) {
	cp := parseTS(t, "ctx.ts", `
class Base {}
class Derived extends Base {
  go(): void {}
}
`)
	var found bool
	for _, r := range cp.References {
		if r.FromScope == "Derived" && r.Identifier == "Base" {
			found = true
			assert.Contains(t, r.Context, "extends Base")
		}
	}
	assert.True(t, found, "heritage reference must be collected")
}

func TestJSDocDocstring(t *testing.T) {
	cp := parseTS(t, "doc.ts", `
/** Adds two numbers. */
export function add(a: number, b: number): number {
  return a + b
}
`)
	fn := scopeByName(cp, "add")
	require.NotNil(t, fn)
	assert.Contains(t, fn.Docstring, "Adds two numbers")
}

func TestDecorators(t *testing.T) {
	cp := parseTS(t, "dec.ts", `
@Component({ selector: "app" })
export class AppComponent {}
`)
	cls := scopeByName(cp, "AppComponent")
	require.NotNil(t, cls)
	require.NotEmpty(t, cls.Decorators)
	assert.Contains(t, cls.Decorators[0], "Component")
}

func TestJavaScriptFile(t *testing.T) {
	cp := parseTS(t, "legacy.js", `
const util = require("util")

function greet(name) {
  return "hi " + name
}

class Widget {
  render() {}
}
`)
	assert.NotNil(t, scopeByName(cp, "greet"))
	cls := scopeByName(cp, "Widget")
	require.NotNil(t, cls)
	render := scopeByName(cp, "render")
	require.NotNil(t, render)
	assert.Equal(t, "Widget", render.ParentName)
}

func TestSignatureIgnoresBody(t *testing.T) {
	a := parseTS(t, "s.ts", "class A {\n  foo(): void {}\n}\n")
	b := parseTS(t, "s.ts", "class A {\n  foo(): void { console.log(1) }\n}\n")
	fooA := scopeByName(a, "foo")
	fooB := scopeByName(b, "foo")
	require.NotNil(t, fooA)
	require.NotNil(t, fooB)
	assert.Equal(t, fooA.Signature, fooB.Signature)
	assert.NotEqual(t, fooA.Source, fooB.Source)
}

func TestGenericFallbackParser(t *testing.T) {
	p := &genericParser{}
	res := p.Parse(context.Background(), parser.Input{
		Path: "main.go", AbsPath: "/repo/main.go",
		Content: []byte("package main\n"),
	})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Code)
	assert.Empty(t, res.Code.Scopes)
}
