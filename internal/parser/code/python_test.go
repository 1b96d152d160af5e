package code

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/parser"
)

func parsePy(t *testing.T, name, src string) *parser.CodeParse {
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

func TestPythonFunctions(t *testing.T) {
	cp := parsePy(t, "svc.py", `
def fetch(url: str) -> dict:
    """Fetch a resource."""
    return get(url)

async def poll(interval: int):
    pass
`)
	fetch := scopeByName(cp, "fetch")
	require.NotNil(t, fetch)
	assert.Equal(t, parser.KindFunction, fetch.Kind)
	assert.Contains(t, fetch.Signature, "def fetch")
	assert.Equal(t, "dict", fetch.ReturnType)
	assert.Equal(t, "Fetch a resource.", fetch.Docstring)

	poll := scopeByName(cp, "poll")
	require.NotNil(t, poll)
	assert.Contains(t, poll.Modifiers, "async")
}

func TestPythonClassWithMethods(t *testing.T) {
	cp := parsePy(t, "models.py", `
class User(BaseModel):
    """A registered user."""

    def display_name(self) -> str:
        return self.name
`)
	cls := scopeByName(cp, "User")
	require.NotNil(t, cls)
	assert.Equal(t, parser.KindClass, cls.Kind)
	require.Len(t, cls.Heritage, 1)
	assert.Equal(t, "BaseModel", cls.Heritage[0].Name)
	assert.Equal(t, "extends", cls.Heritage[0].Clause)
	assert.Equal(t, "A registered user.", cls.Docstring)

	method := scopeByName(cp, "display_name")
	require.NotNil(t, method)
	assert.Equal(t, parser.KindMethod, method.Kind)
	assert.Equal(t, "User", method.ParentName)
}

func TestPythonDecorators(t *testing.T) {
	cp := parsePy(t, "views.py", `
@app.route("/users")
def list_users():
    return []
`)
	fn := scopeByName(cp, "list_users")
	require.NotNil(t, fn)
	require.NotEmpty(t, fn.Decorators)
	assert.Contains(t, fn.Decorators[0], "app.route")
}

func TestPythonImports(t *testing.T) {
	cp := parsePy(t, "app.py", `
import os
import numpy as np
from .models import User as U, Role
from typing import *
`)
	bySource := map[string][]parser.Import{}
	for _, imp := range cp.Imports {
		bySource[imp.Source] = append(bySource[imp.Source], imp)
	}

	require.Len(t, bySource["os"], 1)
	require.Len(t, bySource["numpy"], 1)
	assert.Equal(t, "np", bySource["numpy"][0].Alias)

	models := bySource[".models"]
	require.Len(t, models, 2)
	assert.True(t, models[0].IsLocal)

	typing := bySource["typing"]
	require.Len(t, typing, 1)
	assert.Equal(t, "*", typing[0].Symbol)
}

func TestPythonModuleConstants(t *testing.T) {
	cp := parsePy(t, "settings.py", `
MAX_RETRIES = 3
debug_mode = False
`)
	maxRetries := scopeByName(cp, "MAX_RETRIES")
	require.NotNil(t, maxRetries)
	assert.Equal(t, parser.KindConstant, maxRetries.Kind)

	debug := scopeByName(cp, "debug_mode")
	require.NotNil(t, debug)
	assert.Equal(t, parser.KindVariable, debug.Kind)
}

func TestPythonReferences(t *testing.T) {
	cp := parsePy(t, "refs.py", `
from .db import query

def load():
    return query("select 1")

def run():
    load()
`)
	refs := map[string]string{}
	for _, r := range cp.References {
		refs[r.FromScope+"->"+r.Identifier] = r.Kind
	}
	assert.Equal(t, parser.RefImport, refs["load->query"])
	assert.Equal(t, parser.RefLocalScope, refs["run->load"])
}
