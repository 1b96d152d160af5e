package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortHashDeterministic(t *testing.T) {
	a := ShortHash([]byte("hello world"))
	b := ShortHash([]byte("hello world"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, ShortHash([]byte("hello worlds")))
}

func TestRawContentHash(t *testing.T) {
	h := RawContentHash([]byte("abc"))
	// Known SHA-256 of "abc"
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}

func TestIdentifierPrefixes(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{ProjectID("demo"), "project:"},
		{FileID("/repo/src/a.ts"), "file:"},
		{DirID("/repo/src"), "dir:"},
		{PkgID("lodash"), "pkg:"},
		{LibID("react"), "lib:"},
		{DataID("/repo/package.json"), "data:"},
		{SectionID("/repo/README.md", "intro"), "section:"},
		{MediaID("/repo/logo.png"), "media:"},
		{DocID("/repo/spec.pdf"), "doc:"},
		{URLID("https://example.com"), "url:"},
	}
	for _, tt := range tests {
		assert.True(t, len(tt.id) > len(tt.prefix), tt.id)
		assert.Equal(t, tt.prefix, tt.id[:len(tt.prefix)])
	}
}

func TestURLIDLength(t *testing.T) {
	id := URLID("https://example.com/docs")
	// "url:" + 12 hex chars
	assert.Len(t, id, 16)
	assert.Equal(t, id, URLID("https://example.com/docs"))
}

func TestScopeUUIDStableUnderLineMotion(t *testing.T) {
	sigA := SignatureHash("", "function bar(x: number): void", "bar", "function", "body", 10)
	sigB := SignatureHash("", "function bar(x: number): void", "bar", "function", "body", 120)
	assert.Equal(t, sigA, sigB, "non-variable scopes must ignore start line")

	uuidA := ScopeUUID("/repo/a.ts", "bar", "function", sigA)
	uuidB := ScopeUUID("/repo/a.ts", "bar", "function", sigB)
	assert.Equal(t, uuidA, uuidB)
}

func TestScopeUUIDVariableMovesWithLine(t *testing.T) {
	sigA := SignatureHash("", "", "limit", "constant", "const limit = 10", 5)
	sigB := SignatureHash("", "", "limit", "constant", "const limit = 10", 50)
	assert.NotEqual(t, sigA, sigB, "variables and constants fold in their start line")
}

func TestSignatureHashParentQualified(t *testing.T) {
	inA := SignatureHash("A", "foo()", "foo", "method", "", 1)
	inB := SignatureHash("B", "foo()", "foo", "method", "", 1)
	assert.NotEqual(t, inA, inB)
}

func TestSignatureHashContentFallback(t *testing.T) {
	a := SignatureHash("", "", "x", "class", "class x {\n  y() {}\n}", 1)
	b := SignatureHash("", "", "x", "class", "  class x {\n    y() {}\n  }", 1)
	assert.Equal(t, a, b, "dedent must make indentation-shifted content equivalent")
}

func TestDedent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a\n  b", "a\nb"},
		{"    a\n  b", "  a\nb"},
		{"a\nb", "a\nb"},
		{"", ""},
		{"\t\tx\n\t\ty", "x\ny"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Dedent(tt.in))
	}
}
