package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// OrphanProjectID is the reserved project id under which files that do not
// belong to any registered project are indexed. It is never emitted as a
// Project node.
const OrphanProjectID = "project:__orphans__"

// idNamespace seeds deterministic UUIDs for media and document nodes so the
// same file yields the same id across ingestions.
var idNamespace = uuid.MustParse("8f2f9d5a-1c64-4b0e-9a77-3d2c41c8b6e1")

// ShortHash returns a 16-hex-character content hash. Used for semantic
// content hashes on files, scopes, sections and code blocks.
func ShortHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// ShortHashString is ShortHash over a string.
func ShortHashString(s string) string {
	return ShortHash([]byte(s))
}

// RawContentHash returns the full SHA-256 hex digest of file bytes.
// Used as the pre-parse skip key.
func RawContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Prefix-tagged identifiers. The prefixes are load-bearing for the graph
// store matcher and must stay stable across ingestions.

// ProjectID returns the identifier for a registered project.
func ProjectID(name string) string {
	return "project:" + name
}

// FileID derives a file identifier from its absolute path.
func FileID(absPath string) string {
	return "file:" + ShortHashString(absPath)
}

// DirID derives a directory identifier from its absolute path.
func DirID(absPath string) string {
	return "dir:" + ShortHashString(absPath)
}

// PkgID derives an identifier for a data-file package reference.
func PkgID(name string) string {
	return "pkg:" + ShortHashString(name)
}

// LibID derives an identifier for an external library.
func LibID(name string) string {
	return "lib:" + ShortHashString(name)
}

// DataID derives an identifier for a data file.
func DataID(absPath string) string {
	return "data:" + ShortHashString(absPath)
}

// SectionID derives an identifier for a markdown or data section.
func SectionID(absPath, sectionPath string) string {
	return "section:" + ShortHashString(absPath+"#"+sectionPath)
}

// MediaID derives a deterministic UUID-based identifier for a media file.
func MediaID(absPath string) string {
	return "media:" + uuid.NewSHA1(idNamespace, []byte(absPath)).String()
}

// DocID derives a deterministic UUID-based identifier for a document file.
func DocID(absPath string) string {
	return "doc:" + uuid.NewSHA1(idNamespace, []byte(absPath)).String()
}

// URLID derives the identifier for an external URL: "url:" plus the first
// 12 hex characters of the URL's SHA-256.
func URLID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "url:" + hex.EncodeToString(sum[:])[:12]
}

// SignatureHash computes the stable hash that anchors a scope's UUID.
//
// The hashed text is parent-qualified: "<parent>.<signature>" when the scope
// has both, falling back to "name:kind:<dedented content>" when the parser
// produced no signature. Variables and constants additionally fold in their
// start line, since two declarations of the same name in one file are only
// distinguishable by position.
func SignatureHash(parentName, signature, name, kind, content string, startLine int) string {
	base := signature
	if base == "" {
		base = name + ":" + kind + ":" + Dedent(content)
	}
	if parentName != "" {
		base = parentName + "." + base
	}
	if kind == "variable" || kind == "constant" {
		base = fmt.Sprintf("%s:line%d", base, startLine)
	}
	return ShortHashString(base)
}

// ScopeUUID derives the deterministic identifier for a code scope from its
// file, name, kind and signature hash. Line numbers never participate except
// through the variable/constant rule in SignatureHash, so moving a function
// does not change its identity.
func ScopeUUID(absPath, name, kind, signatureHash string) string {
	return "scope:" + ShortHashString(absPath+":"+name+":"+kind+":"+signatureHash)
}

// Dedent strips the common leading whitespace from every non-blank line.
// Scope content is dedented before hashing so that re-indenting a block
// (e.g. wrapping it in a namespace) does not alter its identity.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= margin {
			lines[i] = line[margin:]
		}
	}
	return strings.Join(lines, "\n")
}
