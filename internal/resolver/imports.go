// Package resolver assigns stable UUIDs to scopes and derives cross-scope
// edges: parent links, use-site dependencies, and inheritance. Module
// specifiers resolve through the import resolver, including re-export
// chasing.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// maxReexportHops bounds re-export chains.
const maxReexportHops = 10

// AliasConfig is the tsconfig-style path alias table: patterns like
// "@/*" -> ["src/*"] resolved against BaseURL.
type AliasConfig struct {
	BaseURL string
	Paths   map[string][]string
}

// ImportResolver maps module specifiers to definition files on disk.
// The filesystem probes are injectable so tests run against a virtual tree.
type ImportResolver struct {
	aliases  AliasConfig
	exists   func(path string) bool
	readFile func(path string) ([]byte, error)
}

// NewImportResolver creates a resolver over the real filesystem.
func NewImportResolver(aliases AliasConfig) *ImportResolver {
	return &ImportResolver{
		aliases: aliases,
		exists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
		readFile: os.ReadFile,
	}
}

// NewImportResolverFS creates a resolver with injected filesystem probes.
func NewImportResolverFS(aliases AliasConfig, exists func(string) bool, readFile func(string) ([]byte, error)) *ImportResolver {
	return &ImportResolver{aliases: aliases, exists: exists, readFile: readFile}
}

// Resolve maps a module specifier from a given file to an absolute path of
// a definition file. External packages resolve to ("", false).
func (ir *ImportResolver) Resolve(specifier, fromFile string) (string, bool) {
	if specifier == "" {
		return "", false
	}

	// Python dotted relative imports: ".models", "..pkg.mod"
	if strings.HasSuffix(fromFile, ".py") && strings.HasPrefix(specifier, ".") && !strings.Contains(specifier, "/") {
		return ir.resolvePythonRelative(specifier, fromFile)
	}

	switch {
	case strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/"):
		base := filepath.Dir(fromFile)
		candidate := specifier
		if !strings.HasPrefix(specifier, "/") {
			candidate = filepath.Join(base, specifier)
		}
		return ir.tryCandidates(filepath.Clean(candidate))
	default:
		// Alias table before declaring the module external.
		if resolved, ok := ir.resolveAlias(specifier); ok {
			return resolved, true
		}
		return "", false
	}
}

// resolveAlias substitutes tsconfig path patterns and resolves against the
// configured baseUrl.
func (ir *ImportResolver) resolveAlias(specifier string) (string, bool) {
	for pattern, targets := range ir.aliases.Paths {
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if !strings.HasPrefix(specifier, prefix) {
				continue
			}
			rest := strings.TrimPrefix(specifier, prefix)
			for _, target := range targets {
				sub := strings.Replace(target, "*", rest, 1)
				if resolved, ok := ir.tryCandidates(filepath.Join(ir.aliases.BaseURL, sub)); ok {
					return resolved, true
				}
			}
		} else if specifier == pattern {
			for _, target := range targets {
				if resolved, ok := ir.tryCandidates(filepath.Join(ir.aliases.BaseURL, target)); ok {
					return resolved, true
				}
			}
		}
	}
	return "", false
}

// tryCandidates walks the candidate ladder and returns the first existing
// file: extension swap (.js→.ts, .jsx→.tsx), the path as written, appended
// .ts/.tsx/.py, index expansion, and for .js inputs the basename/index.ts
// variant.
func (ir *ImportResolver) tryCandidates(path string) (string, bool) {
	var candidates []string

	switch {
	case strings.HasSuffix(path, ".js"):
		candidates = append(candidates, strings.TrimSuffix(path, ".js")+".ts")
	case strings.HasSuffix(path, ".jsx"):
		candidates = append(candidates, strings.TrimSuffix(path, ".jsx")+".tsx")
	}

	candidates = append(candidates,
		path,
		path+".ts",
		path+".tsx",
		path+".py",
		filepath.Join(path, "index.ts"),
		filepath.Join(path, "index.tsx"),
	)

	if strings.HasSuffix(path, ".js") {
		base := strings.TrimSuffix(path, ".js")
		candidates = append(candidates, filepath.Join(base, "index.ts"))
	}

	for _, c := range candidates {
		if ir.exists(c) {
			return c, true
		}
	}
	return "", false
}

// resolvePythonRelative maps ".models" / "..pkg.mod" onto the package tree.
func (ir *ImportResolver) resolvePythonRelative(specifier, fromFile string) (string, bool) {
	dir := filepath.Dir(fromFile)
	rest := specifier
	for strings.HasPrefix(rest, ".") {
		rest = rest[1:]
		if strings.HasPrefix(rest, ".") {
			dir = filepath.Dir(dir)
		}
	}
	parts := strings.Split(rest, ".")
	candidate := filepath.Join(append([]string{dir}, parts...)...)
	for _, c := range []string{candidate + ".py", filepath.Join(candidate, "__init__.py")} {
		if ir.exists(c) {
			return c, true
		}
	}
	return "", false
}
