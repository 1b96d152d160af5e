package resolver

import (
	"regexp"
	"strings"
)

var (
	exportStarRe  = regexp.MustCompile(`export\s+\*\s+from\s+["']([^"']+)["']`)
	exportNamedRe = regexp.MustCompile(`export\s+\{([^}]*)\}\s+from\s+["']([^"']+)["']`)
)

// ChaseReexports follows `export * from` and `export { a as b } from`
// statements from a resolved file until the symbol's defining file is
// reached. The chain is bounded at maxReexportHops files; a hop past the
// bound, an unreadable file, or a revisit stops the walk and returns the
// last visited file. Ambiguous multi-source re-exports take the first match.
func (ir *ImportResolver) ChaseReexports(file, symbol string) string {
	visited := map[string]bool{}
	current := file
	target := symbol

	for hop := 0; hop < maxReexportHops; hop++ {
		if visited[current] {
			return current
		}
		visited[current] = true

		content, err := ir.readFile(current)
		if err != nil {
			return current
		}
		text := string(content)

		// A local definition wins over any wildcard re-export.
		if definesSymbol(text, target) {
			return current
		}

		next, nextSymbol, found := matchNamedReexport(text, target)
		if !found {
			next, found = matchStarReexport(text)
			nextSymbol = target
		}
		if !found {
			return current
		}

		resolved, ok := ir.Resolve(next, current)
		if !ok {
			return current
		}
		current = resolved
		target = nextSymbol
	}
	return current
}

// matchNamedReexport finds `export { inner as alias } from "spec"` whose
// exported name equals target, returning the inner specifier and the inner
// symbol name to chase next.
func matchNamedReexport(text, target string) (spec, innerSymbol string, found bool) {
	for _, m := range exportNamedRe.FindAllStringSubmatch(text, -1) {
		names, from := m[1], m[2]
		for _, entry := range strings.Split(names, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			inner, exported := entry, entry
			if idx := strings.Index(entry, " as "); idx >= 0 {
				inner = strings.TrimSpace(entry[:idx])
				exported = strings.TrimSpace(entry[idx+len(" as "):])
			}
			if exported == target {
				return from, inner, true
			}
		}
	}
	return "", "", false
}

// definesSymbol reports whether the file declares the symbol itself.
func definesSymbol(text, symbol string) bool {
	re := regexp.MustCompile(`(?m)(?:class|function|const|let|var|interface|type|enum|def)\s+` + regexp.QuoteMeta(symbol) + `\b`)
	return re.MatchString(text)
}

// matchStarReexport returns the first wildcard re-export specifier.
func matchStarReexport(text string) (string, bool) {
	if m := exportStarRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}
