// Package ingestion walks project trees and drives the re-ingestion state
// machine over the graph store.
package ingestion

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/codegraph/internal/detect"
)

// WalkSourceFiles walks a project root and yields indexable files, relative
// to the root. Excludes the usual generated and dependency directories.
func WalkSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isIndexable(path) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// shouldSkipDir returns true for directories excluded from indexing.
func shouldSkipDir(name string) bool {
	excludeDirs := []string{
		".git",
		"node_modules",
		"vendor",
		"venv",
		".venv",
		"__pycache__",
		".next",
		".nuxt",
		"dist",
		"build",
		"out",
		"target",
		".cache",
		".parcel-cache",
		"coverage",
		".nyc_output",
		".pytest_cache",
		".tox",
		"__mocks__",
		".idea",
		".vscode",
	}
	for _, exclude := range excludeDirs {
		if name == exclude {
			return true
		}
	}
	return false
}

// isIndexable keeps every file the format detector can place from its path
// alone; no content is read here, so extensionless files such as Dockerfile
// come back Unknown and are skipped, as are generated artifacts.
func isIndexable(path string) bool {
	if isGeneratedFile(path) {
		return false
	}
	format := detect.Detect(path, nil)
	return format.Category != detect.CategoryUnknown
}

// isGeneratedFile returns true for build artifacts masquerading as sources.
func isGeneratedFile(path string) bool {
	generatedPatterns := []string{
		".min.js",
		".bundle.js",
		".generated.ts",
		".generated.js",
		".pb.js",
		".pb.ts",
		"_pb.js",
		"_pb.ts",
		".d.ts",
	}
	for _, pattern := range generatedPatterns {
		if strings.HasSuffix(path, pattern) {
			return true
		}
	}
	generatedDirs := []string{"/dist/", "/build/", "/out/", "/.next/", "/.nuxt/"}
	for _, dir := range generatedDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}

// ShortestCommonDir computes the deepest directory containing every path.
func ShortestCommonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		dir := filepath.Dir(p)
		for !strings.HasPrefix(dir+string(filepath.Separator), common+string(filepath.Separator)) {
			parent := filepath.Dir(common)
			if parent == common {
				return common
			}
			common = parent
		}
	}
	return common
}
