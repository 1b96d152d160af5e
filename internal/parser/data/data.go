// Package data parses structured data files (JSON, YAML, XML, TOML, ENV)
// into DataSection subtrees and classified DataReferences.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

func init() {
	parser.Register(detect.ParserData, func() parser.Parser { return NewParser() })
}

// Section emission thresholds: a subtree is only worth its own node when it
// has at least two object keys or three array elements.
const (
	minObjectKeys   = 2
	minArrayLen     = 3
	maxSectionDepth = 3
	maxContentLen   = 10000
)

// truncationMarker is appended when section content exceeds maxContentLen.
const truncationMarker = "\n…[truncated]"

// Parser handles every structured data format behind one walker.
type Parser struct{}

// NewParser creates the data parser.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	format := detect.Detect(in.Path, in.Content)
	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath, Format: format}

	var root any
	var err error
	switch format.Name {
	case "json":
		if !gjson.ValidBytes(in.Content) {
			res.Err = fmt.Errorf("invalid JSON: %s", in.Path)
			return res
		}
		root = gjson.ParseBytes(in.Content).Value()
	case "yaml":
		err = yaml.Unmarshal(in.Content, &root)
	case "toml":
		m := map[string]any{}
		err = toml.Unmarshal(in.Content, &m)
		root = m
	case "env":
		kv, perr := godotenv.Unmarshal(string(in.Content))
		err = perr
		m := map[string]any{}
		for k, v := range kv {
			m[k] = v
		}
		root = m
	case "xml":
		root, err = decodeXML(in.Content)
	default:
		res.Err = fmt.Errorf("data parser: unsupported format %q for %s", format.Name, in.Path)
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("parse %s %s: %w", format.Name, in.Path, err)
		return res
	}

	df := &parser.DataFile{Format: format.Name}
	if m, ok := root.(map[string]any); ok {
		df.KeyCount = len(m)
	}

	w := &walker{df: df, fileName: in.Path}
	w.walk(root, "", "", "", 0)

	// The semantic hash covers the parsed value, not the raw bytes, so
	// whitespace-only edits leave it unchanged.
	if canonical, merr := json.Marshal(root); merr == nil {
		df.Hash = ids.ShortHash(canonical)
	} else {
		df.Hash = ids.ShortHash(in.Content)
	}

	res.Data = df
	return res
}

type walker struct {
	df       *parser.DataFile
	fileName string
}

// walk visits the value tree in sorted-key order so section ordering, and
// therefore content hashing, is deterministic.
func (w *walker) walk(v any, path, key, parentPath string, depth int) {
	switch val := v.(type) {
	case map[string]any:
		if depth > 0 && depth <= maxSectionDepth && len(val) >= minObjectKeys {
			w.emitSection(val, "object", path, key, parentPath, depth)
		}
		keys := sortedKeys(val)
		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			w.walk(val[k], childPath, k, path, depth+1)
		}
	case []any:
		if depth > 0 && depth <= maxSectionDepth && len(val) >= minArrayLen {
			w.emitSection(val, "array", path, key, parentPath, depth)
		}
		for i, item := range val {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			w.walk(item, childPath, key, path, depth+1)
		}
	case string:
		if ref := classifyReference(val, path, key); ref != nil {
			w.df.References = append(w.df.References, *ref)
		}
	}
}

func (w *walker) emitSection(v any, valueType, path, key, parentPath string, depth int) {
	content := ""
	if b, err := json.Marshal(v); err == nil {
		content = string(b)
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen] + truncationMarker
	}
	w.df.Sections = append(w.df.Sections, parser.DataSection{
		Path:       path,
		Key:        key,
		ValueType:  valueType,
		Depth:      depth,
		Content:    content,
		ParentPath: parentPath,
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dependency-style keys whose leaf keys name packages
var packageContextKeys = map[string]bool{
	"dependencies":         true,
	"devDependencies":      true,
	"peerDependencies":     true,
	"optionalDependencies": true,
	"require":              true, // composer.json
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".bmp": true, ".svg": true, ".ico": true, ".tiff": true,
}

var codeExts = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
	".cjs": true, ".py": true, ".vue": true, ".svelte": true, ".go": true,
	".css": true, ".scss": true, ".html": true,
}

var configNames = map[string]bool{
	"tsconfig.json": true, "package.json": true, ".env": true,
	"vite.config.ts": true, "vite.config.js": true, "webpack.config.js": true,
	"pyproject.toml": true, "Cargo.toml": true, "go.mod": true,
}

// classifyReference decides whether a leaf string points at something worth
// an edge: a URL, a package, a file, a directory, an image, code, or config.
func classifyReference(value, path, key string) *parser.DataReference {
	if value == "" || len(value) > 512 {
		return nil
	}

	// Context first: under a dependencies-style key, the KEY is the package.
	segs := strings.Split(path, ".")
	for _, seg := range segs[:max(len(segs)-1, 0)] {
		if packageContextKeys[seg] {
			return &parser.DataReference{
				Value:       value,
				Kind:        parser.DataRefPackage,
				ContextPath: path,
				Symbol:      key,
			}
		}
	}

	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return &parser.DataReference{Value: value, Kind: parser.DataRefURL, ContextPath: path}
	}

	looksPathy := strings.HasPrefix(value, "./") || strings.HasPrefix(value, "../") ||
		strings.HasPrefix(value, "/") || strings.Contains(value, "/")
	if !looksPathy {
		return nil
	}
	if strings.Contains(value, " ") || strings.Contains(value, "\n") {
		return nil
	}

	ext := strings.ToLower(pathExt(value))
	base := pathBase(value)
	switch {
	case configNames[base]:
		return &parser.DataReference{Value: value, Kind: parser.DataRefConfig, ContextPath: path}
	case imageExts[ext]:
		return &parser.DataReference{Value: value, Kind: parser.DataRefImage, ContextPath: path}
	case codeExts[ext]:
		return &parser.DataReference{Value: value, Kind: parser.DataRefCode, ContextPath: path}
	case ext != "":
		return &parser.DataReference{Value: value, Kind: parser.DataRefFile, ContextPath: path}
	default:
		return &parser.DataReference{Value: value, Kind: parser.DataRefDirectory, ContextPath: path}
	}
}

func pathExt(p string) string {
	base := pathBase(p)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		return base[idx:]
	}
	return ""
}

func pathBase(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
