// Package detect maps file paths (and optionally leading bytes) to a format
// tag that selects a parser. Extension lookup comes first, then filename
// patterns, then magic-byte sniffing for ambiguous cases.
package detect

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Category groups formats by pipeline treatment.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryData     Category = "data"
	CategoryMedia    Category = "media"
	CategoryDocument Category = "document"
	CategoryUnknown  Category = "unknown"
)

// Parser ids. Each id selects one registered parser implementation.
const (
	ParserTypeScript = "typescript"
	ParserPython     = "python"
	ParserVue        = "vue"
	ParserSvelte     = "svelte"
	ParserHTML       = "html"
	ParserCSS        = "css"
	ParserMarkdown   = "markdown"
	ParserGeneric    = "generic"
	ParserData       = "data"
	ParserMedia      = "media"
	ParserDocument   = "document"
)

// Format is the detection result: a category, a concrete format name, and
// the id of the parser that handles it.
type Format struct {
	Category Category
	Name     string
	ParserID string
}

// Unknown is the soft-failure result: the generic text parser produces a
// File node and skips scopes.
var Unknown = Format{Category: CategoryUnknown, Name: "unknown", ParserID: ParserGeneric}

var extFormats = map[string]Format{
	// Code
	".ts":     {CategoryCode, "typescript", ParserTypeScript},
	".tsx":    {CategoryCode, "tsx", ParserTypeScript},
	".mts":    {CategoryCode, "typescript", ParserTypeScript},
	".cts":    {CategoryCode, "typescript", ParserTypeScript},
	".js":     {CategoryCode, "javascript", ParserTypeScript},
	".jsx":    {CategoryCode, "jsx", ParserTypeScript},
	".mjs":    {CategoryCode, "javascript", ParserTypeScript},
	".cjs":    {CategoryCode, "javascript", ParserTypeScript},
	".py":     {CategoryCode, "python", ParserPython},
	".pyi":    {CategoryCode, "python", ParserPython},
	".pyw":    {CategoryCode, "python", ParserPython},
	".vue":    {CategoryCode, "vue", ParserVue},
	".svelte": {CategoryCode, "svelte", ParserSvelte},
	".html":   {CategoryCode, "html", ParserHTML},
	".htm":    {CategoryCode, "html", ParserHTML},
	".astro":  {CategoryCode, "astro", ParserHTML},
	".css":    {CategoryCode, "css", ParserCSS},
	".scss":   {CategoryCode, "scss", ParserCSS},
	".md":     {CategoryCode, "markdown", ParserMarkdown},
	".mdx":    {CategoryCode, "markdown", ParserMarkdown},
	".markdown": {CategoryCode, "markdown", ParserMarkdown},

	// Data
	".json":  {CategoryData, "json", ParserData},
	".jsonc": {CategoryData, "json", ParserData},
	".yaml":  {CategoryData, "yaml", ParserData},
	".yml":   {CategoryData, "yaml", ParserData},
	".xml":   {CategoryData, "xml", ParserData},
	".toml":  {CategoryData, "toml", ParserData},
	".env":   {CategoryData, "env", ParserData},

	// Media — images
	".png":  {CategoryMedia, "png", ParserMedia},
	".jpg":  {CategoryMedia, "jpeg", ParserMedia},
	".jpeg": {CategoryMedia, "jpeg", ParserMedia},
	".gif":  {CategoryMedia, "gif", ParserMedia},
	".webp": {CategoryMedia, "webp", ParserMedia},
	".bmp":  {CategoryMedia, "bmp", ParserMedia},
	".svg":  {CategoryMedia, "svg", ParserMedia},
	".ico":  {CategoryMedia, "ico", ParserMedia},
	".tif":  {CategoryMedia, "tiff", ParserMedia},
	".tiff": {CategoryMedia, "tiff", ParserMedia},

	// Media — 3D
	".gltf": {CategoryMedia, "gltf", ParserMedia},
	".glb":  {CategoryMedia, "glb", ParserMedia},

	// Documents
	".pdf":  {CategoryDocument, "pdf", ParserDocument},
	".docx": {CategoryDocument, "docx", ParserDocument},
	".xlsx": {CategoryDocument, "xlsx", ParserDocument},
	".xls":  {CategoryDocument, "xls", ParserDocument},
	".csv":  {CategoryDocument, "csv", ParserDocument},
}

// Known code extensions that fall through to the generic code parser rather
// than the unknown bucket: they get scopeless File nodes but keep the code
// category for downstream filtering.
var genericCodeExts = map[string]bool{
	".go": true, ".rs": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".hpp": true, ".cs": true, ".php": true,
	".swift": true, ".kt": true, ".sh": true, ".bash": true, ".zsh": true,
	".sql": true, ".lua": true, ".pl": true, ".ex": true, ".exs": true,
	".txt": true,
}

// Detect resolves a path, with optional leading bytes, to a Format.
// Never fails hard: an unrecognized path with readable content maps to the
// generic text parser; without content, or with binary content, it maps to
// Unknown.
func Detect(path string, content []byte) Format {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	if f, ok := extFormats[ext]; ok {
		return f
	}

	// Filename patterns after extension lookup: .env.local, .env.production
	// and the like share the env parser even though their "extension" varies.
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return Format{CategoryData, "env", ParserData}
	}

	if genericCodeExts[ext] {
		return Format{CategoryCode, strings.TrimPrefix(ext, "."), ParserGeneric}
	}

	// Dotfiles with no better match are config-ish text.
	if strings.HasPrefix(base, ".") && ext == "" {
		return Format{CategoryCode, "config", ParserGeneric}
	}

	if len(content) > 0 {
		if f, ok := sniff(content); ok {
			return f
		}
		if isBinary(content) {
			return Unknown
		}
		// Readable text without a recognized extension.
		return Format{CategoryCode, "text", ParserGeneric}
	}

	return Unknown
}

// magic number table for content sniffing of extensionless or mislabeled files
var magics = []struct {
	prefix []byte
	format Format
}{
	{[]byte("\x89PNG\r\n\x1a\n"), Format{CategoryMedia, "png", ParserMedia}},
	{[]byte("\xff\xd8\xff"), Format{CategoryMedia, "jpeg", ParserMedia}},
	{[]byte("GIF87a"), Format{CategoryMedia, "gif", ParserMedia}},
	{[]byte("GIF89a"), Format{CategoryMedia, "gif", ParserMedia}},
	{[]byte("BM"), Format{CategoryMedia, "bmp", ParserMedia}},
	{[]byte("glTF"), Format{CategoryMedia, "glb", ParserMedia}},
	{[]byte("%PDF-"), Format{CategoryDocument, "pdf", ParserDocument}},
}

func sniff(content []byte) (Format, bool) {
	for _, m := range magics {
		if bytes.HasPrefix(content, m.prefix) {
			return m.format, true
		}
	}
	// RIFF container: WebP if the form type is WEBP.
	if len(content) >= 12 && bytes.HasPrefix(content, []byte("RIFF")) && bytes.Equal(content[8:12], []byte("WEBP")) {
		return Format{CategoryMedia, "webp", ParserMedia}, true
	}
	// ZIP containers are DOCX/XLSX territory; without an extension we cannot
	// tell which, so the document parser decides from the archive listing.
	if bytes.HasPrefix(content, []byte("PK\x03\x04")) {
		return Format{CategoryDocument, "zip", ParserDocument}, true
	}
	return Format{}, false
}

// isBinary reports whether the first 8 KiB contain a NUL byte.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
