// Package parser defines the uniform intermediate representation produced by
// every per-format parser, plus the registry that maps detected formats to
// parser implementations.
package parser

import (
	"context"

	"github.com/rohankatakam/codegraph/internal/detect"
)

// Input is what a parser receives for one file. Parsers must not touch disk
// for the primary artifact beyond Content; auxiliary files (embedded images,
// re-exported modules) may be read by downstream resolvers.
type Input struct {
	// Path is the file path relative to the project root.
	Path string
	// AbsPath is the absolute path on disk.
	AbsPath string
	Content []byte
	Options Options
}

// Options carries the per-parser knobs enumerated in the configuration.
type Options struct {
	ParseCodeBlocks   bool // markdown
	ExtractText       bool // documents
	UseOCR            bool
	MaxOCRPages       int
	ExtractImages     bool
	ExtractDimensions bool // media
	ParseGltfMetadata bool
}

// Result is the uniform parse output. Exactly one of the payload pointers is
// set for a successful parse; Err marks a per-file ParseFailure that the
// pipeline logs and skips without aborting the batch.
type Result struct {
	Path     string
	AbsPath  string
	Format   detect.Format
	Code     *CodeParse
	Web      *WebDocument
	Style    *Stylesheet
	Markdown *MarkdownDocument
	Data     *DataFile
	Media    *MediaFile
	Document *DocumentFile
	Warnings []string
	Err      error
}

// Parser is the single-method contract every per-format parser satisfies.
type Parser interface {
	Parse(ctx context.Context, in Input) *Result
}

// --- Code IR ---

// Scope kinds. Mirrors the kind set the resolver keys UUIDs on.
const (
	KindFunction  = "function"
	KindMethod    = "method"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindVariable  = "variable"
	KindConstant  = "constant"
	KindEnum      = "enum"
	KindModule    = "module"
	KindNamespace = "namespace"
)

// Param is one declared parameter of a function-like scope.
type Param struct {
	Name string
	Type string
}

// HeritageClause records an explicit extends/implements relation on a scope.
type HeritageClause struct {
	Clause string // "extends" or "implements"
	Name   string
}

// Scope is a named code construct with an addressable span in a file.
type Scope struct {
	Name       string
	Kind       string
	FilePath   string // absolute
	StartLine  int
	EndLine    int
	Source     string
	Signature  string
	Parameters []Param
	ReturnType string
	ParentName string
	Depth      int
	Modifiers  []string
	Generics   string
	Decorators []string
	Heritage   []HeritageClause
	EnumMembers []string
	Docstring  string
}

// Reference kinds for identifier uses inside a scope.
const (
	RefLocalScope = "local_scope"
	RefImport     = "import"
	RefGlobal     = "global"
)

// Reference is an identifier use-site attributed to a scope.
type Reference struct {
	FromScope      string // name of the scope containing the use
	Identifier     string
	Kind           string // local_scope, import, global
	TargetFileHint string
	Context        string // surrounding source window
	Line           int
}

// Import is one imported binding declared by a file.
type Import struct {
	Source  string // module specifier as written
	Symbol  string // imported name, "*" for namespace imports
	Alias   string // local alias if renamed
	IsLocal bool   // true for relative/aliased project-internal specifiers
	Line    int
}

// CodeParse is the output of a code parser for one file.
type CodeParse struct {
	Language   string
	Scopes     []*Scope
	Imports    []Import
	References []Reference
}

// --- Web/markup IR ---

// WebDocument covers HTML/Astro pages plus Vue and Svelte single-file
// components.
type WebDocument struct {
	ComponentName  string
	Hash           string
	HasTemplate    bool
	HasScript      bool
	HasStyle       bool
	ScriptLang     string
	Imports        []Import
	UsedComponents []string
	// Script holds the embedded script parse when a code extractor ran on it.
	Script *CodeParse
	// AssetRefs are src/href targets collected from the markup.
	AssetRefs []string
}

// Stylesheet is the parse of a CSS/SCSS file.
type Stylesheet struct {
	Hash          string
	RuleCount     int
	SelectorCount int
	PropertyCount int
	Variables     []string
	ImportedURLs  []string
}

// --- Markdown IR ---

// MarkdownSection is one heading-delimited region of a markdown document.
type MarkdownSection struct {
	Title       string
	Level       int
	Slug        string
	OwnContent  string
	FullContent string
	Hash        string
	ParentTitle string
	StartLine   int
	EndLine     int
}

// CodeBlock is a fenced code block inside a markdown document.
type CodeBlock struct {
	Language  string
	Code      string
	StartLine int
	EndLine   int
	Hash      string
}

// MarkdownDocument is the parse of a markdown file.
type MarkdownDocument struct {
	Title      string
	Hash       string
	Sections   []MarkdownSection
	CodeBlocks []CodeBlock
	Links      []string
	ImageRefs  []string
}

// --- Data IR ---

// DataSection is a nested subtree of a structured data file worth indexing.
type DataSection struct {
	Path       string // dotted path from the root
	Key        string
	ValueType  string // object, array, string, number, boolean, null
	Depth      int
	Content    string
	ParentPath string
}

// Reference classification targets for leaf string values in data files.
const (
	DataRefURL       = "url"
	DataRefPackage   = "package"
	DataRefFile      = "file"
	DataRefDirectory = "directory"
	DataRefImage     = "image"
	DataRefCode      = "code"
	DataRefConfig    = "config"
)

// DataReference is a classified leaf string pointing outside the data file.
type DataReference struct {
	Value       string
	Kind        string
	ContextPath string // dotted path of the containing key
	Symbol      string // for packages: the dependency name
}

// DataFile is the parse of a JSON/YAML/XML/TOML/ENV file.
type DataFile struct {
	Format     string
	Hash       string
	Sections   []DataSection
	References []DataReference
	KeyCount   int
}

// --- Media IR ---

// MediaFile captures header-derived metadata for images and 3D assets.
type MediaFile struct {
	Category  string // image, 3d
	Format    string // png, jpeg, gif, webp, bmp, svg, ico, tiff, gltf, glb
	SizeBytes int64
	Hash      string // short hash of the first 64 KiB
	Width     int
	Height    int
	// glTF metadata
	MeshCount     int
	MaterialCount int
	NodeCount     int
	GeneratorTag  string
	Analyzed          bool
	VisionDescription string
}

// --- Document IR ---

// DocumentFile is the parse of a PDF/DOCX/XLSX/CSV document.
type DocumentFile struct {
	Format            string
	Hash              string
	Text              string
	PageCount         int
	SheetNames        []string
	Headers           []string // CSV header row
	RowCount          int
	NeedsGeminiVision bool
}
