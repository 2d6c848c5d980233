// Package chunk segments source text into semantic units for indexing.
package chunk

import "context"

// ElementType classifies the syntactic role a Chunk was captured as.
type ElementType string

const (
	ElementFunction  ElementType = "function"
	ElementMethod    ElementType = "method"
	ElementClass     ElementType = "class"
	ElementStruct    ElementType = "struct"
	ElementEnum      ElementType = "enum"
	ElementTrait     ElementType = "trait"
	ElementImpl      ElementType = "impl"
	ElementTypeDecl  ElementType = "type"
	ElementCodeBlock ElementType = "code_block"
	ElementTextBlock ElementType = "text_block"
)

// ByteRange is a half-open interval into a source buffer.
type ByteRange struct {
	Start int
	End   int
}

// Chunk is one semantic slice of a file.
type Chunk struct {
	ByteRange   ByteRange
	StartLine   int // 0-indexed, inclusive
	EndLine     int // 0-indexed, inclusive
	Content     string
	ElementType ElementType
	Language    string
}

// Input is a file to be chunked.
type Input struct {
	Path     string // used only for extension-based language inference
	Content  []byte
	Language string // explicit language hint; overrides path inference
}

// Chunker segments source text into Chunks.
type Chunker interface {
	// Chunk splits a file into semantic units, falling back to line or byte
	// windows when grammar-driven segmentation is unavailable or empty.
	Chunk(ctx context.Context, in Input) ([]*Chunk, error)

	// SupportedLanguages returns the language names with grammar support.
	SupportedLanguages() []string
}

// lineWindowSize is the fallback window width for unsupported languages
// and for supported languages whose grammar query produced zero matches.
const lineWindowSize = 50

// textWindowBytes bounds byte-windows used when no language is known at all.
const textWindowBytes = 1000
