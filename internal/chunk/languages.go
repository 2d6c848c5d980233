package chunk

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extensionLanguage is the closed mapping from file extension to language
// name used when no explicit language hint is supplied.
var extensionLanguage = map[string]string{
	".rs":  "rust",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "tsx",
	".py":  "python",
	".go":  "go",
}

// DetectLanguage infers a language name from a file path's extension.
// It returns ("unknown", false) for any extension outside the closed set.
func DetectLanguage(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extensionLanguage[ext]
	if !ok {
		return "unknown", false
	}
	return lang, true
}

// grammar couples a tree-sitter language with the capture query that names
// its top-level semantic nodes. Capture names map 1:1 onto ElementType,
// except where several node kinds are folded into the same capture (e.g.
// JS/TS function_declaration, function_expression and arrow_function all
// capture as @function).
type grammar struct {
	language *sitter.Language
	query    string
}

// grammars is the registry of grammar-driven languages. Languages outside
// this set always fall through to the line-window fallback.
var grammars = map[string]grammar{
	"rust": {
		language: rust.GetLanguage(),
		query: `
			(function_item) @function
			(impl_item) @impl
			(struct_item) @struct
			(enum_item) @enum
			(trait_item) @trait
		`,
	},
	"javascript": {
		language: javascript.GetLanguage(),
		query: `
			(function_declaration) @function
			(function_expression) @function
			(arrow_function) @function
			(class_declaration) @class
			(method_definition) @method
		`,
	},
	"typescript": {
		language: typescript.GetLanguage(),
		query: `
			(function_declaration) @function
			(function_expression) @function
			(arrow_function) @function
			(class_declaration) @class
			(method_definition) @method
		`,
	},
	"tsx": {
		language: tsx.GetLanguage(),
		query: `
			(function_declaration) @function
			(function_expression) @function
			(arrow_function) @function
			(class_declaration) @class
			(method_definition) @method
		`,
	},
	"python": {
		language: python.GetLanguage(),
		query: `
			(function_definition) @function
			(class_definition) @class
		`,
	},
	"go": {
		language: golang.GetLanguage(),
		query: `
			(function_declaration) @function
			(method_declaration) @method
			(type_declaration) @type
		`,
	},
}

// captureElement maps a query capture name onto the ElementType emitted for
// nodes matched under that capture.
var captureElement = map[string]ElementType{
	"function": ElementFunction,
	"method":   ElementMethod,
	"class":    ElementClass,
	"struct":   ElementStruct,
	"enum":     ElementEnum,
	"trait":    ElementTrait,
	"impl":     ElementImpl,
	"type":     ElementTypeDecl,
}
