package chunk

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// queryCache memoizes compiled tree-sitter queries per language: Query
// compilation is a one-time cost the registry pays on first use of a
// language, not on every Parser.
type queryCache struct {
	mu      sync.Mutex
	queries map[string]*sitter.Query
}

func newQueryCache() *queryCache {
	return &queryCache{queries: make(map[string]*sitter.Query)}
}

func (c *queryCache) get(lang string, g grammar) (*sitter.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.queries[lang]; ok {
		return q, nil
	}
	q, err := sitter.NewQuery([]byte(g.query), g.language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}
	c.queries[lang] = q
	return q, nil
}

// Parser wraps a tree-sitter parser instance. It is not safe for concurrent
// use; callers needing concurrency should use one Parser per goroutine, or
// guard calls with a mutex the way the embedding provider guards its
// forward pass.
type Parser struct {
	sp *sitter.Parser
}

// NewParser constructs a Parser. Construction never fails; language
// selection happens per-call in Parse.
func NewParser() *Parser {
	return &Parser{sp: sitter.NewParser()}
}

// Parse parses source with the given tree-sitter language. Grammar
// construction failures are fatal to the caller's intent and returned as
// errors; the caller (CodeChunker) treats them as a soft failure and falls
// back to line-window chunking.
func (p *Parser) Parse(ctx context.Context, source []byte, lang *sitter.Language) (*sitter.Tree, error) {
	p.sp.SetLanguage(lang)
	tree, err := p.sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse source: nil tree")
	}
	return tree, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.sp != nil {
		p.sp.Close()
	}
}
