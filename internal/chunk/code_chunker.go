package chunk

import (
	"bytes"
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// CodeChunker is the grammar-driven chunker: parse once per supported
// language, walk the capture query's matches, and emit one Chunk per
// captured node using the node's own byte and row ranges.
type CodeChunker struct {
	parser  *Parser
	queries *queryCache
}

var _ Chunker = (*CodeChunker)(nil)

// NewCodeChunker constructs a CodeChunker. It owns a tree-sitter Parser;
// call Close when done with it.
func NewCodeChunker() *CodeChunker {
	return &CodeChunker{
		parser:  NewParser(),
		queries: newQueryCache(),
	}
}

// Close releases the underlying parser.
func (c *CodeChunker) Close() {
	c.parser.Close()
}

// SupportedLanguages returns the languages with grammar-driven support.
func (c *CodeChunker) SupportedLanguages() []string {
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chunk implements Chunker.
func (c *CodeChunker) Chunk(ctx context.Context, in Input) ([]*Chunk, error) {
	if len(in.Content) == 0 {
		return nil, nil
	}

	// No language hint and no path to infer one from: this is the raw-text
	// invocation mode, which gets byte-window chunks rather than the
	// unsupported-language line-window fallback below.
	if in.Language == "" && in.Path == "" {
		return chunkByBytes(in.Content, "unknown"), nil
	}

	lang := in.Language
	if lang == "" {
		detected, ok := DetectLanguage(in.Path)
		if !ok {
			detected = "unknown"
		}
		lang = detected
	}

	g, supported := grammars[lang]
	if !supported {
		return chunkByLines(in.Content, lang), nil
	}

	chunks, err := c.chunkWithGrammar(ctx, in.Content, lang, g)
	if err != nil {
		// Parser build/query failure on this document: soft-fail to
		// line-window chunking rather than propagate the error, so a single
		// malformed file never aborts an entire indexing run.
		return chunkByLines(in.Content, lang), nil
	}
	if len(chunks) == 0 {
		return chunkByLines(in.Content, lang), nil
	}
	return chunks, nil
}

func (c *CodeChunker) chunkWithGrammar(ctx context.Context, source []byte, lang string, g grammar) ([]*Chunk, error) {
	tree, err := c.parser.Parse(ctx, source, g.language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	query, err := c.queries.get(lang, g)
	if err != nil {
		return nil, err
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	var chunks []*Chunk
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			name := query.CaptureNameForId(capture.Index)
			elementType, known := captureElement[name]
			if !known {
				continue
			}
			node := capture.Node
			chunks = append(chunks, &Chunk{
				ByteRange: ByteRange{
					Start: int(node.StartByte()),
					End:   int(node.EndByte()),
				},
				StartLine:   int(node.StartPoint().Row),
				EndLine:     int(node.EndPoint().Row),
				Content:     string(source[node.StartByte():node.EndByte()]),
				ElementType: elementType,
				Language:    lang,
			})
		}
	}
	return chunks, nil
}

// chunkByLines is the fixed line-window fallback for unsupported languages,
// or for supported languages whose grammar query produced zero matches.
func chunkByLines(source []byte, lang string) []*Chunk {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil
	}

	lines := bytes.Split(source, []byte("\n"))
	var chunks []*Chunk
	offset := 0
	for i := 0; i < len(lines); i += lineWindowSize {
		end := i + lineWindowSize
		if end > len(lines) {
			end = len(lines)
		}

		start := offset
		for j := i; j < end; j++ {
			offset += len(lines[j])
			if j < len(lines)-1 {
				offset++ // the newline stripped by Split
			}
		}

		chunks = append(chunks, &Chunk{
			ByteRange:   ByteRange{Start: start, End: offset},
			StartLine:   i,
			EndLine:     end - 1,
			Content:     string(source[start:offset]),
			ElementType: ElementCodeBlock,
			Language:    lang,
		})
	}
	return chunks
}

// chunkByBytes is the raw-text fallback used when no language can be
// determined at all: non-overlapping byte windows of at most
// textWindowBytes, preferring the last newline within the window.
func chunkByBytes(source []byte, lang string) []*Chunk {
	if len(source) == 0 {
		return nil
	}

	var chunks []*Chunk
	start := 0
	for start < len(source) {
		end := start + textWindowBytes
		if end > len(source) {
			end = len(source)
		}

		chunkEnd := end
		if end < len(source) {
			if nl := bytes.LastIndexByte(source[start:end], '\n'); nl >= 0 {
				chunkEnd = start + nl + 1
			}
		}
		if chunkEnd <= start {
			chunkEnd = end
		}

		startLine := bytes.Count(source[:start], []byte("\n"))
		endLine := startLine + bytes.Count(source[start:chunkEnd], []byte("\n"))
		if chunkEnd < len(source) || bytes.HasSuffix(source[start:chunkEnd], []byte("\n")) {
			endLine--
		}
		if endLine < startLine {
			endLine = startLine
		}

		chunks = append(chunks, &Chunk{
			ByteRange:   ByteRange{Start: start, End: chunkEnd},
			StartLine:   startLine,
			EndLine:     endLine,
			Content:     string(source[start:chunkEnd]),
			ElementType: ElementTextBlock,
			Language:    lang,
		})
		start = chunkEnd
	}
	return chunks
}
