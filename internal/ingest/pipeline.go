// Package ingest drives the full indexing pipeline: scan a project tree,
// chunk each file, embed the chunks, and upsert them into a vector
// collection, fanning the chunk/embed/upsert stages out across a worker
// pool.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llamaha/codesem/internal/chunk"
	"github.com/llamaha/codesem/internal/embed"
	"github.com/llamaha/codesem/internal/scanner"
	"github.com/llamaha/codesem/internal/vectorstore"
)

// Progress is a snapshot a caller can poll or render to a progress bar
// while ingestion runs.
type Progress struct {
	FilesTotal     int
	FilesProcessed int
	ChunksIndexed  int
	Errors         []string
}

// Pipeline ties a scanner, chunker, embedding provider and vector store
// together into one ingestion run.
type Pipeline struct {
	scanner     *scanner.Scanner
	chunker     chunk.Chunker
	embedder    embed.Embedder
	store       vectorstore.Store
	checkpoint  *CheckpointStore
	collection  string
	projectID   string
	concurrency int
	logger      *slog.Logger
}

// Config configures a Pipeline.
type Config struct {
	RootDir     string
	Collection  string
	ProjectID   string
	Concurrency int // number of files chunked/embedded/upserted in parallel
}

// New constructs a Pipeline from its collaborators.
func New(sc *scanner.Scanner, chunker chunk.Chunker, embedder embed.Embedder, store vectorstore.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		scanner:     sc,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		collection:  cfg.Collection,
		projectID:   cfg.ProjectID,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// WithCheckpoint attaches a checkpoint store that Run consults to skip
// chunks a prior run already embedded and upserted. Passing nil disables
// resumption (every run starts cold), which is also the default.
func (p *Pipeline) WithCheckpoint(cp *CheckpointStore) *Pipeline {
	p.checkpoint = cp
	return p
}

// Run scans rootDir and ingests every discovered file, calling onProgress
// (if non-nil) after each file completes; every call has been made by the
// time Run returns. It returns an error only when the scan or collection
// creation fails; per-file chunking/embedding failures
// are logged and recorded in Progress.Errors rather than aborting the run,
// so one bad file never takes down an otherwise-healthy indexing pass.
func (p *Pipeline) Run(ctx context.Context, rootDir string, onProgress func(Progress)) error {
	results, err := p.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          rootDir,
		RespectGitignore: true,
	})
	if err != nil {
		return fmt.Errorf("ingest: scan %s: %w", rootDir, err)
	}

	dims := p.embedder.Dimensions()
	if err := p.store.CreateCollection(ctx, p.collection, dims); err != nil {
		return fmt.Errorf("ingest: create collection %q: %w", p.collection, err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)

	progress := Progress{}
	progressCh := make(chan fileOutcome, p.concurrency*2)
	progressDone := make(chan struct{})

	go func() {
		defer close(progressDone)
		for outcome := range progressCh {
			progress.FilesProcessed++
			progress.ChunksIndexed += outcome.chunksIndexed
			if outcome.err != nil {
				progress.Errors = append(progress.Errors, outcome.err.Error())
			}
			if onProgress != nil {
				onProgress(progress)
			}
		}
	}()

	for result := range results {
		if result.Error != nil {
			p.logger.Warn("ingest: scan error", slog.String("error", result.Error.Error()))
			continue
		}
		file := result.File
		progress.FilesTotal++

		group.Go(func() error {
			n, err := p.ingestFile(gctx, file.AbsPath, file.Path)
			progressCh <- fileOutcome{chunksIndexed: n, err: err}
			if err != nil {
				p.logger.Warn("ingest: file failed", slog.String("path", file.Path), slog.String("error", err.Error()))
			}
			return nil // per-file errors are soft; never abort the group
		})
	}

	err = group.Wait()
	close(progressCh)
	<-progressDone
	return err
}

type fileOutcome struct {
	chunksIndexed int
	err           error
}

func (p *Pipeline) ingestFile(ctx context.Context, absPath, relPath string) (int, error) {
	content, err := readFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", relPath, err)
	}

	chunks, err := p.chunker.Chunk(ctx, chunk.Input{Path: relPath, Content: content})
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", relPath, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = chunkID(relPath, c)
	}

	var seen map[string]bool
	if p.checkpoint != nil {
		seen, err = p.checkpoint.Seen(ctx, p.collection, ids)
		if err != nil {
			return 0, fmt.Errorf("checkpoint lookup %s: %w", relPath, err)
		}
	}

	pending := make([]*chunk.Chunk, 0, len(chunks))
	pendingIDs := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if seen[ids[i]] {
			continue
		}
		pending = append(pending, c)
		pendingIDs = append(pendingIDs, ids[i])
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", relPath, err)
	}

	docs := make([]vectorstore.Document, len(pending))
	for i, c := range pending {
		docs[i] = vectorstore.Document{
			ID:        pendingIDs[i],
			Embedding: embeddings[i],
			Metadata: vectorstore.DocumentMetadata{
				FilePath:    relPath,
				StartLine:   c.StartLine,
				EndLine:     c.EndLine,
				Content:     c.Content,
				Language:    c.Language,
				ElementType: string(c.ElementType),
				ProjectID:   p.projectID,
			},
		}
	}

	if err := p.store.InsertDocuments(ctx, p.collection, docs); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", relPath, err)
	}

	if p.checkpoint != nil {
		if err := p.checkpoint.MarkIngested(ctx, p.collection, relPath, pendingIDs, time.Now().Unix()); err != nil {
			return len(docs), fmt.Errorf("checkpoint mark %s: %w", relPath, err)
		}
	}
	return len(docs), nil
}
