package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/llamaha/codesem/internal/chunk"
	"github.com/llamaha/codesem/internal/config"
	"github.com/llamaha/codesem/internal/errors"
	"github.com/llamaha/codesem/internal/ingest"
	"github.com/llamaha/codesem/internal/scanner"
	"github.com/llamaha/codesem/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		collection  string
		projectID   string
		concurrency int
		backend     string
		resume      bool
		noTUI       bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Chunk, embed and index a project tree into the vector store",
		Long: `Scans path (default: current directory), chunks each source file,
embeds the chunks and upserts them into the configured vector collection.

Pass --resume to skip chunks a previous run already indexed for the same
collection, using a local checkpoint database under .codesem/.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			absPath, err := filepath.Abs(path)
			if err != nil {
				return errors.ValidationError("resolve index path", err)
			}

			cfg, err := config.Load(absPath)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				return fmt.Errorf("codesem is disabled for this project (enabled: false in config)")
			}

			if collection == "" {
				collection = filepath.Base(absPath)
			}

			return runIndex(cmd.Context(), cmd, indexOptions{
				rootDir:     absPath,
				collection:  collection,
				projectID:   projectID,
				concurrency: concurrency,
				backend:     backend,
				resume:      resume,
				noTUI:       noTUI,
				cfg:         cfg,
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Vector collection name (default: the directory's base name)")
	cmd.Flags().StringVar(&projectID, "project-id", "", "Project identifier stored on each chunk's metadata")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "Number of files chunked/embedded/upserted in parallel")
	cmd.Flags().StringVar(&backend, "backend", "", "Override the embedding backend: gpu, ollama, mlx, or static")
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip chunks already indexed in a previous run for this collection")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Force plain text progress output")

	return cmd
}

type indexOptions struct {
	rootDir     string
	collection  string
	projectID   string
	concurrency int
	backend     string
	resume      bool
	noTUI       bool
	cfg         *config.Config
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	sc, err := scanner.New()
	if err != nil {
		return errors.InternalError("create scanner", err)
	}

	embedder, err := buildEmbedder(ctx, opts.cfg, opts.backend)
	if err != nil {
		return err
	}
	defer embedder.Close()

	store, err := buildStore(opts.cfg.GPUEmbedding.Enabled, opts.cfg.GPUEmbedding.QdrantURL)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline := ingest.New(sc, chunk.NewCodeChunker(), embedder, store, ingest.Config{
		RootDir:     opts.rootDir,
		Collection:  opts.collection,
		ProjectID:   opts.projectID,
		Concurrency: opts.concurrency,
	}, nil)

	if opts.resume {
		checkpointPath := filepath.Join(opts.rootDir, ".codesem", "checkpoint.db")
		cp, err := ingest.OpenCheckpointStore(checkpointPath)
		if err != nil {
			return errors.IOError("open checkpoint store", err)
		}
		defer cp.Close()
		pipeline = pipeline.WithCheckpoint(cp)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(opts.noTUI), ui.WithProjectDir(opts.rootDir)))
	if err := renderer.Start(ctx); err != nil {
		return errors.InternalError("start progress renderer", err)
	}
	defer func() { _ = renderer.Stop() }()

	err = pipeline.Run(ctx, opts.rootDir, func(p ingest.Progress) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: p.FilesProcessed,
			Total:   p.FilesTotal,
		})
		for _, e := range p.Errors {
			renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("%s", e), IsWarn: true})
		}
	})
	if err != nil {
		return errors.InternalError("run indexing pipeline", err)
	}

	renderer.Complete(ui.CompletionStats{
		Embedder: ui.EmbedderInfo{
			Backend:    opts.backend,
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		},
	})
	return nil
}
