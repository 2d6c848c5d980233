package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/llamaha/codesem/internal/config"
	"github.com/llamaha/codesem/internal/errors"
	"github.com/llamaha/codesem/internal/retrieval"
	"github.com/llamaha/codesem/internal/tool"
)

func newSearchCmd() *cobra.Command {
	var (
		collection string
		limit      int
		threshold  float32
		hasThresh  bool
		backend    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a previously indexed project by meaning",
		Long: `Embeds query with the same provider used to index, searches the named
vector collection, and prints ranked excerpts with file path and line range.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			wd, err := filepath.Abs(".")
			if err != nil {
				return errors.ValidationError("resolve working directory", err)
			}
			cfg, err := config.Load(wd)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				return fmt.Errorf("codesem is disabled for this project (enabled: false in config)")
			}

			if collection == "" {
				collection = filepath.Base(wd)
			}

			var thresholdPtr *float32
			if hasThresh {
				thresholdPtr = &threshold
			}

			return runSearch(cmd.Context(), cmd, searchOptions{
				query:      query,
				collection: collection,
				limit:      limit,
				threshold:  thresholdPtr,
				backend:    backend,
				jsonOutput: jsonOutput,
				cfg:        cfg,
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Vector collection to search (default: current directory's base name)")
	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultLimit, "Maximum number of results")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum cosine similarity score; results below are filtered")
	cmd.Flags().StringVar(&backend, "backend", "", "Override the embedding backend: gpu, ollama, mlx, or static")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		hasThresh = cmd.Flags().Changed("threshold")
	}

	return cmd
}

type searchOptions struct {
	query      string
	collection string
	limit      int
	threshold  *float32
	backend    string
	jsonOutput bool
	cfg        *config.Config
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts searchOptions) error {
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

	retriever := retrieval.New(embedder, store, opts.collection)
	results, err := retriever.Search(ctx, opts.query, opts.limit, opts.threshold)
	if err != nil {
		return errors.InternalError("run search", err)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), tool.FormatResults(results))
	return err
}
