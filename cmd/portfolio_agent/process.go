package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/portfolio-pipeline/internal/observability"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/server"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

var (
	processTheme  string
	processStyle  string
	processJSON   bool
	processClient string
)

var processCmd = &cobra.Command{
	Use:   "process <file>...",
	Short: "Generate portfolio layouts for resume files",
	Long: `Run each file through the pipeline and print the resulting profile and components.

Files are processed concurrently, bounded by PROCESS_CONCURRENCY. With a single file the progress
of each stage is printed as it happens. Use --json to print machine-readable results instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processTheme, "theme", types.ThemeAuto, "Theme preference: auto, neon_blue, emerald_green or cyber_pink")
	processCmd.Flags().StringVar(&processStyle, "style", string(types.StyleModern), "Component style: modern, classic or minimal")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Print results as JSON")
	processCmd.Flags().StringVar(&processClient, "client-id", "", "Client identifier used for duplicate detection")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	a, err := newApp(ctx, appConfig, appOptions{}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return processFiles(ctx, a.orchestrator, args, batchOptions{
		Concurrency: appConfig.Concurrency,
		Options: map[string]any{
			types.OptionThemePreference: processTheme,
			types.OptionComponentStyle:  processStyle,
		},
		ClientID: processClient,
		JSON:     processJSON,
	}, cmd.OutOrStdout())
}

// batchOptions controls a processFiles run
type batchOptions struct {
	Concurrency int
	Options     map[string]any
	ClientID    string
	JSON        bool
}

// fileResult pairs an input path with its pipeline outcome
type fileResult struct {
	File   string           `json:"file"`
	Result *pipeline.Result `json:"result"`
}

// processFiles runs every file through proc with bounded concurrency and prints the results in
// input order. It returns an error when any file fails.
func processFiles(ctx context.Context, proc server.Processor, files []string, opts batchOptions, out io.Writer) error {
	results := make([]fileResult, len(files))

	var progress pipeline.ProgressSink
	if len(files) == 1 && !opts.JSON {
		progress = observability.NewPrinter(out)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, path := range files {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			results[i] = fileResult{
				File: path,
				Result: proc.Process(gctx, pipeline.Request{
					Content:     content,
					Filename:    filepath.Base(path),
					ContentType: mimetype.Detect(content).String(),
					Options:     opts.Options,
					ClientID:    opts.ClientID,
					Progress:    progress,
				}),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, fr := range results {
		if fr.Result == nil || !fr.Result.Success {
			failed++
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	} else {
		printer := observability.NewPrinter(out)
		for _, fr := range results {
			printer.PrintResult(fr.File, fr.Result)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
