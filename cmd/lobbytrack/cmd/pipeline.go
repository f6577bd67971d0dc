package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lobbytrack-backend/services/consolidate"
	"lobbytrack-backend/services/dashapi"
	"lobbytrack-backend/services/ingest"
	"lobbytrack-backend/services/listing"

	"github.com/spf13/cobra"
)

var (
	pipelineNoCache    bool
	pipelineCacheHours float64
)

func init() {
	pipelineCmd.Flags().BoolVar(&pipelineNoCache, "no-cache", false, "ignore the snapshot freshness window")
	pipelineCmd.Flags().Float64Var(&pipelineCacheHours, "cache-hours", 0, "override the snapshot freshness window")
	rootCmd.AddCommand(pipelineCmd)
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run parse, download, consolidate and index in sequence.",
	Long: `Runs every pipeline stage in order. A failing stage is logged and the
remaining stages still run; the exit code is non-zero if any stage
failed. Fetching the listing itself is done by the external browser
fetcher, this command only reports whether a fresh snapshot exists.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		window := time.Duration(cfg.CacheHours * float64(time.Hour))
		if pipelineCacheHours > 0 {
			window = time.Duration(pipelineCacheHours * float64(time.Hour))
		}
		if pipelineNoCache {
			window = 0
		}
		if fresh, ok := listing.FreshSnapshot(cfg.DataDir, window); ok {
			slog.InfoContext(ctx, "using fresh listing snapshot", "file", fresh)
		} else {
			slog.WarnContext(ctx, "no fresh listing snapshot, run the fetcher first",
				"window", window)
		}

		failed := 0
		runStage(ctx, "parse", &failed, func() error {
			_, err := listing.ParseTree(ctx, cfg.DataDir, statsLog())
			return err
		})
		runStage(ctx, "download", &failed, func() error {
			driver := ingest.NewDriver(ingest.Options{
				DataDir:   cfg.DataDir,
				MaxPerRun: cfg.MaxPerRun,
				Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
				UserAgent: cfg.UserAgent,
				PerSecond: cfg.RatePerSecond,
			}, pageStore(), statsLog())
			_, err := driver.Run(ctx)
			return err
		})
		runStage(ctx, "consolidate", &failed, func() error {
			policy, err := consolidate.ParsePolicy(cfg.MergePolicy)
			if err != nil {
				return err
			}
			_, _, err = consolidate.Consolidate(ctx, cfg.DataDir, consolidate.Options{
				Force:  true,
				Policy: policy,
			})
			return err
		})
		runStage(ctx, "index", &failed, func() error {
			if _, err := dashapi.WriteFileIndex(ctx, cfg.DataDir, cfg.ApiDir); err != nil {
				return err
			}
			_, err := dashapi.WriteDownloadedIndex(ctx, pageStore(), cfg.DataDir, cfg.ApiDir)
			return err
		})

		if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d stage(s) failed\n", failed)
			os.Exit(1)
		}
		fmt.Println("all stages completed")
	},
}

func runStage(ctx context.Context, name string, failed *int, fn func() error) {
	slog.InfoContext(ctx, "running stage", "stage", name)
	if err := fn(); err != nil {
		slog.ErrorContext(ctx, "stage failed", "stage", name, "err", err)
		*failed++
	}
}
