package cmd

import (
	"fmt"
	"os"
	"time"

	"lobbytrack-backend/services/ingest"

	"github.com/spf13/cobra"
)

var (
	downloadForce bool
	downloadLimit int
)

func init() {
	downloadCmd.Flags().BoolVar(&downloadForce, "force", false, "re-fetch pages already in the cache")
	downloadCmd.Flags().IntVar(&downloadLimit, "limit", 0, "override the per-run download cap")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download detail pages for postings not yet in the cache.",
	Run: func(cmd *cobra.Command, args []string) {
		opts := ingest.Options{
			DataDir:   cfg.DataDir,
			MaxPerRun: cfg.MaxPerRun,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			UserAgent: cfg.UserAgent,
			PerSecond: cfg.RatePerSecond,
			Force:     downloadForce,
		}
		if downloadLimit > 0 {
			opts.MaxPerRun = downloadLimit
		}

		driver := ingest.NewDriver(opts, pageStore(), statsLog())
		res, err := driver.Run(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		fmt.Printf("found %d new jobs, downloaded %d, failed %d\n",
			res.NewJobsFound, res.Successful, res.Failed)
		fmt.Printf("metadata: %d generated, %d skipped, %d failed\n",
			res.MetadataGenerated, res.MetadataSkipped, res.MetadataFailed)
	},
}
