package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lobbytrack-backend/lib/configutil"
	"lobbytrack-backend/lib/pagestore"
	"lobbytrack-backend/lib/telemetry"
	"lobbytrack-backend/services/runstats"

	"github.com/spf13/cobra"
)

type Config struct {
	DataDir        string  `json:"data_dir"`
	ApiDir         string  `json:"api_dir"`
	StatsFile      string  `json:"stats_file"`
	CacheHours     float64 `json:"cache_hours"`
	MaxPerRun      int     `json:"max_per_run"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	UserAgent      string  `json:"user_agent"`
	RatePerSecond  float64 `json:"rate_per_second"`
	MergePolicy    string  `json:"merge_policy"`
}

var (
	verbose bool
	cfg     Config
	tel     telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "lobbytrack",
	Short: "lobbytrack ingests job-listing snapshots into a deduplicated archive.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "lobbytrack")
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}

		cfg, err = configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
		applyConfigDefaults(&cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		tel.Shutdown(context.Background())
	},
}

func applyConfigDefaults(c *Config) {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ApiDir == "" {
		c.ApiDir = "api"
	}
	if c.StatsFile == "" {
		c.StatsFile = filepath.Join("logs", "cron_stats.jsonl")
	}
	if c.CacheHours == 0 {
		c.CacheHours = 1
	}
}

func pageStore() pagestore.Filesystem {
	return pagestore.NewFilesystem(filepath.Join(cfg.DataDir, "job-pages"))
}

func statsLog() runstats.Log {
	return runstats.NewLog(cfg.StatsFile)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
