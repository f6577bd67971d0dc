package cmd

import (
	"fmt"
	"os"

	"lobbytrack-backend/services/listing"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse captured listing snapshots into per-snapshot JSON.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := listing.ParseTree(cmd.Context(), cfg.DataDir, statsLog())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Printf("processed %d/%d files, extracted %d posts (%d failed)\n",
			res.FilesProcessed, res.FilesFound, res.PostsExtracted, res.PostsFailed)
	},
}
