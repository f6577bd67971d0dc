package cmd

import (
	"fmt"
	"os"

	"lobbytrack-backend/services/dashapi"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Generate the dashboard API index files.",
	Run: func(cmd *cobra.Command, args []string) {
		files, err := dashapi.WriteFileIndex(cmd.Context(), cfg.DataDir, cfg.ApiDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		downloaded, err := dashapi.WriteDownloadedIndex(cmd.Context(), pageStore(), cfg.DataDir, cfg.ApiDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Printf("indexed %d json files, %d downloaded jobs\n", files.Count, downloaded.Count)
	},
}
