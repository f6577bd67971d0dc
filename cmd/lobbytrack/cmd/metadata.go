package cmd

import (
	"fmt"

	"lobbytrack-backend/services/jobdetail"

	"github.com/spf13/cobra"
)

var metadataForce bool

func init() {
	metadataCmd.Flags().BoolVar(&metadataForce, "force", false, "overwrite existing metadata files")
	rootCmd.AddCommand(metadataCmd)
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Regenerate metadata JSON for every downloaded job page.",
	Run: func(cmd *cobra.Command, args []string) {
		generated, skipped, failed := jobdetail.GenerateAll(cmd.Context(), pageStore(), metadataForce)
		fmt.Printf("metadata: %d generated, %d skipped, %d failed\n", generated, skipped, failed)
	},
}
