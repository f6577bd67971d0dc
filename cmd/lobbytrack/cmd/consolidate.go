package cmd

import (
	"errors"
	"fmt"
	"os"

	"lobbytrack-backend/services/consolidate"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	consolidateForce  bool
	consolidateStats  bool
	consolidatePolicy string
)

func init() {
	consolidateCmd.Flags().BoolVar(&consolidateForce, "force", false, "overwrite an existing consolidated file")
	consolidateCmd.Flags().BoolVar(&consolidateStats, "stats", false, "print duplication statistics")
	consolidateCmd.Flags().StringVar(&consolidatePolicy, "policy", "", "merge policy: keep-first, keep-last or keep-history")
	rootCmd.AddCommand(consolidateCmd)
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge all snapshots into one deduplicated collection.",
	Run: func(cmd *cobra.Command, args []string) {
		policyArg := consolidatePolicy
		if policyArg == "" {
			policyArg = cfg.MergePolicy
		}
		policy, err := consolidate.ParsePolicy(policyArg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		coll, report, err := consolidate.Consolidate(cmd.Context(), cfg.DataDir, consolidate.Options{
			Force:  consolidateForce,
			Policy: policy,
		})
		if errors.Is(err, consolidate.ErrExists) {
			fmt.Println("consolidated file already exists, use --force to overwrite")
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		fmt.Printf("consolidated %d unique jobs\n", coll.TotalUniqueJobs)

		if !consolidateStats {
			return
		}
		fmt.Printf("total mentions: %d, duplicates removed: %d (%.1f%%)\n",
			report.TotalMentions, report.Duplicates, report.Ratio()*100)
		if len(report.Top) == 0 || report.Top[0].Count <= 1 {
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"post id", "position", "seen"})
		for _, entry := range report.Top {
			t.AppendRow(table.Row{entry.PostID, entry.Position, entry.Count})
		}
		t.Render()
	},
}
