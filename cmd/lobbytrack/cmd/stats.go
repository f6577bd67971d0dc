package cmd

import (
	"fmt"
	"os"
	"time"

	"lobbytrack-backend/services/runstats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	statsLast  int
	statsSince string
)

func init() {
	statsCmd.Flags().IntVar(&statsLast, "last", 10, "number of runs to show")
	statsCmd.Flags().StringVar(&statsSince, "since", "", "only show runs on or after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded pipeline run statistics.",
	Run: func(cmd *cobra.Command, args []string) {
		log := statsLog()

		var events []runstats.Event
		var err error
		if statsSince != "" {
			from, perr := time.Parse("2006-01-02", statsSince)
			if perr != nil {
				fmt.Fprintln(os.Stderr, "invalid --since date:", perr.Error())
				os.Exit(1)
			}
			events, err = log.Between(from, time.Time{})
		} else {
			events, err = log.Tail(statsLast)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if len(events) == 0 {
			fmt.Println("no recorded runs")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"timestamp", "found", "ok", "failed", "meta gen", "meta skip", "parsed"})
		for _, e := range events {
			t.AppendRow(table.Row{
				e.Timestamp, e.NewJobsFound, e.DownloadSuccessful,
				e.DownloadFailed, e.MetadataGenerated, e.MetadataSkipped,
				e.ParsedJobs,
			})
		}
		t.Render()

		s := runstats.Summarize(events)
		fmt.Printf("%d runs, %d downloads ok, %d failed (%.0f%% success), %d posts parsed\n",
			s.Runs, s.DownloadSuccessful, s.DownloadFailed, s.SuccessRate()*100, s.ParsedJobs)
	},
}
