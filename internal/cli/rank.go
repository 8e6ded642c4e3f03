package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRankCmd(opts *globalOptions) *cobra.Command {
	var q RankingQuery

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the technician ranking",
		Example: `  techrankctl rank
  techrankctl rank --sort rating --start 2024-01-01 --end 2024-01-31
  techrankctl rank --search ali`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := opts.client().Rankings(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "RANK\tNAME\tCALLS\tSERVICE\tFIRST RESPONSE\tRATING")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%.2f\n",
					r.Rank, r.Name, r.TotalCalls, minutes(r.AvgServiceTime), minutes(r.AvgFirstResponseTime), r.AvgRating)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&q.Sort, "sort", "s", "", "Sort key: totalCalls, avgServiceTime, firstResponseTime or rating")
	cmd.Flags().StringVarP(&q.Search, "search", "q", "", "Case-insensitive name filter")
	cmd.Flags().StringVar(&q.Start, "start", "", "Window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&q.End, "end", "", "Window end (YYYY-MM-DD or RFC3339)")

	return cmd
}

func newOverviewCmd(opts *globalOptions) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print team-wide averages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := opts.client().Overview(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Total calls:\t%d\n", m.TotalCalls)
			fmt.Fprintf(tw, "Avg service time:\t%s\n", minutes(m.AvgServiceTime))
			fmt.Fprintf(tw, "Avg first response:\t%s\n", minutes(m.AvgFirstResponseTime))
			fmt.Fprintf(tw, "Avg rating:\t%.2f\n", m.AvgRating)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (YYYY-MM-DD or RFC3339)")

	return cmd
}
