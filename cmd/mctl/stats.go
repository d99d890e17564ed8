package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/mentions/internal/store"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var dbPath string
	var limit int
	var fetches bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Recent loads and per-source fetch health",
		Long: `Print the fetch log mentions keeps: the most recent load cycles and,
for every source, how often it was fetched, how often that failed and when
it last succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			total, err := st.LoadCount()
			if err != nil {
				return err
			}
			loads, err := st.RecentLoads(limit)
			if err != nil {
				return err
			}
			sources, err := st.SourceStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loads recorded: %s\n\n", humanize.Comma(int64(total)))
			printLoads(out, loads, fetches, time.Now())
			fmt.Fprintln(out)
			printSourceStats(out, sources, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Database (default: db_path from the config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent loads to show")
	cmd.Flags().BoolVar(&fetches, "fetches", false, "List each source fetch under its load")
	return cmd
}

func printLoads(out io.Writer, loads []store.LoadRecord, fetches bool, now time.Time) {
	if len(loads) == 0 {
		fmt.Fprintln(out, "No loads recorded yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOAD\tSTARTED\tTOOK\tSTATUS\tKIND\tMENTIONS\tDROPPED\tERROR")
	for _, l := range loads {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			l.LoadID,
			humanize.RelTime(l.Started, now, "ago", "from now"),
			l.Finished.Sub(l.Started).Round(time.Millisecond),
			l.Status,
			dash(l.Kind),
			l.Mentions,
			l.Dropped,
			truncate(l.Err, 60))
		if !fetches {
			continue
		}
		for _, f := range l.Fetches {
			outcome := "ok"
			if !f.OK {
				outcome = truncate(f.Err, 50)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t\t\t%s\n",
				f.Source, humanize.Bytes(uint64(f.Bytes)), f.Dur.Round(time.Millisecond), dash(f.Shape), dash(f.Tier), outcome)
		}
	}
	w.Flush()
}

func printSourceStats(out io.Writer, stats []store.SourceStat, now time.Time) {
	if len(stats) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tFETCHES\tFAILED\tAVG\tLAST OK")
	for _, s := range stats {
		last := "never"
		if !s.LastOK.IsZero() {
			last = humanize.RelTime(s.LastOK, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", s.Source, s.Attempts, s.Failures, s.AvgDur.Round(time.Millisecond), last)
	}
	w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
