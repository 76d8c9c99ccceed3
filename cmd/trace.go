package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/sparta/datarecording"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace [database]",
	Short: "Show the events recorded by demo --trace.",
	Long: "`trace run1` lists the firings recorded in run1.sqlite3, in the " +
		"order they fired. Without an argument the database named by " +
		EnvRecordDB + " is read. --summary counts the matching firings per " +
		"phase and per event instead of listing them.",
	Args: cobra.MaximumNArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)

	f := traceCmd.Flags()
	f.String("event", "", "only events whose name matches the glob")
	f.String("location", "", "only events whose location matches the glob")
	f.String("phase", "", "only events of the scheduling phase")
	f.Uint64("from", 0, "first tick to show")
	f.Uint64("to", 0, "tick to stop at, 0 for the end of the trace")
	f.Int("limit", 50, "maximum number of firings to list, 0 for all")
	f.Int("offset", 0, "number of matching firings to skip")
	f.Bool("summary", false, "count firings per phase and per event")
}

// traceFile finds the database file, with or without its extension.
func traceFile(args []string) (string, error) {
	name := os.Getenv(EnvRecordDB)
	if len(args) == 1 {
		name = args[0]
	}

	if name == "" {
		return "", fmt.Errorf("no trace database given and %s is not set",
			EnvRecordDB)
	}

	for _, file := range []string{name, name + datarecording.FileExtension} {
		if st, err := os.Stat(file); err == nil && !st.IsDir() {
			return file, nil
		}
	}

	return "", fmt.Errorf("trace database %s not found", name)
}

func traceQuery(cmd *cobra.Command) tracing.EventQuery {
	f := cmd.Flags()

	var q tracing.EventQuery

	q.Event, _ = f.GetString("event")
	q.Location, _ = f.GetString("location")
	q.Phase, _ = f.GetString("phase")
	from, _ := f.GetUint64("from")
	to, _ := f.GetUint64("to")
	q.From, q.To = sim.Tick(from), sim.Tick(to)
	q.Limit, _ = f.GetInt("limit")
	q.Offset, _ = f.GetInt("offset")

	return q
}

func runTrace(cmd *cobra.Command, args []string) error {
	file, err := traceFile(args)
	if err != nil {
		return err
	}

	reader, err := datarecording.OpenReaderWithDriver(file, sqliteDriver())
	if err != nil {
		return err
	}
	defer reader.Close()

	q := traceQuery(cmd)
	if q.To > 0 && q.To <= q.From {
		return fmt.Errorf("tick range [%d, %d) is empty", q.From, q.To)
	}

	summary, _ := cmd.Flags().GetBool("summary")
	if summary {
		q.Limit, q.Offset = 0, 0
	}

	records, total, err := tracing.ReadEvents(cmd.Context(), reader, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if summary {
		counter := tracing.NewPhaseCounter()
		if err := tracing.Replay(records, counter); err != nil {
			return err
		}

		return counter.Report(out)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tPHASE\tRANK\tCLOCK\tEVENT")

	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			r.Tick, r.Phase, r.Rank, r.Clock, r.Event)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d of %d firings\n", len(records), total)

	return nil
}
