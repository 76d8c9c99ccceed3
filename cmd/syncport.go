package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/sparta/port"
	"github.com/sarchlab/sparta/sim"
)

var syncPortCmd = &cobra.Command{
	Use:   "syncport",
	Short: "Show when payloads sent through a sync port arrive.",
	Long: "`syncport --src-period 10 --dst-period 15` prints, for each source " +
		"cycle, the tick a payload launches, the tick it arrives on the " +
		"destination clock and the first tick the port can send again.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		src, _ := cmd.Flags().GetUint64("src-period")
		dst, _ := cmd.Flags().GetUint64("dst-period")
		cycles, _ := cmd.Flags().GetUint64("cycles")
		delay, _ := cmd.Flags().GetUint64("delay")

		if src == 0 || dst == 0 {
			return fmt.Errorf("clock periods must be positive")
		}

		return printArrivals(cmd, sim.Tick(src), sim.Tick(dst),
			sim.Cycle(cycles), sim.Cycle(delay))
	},
}

func init() {
	rootCmd.AddCommand(syncPortCmd)
	syncPortCmd.Flags().Uint64("src-period", 10, "period of the sending clock in ticks")
	syncPortCmd.Flags().Uint64("dst-period", 15, "period of the receiving clock in ticks")
	syncPortCmd.Flags().Uint64("cycles", 6, "number of source cycles to show")
	syncPortCmd.Flags().Uint64("delay", 0, "send delay in source cycles")
}

func printArrivals(cmd *cobra.Command, src, dst sim.Tick, cycles, delay sim.Cycle) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CYCLE\tLAUNCH\tARRIVAL\tNEXT SEND")

	for c := sim.Cycle(0); c < cycles; c++ {
		arrival := port.ArrivalTick(src, dst, c, delay)
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n",
			c, sim.Tick(c+delay)*src, arrival, port.NextSendTick(src, arrival))
	}

	return w.Flush()
}
