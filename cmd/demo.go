package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/sparta/datarecording"
	"github.com/sarchlab/sparta/examples/pipeline"
	"github.com/sarchlab/sparta/monitoring"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tracing"
)

const demoProgram = `add r1, r0, r0, 5
add r2, r1, r0, 10
st  r0, r2, 0x100
ld  r3, r0, 0x100
add r4, r3, r3
`

var demoCmd = &cobra.Command{
	Use:   "demo [program]",
	Short: "Run a small in-order pipeline.",
	Long: "`demo prog.s` runs the program on a core with an issue unit, " +
		"an ALU, a load/store unit and a retire unit that runs on its own " +
		"clock. Without a program a short built-in one runs.",
	Args: cobra.MaximumNArgs(1),
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	f := demoCmd.Flags()
	f.StringArrayP("param", "p", nil, "override a parameter, as path=value")
	f.StringSlice("params", nil, "YAML parameter files, applied in order")
	f.Bool("dump-params", false, "print every parameter after building")
	f.Bool("log", false, "log every event fired to stderr")
	f.Bool("count", false, "print the number of events fired per phase")
	f.Bool("trace", false, "record fired events into a SQLite database")
	f.String("trace-db", "", "database name for --trace, without extension")
	f.Uint64("trace-start", 0, "first tick to trace")
	f.Uint64("trace-end", uint64(sim.MaxTick), "tick to stop tracing at")
	f.Bool("monitor", false, "serve the monitor while simulating")
	f.Int("monitor-port", 0, "port of the monitor server")
	f.Bool("open-monitor", false, "open the monitor in a browser")
}

func readProgram(args []string) ([]pipeline.Inst, error) {
	var r io.Reader = strings.NewReader(demoProgram)

	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	return pipeline.ParseProgram(r)
}

func demoBuilder(cmd *cobra.Command) (pipeline.Builder, error) {
	b := pipeline.MakeBuilder()

	files, _ := cmd.Flags().GetStringSlice("params")
	if len(files) > 0 {
		t, err := loadParamFiles(files)
		if err != nil {
			return b, err
		}

		for _, kv := range t.Entries() {
			b = b.WithParameter(kv.Key, kv.Value)
		}
	}

	assignments, _ := cmd.Flags().GetStringArray("param")
	for _, a := range assignments {
		key, value, found := strings.Cut(a, "=")
		if !found {
			return b, fmt.Errorf("%q is not a path=value assignment", a)
		}

		b = b.WithParameter(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if logEvents, _ := cmd.Flags().GetBool("log"); logEvents {
		b = b.WithSchedulerHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	return b, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	prog, err := readProgram(args)
	if err != nil {
		return err
	}

	b, err := demoBuilder(cmd)
	if err != nil {
		return err
	}

	p, err := b.Build(prog)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	flags := cmd.Flags()

	if dump, _ := flags.GetBool("dump-params"); dump {
		if err := p.Root.DumpParameters(out); err != nil {
			return err
		}
	}

	var counter *tracing.PhaseCounter
	if count, _ := flags.GetBool("count"); count {
		counter = tracing.NewPhaseCounter()
		tracing.CollectTrace(p.Root.Scheduler(), counter)
	}

	if trace, _ := flags.GetBool("trace"); trace {
		stop, err := attachEventTracer(cmd, p)
		if err != nil {
			return err
		}
		defer stop()
	}

	if monitor, _ := flags.GetBool("monitor"); monitor {
		stop, err := startMonitor(cmd, p, len(prog))
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := p.Run(); err != nil {
		return err
	}

	printStats(out, p)

	if counter != nil {
		return counter.Report(out)
	}

	return nil
}

func attachEventTracer(cmd *cobra.Command, p *pipeline.Pipeline) (func(), error) {
	name, _ := cmd.Flags().GetString("trace-db")
	if name == "" {
		name = os.Getenv(EnvRecordDB)
	}

	start, _ := cmd.Flags().GetUint64("trace-start")
	end, _ := cmd.Flags().GetUint64("trace-end")

	if end <= start {
		return nil, fmt.Errorf("trace window [%d, %d) is empty", start, end)
	}

	recorder := datarecording.NewWithDriver(name, sqliteDriver())
	tracer := tracing.NewEventTracer(recorder)
	tracer.SetWindow(sim.Tick(start), sim.Tick(end))
	tracing.CollectTrace(p.Root.Scheduler(), tracer)

	closed := false
	stop := func() {
		if closed {
			return
		}

		closed = true
		tracer.Terminate()

		if err := recorder.Close(); err != nil {
			log.Printf("closing the trace database: %v", err)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d events traced\n", tracer.NumRecorded())
	}

	atexit.Register(stop)

	return stop, nil
}

func startMonitor(cmd *cobra.Command, p *pipeline.Pipeline, numInsts int) (func(), error) {
	port, _ := cmd.Flags().GetInt("monitor-port")
	if !cmd.Flags().Changed("monitor-port") {
		port = envIntOr(EnvMonitorPort, port)
	}

	m := monitoring.NewMonitor()
	if port != 0 {
		m = m.WithPortNumber(port)
	}

	m.RegisterRoot(p.Root)

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	if open, _ := cmd.Flags().GetBool("open-monitor"); open {
		if err := m.OpenBrowser(); err != nil {
			log.Printf("opening the monitor: %v", err)
		}
	}

	bar := m.CreateProgressBar("retired instructions", uint64(numInsts))
	tracing.CollectTrace(p.Root.Scheduler(), &retireProgress{p: p, bar: bar})

	return func() {
		m.CompleteProgressBar(bar)

		if err := m.StopServer(); err != nil {
			log.Printf("stopping the monitor: %v", err)
		}
	}, nil
}

// retireProgress moves the progress bar as instructions retire.
type retireProgress struct {
	p    *pipeline.Pipeline
	bar  *monitoring.ProgressBar
	seen int
}

func (r *retireProgress) BeforeEvent(tracing.Firing) {}

func (r *retireProgress) AfterEvent(tracing.Firing) {
	n := r.p.Retire.NumRetired()
	if n > r.seen {
		r.bar.IncrementFinished(uint64(n - r.seen))
		r.seen = n
	}
}

func printStats(out io.Writer, p *pipeline.Pipeline) {
	s := p.Stats()

	fmt.Fprintf(out, "core cycles: %d\n", s.CoreCycles)
	fmt.Fprintf(out, "retired: %d\n", s.Retired)
	fmt.Fprintf(out, "issue stalls: %d\n", s.Stalls)
	fmt.Fprintf(out, "alu ops: %d, loads: %d, stores: %d\n", s.ALUOps, s.Loads, s.Stores)

	for r := 1; r < 8; r++ {
		if v := p.RegFile.Get(r); v != 0 {
			fmt.Fprintf(out, "r%d = %d\n", r, v)
		}
	}
}
