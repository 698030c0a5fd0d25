package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/internal/infrastructure/eventsink"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
	"github.com/personal/ad-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/ad-lifecycle/internal/lifecycle"
	"github.com/personal/ad-lifecycle/pkg/config"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

type simulateOptions struct {
	rounds          int
	fillRate        float64
	presentFailRate float64
	maxLatency      time.Duration
	display         time.Duration
	revenueMicros   int64
	stepWait        time.Duration
	seed            int64
	logEvents       bool
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate [ad document]",
	Short: "Run every unit through load and show cycles.",
	Long: "`simulate [ad document]` registers the document's units against a simulated " +
		"ad network, loads and shows each one for the requested number of rounds " +
		"and prints the emitted events.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := config.LoadAdDocument(args[0])
		if err != nil {
			return err
		}
		units, err := service.UnitsFromDocument(doc)
		if err != nil {
			return err
		}
		return runSimulation(cmd.Context(), cmd, units, simOpts)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simOpts.rounds, "rounds", 3, "Show cycles per unit")
	f.Float64Var(&simOpts.fillRate, "fill-rate", 0.8, "Probability that a load is filled")
	f.Float64Var(&simOpts.presentFailRate, "present-fail-rate", 0.1, "Probability that a presentation fails")
	f.DurationVar(&simOpts.maxLatency, "max-latency", 300*time.Millisecond, "Maximum simulated load latency")
	f.DurationVar(&simOpts.display, "display", 200*time.Millisecond, "How long a simulated ad stays on screen")
	f.Int64Var(&simOpts.revenueMicros, "revenue-micros", 1500, "Paid impression value in micros")
	f.DurationVar(&simOpts.stepWait, "step-wait", 15*time.Second, "Maximum wait for each load or show outcome")
	f.Int64Var(&simOpts.seed, "seed", 0, "Random seed, 0 for time based")
	f.BoolVar(&simOpts.logEvents, "log-events", false, "Log every event as it is emitted")
}

type simulation struct {
	dispatcher *service.Dispatcher
	stepWait   time.Duration
	out        *tabwriter.Writer
}

func runSimulation(ctx context.Context, cmd *cobra.Command, units []ad.UnitConfig, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.NewWithOutput(logLevel, "development", os.Stderr)

	queue := lifecycle.NewMainQueue(log)
	queue.Start(ctx)
	defer queue.Stop()

	events := persistence.NewMemoryEventRepository(10000)
	sinks := event.MultiSink{event.SinkFunc(func(name string, attributes map[string]interface{}) {
		_ = events.Write(ctx, []event.Record{event.NewRecord(name, attributes, time.Now().UTC())})
	})}
	if opts.logEvents {
		sinks = append(sinks, eventsink.NewLogSink(logger.NewWithOutput("info", "development", os.Stderr)))
	}

	source := external.NewSimulatedSource(external.SimulatedOptions{
		FillRate:        opts.fillRate,
		MaxLatency:      opts.maxLatency,
		DisplayDuration: opts.display,
		PresentFailRate: opts.presentFailRate,
		Revenue:         decimal.New(opts.revenueMicros, -6),
		TestMode:        true,
		Seed:            opts.seed,
	}, log)

	dispatcher := service.NewDispatcher(source, queue, sinks, log)
	if err := dispatcher.RegisterAll(units); err != nil {
		return err
	}

	sim := &simulation{
		dispatcher: dispatcher,
		stepWait:   opts.stepWait,
		out:        tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0),
	}
	fmt.Fprintln(sim.out, "ROUND\tUNIT\tLOAD\tSHOW")

	for round := 1; round <= opts.rounds; round++ {
		for _, unit := range units {
			if !unit.Enabled() {
				continue
			}
			loadResult, showResult := sim.cycle(ctx, unit)
			fmt.Fprintf(sim.out, "%d\t%s\t%s\t%s\n", round, unit.Key(), loadResult, showResult)
		}
	}
	sim.out.Flush()

	return printEventCounts(ctx, cmd, events)
}

// cycle loads one unit and shows it, waiting for each outcome
func (s *simulation) cycle(ctx context.Context, unit ad.UnitConfig) (string, string) {
	if unit.Format() == ad.FormatNative {
		return s.native(ctx, unit), "-"
	}

	loaded := make(chan error, 1)
	err := s.dispatcher.RequestLoad(unit.Format(), unit.Name(), lifecycle.LoadCallbacks{
		DidLoad: func() { loaded <- nil },
		DidFail: func(err error) { loaded <- err },
	})
	if err != nil {
		return outcome(err), "-"
	}
	if err := s.wait(ctx, loaded); err != nil {
		return outcome(err), "-"
	}

	shown := make(chan error, 1)
	err = s.dispatcher.RequestShow(unit.Format(), unit.Name(), simHost("adctl"), "", lifecycle.ShowCallbacks{
		DidHide: func() { shown <- nil },
		DidFail: func(err error) { shown <- err },
	})
	if err != nil {
		return "loaded", outcome(err)
	}
	return "loaded", outcome(s.wait(ctx, shown))
}

func (s *simulation) native(ctx context.Context, unit ad.UnitConfig) string {
	received := make(chan error, 1)
	err := s.dispatcher.BindNative(unit.Name(), simHost("adctl"), lifecycle.NativeCallbacks{
		DidReceive: func(ad.Handle) {
			select {
			case received <- nil:
			default:
			}
		},
		DidError: func(err error) {
			select {
			case received <- err:
			default:
			}
		},
	})
	if err != nil {
		return outcome(err)
	}
	return outcome(s.wait(ctx, received))
}

func (s *simulation) wait(ctx context.Context, ch <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, s.stepWait)
	defer cancel()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", service.ErrNoOutcome, ctx.Err())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ad.ErrLoadTimeout):
		return "timeout"
	case errors.Is(err, ad.ErrLoadFailed):
		return fmt.Sprintf("failed (code %d)", ad.ErrorCode(err))
	default:
		return err.Error()
	}
}

func printEventCounts(ctx context.Context, cmd *cobra.Command, events *persistence.MemoryEventRepository) error {
	records, err := events.FindRecent(ctx, 10000)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nEVENT\tCOUNT")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	return w.Flush()
}

type simHost string

func (h simHost) Screen() string { return string(h) }
