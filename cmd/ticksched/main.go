package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"osal/internal/job"
	"osal/internal/sched"
)

var (
	configPath string
	csvPath    string
	duration   time.Duration
	quiet      bool

	rootCmd = &cobra.Command{
		Use:   "ticksched",
		Short: "Run the cooperative kernel on the host",
		Long:  "Boot the scheduler with the demo board tasks (button, LED blinker, console) and drive it from a host tick clock.",
		RunE:  run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Kernel configuration file")
	rootCmd.Flags().StringVar(&csvPath, "csv", "", "Mirror scheduler events to this CSV file")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print dispatch events")
}

// logLED is the host stand-in for the board LED.
type logLED struct{}

func (logLED) Set(on bool) {
	if on {
		log.Println("LED on")
	} else {
		log.Println("LED off")
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Read the configuration
	cfg := sched.Load(configPath)
	log.Printf("loaded config: %+v", cfg)

	var trace *sched.CSVTrace
	if csvPath != "" {
		t, err := sched.NewCSVTrace(csvPath)
		if err != nil {
			return fmt.Errorf("open csv trace: %w", err)
		}
		defer t.Close()
		trace = t
	}

	observer := func(ev sched.StatusEvent) {
		if trace != nil {
			trace.Observe(ev)
		}
		// idle, sleep and expiry lines would drown the output
		if quiet || ev.Kind != sched.StatusDispatch {
			return
		}
		fmt.Println(sched.FormatEvent(ev))
	}

	clock := sched.NewTickClock()
	opts := []sched.Option{
		sched.WithObserver(observer),
		sched.WithSleepHook(clock.SleepHook()),
		sched.WithWaker(clock.Wake()),
	}
	if cfg.Poll {
		opts = append(opts, sched.WithPoller(clock))
	}

	// Task table; position is priority.
	button := &job.Button{Consumer: 2, AutoPress: 750, AutoKey: 1}
	blinker := &job.Blinker{PeriodMS: 500, LED: logLED{}}
	console := &job.Console{Out: os.Stdout}

	s, err := sched.New(cfg, []sched.Task{button, blinker, console}, opts...)
	if err != nil {
		return err
	}
	s.Init()

	interval := time.Duration(cfg.TickMS) * time.Millisecond
	if cfg.Poll {
		clock.Start(interval, nil)
	} else {
		clock.Start(interval, s.Advance)
	}
	defer clock.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if err := s.Run(ctx); err != nil {
		return err
	}

	log.Printf("stopped after %d ticks (%d ms): %d toggles, max drift %d ms, %d keys printed, %d dropped",
		clock.Count(), s.SystemClock(), blinker.Toggles, blinker.MaxDrift, console.Lines, button.Dropped())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
