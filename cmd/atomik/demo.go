package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

func demoCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "demo [scenario]",
		Short: "Run an interactive graph demo",
		Long: `Run a built-in demo scenario against a live graph.

Scenarios:
  thermostat   one temperature source feeding a unit conversion
               and a threshold alert
  sensors      several sensors batched into one wave, folded by
               a reducer

Examples:
  atomik demo thermostat
  atomik demo sensors --debug`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"thermostat", "sensors"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := "thermostat"
			if len(args) > 0 {
				scenario = args[0]
			}

			logger := newLogger(debug)
			switch scenario {
			case "thermostat":
				return runThermostat(logger, debug)
			case "sensors":
				return runSensors(logger, debug)
			default:
				return fmt.Errorf("unknown scenario %q", scenario)
			}
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Log every wave and dispatch")

	return cmd
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runThermostat(logger *slog.Logger, debug bool) error {
	g := atomik.New(
		atomik.WithLogger(logger),
		atomik.WithDebug(debug),
	)
	defer g.Close()

	celsius := atomik.NewSource(g, 20.0)

	fahrenheit, err := atomik.NewDerived(g, func(get atomik.Getter) (float64, error) {
		return celsius.From(get)*9/5 + 32, nil
	}, celsius)
	if err != nil {
		return err
	}

	alert, err := atomik.NewDerived(g, func(get atomik.Getter) (bool, error) {
		return fahrenheit.From(get) > 80, nil
	}, fahrenheit)
	if err != nil {
		return err
	}

	if _, err := fahrenheit.Subscribe(func(f float64) {
		fmt.Printf("  fahrenheit -> %.1f\n", f)
	}); err != nil {
		return err
	}
	if _, err := alert.Subscribe(func(hot bool) {
		if hot {
			fmt.Println("  ALERT: too hot")
		} else {
			fmt.Println("  alert cleared")
		}
	}); err != nil {
		return err
	}

	fmt.Println("thermostat demo")
	for _, c := range []float64{20, 25, 30, 22} {
		fmt.Printf("set celsius = %.1f\n", c)
		if err := celsius.Set(c); err != nil {
			return err
		}
	}
	return nil
}

type sensorAction struct {
	Name  string
	Value float64
}

func runSensors(logger *slog.Logger, debug bool) error {
	g := atomik.New(
		atomik.WithLogger(logger),
		atomik.WithDebug(debug),
		atomik.WithMaxWorkers(2),
	)
	defer g.Close()

	north := atomik.NewSource(g, 0.0)
	south := atomik.NewSource(g, 0.0)
	west := atomik.NewSource(g, 0.0)

	mean, err := atomik.NewDerived(g, func(get atomik.Getter) (float64, error) {
		return (north.From(get) + south.From(get) + west.From(get)) / 3, nil
	}, north, south, west)
	if err != nil {
		return err
	}

	if _, err := mean.Subscribe(func(m float64) {
		fmt.Printf("  mean -> %.2f\n", m)
	}); err != nil {
		return err
	}

	// Every reading is also folded into a running event log.
	log := atomik.NewReducer(g, []sensorAction{}, func(state []sensorAction, a sensorAction) []sensorAction {
		return append(state, a)
	})

	fmt.Println("sensors demo: one batch, one wave, one notification")
	g.Batch(func() {
		_ = north.Set(21.5)
		_ = south.Set(19.0)
		_ = west.Set(23.5)
	})

	fmt.Println("deferred readings")
	futs := []*atomik.Future{
		north.SetAsync(22.0),
		log.DispatchAsync(sensorAction{Name: "north", Value: 22.0}),
	}
	for _, f := range futs {
		<-f.Done()
		if err := f.Err(); err != nil {
			return err
		}
	}

	// Let the deferred subscriber output land before printing the log.
	time.Sleep(50 * time.Millisecond)

	events, err := log.Get()
	if err != nil {
		return err
	}
	fmt.Printf("event log: %d entries\n", len(events))
	return nil
}
