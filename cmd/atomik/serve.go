package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atomik-dev/atomik/internal/config"
	"github.com/atomik-dev/atomik/internal/errors"
	"github.com/atomik-dev/atomik/pkg/atomik"
	"github.com/atomik-dev/atomik/pkg/inspect"
	"github.com/atomik-dev/atomik/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		cfgPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo graph behind the inspect server",
		Long: `Run a continuously mutating demo graph and expose it over HTTP.

The inspect server serves the current graph topology as JSON, streams
change events over a WebSocket, and exports Prometheus metrics.

Endpoints:
  GET /healthz   liveness probe
  GET /graph     node table as JSON
  GET /ws        live change events
  GET /metrics   Prometheus metrics

Examples:
  atomik serve
  atomik serve --addr=localhost:7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, cfgPath)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from atomik.json, else localhost:6060)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to atomik.json (default: current directory)")

	return cmd
}

func runServe(addr, cfgPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return err
	}

	if addr == "" {
		addr = cfg.Inspect.Addr
	}
	if addr == "" {
		addr = "localhost:6060"
	}

	logger := newLogger(cfg.Debug)

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()

	// The observer closes over srv so the graph can be constructed first.
	var srv *inspect.Server
	g := atomik.New(append(cfg.GraphOptions(),
		atomik.WithLogger(logger),
		atomik.WithMetrics(reg),
		atomik.WithObserver(func(ev atomik.Event) {
			if srv != nil {
				srv.Observer()(ev)
			}
		}),
	)...)
	defer g.Close()

	srv = inspect.NewServer(g, inspect.WithLogger(logger), inspect.WithGatherer(reg))

	sensors, err := buildServeGraph(ctx, g, st)
	if err != nil {
		return err
	}

	fmt.Printf("inspect server on http://%s\n", addr)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Run(ctx, addr)
	})
	eg.Go(func() error {
		mutateLoop(ctx, g, sensors)
		return nil
	})
	if cfg.Path() != "" {
		eg.Go(func() error {
			err := config.Watch(ctx, cfg.Path(), logger, func(next *config.Config) {
				logger.Info("config changed on disk; worker settings apply on restart",
					"max_workers", next.MaxWorkers, "debug", next.Debug)
			})
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	if err := eg.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// openStore maps the configured storage backend onto a Store. The
// returned close function releases backend resources; it is nil for
// backends with nothing to release.
func openStore(cfg *config.Config, logger *slog.Logger) (atomik.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "none":
		return nil, nil, nil
	case "badger":
		bs, err := store.NewBadgerStore(cfg.Storage.Dir, logger)
		if err != nil {
			return nil, nil, errors.New("E110").
				WithDetail("badger at "+cfg.Storage.Dir).
				Wrap(err)
		}
		return bs, func() { _ = bs.Close() }, nil
	default:
		fs, err := store.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, errors.New("E110").
				WithDetail("file store at "+cfg.Storage.Dir).
				Wrap(err)
		}
		return fs, nil, nil
	}
}

// buildServeGraph wires the demo graph the inspect endpoints expose:
// three sensor sources, a mean over them, and a persisted high-water
// mark that survives restarts.
func buildServeGraph(ctx context.Context, g *atomik.Graph, st atomik.Store) ([]*atomik.Source[float64], error) {
	sensors := make([]*atomik.Source[float64], 3)
	deps := make([]atomik.Dep, 3)
	for i := range sensors {
		sensors[i] = atomik.NewSource(g, 20.0)
		deps[i] = sensors[i]
	}

	mean, err := atomik.NewDerived(g, func(get atomik.Getter) (float64, error) {
		var sum float64
		for _, s := range sensors {
			sum += s.From(get)
		}
		return sum / float64(len(sensors)), nil
	}, deps...)
	if err != nil {
		return nil, err
	}

	var high *atomik.Source[float64]
	if st != nil {
		high = atomik.NewPersistentSource(ctx, g, "serve/high-water", 0.0, st)
	} else {
		high = atomik.NewSource(g, 0.0)
	}

	_, err = mean.Subscribe(func(m float64) {
		cur, err := high.Get()
		if err == nil && m > cur {
			_ = high.Set(m)
		}
	})
	if err != nil {
		return nil, err
	}
	return sensors, nil
}

// mutateLoop drives random readings through the graph so the inspect
// endpoints have something to show.
func mutateLoop(ctx context.Context, g *atomik.Graph, sensors []*atomik.Source[float64]) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Batch(func() {
				for _, s := range sensors {
					cur, err := s.Get()
					if err != nil {
						continue
					}
					_ = s.Set(cur + rand.Float64()*2 - 1)
				}
			})
		}
	}
}
