package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/livemodel/pkg/devtools"
	"github.com/vango-dev/livemodel/pkg/middleware"
	"github.com/vango-dev/livemodel/pkg/model"
)

func devtoolsCmd(opts *rootOptions) *cobra.Command {
	var (
		addr string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Serve the devtools API",
		Long: `Serve the devtools HTTP and websocket API.

Named models created in this process are recorded and can be inspected
and rolled back. With --seed a counter and a todo family are created so
there is something to look at.

Endpoints:
  GET  /state  /actions  /actions/{id}  /ws  /metrics
  POST /state  /jump/{id}

Examples:
  livemodel devtools --seed
  livemodel devtools --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Devtools.Addr
			}

			log := newLogger(cfg, cmd.ErrOrStderr())
			defer configureEngine(cfg, log)()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			hub := devtools.NewHub(devtools.WithLogger(log))
			injectors := []model.Injector{hub.Injector()}
			if cfg.Metrics.Enabled {
				injectors = append(injectors, middleware.Prometheus(
					middleware.WithNamespace(cfg.Metrics.Namespace),
					middleware.WithRegistry(reg),
				))
			}

			tp, shutdown := tracerProvider(cfg, log)
			defer shutdown(context.Background())
			if cfg.Tracing.Enabled {
				injectors = append(injectors, middleware.OpenTelemetry(
					middleware.WithTracerName(cfg.Tracing.TracerName),
					middleware.WithTracerProvider(tp),
				))
			}

			defer model.Inject(model.Inject(injectors...)...)

			if seed {
				newCounter()
				todos := newTodos(cfg.KeyCompare())
				todos.Family(1).Set("title", "try the devtools")
				log.Info("seeded demo models", "models", []string{"counter", "todo"})
			}

			success(cmd.OutOrStdout(), "Devtools on http://%s", addr)
			return hub.ListenAndServe(ctx, addr, reg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default devtools.addr)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Create demo models")

	return cmd
}
