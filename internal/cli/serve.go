package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"replacechain/internal/core"
	"replacechain/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		addr      string
		accessLog bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the replacement API over HTTP",
		Long: `Serve the replacement API over HTTP until interrupted.

Endpoints: /v1/replacements, /v1/replacements/bulk, /v1/products,
/v1/products/:name/latest, /v1/mappings, /healthz, /metrics and /debug/vars.`,
		Args: args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, rootOpts, addr, accessLog)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "log every request")
	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, addr string, accessLog bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := core.NewPrometheusRecorder(reg)
	vars := core.NewExpvarMetricsRecorder("")

	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		if addr == "" {
			addr = a.cfg.HTTP.Addr
		}
		router := httpapi.NewRouter(a.manager,
			httpapi.WithLogger(a.logger),
			httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
			httpapi.WithAccessLog(accessLog),
		)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := httpapi.Serve(ctx, srv, a.cfg.HTTP.ShutdownTimeout, a.logger); err != nil {
			return WrapExitError(ExitFailure, "serve", err)
		}
		return nil
	},
		core.WithMetricsRecorder(prom),
		core.WithObserver(prom),
		core.WithObserver(vars),
	)
}
