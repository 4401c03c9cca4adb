package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/metrics"
	"github.com/contactkeval/option-montecarlo/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST pricing server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logger.Verbosity() < logger.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			m := metrics.New("mcpricer")
			svc, prov, err := a.newServiceWithMarket(m)
			if err != nil {
				return err
			}
			logger.Infof("event=serve model=%s provider=%s", svc.Pricer().Model().Name(), prov.Name())

			srv := server.New(svc,
				server.WithMetrics(m),
				server.WithMaxPaths(a.cfg.Server.MaxPaths),
				server.WithMaxSteps(a.cfg.Server.MaxSteps),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout)
		},
	}
	addMarketFlags(cmd)
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}
