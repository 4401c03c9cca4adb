package main

import (
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/config"
	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/metrics"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/service"
)

// app carries the loaded configuration into the subcommands.
type app struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "mcpricer",
		Short:        "Monte Carlo pricer for European options",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger.SetVerbosity(cfg.Verbosity)
			a.cfg = cfg
			logger.Debugf("event=config_loaded model=%s paths=%d steps=%d seed=%d",
				cfg.Model.Name, cfg.Simulation.Paths, cfg.Simulation.Steps, cfg.Simulation.Seed)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (json, yaml or toml)")
	pf.Int("verbosity", 1, "0=error 1=info 2=debug 3=trace")
	pf.String("model", "gbm", "price dynamics: gbm or heston")
	pf.Float64("spot", 100, "initial asset price S0")
	pf.Float64("rate", 0.05, "risk-free rate r")
	pf.Float64("vol", 0.2, "volatility sigma")
	pf.Float64("maturity", 1, "time to maturity T in years")
	pf.Int("steps", 252, "time steps per path")
	pf.Int("paths", 10000, "number of simulated paths")
	pf.Uint64("seed", 0, "RNG seed, 0 picks one from the clock")
	pf.Int("workers", 0, "simulation workers, 0 uses GOMAXPROCS")
	pf.Bool("crn", false, "reuse draws across Greek bumps")
	pf.Float64("confidence", 0.95, "confidence level of the reported interval")
	pf.Float64("strike", 100, "strike price K")
	pf.String("kind", "call", "option kind: call or put")
	pf.Float64("bump", montecarlo.DefaultBump, "spot bump for finite-difference Greeks")
	pf.String("out", "", "directory for result files")

	root.AddCommand(
		newPriceCmd(a),
		newGreeksCmd(a),
		newPathsCmd(a),
		newSweepCmd(a),
		newMarketCmd(a),
		newServeCmd(a),
	)
	return root
}

func addMarketFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("provider", "synthetic", "market data provider: synthetic, massive or csv")
	f.String("ticker", "SPY", "underlying ticker")
	f.String("expiry", "", "expiry date YYYY-MM-DD")
	f.Int("expiry-index", 0, "index into the listed expiries when no date is given")
	f.Int("dte", 0, "pick the expiry nearest to this many days out")
	f.String("strike-expr", "", "strike: number, ATM, ATM:+5%, DELTA:0.25 or an expression over SPOT and ATM")
	f.String("vol-source", "fixed", "volatility source: fixed, implied or historical")
	f.String("data-dir", "data", "directory of the csv provider")
}

func (a *app) newService(opts ...service.Option) (*service.Service, error) {
	pricer, err := a.cfg.NewPricer()
	if err != nil {
		return nil, err
	}
	base := []service.Option{
		service.WithConfidence(a.cfg.Simulation.Confidence),
	}
	return service.New(pricer, append(base, opts...)...), nil
}

func (a *app) newServiceWithMarket(m *metrics.Metrics) (*service.Service, data.Provider, error) {
	prov, err := a.cfg.NewProvider()
	if err != nil {
		return nil, nil, err
	}
	opts := []service.Option{service.WithMarket(prov)}
	if m != nil {
		opts = append(opts, service.WithMetrics(m))
	}
	svc, err := a.newService(opts...)
	if err != nil {
		return nil, nil, err
	}
	return svc, prov, nil
}
