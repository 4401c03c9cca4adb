package main

import (
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/report"
	"github.com/contactkeval/option-montecarlo/internal/service"
)

func newMarketCmd(a *app) *cobra.Command {
	var greeks bool
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Price an option on a listed underlying using spot, expiry and volatility from market data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := a.cfg.MarketRequest()
			if err != nil {
				return err
			}
			svc, prov, err := a.newServiceWithMarket(nil)
			if err != nil {
				return err
			}
			logger.Infof("event=market_provider name=%s ticker=%s", prov.Name(), req.Ticker)

			res, resolved, err := svc.PriceMarket(cmd.Context(), service.MarketRequest{
				Request: req,
				Greeks:  greeks,
				Bump:    a.cfg.Option.Bump,
			})
			if err != nil {
				return err
			}
			logger.Debugf("event=market_resolved spot=%.4f strike=%.2f vol=%.4f T=%.4f",
				resolved.Spot, resolved.Option.Strike, resolved.Volatility, resolved.Params.Maturity)

			if err := report.WriteText(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if dir := a.cfg.Report.Dir; dir != "" {
				return report.WriteJSON(res, dir)
			}
			return nil
		},
	}
	addMarketFlags(cmd)
	cmd.Flags().BoolVar(&greeks, "greeks", true, "also estimate delta and gamma")
	return cmd
}
