package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/report"
	"github.com/contactkeval/option-montecarlo/internal/service"
)

func newPriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Price a call and a put at the same strike and print their Greeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pricer, err := a.cfg.NewPricer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			params := a.cfg.Params()
			k := a.cfg.Option.Strike
			bump := a.cfg.Option.Bump

			callPrice, err := pricer.PriceOption(ctx, params, k, montecarlo.Call)
			if err != nil {
				return err
			}
			putPrice, err := pricer.PriceOption(ctx, params, k, montecarlo.Put)
			if err != nil {
				return err
			}
			callDelta, err := pricer.Delta(ctx, params, k, montecarlo.Call, bump)
			if err != nil {
				return err
			}
			callGamma, err := pricer.Gamma(ctx, params, k, montecarlo.Call, bump)
			if err != nil {
				return err
			}
			putDelta, err := pricer.Delta(ctx, params, k, montecarlo.Put, bump)
			if err != nil {
				return err
			}
			putGamma, err := pricer.Gamma(ctx, params, k, montecarlo.Put, bump)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "European Call Option Price: %.4f\n", callPrice)
			fmt.Fprintf(out, "European Put Option Price: %.4f\n", putPrice)
			fmt.Fprintf(out, "Call Delta: %.4f\n", callDelta)
			fmt.Fprintf(out, "Call Gamma: %.4f\n", callGamma)
			fmt.Fprintf(out, "Put Delta: %.4f\n", putDelta)
			fmt.Fprintf(out, "Put Gamma: %.4f\n", putGamma)
			return nil
		},
	}
}

func newGreeksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "greeks",
		Short: "Price the configured option with standard error, delta and gamma",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt, err := a.cfg.Contract()
			if err != nil {
				return err
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			res, err := svc.Price(cmd.Context(), service.PriceRequest{
				Params: a.cfg.Params(),
				Option: opt,
				Greeks: true,
				Bump:   a.cfg.Option.Bump,
			})
			if err != nil {
				return err
			}
			if err := report.WriteText(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if dir := a.cfg.Report.Dir; dir != "" {
				if err := report.WriteJSON(res, dir); err != nil {
					return err
				}
				logger.Infof("event=result_written dir=%s run_id=%s", dir, res.RunID)
			}
			return nil
		},
	}
}
