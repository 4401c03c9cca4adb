package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/report"
	"github.com/contactkeval/option-montecarlo/internal/service"
)

func newSweepCmd(a *app) *cobra.Command {
	var from, to, step float64
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Price and differentiate the configured option kind across a strike ladder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := montecarlo.ParseOptionKind(a.cfg.Option.Kind)
			if err != nil {
				return err
			}
			strikes, err := service.StrikeLadder(from, to, step)
			if err != nil {
				return err
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			points, err := svc.Sweep(cmd.Context(), service.SweepRequest{
				Params:  a.cfg.Params(),
				Kind:    kind,
				Strikes: strikes,
				Bump:    a.cfg.Option.Bump,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%8s %10s %8s %8s %8s %10s\n", "strike", "price", "stderr", "delta", "gamma", "bs_price")
			for _, p := range points {
				fmt.Fprintf(out, "%8.2f %10.4f %8.4f %8.4f %8.4f %10.4f\n", p.Strike, p.Price, p.StdErr, p.Delta, p.Gamma, p.BSPrice)
			}
			if dir := a.cfg.Report.Dir; dir != "" {
				return report.WriteFile(dir, "sweep.csv", func(w io.Writer) error {
					return report.WriteSweepCSV(w, points)
				})
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&from, "from", 80, "lowest strike")
	f.Float64Var(&to, "to", 120, "highest strike")
	f.Float64Var(&step, "step", 5, "strike spacing")
	return cmd
}
