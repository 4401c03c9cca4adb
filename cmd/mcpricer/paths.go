package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/report"
)

const defaultOutDir = "out"

func newPathsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Simulate paths and export sample paths, payoffs and a payoff histogram as CSV",
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
			params := a.cfg.Params()
			batch, payoffs, err := svc.Payoffs(cmd.Context(), params, opt)
			if err != nil {
				return err
			}

			dir := a.cfg.Report.Dir
			if dir == "" {
				dir = defaultOutDir
			}
			files := []struct {
				name  string
				write func(io.Writer) error
			}{
				{"paths.csv", func(w io.Writer) error {
					return report.WritePathsCSV(w, batch, a.cfg.Report.SamplePaths, params.Dt())
				}},
				{"payoffs.csv", func(w io.Writer) error {
					return report.WritePayoffsCSV(w, payoffs)
				}},
				{"histogram.csv", func(w io.Writer) error {
					return report.WriteHistogramCSV(w, report.Histogram(payoffs, a.cfg.Report.Bins))
				}},
			}
			for _, f := range files {
				if err := report.WriteFile(dir, f.name, f.write); err != nil {
					return fmt.Errorf("write %s: %w", f.name, err)
				}
			}
			logger.Infof("event=paths_written dir=%s paths=%d steps=%d", dir, batch.Paths(), batch.Steps())
			fmt.Fprintf(cmd.OutOrStdout(), "wrote paths.csv, payoffs.csv and histogram.csv to %s\n", dir)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("sample", report.DefaultSamplePaths, "number of paths written to paths.csv")
	f.Int("bins", report.DefaultBins, "payoff histogram bins")
	return cmd
}
