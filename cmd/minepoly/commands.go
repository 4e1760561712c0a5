package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/pipeline"
	"github.com/ironsheep/minepoly/internal/server"
)

type stageFunc func(ctx context.Context, r *pipeline.Runner, year int) (pipeline.Diagnostics, error)

func (a *app) fetch(ctx context.Context, r *pipeline.Runner, year int) (pipeline.Diagnostics, error) {
	if a.cfg.Planet.APIKey == "" {
		return pipeline.Diagnostics{}, fmt.Errorf("no Planet API key, set MINEPOLY_API_KEY or planet.api_key")
	}
	return r.Fetch(ctx, year)
}

func (a *app) chips(ctx context.Context, r *pipeline.Runner, year int) (pipeline.Diagnostics, error) {
	return r.Chips(ctx, year)
}

func (a *app) predict(ctx context.Context, r *pipeline.Runner, year int) (pipeline.Diagnostics, error) {
	return r.Predict(ctx, year)
}

// stageCommand builds a per-year command. Years run one after another; a
// failing year stops the command.
func (a *app) stageCommand(name, short string, run stageFunc) *cobra.Command {
	var years []int

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := pipeline.NewRunner(a.cfg, a.logger.Named(name))
			for _, year := range years {
				d, err := run(cmd.Context(), r, year)
				if err != nil {
					return fmt.Errorf("%s %d: %w", name, year, err)
				}
				a.logger.Info("Year done", zap.String("stage", name), zap.Int("year", year),
					zap.Int("produced", d.Produced), zap.Int("failed", d.Failed))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&years, "year", "y", nil, "year to process (repeatable)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func (a *app) postprocessCommand() *cobra.Command {
	var years []int

	cmd := &cobra.Command{
		Use:   "postprocess",
		Short: "Filter yearly predictions for temporal persistence and write the final datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(years) == 0 {
				years = a.cfg.Temporal.Years
			}
			r := pipeline.NewRunner(a.cfg, a.logger.Named("postprocess"))
			reports, err := r.Postprocess(cmd.Context(), years)
			if err != nil {
				return err
			}
			for _, rep := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d -> %d\t%s\n", rep.Year, rep.Before, rep.After, rep.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&years, "year", "y", nil, "years to include (default: temporal.years)")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := server.DefaultOptions()
			opts.Version = Version
			opts.TilePixels = a.cfg.Data.TilePixels
			opts.RasterSize = a.cfg.Data.RasterSize
			opts.Reconstruct = a.cfg.Reconstruct
			opts.Buffer = a.cfg.Temporal.Buffer

			a.logger.Debug("Starting MCP server", zap.String("build_time", BuildTime), zap.String("commit", GitCommit))
			return server.New(opts, a.logger.Named("server")).Run()
		},
	}
}
