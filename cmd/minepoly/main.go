package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/config"
	"github.com/ironsheep/minepoly/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// app carries the state shared by every command once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "minepoly",
		Short: "Detect mining areas in satellite mosaics and build yearly polygon datasets",
		Long: `minepoly turns candidate mining sites into yearly mining polygon datasets.

Stages run in order for each year:
  fetch        look up and download the imagery tiles of every candidate
  chips        cut the 512x512 inference chip of every candidate
  predict      segment the chips, reconstruct polygons and merge overlaps
  postprocess  keep detections that persist across neighbouring years

Environment variables:
  MINEPOLY_API_KEY or API_KEY    Planet API key
  MINEPOLY_LOG_LEVEL=debug       Override the log level
  MINEPOLY_<SECTION>_<KEY>       Override any configuration key`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync(a.logger)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.stageCommand("fetch", "Look up and download imagery tiles", a.fetch),
		a.stageCommand("chips", "Cut inference chips and training targets", a.chips),
		a.stageCommand("predict", "Segment chips and write the yearly prediction dataset", a.predict),
		a.postprocessCommand(),
		a.serveCommand(),
		versionCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := logging.New(cfg.Log.Mode, level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("version", Version))
	a.logger.Debug("Configuration loaded", zap.String("path", a.configPath), zap.String("data_dir", cfg.Data.Dir))
	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "minepoly %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
