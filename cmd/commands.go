package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapbiomas/brazil-cerrado/internal/delivery"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
	"github.com/mapbiomas/brazil-cerrado/internal/telemetry"
	"github.com/mapbiomas/brazil-cerrado/internal/ui"
)

var (
	configPath  string
	regionsPath string
	regions     []string
	debugLogs   bool
	noProgress  bool
	metricsAddr string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cerrado",
		Short: "Annual Landsat/Sentinel feature composites for land-cover mapping",
		Long: `Builds per-region annual feature composites from dated scenes: spectral
indices, spectral mixture fractions, seasonal percentiles, 3-year rolling
metrics and auxiliary layers, packed to integers and exported as GeoTIFF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return log.Init(debugLogs)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/cerrado_landsat.yaml", "collection config file")
	root.PersistentFlags().StringVar(&regionsPath, "regions-file", "", "regions GeoJSON (default ROOT_PATH/data/regions.geojson)")
	root.PersistentFlags().StringSliceVarP(&regions, "regions", "r", nil, "region ids overriding the config")
	root.PersistentFlags().BoolVar(&debugLogs, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "hide progress bars")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "serve /metrics on this address (default METRICS_ADDR)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newPointsCommand())
	root.AddCommand(newSamplesCommand())
	root.AddCommand(newClassifyCommand())
	root.AddCommand(newMenuCommand())
	return root
}

// options builds the shared use-case options and starts the metrics
// endpoint when an address is configured.
func options() delivery.Options {
	opts := delivery.Options{
		ConfigPath:  configPath,
		RegionsPath: regionsPath,
		Regions:     regions,
		Progress:    !noProgress,
	}
	addr := metricsAddr
	if addr == "" {
		addr = properties.MetricsAddr()
	}
	if addr != "" {
		opts.Metrics = telemetry.NewMetrics("cerrado")
		go func() {
			if err := opts.Metrics.Serve(addr); err != nil {
				log.Errorw("metrics endpoint stopped", "addr", addr, "error", err)
			}
		}()
		log.Infow("serving metrics", "addr", addr)
	}
	return opts
}

func newRunCommand() *cobra.Command {
	var (
		preview string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and export the annual composites of a collection",
		Example: `  cerrado run -c configs/cerrado_landsat.yaml -r 12,21
  cerrado run --force --preview ndvi_median_wet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options()
			opts.Preview, opts.Force = preview, force
			report, err := delivery.RunComposites(cmd.Context(), opts)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Run %s: %d written, %d already exported.", report.RunID, len(report.Written), report.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&preview, "preview", "", "band to render as a PNG quicklook next to each output")
	cmd.Flags().BoolVar(&force, "force", false, "rewrite outputs already in the export ledger")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the band set a collection produces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bands, err := delivery.Schema(configPath)
			if err != nil {
				return err
			}
			for _, b := range bands {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}

func newPointsCommand() *cobra.Command {
	var output string
	alloc := delivery.DefaultAllocation()
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Draw class-stratified sample points from per-region reference maps",
		Example: `  cerrado points -r 12 --size 7000 --min 700
  cerrado points --reference-dir /data/reference -o points.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = properties.DataPath("training", "points.csv")
			}
			n, err := delivery.GeneratePoints(options(), alloc, output)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d sample points written to %s", n, output))
			return nil
		},
	}
	cmd.Flags().IntVar(&alloc.Size, "size", alloc.Size, "sample budget per region, split by class area")
	cmd.Flags().IntVar(&alloc.Min, "min", alloc.Min, "minimum samples per class")
	cmd.Flags().StringVar(&alloc.ReferenceDir, "reference-dir", alloc.ReferenceDir, "directory of <region>.tif reference class maps")
	cmd.Flags().StringVarP(&output, "output", "o", "", "points CSV path (default ROOT_PATH/data/training/points.csv)")
	return cmd
}

func newSamplesCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "samples <points.csv>",
		Short: "Export packed feature vectors at labelled sample points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = properties.DataPath("training", "samples.csv")
			}
			rows, err := delivery.ExportSamples(cmd.Context(), options(), args[0], output)
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d samples written to %s", rows, output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "training table path (default ROOT_PATH/data/training/samples.csv)")
	return cmd
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Send composites to the classifier and write class maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := delivery.ClassifyComposites(cmd.Context(), options())
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("%d classification maps written.", len(written)))
			return nil
		},
	}
}

func newMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printBanner()
			ui.ShowMenu(cmd.Context(), options())
			return nil
		},
	}
}
