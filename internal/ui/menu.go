package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mapbiomas/brazil-cerrado/internal/delivery"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
)

type menuOption struct {
	title   string
	handler func() bool
}

// ShowMenu runs the interactive menu until the user exits or stdin closes.
func ShowMenu(ctx context.Context, base delivery.Options) {
	menuOptions := []menuOption{
		{"Build and export annual composites", func() bool { RunComposites(ctx, base); return true }},
		{"Print the band schema of a collection", func() bool { PrintSchema(base); return true }},
		{"Export training samples", func() bool { ExportSamples(ctx, base); return true }},
		{"Classify annual composites", func() bool { Classify(ctx, base); return true }},
		{"View the list of available regions", func() bool { ListRegions(base); return true }},
		{"Exit the application", func() bool { fmt.Fprintln(out, "Exiting..."); return false }},
	}

	for {
		fmt.Fprintf(out, "%s===================%s\n", ColorBlue, ColorReset)
		for i, opt := range menuOptions {
			fmt.Fprintf(out, "%s%d. %s%s\n", ColorBlue, i+1, opt.title, ColorReset)
		}
		choice, err := ReadInt("Please enter your choice: ", 1, len(menuOptions))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "\nInput closed, exiting...")
			return
		}
		if err != nil {
			PrintError(err.Error())
			continue
		}
		if !menuOptions[choice-1].handler() {
			return
		}
	}
}

// withRun asks for the config and optional region override.
func withRun(base delivery.Options) delivery.Options {
	opts := base
	if path := ReadString(fmt.Sprintf("Collection config [%s]: ", base.ConfigPath)); path != "" {
		opts.ConfigPath = path
	}
	if regions := ReadList("Regions, comma separated (empty for the configured set): "); len(regions) > 0 {
		opts.Regions = regions
	}
	return opts
}

func RunComposites(ctx context.Context, base delivery.Options) {
	PrintWarning("Scenes are read from data/scenes/<region>/<YYYY-MM-DD>.tif under ROOT_PATH.")
	opts := withRun(base)
	report, err := delivery.RunComposites(ctx, opts)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("Run %s finished in %s: %d written, %d already exported.",
		report.RunID, report.Took.Round(time.Second), len(report.Written), report.Skipped))
}

func PrintSchema(base delivery.Options) {
	opts := withRun(base)
	bands, err := delivery.Schema(opts.ConfigPath)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("%d bands:", len(bands)))
	for _, b := range bands {
		fmt.Fprintf(out, "%s- %s%s\n", ColorGreen, b, ColorReset)
	}
}

func ExportSamples(ctx context.Context, base delivery.Options) {
	PrintWarning("Sample points are a CSV with id, region, longitude, latitude and reference columns.")
	opts := withRun(base)
	points := ReadString("Sample points CSV: ")
	if points == "" {
		PrintError("sample points path cannot be empty")
		return
	}
	target := ReadString("Output table [data/training/samples.csv]: ")
	if target == "" {
		target = properties.DataPath("training", "samples.csv")
	}
	if !strings.HasSuffix(target, ".csv") {
		target += ".csv"
	}
	rows, err := delivery.ExportSamples(ctx, opts, points, target)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("%d samples written to %s", rows, target))
}

func Classify(ctx context.Context, base delivery.Options) {
	PrintWarning(fmt.Sprintf("The classifier must be listening at %s.", properties.ClassifierAddr()))
	written, err := delivery.ClassifyComposites(ctx, withRun(base))
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("%d classification maps written.", len(written)))
}

func ListRegions(base delivery.Options) {
	PrintWarning("To add a region, add a feature with a 'region_id' property to the regions GeoJSON.")
	ids, err := delivery.ListRegions(base)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess("Available regions:")
	for _, id := range ids {
		fmt.Fprintf(out, "%s- %s%s\n", ColorGreen, id, ColorReset)
	}
}
