package delivery

import (
	"errors"
	"fmt"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/config"
	"github.com/mapbiomas/brazil-cerrado/internal/engine"
	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/notification"
	"github.com/mapbiomas/brazil-cerrado/internal/properties"
	"github.com/mapbiomas/brazil-cerrado/internal/raster"
	"github.com/mapbiomas/brazil-cerrado/internal/telemetry"
)

// Options carries the flags shared by every use case.
type Options struct {
	ConfigPath  string
	RegionsPath string
	// Regions overrides the regions listed in the collection config.
	Regions  []string
	Progress bool
	// Preview names a band to render as a PNG quicklook next to each output.
	Preview string
	// Force rewrites outputs already present in the export ledger.
	Force   bool
	Metrics *telemetry.Metrics
}

func (o Options) regionsPath() string {
	if o.RegionsPath != "" {
		return o.RegionsPath
	}
	return properties.DataPath("regions.geojson")
}

// LoadCollection reads the collection config and resolves its regions.
func LoadCollection(opts Options) (*config.Collection, []auxiliary.Region, error) {
	c, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if len(opts.Regions) > 0 {
		c.Regions = opts.Regions
	}
	all, err := auxiliary.LoadRegions(opts.regionsPath())
	if err != nil {
		return nil, nil, err
	}
	regions, err := c.SelectRegions(all)
	if err != nil {
		return nil, nil, err
	}
	return c, regions, nil
}

// NewEngine wires the GeoTIFF scene and auxiliary readers under ROOT_PATH/data.
func NewEngine(c *config.Collection, opts Options) (*engine.Engine, error) {
	scenes := raster.NewGeoTIFFSource(properties.DataPath("scenes"), c.Bands)
	aux := raster.NewGeoTIFFAuxiliary(properties.DataPath("auxiliary"))
	return engine.New(c, scenes, aux,
		engine.WithProgress(opts.Progress),
		engine.WithTelemetry(opts.Metrics),
	)
}

// Schema returns the band set a collection produces, without reading data.
func Schema(configPath string) ([]string, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(c, Options{})
	if err != nil {
		return nil, err
	}
	return e.ExpectedBands(), nil
}

// ListRegions returns the ids of every region in the regions file.
func ListRegions(opts Options) ([]string, error) {
	regions, err := auxiliary.LoadRegions(opts.regionsPath())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	return ids, nil
}

func notifyFailure(what string, err error) {
	nerr := notification.SendDiscordErrorNotification(fmt.Sprintf("%s: %s", what, err))
	if nerr != nil && !errors.Is(nerr, notification.ErrNoWebhook) {
		log.Warnw("failed to send notification", "error", nerr)
	}
}

func notifySuccess(msg string, fields ...notification.DiscordField) {
	nerr := notification.SendDiscordSuccessNotification(msg, fields...)
	if nerr != nil && !errors.Is(nerr, notification.ErrNoWebhook) {
		log.Warnw("failed to send notification", "error", nerr)
	}
}
