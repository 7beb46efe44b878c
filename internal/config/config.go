// Package config loads the YAML description of a composite collection.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mapbiomas/brazil-cerrado/internal/auxiliary"
	"github.com/mapbiomas/brazil-cerrado/internal/composite"
	"github.com/mapbiomas/brazil-cerrado/internal/history"
	"github.com/mapbiomas/brazil-cerrado/internal/sma"
	"github.com/mapbiomas/brazil-cerrado/internal/spectral"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid collection config")

type Window struct {
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
}

type Ranking struct {
	Band          string  `yaml:"band" validate:"required"`
	DryPercentile float64 `yaml:"dry_percentile" validate:"gte=0,lte=100"`
	WetPercentile float64 `yaml:"wet_percentile" validate:"gte=0,lte=100,nefield=DryPercentile"`
	MinPercentile float64 `yaml:"min_percentile" validate:"gte=0,lte=100"`
	MaxPercentile float64 `yaml:"max_percentile" validate:"gte=0,lte=100"`
}

type Packing struct {
	Scale    float64 `yaml:"scale" validate:"gt=0"`
	NoData   string  `yaml:"nodata" validate:"oneof=mask unmask"`
	Sentinel int64   `yaml:"sentinel"`
}

type Rolling struct {
	AmplitudeBand string   `yaml:"amplitude_band" validate:"required"`
	VarianceBands []string `yaml:"variance_bands" validate:"dive,required"`
	Sentinel      float64  `yaml:"sentinel"`
}

type Layer struct {
	Name    string `yaml:"name" validate:"required"`
	PerYear bool   `yaml:"per_year"`
}

type Auxiliary struct {
	Covariates bool    `yaml:"covariates"`
	Layers     []Layer `yaml:"layers" validate:"dive"`
}

type Years struct {
	Start int `yaml:"start" validate:"gte=1984"`
	End   int `yaml:"end" validate:"gtefield=Start"`
}

// Collection is one versioned output collection.
type Collection struct {
	ID                string             `yaml:"collection" validate:"required"`
	Version           int                `yaml:"version" validate:"gte=1"`
	Biome             string             `yaml:"biome" validate:"required"`
	Sensor            string             `yaml:"sensor" validate:"required,oneof=landsat-5 landsat-7 landsat-8 sentinel-2"`
	Bands             []string           `yaml:"bands" validate:"required,min=1,unique,dive,required"`
	Period            Window             `yaml:"period"`
	Dry               Window             `yaml:"dry"`
	Wet               Window             `yaml:"wet"`
	Ranking           Ranking            `yaml:"ranking"`
	Indices           []string           `yaml:"indices" validate:"unique"`
	SMA               bool               `yaml:"sma"`
	Packing           Packing            `yaml:"packing"`
	Rolling           Rolling            `yaml:"rolling"`
	Auxiliary         Auxiliary          `yaml:"auxiliary"`
	Years             Years              `yaml:"years"`
	Regions           []string           `yaml:"regions"`
	SampleFraction    map[string]float64 `yaml:"sample_fraction" validate:"dive,gt=0,lte=1"`
	Workers           int                `yaml:"workers" validate:"gte=0"`
	RegionParallelism int                `yaml:"region_parallelism" validate:"gte=0"`
}

// Load reads and validates a collection file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Collection, error) {
	c := &Collection{
		Period:            Window{Start: "01-01", End: "12-31"},
		Packing:           Packing{Scale: 10000, NoData: string(composite.Mask)},
		Workers:           100,
		RegionParallelism: 4,
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field constraints, then cross-field band references.
func (c *Collection) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := spectral.Validate(c.Indices); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.SMA {
		lib, err := sma.LibraryFor(c.Sensor)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		for _, b := range lib.Bands {
			if !slices.Contains(c.Bands, b) {
				return fmt.Errorf("%w: unmixing needs band %s, which is not in bands", ErrInvalid, b)
			}
		}
	}
	settings, err := c.Settings()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	temporal := map[string]bool{}
	for _, b := range c.TemporalBands() {
		temporal[b] = true
	}
	if !temporal[c.Ranking.Band] {
		return fmt.Errorf("%w: ranking band %s is neither a sensor band nor a configured index", ErrInvalid, c.Ranking.Band)
	}
	if !temporal[c.Rolling.AmplitudeBand] {
		return fmt.Errorf("%w: amplitude band %s is not a temporal band", ErrInvalid, c.Rolling.AmplitudeBand)
	}
	features := map[string]bool{}
	for _, f := range composite.NewCompositor(settings).FeatureNames(c.TemporalBands()) {
		features[f] = true
	}
	for _, v := range c.Rolling.VarianceBands {
		if !features[v] {
			return fmt.Errorf("%w: variance band %s is not a composite band", ErrInvalid, v)
		}
	}
	for _, l := range c.Auxiliary.Layers {
		if features[l.Name] || l.Name == composite.YearBand || (c.Auxiliary.Covariates && isCovariate(l.Name)) {
			return fmt.Errorf("%w: auxiliary layer %s collides with a composite band", ErrInvalid, l.Name)
		}
	}
	return nil
}

func isCovariate(name string) bool {
	for _, n := range auxiliary.Names {
		if n == name {
			return true
		}
	}
	return false
}

func window(w Window) (composite.Window, error) {
	start, err := composite.ParseMonthDay(w.Start)
	if err != nil {
		return composite.Window{}, err
	}
	end, err := composite.ParseMonthDay(w.End)
	if err != nil {
		return composite.Window{}, err
	}
	return composite.Window{Start: start, End: end}, nil
}

// Settings converts the windows and ranking section for the compositor.
func (c *Collection) Settings() (composite.Settings, error) {
	period, err := window(c.Period)
	if err != nil {
		return composite.Settings{}, fmt.Errorf("period: %w", err)
	}
	dry, err := window(c.Dry)
	if err != nil {
		return composite.Settings{}, fmt.Errorf("dry window: %w", err)
	}
	wet, err := window(c.Wet)
	if err != nil {
		return composite.Settings{}, fmt.Errorf("wet window: %w", err)
	}
	return composite.Settings{
		Period:        period,
		Dry:           dry,
		Wet:           wet,
		RankingBand:   c.Ranking.Band,
		DryPercentile: c.Ranking.DryPercentile,
		WetPercentile: c.Ranking.WetPercentile,
		MinPercentile: c.Ranking.MinPercentile,
		MaxPercentile: c.Ranking.MaxPercentile,
	}, nil
}

// TemporalBands lists sensor bands, indices and, with SMA on, fractions and
// fraction indices.
func (c *Collection) TemporalBands() []string {
	var unmixer *sma.Unmixer
	if c.SMA {
		if lib, err := sma.LibraryFor(c.Sensor); err == nil {
			unmixer = sma.NewUnmixer(lib)
		}
	}
	return composite.NewDeriver(c.Indices, unmixer).BandNames(c.Bands)
}

func (c *Collection) MetricsSpec() history.Spec {
	return history.Spec{
		AmplitudeBand: c.Rolling.AmplitudeBand,
		VarianceBands: append([]string(nil), c.Rolling.VarianceBands...),
		Sentinel:      c.Rolling.Sentinel,
	}
}

func (c *Collection) Packer() composite.Packer {
	return composite.Packer{Policy: composite.NoDataPolicy(c.Packing.NoData), Sentinel: c.Packing.Sentinel}
}

// ScaleFunc scales composite bands by the packing factor. Covariates,
// auxiliary layers and the year band are already integers and keep scale 1.
func (c *Collection) ScaleFunc() composite.ScaleFunc {
	prescaled := map[string]bool{composite.YearBand: true}
	for _, n := range auxiliary.Names {
		prescaled[n] = true
	}
	for _, l := range c.Auxiliary.Layers {
		prescaled[l.Name] = true
	}
	return func(name string) float64 {
		if prescaled[name] {
			return 1
		}
		return c.Packing.Scale
	}
}

// YearRange returns the processed years in increasing order.
func (c *Collection) YearRange() []int {
	years := make([]int, 0, c.Years.End-c.Years.Start+1)
	for y := c.Years.Start; y <= c.Years.End; y++ {
		years = append(years, y)
	}
	return years
}

// SelectRegions keeps the configured regions, or all when none are listed.
func (c *Collection) SelectRegions(all []auxiliary.Region) ([]auxiliary.Region, error) {
	if len(c.Regions) == 0 {
		return all, nil
	}
	out := make([]auxiliary.Region, 0, len(c.Regions))
	for _, id := range c.Regions {
		r, err := auxiliary.FindRegion(all, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Fraction returns the training subsample share of a region, 1 by default.
func (c *Collection) Fraction(region string) float64 {
	if f, ok := c.SampleFraction[region]; ok {
		return f
	}
	return 1
}
