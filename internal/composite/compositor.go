// Package composite reduces per-pixel time series to annual feature bands,
// checks band schemas and packs float composites into integer rasters.
package composite

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// Settings drives the temporal reduction of one collection.
type Settings struct {
	Period        Window
	Dry           Window
	Wet           Window
	RankingBand   string
	DryPercentile float64
	WetPercentile float64
	MinPercentile float64
	MaxPercentile float64
}

// Compositor reduces an observation series to one value per feature band.
type Compositor struct {
	settings Settings
}

func NewCompositor(s Settings) *Compositor {
	return &Compositor{settings: s}
}

func (c *Compositor) Settings() Settings {
	return c.settings
}

func percentileSuffix(p float64) string {
	return "_p" + strconv.FormatFloat(p, 'f', -1, 64)
}

func (c *Compositor) DryPercentileName() string {
	return c.settings.RankingBand + percentileSuffix(c.settings.DryPercentile)
}

func (c *Compositor) WetPercentileName() string {
	return c.settings.RankingBand + percentileSuffix(c.settings.WetPercentile)
}

// FeatureNames lists every band Compose emits for the temporal bands given.
func (c *Compositor) FeatureNames(temporal []string) []string {
	names := make([]string, 0, len(temporal)*4+4)
	for _, b := range temporal {
		names = append(names, b+"_median", b+"_median_dry", b+"_median_wet", b+"_stdDev")
	}
	rb := c.settings.RankingBand
	names = append(names, c.DryPercentileName(), c.WetPercentileName(), rb+"_min", rb+"_max")
	sort.Strings(names)
	return names
}

type windowed struct {
	all, dry, wet []float64
}

// Compose reduces obs over the configured period and sub-windows. Every name
// of FeatureNames(temporal) is present in the result; a band without samples
// in a window is no-data for that window.
func (c *Compositor) Compose(obs []band.Observation, temporal []string) band.Values {
	s := c.settings
	series := make(map[string]*windowed, len(temporal))
	for _, b := range temporal {
		series[b] = &windowed{}
	}
	if _, ok := series[s.RankingBand]; !ok {
		series[s.RankingBand] = &windowed{}
	}

	for _, o := range obs {
		t := o.Time()
		if !s.Period.Contains(t) {
			continue
		}
		inDry, inWet := s.Dry.Contains(t), s.Wet.Contains(t)
		for name, w := range series {
			v := o.Value(name)
			if band.IsNoData(v) {
				continue
			}
			w.all = append(w.all, v)
			if inDry {
				w.dry = append(w.dry, v)
			}
			if inWet {
				w.wet = append(w.wet, v)
			}
		}
	}

	out := make(band.Values, len(temporal)*4+4)
	for _, b := range temporal {
		w := series[b]
		all, dry, wet := samples(w.all), samples(w.dry), samples(w.wet)
		out[b+"_median"] = Median(all)
		out[b+"_median_dry"] = Median(dry)
		out[b+"_median_wet"] = Median(wet)
		out[b+"_stdDev"] = PopStdDev(all)
	}

	rank := series[s.RankingBand]
	all, dry, wet := samples(rank.all), samples(rank.dry), samples(rank.wet)
	out[c.DryPercentileName()] = Percentile(dry, s.DryPercentile)
	out[c.WetPercentileName()] = Percentile(wet, s.WetPercentile)
	out[s.RankingBand+"_min"] = Percentile(all, s.MinPercentile)
	out[s.RankingBand+"_max"] = Percentile(all, s.MaxPercentile)
	return out
}

// Validate rejects settings whose output names would collide.
func (s Settings) Validate() error {
	if s.RankingBand == "" {
		return fmt.Errorf("ranking band is required")
	}
	if s.DryPercentile == s.WetPercentile {
		return fmt.Errorf("dry and wet percentiles must differ, got %v", s.DryPercentile)
	}
	for _, p := range []float64{s.DryPercentile, s.WetPercentile, s.MinPercentile, s.MaxPercentile} {
		if p < 0 || p > 100 {
			return fmt.Errorf("percentile %v out of [0, 100]", p)
		}
	}
	return nil
}
